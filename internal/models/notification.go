package models

import "time"

// Notification event types.
const (
	NotifyCourseRequestCreated  = "COURSE_REQUEST_CREATED"
	NotifyCourseRequestApproved = "COURSE_REQUEST_APPROVED"
	NotifyCourseRequestRejected = "COURSE_REQUEST_REJECTED"
	NotifyPaymentConfirmed      = "PAYMENT_CONFIRMED"
	NotifyPaymentFailed         = "PAYMENT_FAILED"
	NotifyEnrollmentCompleted   = "ENROLLMENT_COMPLETED"
	NotifyExcuseRequested       = "EXCUSE_REQUESTED"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	EventType       string    `db:"event_type" json:"event_type"`
	Message         string    `db:"message" json:"message"`
	RelatedEntityID *string   `db:"related_entity_id" json:"related_entity_id,omitempty"`
	IsRead          bool      `db:"is_read" json:"is_read"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
