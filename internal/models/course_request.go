package models

import "time"

// CourseRequestStatus enumerates request lifecycle states.
type CourseRequestStatus string

const (
	CourseRequestPendingApproval        CourseRequestStatus = "PENDING_APPROVAL"
	CourseRequestApprovedPendingPayment CourseRequestStatus = "APPROVED_PENDING_PAYMENT"
	CourseRequestPaidAndEnrolled        CourseRequestStatus = "PAID_AND_ENROLLED"
	CourseRequestRejected               CourseRequestStatus = "REJECTED_BY_INSTRUCTOR"
)

// Valid checks whether the status is recognised.
func (s CourseRequestStatus) Valid() bool {
	switch s {
	case CourseRequestPendingApproval, CourseRequestApprovedPendingPayment, CourseRequestPaidAndEnrolled, CourseRequestRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed.
func (s CourseRequestStatus) Terminal() bool {
	return s == CourseRequestPaidAndEnrolled || s == CourseRequestRejected
}

// Slot is one weekly time range, e.g. monday 10:00-12:00.
type Slot struct {
	DayOfWeek string `db:"day_of_week" json:"day_of_week"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
}

// String renders the slot the way validation messages name it.
func (s Slot) String() string {
	return s.DayOfWeek + " " + s.StartTime + "-" + s.EndTime
}

// CourseRequest is a student's application to enroll at chosen weekly slots.
type CourseRequest struct {
	ID              string              `db:"id" json:"id"`
	CourseID        string              `db:"course_id" json:"course_id"`
	StudentID       string              `db:"student_id" json:"student_id"`
	Status          CourseRequestStatus `db:"status" json:"status"`
	StartDate       time.Time           `db:"start_date" json:"start_date"`
	Notes           string              `db:"notes" json:"notes"`
	PriceSnapshot   int64               `db:"price_snapshot" json:"price_snapshot"`
	RejectionReason *string             `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
	Slots           []Slot              `db:"-" json:"slots"`
}

// CourseRequestDetail is the request read model joined with its course.
type CourseRequestDetail struct {
	CourseRequest
	CourseName   string `db:"course_name" json:"course_name"`
	InstructorID string `db:"instructor_id" json:"instructor_id"`
}
