package models

import "time"

// SessionProgress holds instructional notes for one session.
type SessionProgress struct {
	ID               string    `db:"id" json:"id"`
	EnrollmentID     string    `db:"enrollment_id" json:"enrollment_id"`
	SessionNumber    int       `db:"session_number" json:"session_number"`
	TopicCovered     string    `db:"topic_covered" json:"topic_covered"`
	PerformanceNotes string    `db:"performance_notes" json:"performance_notes"`
	SessionDate      time.Time `db:"session_date" json:"session_date"`
	AttachmentKey    *string   `db:"attachment_key" json:"-"`
	AttachmentURL    string    `db:"-" json:"attachment_url,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
