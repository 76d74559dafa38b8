package models

import "time"

// EnrollmentStatus enumerates enrollment lifecycle states.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
)

// Valid checks whether the status is recognised.
func (s EnrollmentStatus) Valid() bool {
	return s == EnrollmentStatusActive || s == EnrollmentStatusCompleted
}

// Enrollment is the paid seat created after a successful payment.
type Enrollment struct {
	ID                       string           `db:"id" json:"id"`
	RequestID                string           `db:"request_id" json:"request_id"`
	StartDate                time.Time        `db:"start_date" json:"start_date"`
	Status                   EnrollmentStatus `db:"status" json:"status"`
	TargetSessionsToComplete int              `db:"target_sessions_to_complete" json:"target_sessions_to_complete"`
	MaxSessionsAllowed       int              `db:"max_sessions_allowed" json:"max_sessions_allowed"`
	ActualSessionsAttended   int              `db:"actual_sessions_attended" json:"actual_sessions_attended"`
	EndDate                  *time.Time       `db:"end_date" json:"end_date,omitempty"`
	CreatedAt                time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentContext joins an enrollment with the people allowed to act on it.
type EnrollmentContext struct {
	Enrollment
	StudentID    string `db:"student_id" json:"student_id"`
	CourseID     string `db:"course_id" json:"course_id"`
	CourseName   string `db:"course_name" json:"course_name"`
	InstructorID string `db:"instructor_id" json:"instructor_id"`
}

// CanView reports whether p may read this enrollment's ledger.
func (e EnrollmentContext) CanView(p Principal) bool {
	return p.IsAdmin() || p.UserID == e.StudentID || p.UserID == e.InstructorID
}

// CanManage reports whether p may record attendance or progress.
func (e EnrollmentContext) CanManage(p Principal) bool {
	return p.IsAdmin() || (p.UserType == UserTypeInstructor && p.UserID == e.InstructorID)
}
