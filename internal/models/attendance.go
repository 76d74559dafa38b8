package models

import "time"

// AttendanceStatus enumerates per-session outcomes.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

// Valid validates attendance status values.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	default:
		return false
	}
}

// CountsAsAttended reports whether the status counts toward completion.
// Excused absences count by design.
func (s AttendanceStatus) CountsAsAttended() bool {
	return s == AttendancePresent || s == AttendanceLate || s == AttendanceExcused
}

// AttendedStatuses lists the statuses counted toward completion.
var AttendedStatuses = []AttendanceStatus{AttendancePresent, AttendanceLate, AttendanceExcused}

// Attendance is one record per (enrollment, session number).
type Attendance struct {
	ID             string           `db:"id" json:"id"`
	EnrollmentID   string           `db:"enrollment_id" json:"enrollment_id"`
	SessionNumber  int              `db:"session_number" json:"session_number"`
	Status         AttendanceStatus `db:"status" json:"status"`
	Reason         *string          `db:"reason" json:"reason,omitempty"`
	SessionDate    time.Time        `db:"session_date" json:"session_date"`
	RecordedBy     string           `db:"recorded_by" json:"recorded_by"`
	RecordedByRole UserType         `db:"recorded_by_role" json:"recorded_by_role"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceResult is an attendance write with the enrollment state after it.
type AttendanceResult struct {
	Attendance Attendance `json:"attendance"`
	Enrollment Enrollment `json:"enrollment"`
}
