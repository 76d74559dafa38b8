package dto

// RecordAttendanceInput is an instructor's attendance entry for one session.
type RecordAttendanceInput struct {
	SessionNumber int    `json:"session_number" validate:"required,gte=1"`
	Status        string `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
	Reason        string `json:"reason" validate:"max=500"`
	SessionDate   string `json:"session_date" validate:"required,datetime=2006-01-02"`
}

// ExcuseInput is a student's self-reported absence.
type ExcuseInput struct {
	SessionNumber int    `json:"session_number" validate:"required,gte=1"`
	Reason        string `json:"reason" validate:"required,max=500"`
	SessionDate   string `json:"session_date" validate:"required,datetime=2006-01-02"`
}
