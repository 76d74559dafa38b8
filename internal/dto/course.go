package dto

import "encoding/json"

// CreateCourseRequest is the payload for publishing a course.
type CreateCourseRequest struct {
	Name          string          `json:"name" validate:"required,max=200"`
	InstructorID  string          `json:"instructor_id"`
	Price         int64           `json:"price" validate:"gte=0"`
	TotalSessions int             `json:"total_sessions" validate:"required,gt=0,lte=200"`
	AbsenceBuffer *int            `json:"absence_buffer" validate:"omitempty,gte=0,lte=50"`
	Schedule      json.RawMessage `json:"schedule" validate:"required"`
	Level         string          `json:"level" validate:"max=50"`
	Location      string          `json:"location" validate:"max=255"`
	Description   string          `json:"description" validate:"max=2000"`
	MaxStudents   int             `json:"max_students" validate:"omitempty,gt=0"`
}
