package models

import "time"

// Course is an instructor-offered swimming class with a fixed weekly schedule.
type Course struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	InstructorID  string    `db:"instructor_id" json:"instructor_id"`
	Price         int64     `db:"price" json:"price"`
	TotalSessions int       `db:"total_sessions" json:"total_sessions"`
	AbsenceBuffer int       `db:"absence_buffer" json:"absence_buffer"`
	Schedule      string    `db:"schedule" json:"schedule"`
	Level         string    `db:"level" json:"level"`
	Location      string    `db:"location" json:"location"`
	Description   string    `db:"description" json:"description"`
	MaxStudents   int       `db:"max_students" json:"max_students"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures list criteria for courses.
type CourseFilter struct {
	InstructorID string
	Page         int
	PageSize     int
}

// Pagination describes a page of list results.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
