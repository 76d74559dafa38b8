package dto

// UpsertSessionProgressInput records notes for one session.
type UpsertSessionProgressInput struct {
	SessionNumber    int    `json:"session_number" validate:"required,gte=1"`
	TopicCovered     string `json:"topic_covered" validate:"required,max=1000"`
	PerformanceNotes string `json:"performance_notes" validate:"required,max=2000"`
	SessionDate      string `json:"session_date" validate:"required,datetime=2006-01-02"`
}

// UpdateSessionProgressInput edits an existing entry; nil fields are kept.
type UpdateSessionProgressInput struct {
	TopicCovered     *string `json:"topic_covered" validate:"omitempty,max=1000"`
	PerformanceNotes *string `json:"performance_notes" validate:"omitempty,max=2000"`
	SessionDate      *string `json:"session_date" validate:"omitempty,datetime=2006-01-02"`
}
