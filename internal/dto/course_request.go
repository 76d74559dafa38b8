package dto

// SlotInput is one selected weekly slot.
type SlotInput struct {
	DayOfWeek string `json:"day_of_week" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// CreateCourseRequestInput is the student's enrollment application.
// SelectedSlot carries the deprecated "day:HH:MM-HH:MM" form.
type CreateCourseRequestInput struct {
	CourseID      string      `json:"course_id" validate:"required"`
	StartDate     string      `json:"start_date" validate:"required,datetime=2006-01-02"`
	SelectedSlots []SlotInput `json:"selected_slots" validate:"omitempty,max=14,dive"`
	SelectedSlot  string      `json:"selected_slot" validate:"omitempty,max=32"`
	Notes         string      `json:"notes" validate:"max=500"`
}

// RejectCourseRequestInput optionally explains a rejection.
type RejectCourseRequestInput struct {
	Reason string `json:"reason" validate:"max=500"`
}
