package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/seanior/course-booking-api/internal/dto"
	"github.com/seanior/course-booking-api/internal/models"
	"github.com/seanior/course-booking-api/pkg/database"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

const constraintActiveRequest = "uq_course_requests_active"

type courseRequestRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, req *models.CourseRequest) error
	FindByID(ctx context.Context, id string) (*models.CourseRequestDetail, error)
	HasActive(ctx context.Context, studentID, courseID string) (bool, error)
	TransitionStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.CourseRequestStatus, reason *string) (bool, error)
	ListPending(ctx context.Context, instructorID string) ([]models.CourseRequestDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.CourseRequestDetail, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// CourseRequestService owns the request lifecycle up to payment.
type CourseRequestService struct {
	repo      courseRequestRepository
	courses   courseReader
	tx        database.TxBeginner
	notifier  Notifier
	location  *time.Location
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseRequestService constructs CourseRequestService. loc is the
// timezone course schedules are published in.
func NewCourseRequestService(repo courseRequestRepository, courses courseReader, tx database.TxBeginner, notifier Notifier, loc *time.Location, validate *validator.Validate, logger *zap.Logger) *CourseRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CourseRequestService{repo: repo, courses: courses, tx: tx, notifier: notifier, location: loc, validator: validate, logger: logger}
}

// Create validates the selected slots and stores a pending request.
func (s *CourseRequestService) Create(ctx context.Context, principal models.Principal, input dto.CreateCourseRequestInput) (*models.CourseRequestDetail, error) {
	if principal.UserType != models.UserTypeStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can request courses")
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Validation(err, "invalid course request payload")
	}

	slots, err := s.selectedSlots(input)
	if err != nil {
		return nil, err
	}
	startDate, err := time.Parse("2006-01-02", input.StartDate)
	if err != nil {
		return nil, appErrors.Validation(err, "start_date must be YYYY-MM-DD")
	}

	course, err := s.courses.FindByID(ctx, input.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}

	schedule, err := ParseCourseSchedule(course.Schedule)
	if err != nil {
		s.logger.Error("course schedule unreadable", zap.String("course_id", course.ID), zap.Error(err))
		return nil, err
	}
	slots, firstSession, err := ValidateSlots(schedule, slots, startDate, s.location)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.HasActive(ctx, principal.UserID, course.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check existing requests")
	}
	if active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you already have an active request for this course")
	}

	req := &models.CourseRequest{
		CourseID:      course.ID,
		StudentID:     principal.UserID,
		Status:        models.CourseRequestPendingApproval,
		StartDate:     firstSession,
		Notes:         input.Notes,
		PriceSnapshot: course.Price,
		Slots:         slots,
	}
	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		return s.repo.Create(ctx, tx, req)
	})
	if err != nil {
		if database.IsUniqueViolation(err, constraintActiveRequest) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "you already have an active request for this course")
		}
		return nil, appErrors.Internal(err, "failed to create course request")
	}

	s.logger.Info("course request created",
		zap.String("request_id", req.ID),
		zap.String("course_id", course.ID),
		zap.String("student_id", principal.UserID),
		zap.Time("first_session", firstSession),
	)
	s.notifier.Notify(ctx, course.InstructorID, models.NotifyCourseRequestCreated,
		fmt.Sprintf("New request for %s starting %s", course.Name, firstSession.Format("2006-01-02 15:04")), req.ID)

	return &models.CourseRequestDetail{CourseRequest: *req, CourseName: course.Name, InstructorID: course.InstructorID}, nil
}

func (s *CourseRequestService) selectedSlots(input dto.CreateCourseRequestInput) ([]models.Slot, error) {
	if len(input.SelectedSlots) > 0 && input.SelectedSlot != "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "send either selected_slots or selected_slot, not both")
	}
	if input.SelectedSlot != "" {
		s.logger.Warn("deprecated selected_slot format used", zap.String("selected_slot", input.SelectedSlot))
		slot, err := ParseLegacySlot(input.SelectedSlot)
		if err != nil {
			return nil, err
		}
		return []models.Slot{slot}, nil
	}
	slots := make([]models.Slot, 0, len(input.SelectedSlots))
	for _, in := range input.SelectedSlots {
		slots = append(slots, models.Slot{DayOfWeek: in.DayOfWeek, StartTime: in.StartTime, EndTime: in.EndTime})
	}
	return slots, nil
}

// Approve moves a pending request to awaiting payment.
func (s *CourseRequestService) Approve(ctx context.Context, requestID string, principal models.Principal) (*models.CourseRequestDetail, error) {
	detail, err := s.decide(ctx, requestID, principal, models.CourseRequestApprovedPendingPayment, nil)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, detail.StudentID, models.NotifyCourseRequestApproved,
		fmt.Sprintf("Your request for %s was approved. Complete payment to enroll.", detail.CourseName), detail.ID)
	return detail, nil
}

// Reject closes a pending request, optionally recording why.
func (s *CourseRequestService) Reject(ctx context.Context, requestID string, principal models.Principal, input dto.RejectCourseRequestInput) (*models.CourseRequestDetail, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Validation(err, "invalid rejection payload")
	}
	var reason *string
	if input.Reason != "" {
		reason = &input.Reason
	}
	detail, err := s.decide(ctx, requestID, principal, models.CourseRequestRejected, reason)
	if err != nil {
		return nil, err
	}
	message := fmt.Sprintf("Your request for %s was declined.", detail.CourseName)
	if reason != nil {
		message += " Reason: " + *reason
	}
	s.notifier.Notify(ctx, detail.StudentID, models.NotifyCourseRequestRejected, message, detail.ID)
	return detail, nil
}

func (s *CourseRequestService) decide(ctx context.Context, requestID string, principal models.Principal, to models.CourseRequestStatus, reason *string) (*models.CourseRequestDetail, error) {
	detail, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course request not found")
		}
		return nil, appErrors.Internal(err, "failed to load course request")
	}
	if detail.Status != models.CourseRequestPendingApproval {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("course request is %s, not pending approval", detail.Status))
	}
	if !principal.IsAdmin() && !(principal.UserType == models.UserTypeInstructor && principal.UserID == detail.InstructorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course instructor can decide this request")
	}

	ok, err := s.repo.TransitionStatus(ctx, nil, requestID, models.CourseRequestPendingApproval, to, reason)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to update course request")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "course request is no longer pending approval")
	}

	detail.Status = to
	if reason != nil {
		detail.RejectionReason = reason
	}
	detail.UpdatedAt = time.Now().UTC()
	s.logger.Info("course request decided",
		zap.String("request_id", requestID),
		zap.String("status", string(to)),
		zap.String("decided_by", principal.UserID),
	)
	return detail, nil
}

// ListPending returns requests awaiting a decision: all of them for admins,
// the instructor's own otherwise.
func (s *CourseRequestService) ListPending(ctx context.Context, principal models.Principal) ([]models.CourseRequestDetail, error) {
	var instructorID string
	switch principal.UserType {
	case models.UserTypeAdmin:
	case models.UserTypeInstructor:
		instructorID = principal.UserID
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only instructors can review requests")
	}
	items, err := s.repo.ListPending(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list pending requests")
	}
	return nonNilRequests(items), nil
}

// ListForStudent returns every request the caller has made.
func (s *CourseRequestService) ListForStudent(ctx context.Context, principal models.Principal) ([]models.CourseRequestDetail, error) {
	items, err := s.repo.ListByStudent(ctx, principal.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list course requests")
	}
	return nonNilRequests(items), nil
}

// Get returns one request to its student, the course instructor or an admin.
func (s *CourseRequestService) Get(ctx context.Context, requestID string, principal models.Principal) (*models.CourseRequestDetail, error) {
	detail, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course request not found")
		}
		return nil, appErrors.Internal(err, "failed to load course request")
	}
	if !principal.IsAdmin() && principal.UserID != detail.StudentID && principal.UserID != detail.InstructorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view this request")
	}
	return detail, nil
}

func nonNilRequests(items []models.CourseRequestDetail) []models.CourseRequestDetail {
	if items == nil {
		return []models.CourseRequestDetail{}
	}
	return items
}
