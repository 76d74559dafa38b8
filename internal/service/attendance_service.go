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

type attendanceRepository interface {
	FindBySession(ctx context.Context, exec sqlx.ExtContext, enrollmentID string, sessionNumber int) (*models.Attendance, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, attendance *models.Attendance) error
	CountStudentExcuses(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) (int, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Attendance, error)
}

type enrollmentLocator interface {
	FindContext(ctx context.Context, id string) (*models.EnrollmentContext, error)
	LockContext(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentContext, error)
}

type completionTracker interface {
	RecomputeTx(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) (bool, error)
	Invalidate(ctx context.Context, ec *models.EnrollmentContext)
}

// AttendanceService records per-session attendance and student excuses.
type AttendanceService struct {
	repo        attendanceRepository
	enrollments enrollmentLocator
	tracker     completionTracker
	tx          database.TxBeginner
	notifier    Notifier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, enrollments enrollmentLocator, tracker completionTracker, tx database.TxBeginner, notifier Notifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:        repo,
		enrollments: enrollments,
		tracker:     tracker,
		tx:          tx,
		notifier:    notifier,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Record writes the instructor's attendance for a session, overwriting any
// earlier entry, and recomputes completion.
func (s *AttendanceService) Record(ctx context.Context, enrollmentID string, principal models.Principal, input dto.RecordAttendanceInput) (*models.AttendanceResult, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Validation(err, "invalid attendance payload")
	}
	sessionDate, err := time.Parse("2006-01-02", input.SessionDate)
	if err != nil {
		return nil, appErrors.Validation(err, "session_date must be YYYY-MM-DD")
	}

	var (
		ec        *models.EnrollmentContext
		completed bool
	)
	attendance := &models.Attendance{
		EnrollmentID:   enrollmentID,
		SessionNumber:  input.SessionNumber,
		Status:         models.AttendanceStatus(input.Status),
		SessionDate:    sessionDate,
		RecordedBy:     principal.UserID,
		RecordedByRole: principal.UserType,
	}
	if input.Reason != "" {
		attendance.Reason = &input.Reason
	}

	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		ec, err = s.lockWritable(ctx, tx, enrollmentID, input.SessionNumber, func(ec *models.EnrollmentContext) bool {
			return ec.CanManage(principal)
		})
		if err != nil {
			return err
		}
		if err := s.repo.Upsert(ctx, tx, attendance); err != nil {
			return err
		}
		completed, err = s.tracker.RecomputeTx(ctx, tx, &ec.Enrollment)
		return err
	})
	if err != nil {
		return nil, serviceError(err, "failed to record attendance")
	}

	s.tracker.Invalidate(ctx, ec)
	if completed {
		s.onCompleted(ctx, ec)
	}
	return &models.AttendanceResult{Attendance: *attendance, Enrollment: ec.Enrollment}, nil
}

// RequestExcuse lets the enrolled student mark a session excused. Students
// cannot overwrite an instructor's entry and may self-excuse at most the
// absence buffer.
func (s *AttendanceService) RequestExcuse(ctx context.Context, enrollmentID string, principal models.Principal, input dto.ExcuseInput) (*models.AttendanceResult, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Validation(err, "invalid excuse payload")
	}
	sessionDate, err := time.Parse("2006-01-02", input.SessionDate)
	if err != nil {
		return nil, appErrors.Validation(err, "session_date must be YYYY-MM-DD")
	}

	var (
		ec        *models.EnrollmentContext
		completed bool
	)
	reason := input.Reason
	attendance := &models.Attendance{
		EnrollmentID:   enrollmentID,
		SessionNumber:  input.SessionNumber,
		Status:         models.AttendanceExcused,
		Reason:         &reason,
		SessionDate:    sessionDate,
		RecordedBy:     principal.UserID,
		RecordedByRole: models.UserTypeStudent,
	}

	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		ec, err = s.lockWritable(ctx, tx, enrollmentID, input.SessionNumber, func(ec *models.EnrollmentContext) bool {
			return principal.UserType == models.UserTypeStudent && principal.UserID == ec.StudentID
		})
		if err != nil {
			return err
		}

		existing, err := s.repo.FindBySession(ctx, tx, enrollmentID, input.SessionNumber)
		switch {
		case err == nil && existing.RecordedByRole != models.UserTypeStudent:
			return appErrors.Clone(appErrors.ErrConflict, "this session was already recorded by the instructor")
		case err == nil:
		case errors.Is(err, sql.ErrNoRows):
			used, err := s.repo.CountStudentExcuses(ctx, tx, enrollmentID)
			if err != nil {
				return err
			}
			allowed := ec.MaxSessionsAllowed - ec.TargetSessionsToComplete
			if used >= allowed {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("excuse limit of %d sessions reached", allowed))
			}
		default:
			return err
		}

		if err := s.repo.Upsert(ctx, tx, attendance); err != nil {
			return err
		}
		completed, err = s.tracker.RecomputeTx(ctx, tx, &ec.Enrollment)
		return err
	})
	if err != nil {
		return nil, serviceError(err, "failed to record excuse")
	}

	s.tracker.Invalidate(ctx, ec)
	s.notifier.Notify(ctx, ec.InstructorID, models.NotifyExcuseRequested,
		fmt.Sprintf("A student reported an excused absence for session %d of %s: %s", input.SessionNumber, ec.CourseName, reason), ec.ID)
	if completed {
		s.onCompleted(ctx, ec)
	}
	return &models.AttendanceResult{Attendance: *attendance, Enrollment: ec.Enrollment}, nil
}

// lockWritable loads the enrollment under lock and checks, in order, that it
// exists, the caller may write, it is active and the session is in range.
func (s *AttendanceService) lockWritable(ctx context.Context, tx *sqlx.Tx, enrollmentID string, session int, allowed func(*models.EnrollmentContext) bool) (*models.EnrollmentContext, error) {
	ec, err := s.enrollments.LockContext(ctx, tx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, err
	}
	if !allowed(ec) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot record attendance for this enrollment")
	}
	if ec.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("enrollment is %s", ec.Status))
	}
	if session < 1 || session > ec.MaxSessionsAllowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("session_number must be between 1 and %d", ec.MaxSessionsAllowed))
	}
	return ec, nil
}

func (s *AttendanceService) onCompleted(ctx context.Context, ec *models.EnrollmentContext) {
	s.metrics.IncEnrollmentsCompleted()
	s.notifier.Notify(ctx, ec.StudentID, models.NotifyEnrollmentCompleted,
		fmt.Sprintf("Congratulations, you completed %s.", ec.CourseName), ec.ID)
}

// ListForEnrollment returns the attendance ledger to the student, the
// instructor or an admin.
func (s *AttendanceService) ListForEnrollment(ctx context.Context, enrollmentID string, principal models.Principal) ([]models.Attendance, error) {
	ec, err := s.viewable(ctx, enrollmentID, principal)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListByEnrollment(ctx, ec.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list attendance")
	}
	if items == nil {
		items = []models.Attendance{}
	}
	return items, nil
}

func (s *AttendanceService) viewable(ctx context.Context, enrollmentID string, principal models.Principal) (*models.EnrollmentContext, error) {
	ec, err := s.enrollments.FindContext(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}
	if !ec.CanView(principal) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view this enrollment")
	}
	return ec, nil
}

// serviceError passes typed errors through and wraps the rest as internal.
func serviceError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Internal(err, message)
}

// notFoundAs maps sql.ErrNoRows to a NotFound error with message.
func notFoundAs(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	return err
}
