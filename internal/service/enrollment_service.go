package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

type enrollmentRepository interface {
	FindContext(ctx context.Context, id string) (*models.EnrollmentContext, error)
	LockContext(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentContext, error)
	CountAttended(ctx context.Context, exec sqlx.ExtContext, id string) (int, error)
	UpdateProgress(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentContext, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.EnrollmentContext, error)
}

func studentEnrollmentsKey(studentID string) string {
	return "enrollments:student:" + studentID
}

func instructorEnrollmentsKey(instructorID string) string {
	return "enrollments:instructor:" + instructorID
}

// applyAttendanceCount stores the recomputed count and completes the
// enrollment once the target is reached. A completed enrollment never
// reverts. It reports whether this call completed the enrollment.
func applyAttendanceCount(e *models.Enrollment, attended int, now time.Time) bool {
	e.ActualSessionsAttended = attended
	if e.Status == models.EnrollmentStatusActive && attended >= e.TargetSessionsToComplete {
		e.Status = models.EnrollmentStatusCompleted
		end := now
		e.EndDate = &end
		return true
	}
	return false
}

// EnrollmentService tracks attended sessions and serves enrollment read models.
type EnrollmentService struct {
	repo   enrollmentRepository
	cache  *CacheService
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, cache: cache, ttl: ttl, now: func() time.Time { return time.Now().UTC() }, logger: logger}
}

// RecomputeTx recounts attended sessions for the locked enrollment inside
// exec and persists the result. It reports whether the enrollment completed.
func (s *EnrollmentService) RecomputeTx(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) (bool, error) {
	attended, err := s.repo.CountAttended(ctx, exec, e.ID)
	if err != nil {
		return false, err
	}
	completed := applyAttendanceCount(e, attended, s.now())
	if err := s.repo.UpdateProgress(ctx, exec, e); err != nil {
		return false, err
	}
	if completed {
		s.logger.Info("enrollment completed",
			zap.String("enrollment_id", e.ID),
			zap.Int("attended", attended),
			zap.Int("target", e.TargetSessionsToComplete),
		)
	}
	return completed, nil
}

// Invalidate drops cached listings that include the enrollment.
func (s *EnrollmentService) Invalidate(ctx context.Context, ec *models.EnrollmentContext) {
	s.cache.Invalidate(ctx, studentEnrollmentsKey(ec.StudentID), instructorEnrollmentsKey(ec.InstructorID))
}

// ListForStudent returns the caller's enrollments and whether they came
// from cache.
func (s *EnrollmentService) ListForStudent(ctx context.Context, principal models.Principal) ([]models.EnrollmentContext, bool, error) {
	key := studentEnrollmentsKey(principal.UserID)
	return s.cachedList(ctx, key, func() ([]models.EnrollmentContext, error) {
		return s.repo.ListByStudent(ctx, principal.UserID)
	})
}

// ListForInstructor returns enrollments in the caller's courses, or every
// enrollment for admins.
func (s *EnrollmentService) ListForInstructor(ctx context.Context, principal models.Principal) ([]models.EnrollmentContext, bool, error) {
	switch principal.UserType {
	case models.UserTypeAdmin:
		items, err := s.repo.ListByInstructor(ctx, "")
		if err != nil {
			return nil, false, appErrors.Internal(err, "failed to list enrollments")
		}
		return nonNilEnrollments(items), false, nil
	case models.UserTypeInstructor:
		key := instructorEnrollmentsKey(principal.UserID)
		return s.cachedList(ctx, key, func() ([]models.EnrollmentContext, error) {
			return s.repo.ListByInstructor(ctx, principal.UserID)
		})
	default:
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "only instructors can list teaching enrollments")
	}
}

func (s *EnrollmentService) cachedList(ctx context.Context, key string, load func() ([]models.EnrollmentContext, error)) ([]models.EnrollmentContext, bool, error) {
	var cached []models.EnrollmentContext
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return nonNilEnrollments(cached), true, nil
	}
	items, err := load()
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to list enrollments")
	}
	items = nonNilEnrollments(items)
	_ = s.cache.Set(ctx, key, items, s.ttl)
	return items, false, nil
}

// Get returns one enrollment to its student, instructor or an admin.
func (s *EnrollmentService) Get(ctx context.Context, id string, principal models.Principal) (*models.EnrollmentContext, error) {
	ec, err := s.repo.FindContext(ctx, id)
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

func nonNilEnrollments(items []models.EnrollmentContext) []models.EnrollmentContext {
	if items == nil {
		return []models.EnrollmentContext{}
	}
	return items
}
