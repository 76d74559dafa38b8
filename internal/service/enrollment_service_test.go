package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

func activeEnrollment() models.Enrollment {
	return models.Enrollment{
		ID:                       "enr-1",
		RequestID:                "req-1",
		Status:                   models.EnrollmentStatusActive,
		TargetSessionsToComplete: 8,
		MaxSessionsAllowed:       10,
	}
}

func TestApplyAttendanceCountCompletesAtTarget(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	e := activeEnrollment()

	assert.False(t, applyAttendanceCount(&e, 7, now))
	assert.Equal(t, models.EnrollmentStatusActive, e.Status)
	assert.Nil(t, e.EndDate)

	assert.True(t, applyAttendanceCount(&e, 8, now))
	assert.Equal(t, models.EnrollmentStatusCompleted, e.Status)
	require.NotNil(t, e.EndDate)
	assert.True(t, e.EndDate.Equal(now))
	assert.Equal(t, 8, e.ActualSessionsAttended)
}

func TestApplyAttendanceCountNeverReverts(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	e := activeEnrollment()
	require.True(t, applyAttendanceCount(&e, 8, now))

	later := now.Add(48 * time.Hour)
	assert.False(t, applyAttendanceCount(&e, 7, later))
	assert.Equal(t, models.EnrollmentStatusCompleted, e.Status)
	assert.Equal(t, 7, e.ActualSessionsAttended)
	assert.True(t, e.EndDate.Equal(now))

	assert.False(t, applyAttendanceCount(&e, 9, later))
	assert.True(t, e.EndDate.Equal(now))
}

func enrollmentContextFixture() models.EnrollmentContext {
	return models.EnrollmentContext{
		Enrollment:   activeEnrollment(),
		StudentID:    studentAlice.UserID,
		CourseID:     mondayCourseID,
		CourseName:   "Freestyle Basics",
		InstructorID: instructorKim.UserID,
	}
}

func TestEnrollmentListForStudentUsesCache(t *testing.T) {
	repo := newFakeEnrollmentRepo(nil, nil)
	repo.put(enrollmentContextFixture())
	cacheRepo := newMemoryCacheRepo()
	svc := NewEnrollmentService(repo, NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true), time.Minute, zap.NewNop())

	items, hit, err := svc.ListForStudent(context.Background(), studentAlice)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, hit)
	assert.True(t, cacheRepo.has(studentEnrollmentsKey(studentAlice.UserID)))

	// served from cache even though the row changed underneath
	changed := enrollmentContextFixture()
	changed.ActualSessionsAttended = 3
	repo.put(changed)
	items, hit, err = svc.ListForStudent(context.Background(), studentAlice)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 0, items[0].ActualSessionsAttended)

	svc.Invalidate(context.Background(), &changed)
	items, _, err = svc.ListForStudent(context.Background(), studentAlice)
	require.NoError(t, err)
	assert.Equal(t, 3, items[0].ActualSessionsAttended)
}

func TestEnrollmentListForInstructorScopes(t *testing.T) {
	repo := newFakeEnrollmentRepo(nil, nil)
	repo.put(enrollmentContextFixture())
	other := enrollmentContextFixture()
	other.ID, other.RequestID, other.InstructorID = "enr-2", "req-2", instructorLee.UserID
	repo.put(other)
	svc := NewEnrollmentService(repo, nil, time.Minute, nil)

	mine, _, err := svc.ListForInstructor(context.Background(), instructorKim)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "enr-1", mine[0].ID)

	all, _, err := svc.ListForInstructor(context.Background(), adminRoot)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, _, err = svc.ListForInstructor(context.Background(), studentAlice)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestEnrollmentGetVisibility(t *testing.T) {
	repo := newFakeEnrollmentRepo(nil, nil)
	repo.put(enrollmentContextFixture())
	svc := NewEnrollmentService(repo, nil, time.Minute, nil)

	for _, p := range []models.Principal{studentAlice, instructorKim, adminRoot} {
		_, err := svc.Get(context.Background(), "enr-1", p)
		assert.NoError(t, err, p.UserID)
	}
	_, err := svc.Get(context.Background(), "enr-1", studentBob)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = svc.Get(context.Background(), "enr-9", adminRoot)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
