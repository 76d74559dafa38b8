package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seanior/course-booking-api/internal/dto"
	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

type courseRepoStub struct {
	created []models.Course
	list    []models.Course
	total   int
	filter  models.CourseFilter
}

func (r *courseRepoStub) Create(ctx context.Context, course *models.Course) error {
	course.ID = "course-new"
	r.created = append(r.created, *course)
	return nil
}

func (r *courseRepoStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	for _, c := range r.created {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *courseRepoStub) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	r.filter = filter
	return r.list, r.total, nil
}

func coursePayload(schedule string) dto.CreateCourseRequest {
	return dto.CreateCourseRequest{
		Name:          "Butterfly Clinic",
		Price:         500000,
		TotalSessions: 6,
		Schedule:      json.RawMessage(schedule),
	}
}

func TestCourseCreateNormalisesSchedule(t *testing.T) {
	repo := &courseRepoStub{}
	svc := NewCourseService(repo, 2, nil, zap.NewNop())

	course, err := svc.Create(context.Background(), instructorKim, coursePayload(`{"Monday":"9:00-10:00"}`))
	require.NoError(t, err)
	assert.Equal(t, instructorKim.UserID, course.InstructorID)
	assert.Equal(t, 2, course.AbsenceBuffer)
	assert.Equal(t, 1, course.MaxStudents)
	assert.JSONEq(t, `{"monday":["09:00-10:00"]}`, course.Schedule)

	got, err := svc.Get(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Butterfly Clinic", got.Name)
	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestCourseCreateRoles(t *testing.T) {
	repo := &courseRepoStub{}
	svc := NewCourseService(repo, 2, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), studentAlice, coursePayload(`{"monday":["09:00-10:00"]}`))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Create(context.Background(), adminRoot, coursePayload(`{"monday":["09:00-10:00"]}`))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	payload := coursePayload(`{"monday":["09:00-10:00"]}`)
	payload.InstructorID = instructorLee.UserID
	buffer := 0
	payload.AbsenceBuffer = &buffer
	course, err := svc.Create(context.Background(), adminRoot, payload)
	require.NoError(t, err)
	assert.Equal(t, instructorLee.UserID, course.InstructorID)
	assert.Equal(t, 0, course.AbsenceBuffer)
}

func TestCourseCreateRejectsBadScheduleAsValidation(t *testing.T) {
	svc := NewCourseService(&courseRepoStub{}, 2, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), instructorKim, coursePayload(`{"funday":["09:00-10:00"]}`))
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestCourseListPagination(t *testing.T) {
	repo := &courseRepoStub{total: 41}
	svc := NewCourseService(repo, 2, nil, zap.NewNop())

	items, page, err := svc.List(context.Background(), models.CourseFilter{Page: 0, PageSize: 500})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Equal(t, models.Pagination{Page: 1, PageSize: 20, TotalCount: 41}, *page)
}
