package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/seanior/course-booking-api/internal/dto"
	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
}

// CourseService manages the course catalog.
type CourseService struct {
	repo          courseRepository
	absenceBuffer int
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewCourseService constructs CourseService. absenceBuffer applies to
// courses created without one.
func NewCourseService(repo courseRepository, absenceBuffer int, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if absenceBuffer < 0 {
		absenceBuffer = 2
	}
	return &CourseService{repo: repo, absenceBuffer: absenceBuffer, validator: validate, logger: logger}
}

// Create publishes a course. Instructors always create for themselves;
// admins must name the instructor.
func (s *CourseService) Create(ctx context.Context, principal models.Principal, req dto.CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid course payload")
	}

	instructorID := principal.UserID
	switch principal.UserType {
	case models.UserTypeInstructor:
	case models.UserTypeAdmin:
		if req.InstructorID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "instructor_id is required")
		}
		instructorID = req.InstructorID
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only instructors can publish courses")
	}

	schedule, err := ParseCourseSchedule(string(req.Schedule))
	if err != nil {
		return nil, appErrors.Validation(err, appErrors.FromError(err).Message)
	}
	normalised, err := json.Marshal(schedule)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to encode course schedule")
	}

	buffer := s.absenceBuffer
	if req.AbsenceBuffer != nil {
		buffer = *req.AbsenceBuffer
	}
	maxStudents := req.MaxStudents
	if maxStudents == 0 {
		maxStudents = 1
	}

	course := &models.Course{
		Name:          req.Name,
		InstructorID:  instructorID,
		Price:         req.Price,
		TotalSessions: req.TotalSessions,
		AbsenceBuffer: buffer,
		Schedule:      string(normalised),
		Level:         req.Level,
		Location:      req.Location,
		Description:   req.Description,
		MaxStudents:   maxStudents,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Internal(err, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("instructor_id", instructorID))
	return course, nil
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	return course, nil
}

// List returns a page of courses.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list courses")
	}
	if courses == nil {
		courses = []models.Course{}
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
