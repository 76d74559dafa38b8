package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/seanior/course-booking-api/internal/models"
)

const courseColumns = `id, name, instructor_id, price, total_sessions, absence_buffer, schedule, level, location, description, max_students, created_at, updated_at`

// CourseRepository persists the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	const query = `INSERT INTO courses (` + courseColumns + `)
VALUES (:id, :name, :instructor_id, :price, :total_sessions, :absence_buffer, :schedule, :level, :location, :description, :max_students, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

// FindByID returns a course or sql.ErrNoRows.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if malformedID(id) {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns a page of courses ordered by name.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	clause := ""
	var args []interface{}
	if filter.InstructorID != "" {
		clause = " WHERE instructor_id = $1"
		args = append(args, filter.InstructorID)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM courses%s ORDER BY name ASC, id ASC LIMIT %d OFFSET %d`, courseColumns, clause, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}
