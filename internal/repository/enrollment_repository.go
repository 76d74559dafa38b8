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

const enrollmentContextSelect = `SELECT e.id, e.request_id, e.start_date, e.status, e.target_sessions_to_complete, e.max_sessions_allowed,
       e.actual_sessions_attended, e.end_date, e.created_at, e.updated_at,
       r.student_id, r.course_id, c.name AS course_name, c.instructor_id
FROM enrollments e
JOIN course_requests r ON r.id = e.request_id
JOIN courses c ON c.id = r.course_id`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertIgnore creates the enrollment unless one already exists for the
// request. It reports whether a row was inserted.
func (r *EnrollmentRepository) InsertIgnore(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) (bool, error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	const query = `INSERT INTO enrollments (id, request_id, start_date, status, target_sessions_to_complete, max_sessions_allowed, actual_sessions_attended, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (request_id) DO NOTHING`
	res, err := r.exec(exec).ExecContext(ctx, query,
		enrollment.ID,
		enrollment.RequestID,
		enrollment.StartDate,
		enrollment.Status,
		enrollment.TargetSessionsToComplete,
		enrollment.MaxSessionsAllowed,
		enrollment.ActualSessionsAttended,
		enrollment.CreatedAt,
		enrollment.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enrollment rows affected: %w", err)
	}
	return affected > 0, nil
}

// FindContext returns the enrollment joined with its student and course.
func (r *EnrollmentRepository) FindContext(ctx context.Context, id string) (*models.EnrollmentContext, error) {
	if malformedID(id) {
		return nil, sql.ErrNoRows
	}
	var ec models.EnrollmentContext
	if err := r.db.GetContext(ctx, &ec, enrollmentContextSelect+` WHERE e.id = $1`, id); err != nil {
		return nil, err
	}
	return &ec, nil
}

// LockContext is FindContext with the enrollment row held FOR UPDATE.
func (r *EnrollmentRepository) LockContext(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentContext, error) {
	if malformedID(id) {
		return nil, sql.ErrNoRows
	}
	var ec models.EnrollmentContext
	if err := sqlx.GetContext(ctx, r.exec(exec), &ec, enrollmentContextSelect+` WHERE e.id = $1 FOR UPDATE OF e`, id); err != nil {
		return nil, err
	}
	return &ec, nil
}

// CountAttended counts PRESENT, LATE and EXCUSED attendance rows.
func (r *EnrollmentRepository) CountAttended(ctx context.Context, exec sqlx.ExtContext, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM attendances WHERE enrollment_id = $1 AND status IN ('PRESENT', 'LATE', 'EXCUSED')`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, id); err != nil {
		return 0, fmt.Errorf("count attended sessions: %w", err)
	}
	return count, nil
}

// UpdateProgress persists the attended count, status and end date.
func (r *EnrollmentRepository) UpdateProgress(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET actual_sessions_attended = $1, status = $2, end_date = $3, updated_at = $4 WHERE id = $5`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		enrollment.ActualSessionsAttended,
		enrollment.Status,
		enrollment.EndDate,
		enrollment.UpdatedAt,
		enrollment.ID,
	); err != nil {
		return fmt.Errorf("update enrollment progress: %w", err)
	}
	return nil
}

// ListByStudent returns the student's enrollments, newest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentContext, error) {
	var items []models.EnrollmentContext
	if err := r.db.SelectContext(ctx, &items, enrollmentContextSelect+` WHERE r.student_id = $1 ORDER BY e.created_at DESC`, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return items, nil
}

// ListByInstructor returns enrollments in the instructor's courses. An empty
// instructorID returns every enrollment.
func (r *EnrollmentRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.EnrollmentContext, error) {
	query := enrollmentContextSelect
	var args []interface{}
	if instructorID != "" {
		query += ` WHERE c.instructor_id = $1`
		args = append(args, instructorID)
	}
	query += ` ORDER BY e.created_at DESC`

	var items []models.EnrollmentContext
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list instructor enrollments: %w", err)
	}
	return items, nil
}
