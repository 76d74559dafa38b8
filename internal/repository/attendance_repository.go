package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/seanior/course-booking-api/internal/models"
)

const attendanceColumns = `id, enrollment_id, session_number, status, reason, session_date, recorded_by, recorded_by_role, created_at, updated_at`

// AttendanceRepository persists per-session attendance.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func (r *AttendanceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindBySession returns the attendance row for a session or sql.ErrNoRows.
func (r *AttendanceRepository) FindBySession(ctx context.Context, exec sqlx.ExtContext, enrollmentID string, sessionNumber int) (*models.Attendance, error) {
	const query = `SELECT ` + attendanceColumns + ` FROM attendances WHERE enrollment_id = $1 AND session_number = $2`
	var attendance models.Attendance
	if err := sqlx.GetContext(ctx, r.exec(exec), &attendance, query, enrollmentID, sessionNumber); err != nil {
		return nil, err
	}
	return &attendance, nil
}

// Upsert writes the attendance for a session, replacing any previous value.
func (r *AttendanceRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, attendance *models.Attendance) error {
	if attendance.ID == "" {
		attendance.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	attendance.UpdatedAt = now

	const query = `INSERT INTO attendances (` + attendanceColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
ON CONFLICT (enrollment_id, session_number) DO UPDATE SET
    status = EXCLUDED.status,
    reason = EXCLUDED.reason,
    session_date = EXCLUDED.session_date,
    recorded_by = EXCLUDED.recorded_by,
    recorded_by_role = EXCLUDED.recorded_by_role,
    updated_at = EXCLUDED.updated_at
RETURNING id, created_at`
	row := r.exec(exec).QueryRowxContext(ctx, query,
		attendance.ID,
		attendance.EnrollmentID,
		attendance.SessionNumber,
		attendance.Status,
		attendance.Reason,
		attendance.SessionDate,
		attendance.RecordedBy,
		attendance.RecordedByRole,
		now,
	)
	if err := row.Scan(&attendance.ID, &attendance.CreatedAt); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// CountStudentExcuses counts excuses the student reported themselves.
func (r *AttendanceRepository) CountStudentExcuses(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM attendances WHERE enrollment_id = $1 AND status = $2 AND recorded_by_role = $3`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, enrollmentID, models.AttendanceExcused, models.UserTypeStudent); err != nil {
		return 0, fmt.Errorf("count student excuses: %w", err)
	}
	return count, nil
}

// ListByEnrollment returns the attendance ledger ordered by session.
func (r *AttendanceRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Attendance, error) {
	const query = `SELECT ` + attendanceColumns + ` FROM attendances WHERE enrollment_id = $1 ORDER BY session_number ASC`
	var items []models.Attendance
	if err := r.db.SelectContext(ctx, &items, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return items, nil
}
