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

const sessionProgressColumns = `id, enrollment_id, session_number, topic_covered, performance_notes, session_date, attachment_key, created_at, updated_at`

// SessionProgressRepository persists instructor notes per session.
type SessionProgressRepository struct {
	db *sqlx.DB
}

// NewSessionProgressRepository constructs the repository.
func NewSessionProgressRepository(db *sqlx.DB) *SessionProgressRepository {
	return &SessionProgressRepository{db: db}
}

// Upsert writes the progress entry for a session, replacing notes recorded
// earlier for the same session number.
func (r *SessionProgressRepository) Upsert(ctx context.Context, progress *models.SessionProgress) error {
	if progress.ID == "" {
		progress.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	progress.UpdatedAt = now

	const query = `INSERT INTO session_progress (id, enrollment_id, session_number, topic_covered, performance_notes, session_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (enrollment_id, session_number) DO UPDATE SET
    topic_covered = EXCLUDED.topic_covered,
    performance_notes = EXCLUDED.performance_notes,
    session_date = EXCLUDED.session_date,
    updated_at = EXCLUDED.updated_at
RETURNING id, attachment_key, created_at`
	row := r.db.QueryRowxContext(ctx, query,
		progress.ID,
		progress.EnrollmentID,
		progress.SessionNumber,
		progress.TopicCovered,
		progress.PerformanceNotes,
		progress.SessionDate,
		now,
	)
	if err := row.Scan(&progress.ID, &progress.AttachmentKey, &progress.CreatedAt); err != nil {
		return fmt.Errorf("upsert session progress: %w", err)
	}
	return nil
}

// FindByID returns a progress entry or sql.ErrNoRows.
func (r *SessionProgressRepository) FindByID(ctx context.Context, id string) (*models.SessionProgress, error) {
	if malformedID(id) {
		return nil, sql.ErrNoRows
	}
	var progress models.SessionProgress
	if err := r.db.GetContext(ctx, &progress, `SELECT `+sessionProgressColumns+` FROM session_progress WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &progress, nil
}

// ListByEnrollment returns progress entries ordered by session.
func (r *SessionProgressRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SessionProgress, error) {
	const query = `SELECT ` + sessionProgressColumns + ` FROM session_progress WHERE enrollment_id = $1 ORDER BY session_number ASC`
	var items []models.SessionProgress
	if err := r.db.SelectContext(ctx, &items, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list session progress: %w", err)
	}
	return items, nil
}

// Update rewrites the editable fields of a progress entry.
func (r *SessionProgressRepository) Update(ctx context.Context, progress *models.SessionProgress) error {
	progress.UpdatedAt = time.Now().UTC()
	const query = `UPDATE session_progress SET topic_covered = $1, performance_notes = $2, session_date = $3, updated_at = $4 WHERE id = $5`
	if _, err := r.db.ExecContext(ctx, query,
		progress.TopicCovered,
		progress.PerformanceNotes,
		progress.SessionDate,
		progress.UpdatedAt,
		progress.ID,
	); err != nil {
		return fmt.Errorf("update session progress: %w", err)
	}
	return nil
}

// SetAttachment stores the object key of an uploaded attachment.
func (r *SessionProgressRepository) SetAttachment(ctx context.Context, id, key string) error {
	const query = `UPDATE session_progress SET attachment_key = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, key, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set session progress attachment: %w", err)
	}
	return nil
}
