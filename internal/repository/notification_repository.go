package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/seanior/course-booking-api/internal/models"
)

// NotificationRepository persists in-app notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert stores a notification.
func (r *NotificationRepository) Insert(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, user_id, event_type, message, related_entity_id, is_read, created_at)
VALUES (:id, :user_id, :event_type, :message, :related_entity_id, :is_read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByUser returns the user's latest notifications.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `SELECT id, user_id, event_type, message, related_entity_id, is_read, created_at FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// MarkRead flags the notification as read for its recipient. It reports
// false when no such notification belongs to the user.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	if malformedID(id) {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("notification rows affected: %w", err)
	}
	return affected > 0, nil
}
