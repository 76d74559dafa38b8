package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
	"github.com/seanior/course-booking-api/pkg/jobs"
)

// JobTypeNotification tags notification jobs on the queue.
const JobTypeNotification = "notification"

type notificationRepository interface {
	Insert(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// Notifier delivers a message to a user without affecting the caller.
type Notifier interface {
	Notify(ctx context.Context, userID, eventType, message, relatedEntityID string)
}

// NotificationService stores in-app notifications through a background queue.
type NotificationService struct {
	repo    notificationRepository
	queue   jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs the service. Without a queue attached,
// Notify writes synchronously.
func NewNotificationService(repo notificationRepository, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, metrics: metrics, logger: logger}
}

// AttachQueue routes Notify through q. The queue's handler should be Handle.
func (s *NotificationService) AttachQueue(q jobEnqueuer) {
	s.queue = q
}

// Notify queues a notification. Failures are logged and swallowed.
func (s *NotificationService) Notify(ctx context.Context, userID, eventType, message, relatedEntityID string) {
	if userID == "" {
		return
	}
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		EventType: eventType,
		Message:   message,
	}
	if relatedEntityID != "" {
		related := relatedEntityID
		n.RelatedEntityID = &related
	}

	var err error
	if s.queue != nil {
		err = s.queue.Enqueue(jobs.Job{ID: n.ID, Type: JobTypeNotification, Payload: n})
	} else {
		err = s.repo.Insert(ctx, &n)
	}
	if err != nil {
		s.metrics.IncNotificationsFailed()
		s.logger.Warn("notification dropped",
			zap.String("user_id", userID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// Handle is the queue handler that persists a notification.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	if err := s.repo.Insert(ctx, &n); err != nil {
		return fmt.Errorf("store notification %s: %w", n.ID, err)
	}
	return nil
}

// ListMine returns the caller's notifications.
func (s *NotificationService) ListMine(ctx context.Context, principal models.Principal, unreadOnly bool) ([]models.Notification, error) {
	items, err := s.repo.ListByUser(ctx, principal.UserID, unreadOnly, 50)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}

// MarkRead marks one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string, principal models.Principal) error {
	ok, err := s.repo.MarkRead(ctx, id, principal.UserID)
	if err != nil {
		return appErrors.Internal(err, "failed to update notification")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}
