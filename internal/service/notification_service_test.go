package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
	"github.com/seanior/course-booking-api/pkg/jobs"
)

type notificationRepoStub struct {
	stored    []models.Notification
	insertErr error
}

func (r *notificationRepoStub) Insert(ctx context.Context, n *models.Notification) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.stored = append(r.stored, *n)
	return nil
}

func (r *notificationRepoStub) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range r.stored {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *notificationRepoStub) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	for i := range r.stored {
		if r.stored[i].ID == id && r.stored[i].UserID == userID {
			r.stored[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

type enqueuerStub struct {
	jobs []jobs.Job
	err  error
}

func (e *enqueuerStub) Enqueue(job jobs.Job) error {
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

func TestNotifyWritesSynchronouslyWithoutQueue(t *testing.T) {
	repo := &notificationRepoStub{}
	svc := NewNotificationService(repo, nil, zap.NewNop())

	svc.Notify(context.Background(), studentAlice.UserID, models.NotifyCourseRequestApproved, "approved", "req-1")
	svc.Notify(context.Background(), "", models.NotifyCourseRequestApproved, "nobody", "")

	require.Len(t, repo.stored, 1)
	n := repo.stored[0]
	assert.NotEmpty(t, n.ID)
	require.NotNil(t, n.RelatedEntityID)
	assert.Equal(t, "req-1", *n.RelatedEntityID)
}

func TestNotifyThroughQueue(t *testing.T) {
	repo := &notificationRepoStub{}
	queue := &enqueuerStub{}
	svc := NewNotificationService(repo, nil, zap.NewNop())
	svc.AttachQueue(queue)

	svc.Notify(context.Background(), instructorKim.UserID, models.NotifyExcuseRequested, "excuse", "")
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeNotification, queue.jobs[0].Type)
	assert.Empty(t, repo.stored)

	require.NoError(t, svc.Handle(context.Background(), queue.jobs[0]))
	require.Len(t, repo.stored, 1)
	assert.Nil(t, repo.stored[0].RelatedEntityID)

	assert.NoError(t, svc.Handle(context.Background(), jobs.Job{ID: "junk", Payload: 42}))

	repo.insertErr = errors.New("db down")
	assert.Error(t, svc.Handle(context.Background(), queue.jobs[0]))
}

func TestNotifySwallowsQueueErrors(t *testing.T) {
	svc := NewNotificationService(&notificationRepoStub{}, nil, zap.NewNop())
	svc.AttachQueue(&enqueuerStub{err: jobs.ErrQueueFull})

	assert.NotPanics(t, func() {
		svc.Notify(context.Background(), studentAlice.UserID, models.NotifyPaymentFailed, "failed", "")
	})
}

func TestNotificationListAndMarkRead(t *testing.T) {
	repo := &notificationRepoStub{}
	svc := NewNotificationService(repo, nil, zap.NewNop())
	svc.Notify(context.Background(), studentAlice.UserID, models.NotifyPaymentConfirmed, "paid", "")
	id := repo.stored[0].ID

	err := svc.MarkRead(context.Background(), id, studentBob)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	require.NoError(t, svc.MarkRead(context.Background(), id, studentAlice))
	unread, err := svc.ListMine(context.Background(), studentAlice, true)
	require.NoError(t, err)
	assert.Empty(t, unread)
	assert.NotNil(t, unread)

	all, err := svc.ListMine(context.Background(), studentAlice, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
