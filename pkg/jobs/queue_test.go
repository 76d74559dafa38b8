package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int32
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "notify"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&processed))
}

func TestQueueRetriesFailedJob(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 2, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestQueueRejectsWhenNotStarted(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "job"}))
}

func TestQueueReportsFullBuffer(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	// wait for the worker to pick up the first job so the buffer is empty again
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(Job{ID: "b"}))
	err := q.Enqueue(Job{ID: "c"})
	require.ErrorIs(t, err, ErrQueueFull)
}
