package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type staleBookingRepository interface {
	FailStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// BookingReaper periodically fails checkouts that were never paid so the
// student can open a new one.
type BookingReaper struct {
	repo     staleBookingRepository
	ttl      time.Duration
	schedule string
	metrics  *MetricsService
	logger   *zap.Logger
	cron     *cron.Cron
	now      func() time.Time
}

// NewBookingReaper constructs a BookingReaper. An empty schedule defaults to every 10 minutes.
func NewBookingReaper(repo staleBookingRepository, schedule string, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *BookingReaper {
	if schedule == "" {
		schedule = "@every 10m"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingReaper{
		repo:     repo,
		ttl:      ttl,
		schedule: schedule,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the job and starts the scheduler.
func (r *BookingReaper) Start() error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("booking reaper run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule booking reaper: %w", err)
	}
	r.cron = c
	c.Start()
	r.logger.Info("booking reaper started", zap.String("schedule", r.schedule), zap.Duration("pending_ttl", r.ttl))
	return nil
}

// Stop halts the scheduler and waits for a running job to finish or ctx to expire.
func (r *BookingReaper) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn("booking reaper did not stop before deadline")
	}
}

// RunOnce fails every pending booking created before now minus the TTL.
func (r *BookingReaper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.ttl)
	n, err := r.repo.FailStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.metrics.AddBookingsReaped(n)
		r.logger.Info("stale bookings failed", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}
