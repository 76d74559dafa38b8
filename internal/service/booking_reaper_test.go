package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seanior/course-booking-api/internal/models"
)

func TestBookingReaperFailsOnlyStalePending(t *testing.T) {
	now := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	repo := newFakeBookingRepo()
	repo.bookings["old"] = &models.Booking{ID: "old", Status: models.BookingPendingPayment, CreatedAt: now.Add(-25 * time.Hour)}
	repo.bookings["fresh"] = &models.Booking{ID: "fresh", Status: models.BookingPendingPayment, CreatedAt: now.Add(-time.Hour)}
	repo.bookings["paid"] = &models.Booking{ID: "paid", Status: models.BookingConfirmed, CreatedAt: now.Add(-48 * time.Hour)}

	reaper := NewBookingReaper(repo, "", 24*time.Hour, nil, zap.NewNop())
	reaper.now = func() time.Time { return now }

	n, err := reaper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, models.BookingFailed, repo.status("old"))
	assert.Equal(t, models.BookingPendingPayment, repo.status("fresh"))
	assert.Equal(t, models.BookingConfirmed, repo.status("paid"))
}

func TestBookingReaperStartRejectsBadSchedule(t *testing.T) {
	reaper := NewBookingReaper(newFakeBookingRepo(), "every tuesday-ish", time.Hour, nil, zap.NewNop())
	assert.Error(t, reaper.Start())

	reaper = NewBookingReaper(newFakeBookingRepo(), "@every 1h", time.Hour, nil, zap.NewNop())
	require.NoError(t, reaper.Start())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reaper.Stop(ctx)
}
