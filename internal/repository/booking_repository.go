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

const bookingColumns = `id, request_id, payer_id, amount, currency, status, provider, payment_session_id, created_at, updated_at`

// BookingRepository persists payment attempts.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a booking. A second live booking for the same request fails
// with a unique violation on uq_bookings_request_live.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.BookingPendingPayment
	}
	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	const query = `INSERT INTO bookings (` + bookingColumns + `)
VALUES (:id, :request_id, :payer_id, :amount, :currency, :status, :provider, :payment_session_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// FindByID returns a booking or sql.ErrNoRows.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	if malformedID(id) {
		return nil, sql.ErrNoRows
	}
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// LockByID reads the booking under FOR UPDATE.
func (r *BookingRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error) {
	if malformedID(id) {
		return nil, sql.ErrNoRows
	}
	var booking models.Booking
	if err := sqlx.GetContext(ctx, r.exec(exec), &booking, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// MarkConfirmed confirms a pending booking. It reports false when the
// booking was no longer pending.
func (r *BookingRepository) MarkConfirmed(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	return r.settle(ctx, exec, id, models.BookingConfirmed)
}

// MarkFailed fails a pending booking. It reports false when the booking was
// no longer pending.
func (r *BookingRepository) MarkFailed(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	return r.settle(ctx, exec, id, models.BookingFailed)
}

func (r *BookingRepository) settle(ctx context.Context, exec sqlx.ExtContext, id string, status models.BookingStatus) (bool, error) {
	if malformedID(id) {
		return false, nil
	}
	const query = `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.exec(exec).ExecContext(ctx, query, status, time.Now().UTC(), id, models.BookingPendingPayment)
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("booking rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetSessionID stores the provider's checkout session identifier.
func (r *BookingRepository) SetSessionID(ctx context.Context, id, sessionID string) error {
	const query = `UPDATE bookings SET payment_session_id = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, sessionID, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set booking session id: %w", err)
	}
	return nil
}

// FailStale fails bookings still pending payment that were created before
// the cutoff and returns how many were touched.
func (r *BookingRepository) FailStale(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `UPDATE bookings SET status = $1, updated_at = $2 WHERE status = $3 AND created_at < $4`
	res, err := r.db.ExecContext(ctx, query, models.BookingFailed, time.Now().UTC(), models.BookingPendingPayment, cutoff)
	if err != nil {
		return 0, fmt.Errorf("fail stale bookings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale bookings rows affected: %w", err)
	}
	return affected, nil
}
