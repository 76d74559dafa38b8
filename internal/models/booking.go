package models

import "time"

// BookingStatus enumerates payment attempt states.
type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingConfirmed      BookingStatus = "CONFIRMED"
	BookingFailed         BookingStatus = "FAILED"
)

// Booking is one payment attempt tied to exactly one course request.
type Booking struct {
	ID               string        `db:"id" json:"id"`
	RequestID        string        `db:"request_id" json:"request_id"`
	PayerID          string        `db:"payer_id" json:"payer_id"`
	Amount           int64         `db:"amount" json:"amount"`
	Currency         string        `db:"currency" json:"currency"`
	Status           BookingStatus `db:"status" json:"status"`
	Provider         string        `db:"provider" json:"provider"`
	PaymentSessionID *string       `db:"payment_session_id" json:"payment_session_id,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}
