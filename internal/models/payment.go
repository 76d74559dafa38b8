package models

import "time"

// PaymentEventKind classifies provider notifications.
type PaymentEventKind string

const (
	PaymentEventSucceeded PaymentEventKind = "succeeded"
	PaymentEventFailed    PaymentEventKind = "failed"
	PaymentEventOther     PaymentEventKind = "other"
)

// CheckoutSessionInput is what the core hands a payment provider.
type CheckoutSessionInput struct {
	BookingID   string
	RequestID   string
	PayerID     string
	Amount      int64
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
	// ExpiresAt bounds how long the provider accepts payment. Zero leaves the
	// provider default.
	ExpiresAt   time.Time
}

// CheckoutSession is the provider's redirectable payment page.
type CheckoutSession struct {
	BookingID   string `json:"booking_id"`
	Provider    string `json:"provider"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// WebhookRequest carries an unparsed provider notification.
type WebhookRequest struct {
	Body      []byte
	Signature string
	RequestID string
	Query     map[string]string
}

// PaymentEvent is a verified provider notification reduced to what
// settlement needs.
type PaymentEvent struct {
	ID        string
	Kind      PaymentEventKind
	BookingID string
	RequestID string
	SessionID string
	Provider  string
	RawStatus string
}
