// Package mercadopago implements the checkout gateway on Mercado Pago Checkout Pro.
package mercadopago

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"go.uber.org/zap"

	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

// ProviderName identifies bookings created through this gateway.
const ProviderName = "mercadopago"

type preferenceClient interface {
	Create(ctx context.Context, request preference.Request) (*preference.Response, error)
}

type paymentClient interface {
	Get(ctx context.Context, id int) (*payment.Response, error)
}

// Gateway creates Checkout Pro preferences and resolves payment notifications.
type Gateway struct {
	preferences     preferenceClient
	payments        paymentClient
	webhookSecret   string
	notificationURL string
	logger          *zap.Logger
}

// New builds a Gateway from an access token. An empty webhookSecret skips
// x-signature verification, which only suits local development.
func New(accessToken, webhookSecret, notificationURL string, logger *zap.Logger) (*Gateway, error) {
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if webhookSecret == "" {
		logger.Warn("mercadopago webhook secret not set; notifications are not signature checked")
	}
	return &Gateway{
		preferences:     preference.NewClient(cfg),
		payments:        payment.NewClient(cfg),
		webhookSecret:   webhookSecret,
		notificationURL: notificationURL,
		logger:          logger,
	}, nil
}

// Name implements service.PaymentGateway.
func (g *Gateway) Name() string { return ProviderName }

// CreateCheckoutSession creates a preference whose external_reference is
// "bookingID|requestID".
func (g *Gateway) CreateCheckoutSession(ctx context.Context, input models.CheckoutSessionInput) (*models.CheckoutSession, error) {
	title := input.Description
	if title == "" {
		title = "Course booking"
	}
	req := preference.Request{
		Items: []preference.ItemRequest{{
			Title:      title,
			Quantity:   1,
			UnitPrice:  float64(input.Amount),
			CurrencyID: strings.ToUpper(input.Currency),
		}},
		ExternalReference: ExternalReference(input.BookingID, input.RequestID),
		BackURLs: &preference.BackURLsRequest{
			Success: input.SuccessURL,
			Failure: input.CancelURL,
			Pending: input.SuccessURL,
		},
		NotificationURL: g.notificationURL,
	}
	if input.SuccessURL != "" {
		req.AutoReturn = "approved"
	}
	if !input.ExpiresAt.IsZero() {
		from := time.Now()
		to := input.ExpiresAt
		req.Expires = true
		req.ExpirationDateFrom = &from
		req.ExpirationDateTo = &to
		req.DateOfExpiration = &to
	}

	resp, err := g.preferences.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mercadopago create preference: %w", err)
	}
	return &models.CheckoutSession{
		BookingID:   input.BookingID,
		Provider:    ProviderName,
		SessionID:   resp.ID,
		RedirectURL: resp.InitPoint,
	}, nil
}

// ExternalReference packs the booking and request ids.
func ExternalReference(bookingID, requestID string) string {
	return bookingID + "|" + requestID
}

func splitReference(ref string) (bookingID, requestID string) {
	bookingID, requestID, _ = strings.Cut(ref, "|")
	return bookingID, requestID
}

type notification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID flexibleID `json:"id"`
	} `json:"data"`
}

// flexibleID accepts ids sent either as strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

// ParseWebhook checks x-signature, then fetches the payment to learn its
// status. Notifications are only pointers; the API is the source of truth.
func (g *Gateway) ParseWebhook(ctx context.Context, req models.WebhookRequest) (*models.PaymentEvent, error) {
	var n notification
	if len(bytes.TrimSpace(req.Body)) > 0 {
		if err := json.Unmarshal(req.Body, &n); err != nil {
			return nil, appErrors.Validation(err, "malformed mercadopago notification")
		}
	}
	dataID := string(n.Data.ID)
	if dataID == "" {
		dataID = req.Query["data.id"]
	}
	if n.Type == "" {
		n.Type = req.Query["type"]
	}
	if dataID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mercadopago notification has no data.id")
	}

	if g.webhookSecret != "" && !ValidSignature(req.Signature, req.RequestID, dataID, g.webhookSecret) {
		return nil, appErrors.Clone(appErrors.ErrInvalidSignature, "mercadopago signature mismatch")
	}

	if n.Type != "payment" {
		return &models.PaymentEvent{
			ID:        n.Type + ":" + dataID,
			Kind:      models.PaymentEventOther,
			Provider:  ProviderName,
			RawStatus: n.Action,
		}, nil
	}

	paymentID, err := strconv.Atoi(dataID)
	if err != nil {
		return nil, appErrors.Validation(err, "mercadopago payment id is not numeric")
	}
	p, err := g.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("mercadopago get payment %d: %w", paymentID, err)
	}

	bookingID, requestID := splitReference(p.ExternalReference)
	return &models.PaymentEvent{
		ID:        dataID + ":" + p.Status,
		Kind:      Classify(p.Status),
		BookingID: bookingID,
		RequestID: requestID,
		SessionID: dataID,
		Provider:  ProviderName,
		RawStatus: p.Status,
	}, nil
}

// Classify maps a Mercado Pago payment status onto a payment event kind.
func Classify(status string) models.PaymentEventKind {
	switch strings.ToLower(status) {
	case "approved":
		return models.PaymentEventSucceeded
	case "rejected", "cancelled":
		return models.PaymentEventFailed
	default:
		return models.PaymentEventOther
	}
}

// ValidSignature checks the x-signature header ("ts=<ts>,v1=<hex>") against
// HMAC-SHA256 of "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
func ValidSignature(header, requestID, dataID, secret string) bool {
	ts, v1 := parseSignatureHeader(header)
	if ts == "" || v1 == "" || secret == "" {
		return false
	}
	expected := Sign(manifest(dataID, requestID, ts), secret)
	return hmac.Equal([]byte(strings.ToLower(v1)), []byte(expected))
}

// Sign returns the hex HMAC-SHA256 of payload.
func Sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader builds an x-signature value, as Mercado Pago would send it.
func SignatureHeader(dataID, requestID, ts, secret string) string {
	return "ts=" + ts + ",v1=" + Sign(manifest(dataID, requestID, ts), secret)
}

func manifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		// alphanumeric ids are signed lowercased
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}

func parseSignatureHeader(header string) (ts, v1 string) {
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	return ts, v1
}
