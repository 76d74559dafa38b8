// Package midtrans implements the checkout gateway on Midtrans Snap.
package midtrans

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	midtransgo "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"go.uber.org/zap"

	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

// ProviderName identifies bookings created through this gateway.
const ProviderName = "midtrans"

type snapClient interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtransgo.Error)
}

// Gateway creates Snap transactions and verifies HTTP notifications.
type Gateway struct {
	client    snapClient
	serverKey string
	logger    *zap.Logger
}

// New builds a Gateway for the sandbox or production environment.
func New(serverKey string, production bool, logger *zap.Logger) *Gateway {
	env := midtransgo.Sandbox
	if production {
		env = midtransgo.Production
	}
	var client snap.Client
	client.New(serverKey, env)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{client: &client, serverKey: serverKey, logger: logger}
}

// Name implements service.PaymentGateway.
func (g *Gateway) Name() string { return ProviderName }

// CreateCheckoutSession opens a Snap transaction keyed by the booking id.
// The request id rides along in custom_field1.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, input models.CheckoutSessionInput) (*models.CheckoutSession, error) {
	req := &snap.Request{
		TransactionDetails: midtransgo.TransactionDetails{
			OrderID:  input.BookingID,
			GrossAmt: input.Amount,
		},
		Items: &[]midtransgo.ItemDetails{{
			ID:    input.RequestID,
			Price: input.Amount,
			Qty:   1,
			Name:  truncate(input.Description, 50),
		}},
		CustomField1: input.RequestID,
	}
	if input.SuccessURL != "" {
		req.Callbacks = &snap.Callbacks{Finish: input.SuccessURL}
	}
	if !input.ExpiresAt.IsZero() {
		req.Expiry = snapExpiry(time.Now(), input.ExpiresAt)
	}

	type result struct {
		resp *snap.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, mErr := g.client.CreateTransaction(req)
		if mErr != nil {
			done <- result{err: fmt.Errorf("midtrans create transaction: %s", mErr.GetMessage())}
			return
		}
		done <- result{resp: resp}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp == nil || r.resp.Token == "" {
			return nil, fmt.Errorf("midtrans returned no token for order %s", input.BookingID)
		}
		return &models.CheckoutSession{
			BookingID:   input.BookingID,
			Provider:    ProviderName,
			SessionID:   r.resp.Token,
			RedirectURL: r.resp.RedirectURL,
		}, nil
	}
}

type notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	CustomField1      string `json:"custom_field1"`
}

// ParseWebhook verifies signature_key, SHA512(order_id+status_code+gross_amount+server_key),
// and maps the transaction status.
func (g *Gateway) ParseWebhook(ctx context.Context, req models.WebhookRequest) (*models.PaymentEvent, error) {
	var n notification
	if err := json.Unmarshal(req.Body, &n); err != nil {
		return nil, appErrors.Validation(err, "malformed midtrans notification")
	}
	if n.OrderID == "" || n.StatusCode == "" || n.GrossAmount == "" || n.TransactionStatus == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "midtrans notification is missing required fields")
	}
	if !g.validSignature(n) {
		return nil, appErrors.Clone(appErrors.ErrInvalidSignature, "midtrans signature mismatch")
	}

	eventID := n.TransactionID
	if eventID == "" {
		eventID = n.OrderID
	}
	return &models.PaymentEvent{
		ID:        eventID + ":" + n.TransactionStatus,
		Kind:      Classify(n.TransactionStatus, n.FraudStatus),
		BookingID: n.OrderID,
		RequestID: n.CustomField1,
		SessionID: n.TransactionID,
		Provider:  ProviderName,
		RawStatus: n.TransactionStatus,
	}, nil
}

func (g *Gateway) validSignature(n notification) bool {
	if g.serverKey == "" || n.SignatureKey == "" {
		return false
	}
	want := SignatureKey(n.OrderID, n.StatusCode, n.GrossAmount, g.serverKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(n.SignatureKey))) == 1
}

// SignatureKey is the signature_key Midtrans attaches to notifications.
func SignatureKey(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// Classify maps a Midtrans transaction status onto a payment event kind.
func Classify(transactionStatus, fraudStatus string) models.PaymentEventKind {
	switch strings.ToLower(transactionStatus) {
	case "settlement":
		return models.PaymentEventSucceeded
	case "capture":
		if fraudStatus == "" || strings.EqualFold(fraudStatus, "accept") {
			return models.PaymentEventSucceeded
		}
		return models.PaymentEventOther
	case "deny", "cancel", "expire", "failure":
		return models.PaymentEventFailed
	default:
		return models.PaymentEventOther
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if s == "" {
		return "Course booking"
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

const snapTimeLayout = "2006-01-02 15:04:05 -0700"

// snapExpiry pins the transaction window to start now, so a payment method
// chosen late cannot outlive expiresAt.
func snapExpiry(now, expiresAt time.Time) *snap.ExpiryDetails {
	minutes := int64(expiresAt.Sub(now) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return &snap.ExpiryDetails{
		StartTime: now.Format(snapTimeLayout),
		Unit:      "minute",
		Duration:  minutes,
	}
}
