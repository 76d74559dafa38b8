package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seanior/course-booking-api/internal/dto"
	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
	"github.com/seanior/course-booking-api/pkg/response"
)

const maxWebhookBody = 1 << 20

type paymentService interface {
	CreateCheckoutSession(ctx context.Context, requestID string, principal models.Principal) (*models.CheckoutSession, error)
	GetBooking(ctx context.Context, bookingID string, principal models.Principal) (*models.Booking, error)
	HandleWebhook(ctx context.Context, req models.WebhookRequest) (string, error)
}

// PaymentHandler exposes checkout, booking lookup and the provider webhook.
type PaymentHandler struct {
	service paymentService
}

// NewPaymentHandler builds a payment handler.
func NewPaymentHandler(service paymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// CreateCheckoutSession godoc
// @Summary Open a payment page for an approved request
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body dto.CheckoutSessionInput true "Checkout payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /payments/checkout-session [post]
func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	var input dto.CheckoutSessionInput
	if !bindJSON(c, &input, "request_id is required") {
		return
	}
	session, err := h.service.CreateCheckoutSession(c.Request.Context(), input.RequestID, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Webhook godoc
// @Summary Receive payment provider notifications
// @Description Answers 200 for applied, ignored and replayed events, 400 for bad signatures, 5xx to ask for redelivery.
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, appErrors.Validation(err, "unreadable webhook body"))
		return
	}
	query := make(map[string]string, len(c.Request.URL.Query()))
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}
	outcome, err := h.service.HandleWebhook(c.Request.Context(), models.WebhookRequest{
		Body:      body,
		Signature: c.GetHeader("X-Signature"),
		RequestID: c.GetHeader("X-Request-Id"),
		Query:     query,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"outcome": outcome}, nil)
}

// GetBooking godoc
// @Summary Get a booking
// @Tags Payments
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *PaymentHandler) GetBooking(c *gin.Context) {
	booking, err := h.service.GetBooking(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, booking)
}
