package dto

// CheckoutSessionInput asks for a payment page for an approved request.
type CheckoutSessionInput struct {
	RequestID string `json:"request_id" binding:"required" validate:"required"`
}
