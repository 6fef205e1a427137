// Package billing issues card payment intents for checkout and verifies the
// payment provider's webhook callbacks.
package billing

import (
	"context"
	"time"
)

// Provider defines the interface for payment processing.
type Provider interface {
	// CreatePaymentIntent creates a payment intent for a one-time charge.
	// Returns the intent with the client secret the browser confirms.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntent retrieves an existing payment intent.
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)

	// ParseWebhookEvent verifies the signature of a webhook request and
	// decodes the event it carries.
	ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error)
}

// CreatePaymentIntentParams contains parameters for creating a payment intent.
type CreatePaymentIntentParams struct {
	// AmountCents is the amount in smallest currency unit (cents for USD)
	AmountCents int64

	// Currency code (ISO 4217) - e.g., "usd", "eur"
	Currency string

	// CustomerEmail receives the provider's receipt
	CustomerEmail string

	// Description appears in the provider's dashboard
	Description string

	// Metadata for filtering and reporting (session_id, user_id)
	Metadata map[string]string

	// IdempotencyKey prevents duplicate payment intents for one checkout attempt
	IdempotencyKey string
}

// PaymentIntent represents a payment intent.
type PaymentIntent struct {
	// ID is the Stripe payment intent ID (pi_...)
	ID string

	// ClientSecret is used by Stripe.js on frontend to confirm payment
	ClientSecret string

	AmountCents int64
	Currency    string

	// Status: requires_payment_method, requires_confirmation, succeeded, etc.
	Status string

	Metadata     map[string]string
	ReceiptEmail string
	CreatedAt    time.Time

	// LastPaymentError contains details if payment failed
	LastPaymentError *PaymentError
}

// PaymentError contains details about a failed payment attempt.
type PaymentError struct {
	Code        string // Stripe error code
	Message     string // Human-readable message
	DeclineCode string // Reason card was declined (if applicable)
}

// Webhook event types the order API acts on.
const (
	EventPaymentIntentSucceeded     = "payment_intent.succeeded"
	EventPaymentIntentPaymentFailed = "payment_intent.payment_failed"
)

// WebhookEvent is a verified provider callback.
type WebhookEvent struct {
	ID   string
	Type string

	// PaymentIntent is set for payment_intent.* events.
	PaymentIntent *PaymentIntent
}
