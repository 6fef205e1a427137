package domain

import "time"

var (
	ErrCartEmpty            = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrBillingRequired      = &Error{Code: EINVALID, Message: "Billing details are required before payment"}
	ErrPaymentNotReady      = &Error{Code: EPAYMENT, Message: "Payment is not ready yet, please retry the payment step"}
	ErrSubmissionInFlight   = &Error{Code: ECONFLICT, Message: "An order submission is already in progress"}
	ErrCheckoutComplete     = &Error{Code: ECONFLICT, Message: "This checkout has already been completed"}
	ErrAuthenticationNeeded = &Error{Code: EUNAUTHORIZED, Message: "Please sign in to continue checkout"}
)

// CheckoutState is a step of the checkout flow.
type CheckoutState string

const (
	CheckoutStateAuth    CheckoutState = "auth"
	CheckoutStateDetails CheckoutState = "details"
	CheckoutStatePayment CheckoutState = "payment"
	CheckoutStateSuccess CheckoutState = "success"
)

// CommunicationChannel is how the customer prefers to be contacted.
type CommunicationChannel string

const (
	CommunicationEmail    CommunicationChannel = "Email"
	CommunicationWhatsApp CommunicationChannel = "WhatsApp"
	CommunicationIMessage CommunicationChannel = "iMessage"
)

// BillingInfo is collected during the details step and attached to the order.
type BillingInfo struct {
	Phone         string               `json:"phone" validate:"required,min=5,max=32"`
	Address       string               `json:"address" validate:"required,max=500"`
	Company       string               `json:"company,omitempty" validate:"max=200"`
	Communication CommunicationChannel `json:"communication" validate:"required,oneof=Email WhatsApp iMessage"`
}

// Checkout is the persisted state of a session's checkout flow.
type Checkout struct {
	State         CheckoutState `json:"state"`
	Billing       *BillingInfo  `json:"billing,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`

	// PaymentIntentID and ClientSecret are set once the payment provider has
	// issued an intent for the card path.
	PaymentIntentID   string `json:"payment_intent_id,omitempty"`
	ClientSecret      string `json:"client_secret,omitempty"`
	IntentAmountCents int64  `json:"intent_amount_cents,omitempty"`
	PaymentError      string `json:"payment_error,omitempty"`

	// IdempotencyKey is generated once per checkout attempt and reused for
	// every manual resubmission of the same order. SubmittedDigest
	// fingerprints the last submitted payload; a different payload gets a
	// new key.
	IdempotencyKey  string `json:"idempotency_key,omitempty"`
	SubmittedDigest string `json:"submitted_digest,omitempty"`

	// SubmittingSince is set while an order submission is outstanding.
	SubmittingSince *time.Time `json:"submitting_since,omitempty"`

	SubmitError string             `json:"submit_error,omitempty"`
	Order       *OrderConfirmation `json:"order,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// User is the identity resolved for a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// TokenPair is an access/refresh token pair issued by the identity provider.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
