package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound          = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrInvalidPaymentMethod   = &Error{Code: EINVALID, Message: "Payment method must be credit_card, paypal or bank_transfer"}
	ErrOrderUserMismatch      = &Error{Code: EFORBIDDEN, Message: "Order user does not match the authenticated user"}
	ErrIdempotencyKeyRequired = &Error{Code: EINVALID, Message: "Idempotency-Key header is required"}
	ErrPaymentNotConfirmed    = &Error{Code: EPAYMENT, Message: "Card payment has not been confirmed for this order"}
	ErrIdempotencyKeyConflict = &Error{Code: ECONFLICT, Message: "Idempotency-Key belongs to a different order"}
)

// PaymentMethod is the normalized payment method stored on an order.
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// ParsePaymentMethod maps a storefront selection ("card", "paypal", "bank", or
// a canonical value) to a PaymentMethod.
func ParsePaymentMethod(selection string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(selection)) {
	case "card", "credit_card", "credit-card", "stripe":
		return PaymentMethodCreditCard, nil
	case "paypal":
		return PaymentMethodPayPal, nil
	case "bank", "bank_transfer", "bank-transfer":
		return PaymentMethodBankTransfer, nil
	}
	return "", ErrInvalidPaymentMethod
}

// RequiresPaymentIntent reports whether the method is settled through a
// client-side card payment that needs a client secret.
func (m PaymentMethod) RequiresPaymentIntent() bool {
	return m == PaymentMethodCreditCard
}

// PaymentStatus records whether money has been confirmed for an order.
type PaymentStatus string

const (
	PaymentStatusPaid PaymentStatus = "paid"

	// PaymentStatusPendingConfirmation is used for every method whose
	// settlement happens outside the checkout (PayPal, bank transfer).
	PaymentStatusPendingConfirmation PaymentStatus = "pending_confirmation"

	// PaymentStatusFailed is set by the order API when the provider reports
	// a failed card payment after the order was created.
	PaymentStatusFailed PaymentStatus = "failed"
)

// PaymentStatusFor derives the initial payment status for a method.
func PaymentStatusFor(m PaymentMethod) PaymentStatus {
	if m == PaymentMethodCreditCard {
		return PaymentStatusPaid
	}
	return PaymentStatusPendingConfirmation
}

// OrderStatus is the fulfilment status of an order.
type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderAddon is an addon resolved against the catalog at submission time.
type OrderAddon struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// OrderItem is the denormalized form of a cart line item.
type OrderItem struct {
	Quantity  int             `json:"quantity" validate:"gte=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ServiceID string          `json:"service_id" validate:"required"`
	Title     string          `json:"title"`
	Plan      Plan            `json:"plan" validate:"oneof=one-time monthly"`
	Addons    []OrderAddon    `json:"addons"`
}

// Customer identifies the buyer on an order.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name,omitempty"`
}

// OrderSubmission is the payload sent to the order-creation endpoint.
type OrderSubmission struct {
	UserID          string          `json:"user_id" validate:"required"`
	Total           decimal.Decimal `json:"total"`
	PaymentMethod   PaymentMethod   `json:"payment_method" validate:"oneof=credit_card paypal bank_transfer"`
	PaymentStatus   PaymentStatus   `json:"payment_status" validate:"oneof=paid pending_confirmation"`
	Status          OrderStatus     `json:"status" validate:"eq=processing"`
	Billing         BillingInfo     `json:"billing"`
	CartItems       []OrderItem     `json:"cartItems" validate:"required,min=1,dive"`
	Customer        Customer        `json:"customer"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	PromoCode       string          `json:"promo_code,omitempty"`
}

// Order is an order as recorded by the order API.
type Order struct {
	ID             uuid.UUID  `json:"order_id"`
	IdempotencyKey string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	OrderSubmission
}

// OrderConfirmation is what the storefront keeps after a successful submission.
type OrderConfirmation struct {
	OrderID string `json:"order_id"`

	// Replayed is true when the order API returned an existing order for a
	// resubmitted idempotency key.
	Replayed bool `json:"replayed,omitempty"`
}
