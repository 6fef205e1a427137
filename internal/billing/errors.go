package billing

import (
	"fmt"
	"net/http"

	"github.com/dukerupert/cutroom/internal/domain"
)

// Provider errors are domain errors, so the storefront and the order API map
// them to a status and a shopper message without knowing which provider ran.
var (
	ErrInvalidAPIKey           = &domain.Error{Code: domain.EINTERNAL, Message: "Payment provider is not configured"}
	ErrPaymentIntentNotFound   = &domain.Error{Code: domain.ENOTFOUND, Message: "Payment intent not found"}
	ErrInvalidWebhookSignature = &domain.Error{Code: domain.EUNAUTHORIZED, Message: "Webhook signature is not valid"}
	ErrAmountTooSmall          = &domain.Error{Code: domain.EINVALID, Message: "Order total is below the minimum card charge. Choose another payment method."}

	// ErrCardDeclined and ErrProviderBusy are matched by a StripeError of
	// that kind, e.g. errors.Is(err, ErrProviderBusy).
	ErrCardDeclined = &domain.Error{Code: domain.EPAYMENT, Message: "The card was declined"}
	ErrProviderBusy = &domain.Error{Code: domain.EUNAVAILABLE, Message: "The payment service is busy right now. Please retry in a moment."}
)

// MinimumAmountCents is the smallest card charge Stripe accepts in USD.
const MinimumAmountCents = 50

// StripeError is a failed Stripe API call.
type StripeError struct {
	Message     string
	Code        string // e.g. "card_declined"
	DeclineCode string
	HTTPStatus  int
	RequestID   string
	Err         error
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return "stripe: " + e.Message
}

func (e *StripeError) Unwrap() error { return e.Err }

// Is matches ErrCardDeclined and ErrProviderBusy.
func (e *StripeError) Is(target error) bool {
	switch target {
	case ErrCardDeclined:
		return e.IsDeclined()
	case ErrProviderBusy:
		return e.IsTemporary()
	}
	return false
}

func (e *StripeError) IsDeclined() bool {
	return e.Code == "card_declined" || e.DeclineCode != ""
}

// IsTemporary reports failures worth a manual retry: rate limits, network
// trouble and Stripe-side 5xx.
func (e *StripeError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.Code == "api_connection_error" ||
		e.HTTPStatus == http.StatusTooManyRequests || e.HTTPStatus >= http.StatusInternalServerError
}
