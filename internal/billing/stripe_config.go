package billing

import (
	"errors"
	"strings"
	"time"
)

// StripeConfig contains configuration for Stripe provider.
type StripeConfig struct {
	// APIKey is the Stripe secret key (sk_test_... or sk_live_...)
	APIKey string

	// WebhookSecret is the webhook signing secret (whsec_...)
	// Used to verify webhook signatures from Stripe
	WebhookSecret string

	// Currency for every intent. Default: "usd"
	Currency string

	// MaxRetries is the maximum number of retries for transient failures
	// Default: 2
	MaxRetries int64

	// Timeout bounds each Stripe API call.
	// Default: 30 seconds
	Timeout time.Duration

	// BaseURL overrides the API endpoint. Used by tests and stripe-mock.
	BaseURL string
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("stripe: API key is required")
	}
	if c.WebhookSecret == "" {
		return errors.New("stripe: webhook secret is required")
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *StripeConfig) IsTestMode() bool {
	return strings.HasPrefix(c.APIKey, "sk_test_")
}

func (c *StripeConfig) withDefaults() StripeConfig {
	out := *c
	if out.Currency == "" {
		out.Currency = "usd"
	}
	if out.MaxRetries == 0 {
		out.MaxRetries = 2
	}
	if out.Timeout == 0 {
		out.Timeout = 30 * time.Second
	}
	return out
}
