//go:build integration
// +build integration

package billing

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadTestConfig loads Stripe test credentials from .env.test
func loadTestConfig(t *testing.T) StripeConfig {
	t.Helper()

	if err := godotenv.Load("../../.env.test"); err != nil {
		t.Skipf("Skipping integration test: .env.test not found (%v)", err)
	}

	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	if apiKey == "" || apiKey == "sk_test_your_key_here" {
		t.Skip("Skipping integration test: STRIPE_SECRET_KEY not set in .env.test")
	}

	config := StripeConfig{
		APIKey:        apiKey,
		WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Timeout:       30 * time.Second,
	}

	if !config.IsTestMode() {
		t.Fatal("DANGER: Live Stripe key detected! Integration tests must use test mode keys (sk_test_...)")
	}

	return config
}

func TestStripeIntegration_CreateAndGetPaymentIntent(t *testing.T) {
	provider, err := NewStripeProvider(loadTestConfig(t))
	require.NoError(t, err)
	ctx := context.Background()

	key := "integration_test_" + time.Now().Format("20060102_150405")
	pi, err := provider.CreatePaymentIntent(ctx, CreatePaymentIntentParams{
		AmountCents:    5000,
		CustomerEmail:  "test@example.com",
		Description:    "Integration test payment",
		Metadata:       map[string]string{"session_id": "integration"},
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pi.ClientSecret)
	assert.Equal(t, int64(5000), pi.AmountCents)

	again, err := provider.CreatePaymentIntent(ctx, CreatePaymentIntentParams{
		AmountCents:    5000,
		CustomerEmail:  "test@example.com",
		Description:    "Integration test payment",
		Metadata:       map[string]string{"session_id": "integration"},
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	assert.Equal(t, pi.ID, again.ID, "same idempotency key must return the same intent")

	got, err := provider.GetPaymentIntent(ctx, pi.ID)
	require.NoError(t, err)
	assert.Equal(t, pi.ID, got.ID)

	t.Logf("Created payment intent: %s", pi.ID)
}
