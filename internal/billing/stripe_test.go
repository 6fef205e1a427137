package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

// fakeStripe records the last payment intent request and replies with a
// canned body.
type fakeStripe struct {
	*httptest.Server
	lastForm        map[string]string
	lastIdempotency string
	status          int
	body            string
}

func newFakeStripe(t *testing.T) *fakeStripe {
	t.Helper()
	f := &fakeStripe{
		status: http.StatusOK,
		body: `{
			"id": "pi_test_123",
			"object": "payment_intent",
			"amount": 50400,
			"currency": "usd",
			"client_secret": "pi_test_123_secret_abc",
			"status": "requires_payment_method",
			"receipt_email": "editor@example.com",
			"metadata": {"session_id": "sess_1"},
			"created": 1767225600
		}`,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.lastForm = map[string]string{}
		for k := range r.PostForm {
			f.lastForm[k] = r.PostForm.Get(k)
		}
		f.lastIdempotency = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
	}))
	t.Cleanup(f.Close)
	return f
}

func newTestStripeProvider(t *testing.T, baseURL string) *StripeProvider {
	t.Helper()
	p, err := NewStripeProvider(StripeConfig{
		APIKey:        "sk_test_123",
		WebhookSecret: "whsec_test",
		BaseURL:       baseURL,
		MaxRetries:    -1,
	})
	require.NoError(t, err)
	return p
}

func TestStripeProvider_CreatePaymentIntent(t *testing.T) {
	f := newFakeStripe(t)
	p := newTestStripeProvider(t, f.URL)

	pi, err := p.CreatePaymentIntent(context.Background(), CreatePaymentIntentParams{
		AmountCents:    50400,
		CustomerEmail:  "editor@example.com",
		Description:    "Cutroom order",
		Metadata:       map[string]string{"session_id": "sess_1"},
		IdempotencyKey: "checkout_abc",
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_test_123", pi.ID)
	assert.Equal(t, "pi_test_123_secret_abc", pi.ClientSecret)
	assert.Equal(t, int64(50400), pi.AmountCents)
	assert.Equal(t, "usd", pi.Currency)
	assert.Equal(t, "sess_1", pi.Metadata["session_id"])
	assert.False(t, pi.CreatedAt.IsZero())

	assert.Equal(t, "50400", f.lastForm["amount"])
	assert.Equal(t, "usd", f.lastForm["currency"], "currency defaults from config")
	assert.Equal(t, "editor@example.com", f.lastForm["receipt_email"])
	assert.Equal(t, "sess_1", f.lastForm["metadata[session_id]"])
	assert.Equal(t, "true", f.lastForm["automatic_payment_methods[enabled]"])
	assert.Equal(t, "checkout_abc", f.lastIdempotency)
}

func TestStripeProvider_CreatePaymentIntent_AmountTooSmall(t *testing.T) {
	f := newFakeStripe(t)
	p := newTestStripeProvider(t, f.URL)

	_, err := p.CreatePaymentIntent(context.Background(), CreatePaymentIntentParams{AmountCents: 25})
	assert.ErrorIs(t, err, ErrAmountTooSmall)
	assert.Nil(t, f.lastForm, "request must not reach Stripe")
}

func TestStripeProvider_CreatePaymentIntent_Declined(t *testing.T) {
	f := newFakeStripe(t)
	f.status = http.StatusPaymentRequired
	f.body = `{"error": {"type": "card_error", "code": "card_declined", "decline_code": "insufficient_funds", "message": "Your card was declined."}}`
	p := newTestStripeProvider(t, f.URL)

	_, err := p.CreatePaymentIntent(context.Background(), CreatePaymentIntentParams{AmountCents: 5000})
	require.Error(t, err)

	var serr *StripeError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "card_declined", serr.Code)
	assert.Equal(t, "Your card was declined.", serr.Message)
	assert.Equal(t, http.StatusPaymentRequired, serr.HTTPStatus)
	assert.True(t, serr.IsDeclined())
}

func TestStripeProvider_GetPaymentIntent_NotFound(t *testing.T) {
	f := newFakeStripe(t)
	f.status = http.StatusNotFound
	f.body = `{"error": {"type": "invalid_request_error", "code": "resource_missing", "message": "No such payment_intent"}}`
	p := newTestStripeProvider(t, f.URL)

	_, err := p.GetPaymentIntent(context.Background(), "pi_missing")
	assert.ErrorIs(t, err, ErrPaymentIntentNotFound)
}

func TestNewStripeProvider_RequiresKey(t *testing.T) {
	_, err := NewStripeProvider(StripeConfig{})
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestStripeProvider_ParseWebhookEvent(t *testing.T) {
	p := newTestStripeProvider(t, "http://127.0.0.1:0")
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_test_123", "object": "payment_intent", "amount": 50400, "currency": "usd", "status": "succeeded"}}
	}`)

	t.Run("valid signature", func(t *testing.T) {
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload: payload,
			Secret:  "whsec_test",
		})

		event, err := p.ParseWebhookEvent(payload, signed.Header)
		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, EventPaymentIntentSucceeded, event.Type)
		require.NotNil(t, event.PaymentIntent)
		assert.Equal(t, "pi_test_123", event.PaymentIntent.ID)
		assert.Equal(t, "succeeded", event.PaymentIntent.Status)
	})

	t.Run("wrong secret", func(t *testing.T) {
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload: payload,
			Secret:  "whsec_other",
		})

		_, err := p.ParseWebhookEvent(payload, signed.Header)
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("missing signature", func(t *testing.T) {
		_, err := p.ParseWebhookEvent(payload, "")
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})
}

func TestMockProvider(t *testing.T) {
	t.Run("default intent is stored and retrievable", func(t *testing.T) {
		m := NewMockProvider()
		pi, err := m.CreatePaymentIntent(context.Background(), CreatePaymentIntentParams{AmountCents: 2500, Currency: "usd"})
		require.NoError(t, err)
		assert.NotEmpty(t, pi.ClientSecret)

		got, err := m.GetPaymentIntent(context.Background(), pi.ID)
		require.NoError(t, err)
		assert.Equal(t, pi.ID, got.ID)
		assert.Equal(t, []string{"CreatePaymentIntent(2500, usd)", "GetPaymentIntent(" + pi.ID + ")"}, m.Calls())
	})

	t.Run("custom func overrides default", func(t *testing.T) {
		m := NewMockProvider()
		m.CreatePaymentIntentFunc = func(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
			return nil, &StripeError{Message: "Your card was declined.", Code: "card_declined"}
		}
		_, err := m.CreatePaymentIntent(context.Background(), CreatePaymentIntentParams{AmountCents: 100})
		assert.ErrorIs(t, err, ErrCardDeclined)
	})

	t.Run("unknown intent", func(t *testing.T) {
		_, err := NewMockProvider().GetPaymentIntent(context.Background(), "pi_nope")
		assert.ErrorIs(t, err, ErrPaymentIntentNotFound)
	})
}

func TestStripeConfig_Validation(t *testing.T) {
	t.Run("validates required API key", func(t *testing.T) {
		config := StripeConfig{WebhookSecret: "whsec_test"}
		err := config.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "API key is required")
	})

	t.Run("validates required webhook secret", func(t *testing.T) {
		config := StripeConfig{APIKey: "sk_test_123"}
		err := config.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "webhook secret is required")
	})

	t.Run("accepts valid configuration", func(t *testing.T) {
		config := StripeConfig{APIKey: "sk_test_123", WebhookSecret: "whsec_test"}
		assert.NoError(t, config.Validate())
	})

	t.Run("detects test mode correctly", func(t *testing.T) {
		assert.True(t, (&StripeConfig{APIKey: "sk_test_123456"}).IsTestMode())
		assert.False(t, (&StripeConfig{APIKey: "sk_live_123456"}).IsTestMode())
	})
}

// TestStripeError tests the StripeError type
func TestStripeError(t *testing.T) {
	t.Run("formats error message correctly", func(t *testing.T) {
		err := &StripeError{Message: "Payment failed", Code: "card_declined"}
		assert.Contains(t, err.Error(), "Payment failed")
		assert.Contains(t, err.Error(), "card_declined")
	})

	t.Run("identifies declined cards", func(t *testing.T) {
		assert.True(t, (&StripeError{Code: "card_declined", DeclineCode: "insufficient_funds"}).IsDeclined())
		assert.False(t, (&StripeError{Code: "api_error"}).IsDeclined())
	})

	t.Run("identifies temporary errors", func(t *testing.T) {
		assert.True(t, (&StripeError{Code: "rate_limit"}).IsTemporary())
		assert.True(t, (&StripeError{Code: "api_connection_error"}).IsTemporary())
		assert.True(t, (&StripeError{HTTPStatus: 503}).IsTemporary())
		assert.False(t, (&StripeError{Code: "invalid_request"}).IsTemporary())
	})

	t.Run("matches the declined and busy sentinels", func(t *testing.T) {
		busy := fmt.Errorf("create intent: %w", &StripeError{Code: "rate_limit", HTTPStatus: 429})
		assert.ErrorIs(t, busy, ErrProviderBusy)
		assert.NotErrorIs(t, busy, ErrCardDeclined)
		assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(ErrProviderBusy))

		declined := &StripeError{Code: "card_declined", HTTPStatus: 402}
		assert.ErrorIs(t, declined, ErrCardDeclined)
		assert.NotErrorIs(t, declined, ErrProviderBusy)
	})
}
