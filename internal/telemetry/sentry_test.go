package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrubEvent(t *testing.T) {
	event := &sentry.Event{
		Request: &sentry.Request{
			Headers: map[string]string{
				"Authorization":   "Bearer tok",
				"cookie":          "cutroom_session=abc",
				"X-Csrf-Token":    "csrf",
				"Idempotency-Key": "key-1",
				"Accept":          "application/json",
			},
			Cookies: "cutroom_session=abc",
			Data:    `{"client_secret":"pi_1_secret_2"}`,
		},
		Extra: map[string]interface{}{
			"client_secret": "pi_1_secret_2",
			"access_token":  "tok",
			"session_id":    "sess-1",
		},
	}

	got := scrubEvent(event, nil)

	assert.Equal(t, map[string]string{"Accept": "application/json"}, got.Request.Headers)
	assert.Empty(t, got.Request.Cookies)
	assert.Equal(t, "[redacted]", got.Request.Data)
	assert.Equal(t, "[redacted]", got.Extra["client_secret"])
	assert.Equal(t, "[redacted]", got.Extra["access_token"])
	assert.Equal(t, "sess-1", got.Extra["session_id"])
}

func TestInitSentry_DisabledIsNoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	flush, err := InitSentry(SentryConfig{Enabled: true}, logger)
	require.NoError(t, err)
	require.NotNil(t, flush)
	flush()
	assert.False(t, IsEnabled(), "no DSN means no reporting")

	ctx, finish := StartSpan(context.Background(), "order.submit", "test")
	finish()
	assert.Equal(t, context.Background(), ctx)
}
