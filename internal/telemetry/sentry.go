package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/getsentry/sentry-go"
)

// SentryConfig configures error reporting. Reporting is off unless Enabled
// is set and DSN is non-empty.
type SentryConfig struct {
	DSN              string
	Enabled          bool
	Environment      string
	Release          string
	SampleRate       float64
	TracesSampleRate float64
	Debug            bool
}

var sentryOn atomic.Bool

// InitSentry starts the Sentry client and returns a function that flushes
// buffered events. Call it on shutdown.
func InitSentry(cfg SentryConfig, logger *slog.Logger) (func(), error) {
	noop := func() {}
	if !cfg.Enabled || cfg.DSN == "" {
		sentryOn.Store(false)
		logger.Info("Sentry disabled", "dsn_set", cfg.DSN != "")
		return noop, nil
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 1
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       rate,
		EnableTracing:    cfg.TracesSampleRate > 0,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		BeforeSend:       scrubEvent,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	sentryOn.Store(true)

	logger.Info("Sentry initialized",
		"environment", cfg.Environment,
		"release", cfg.Release,
		"traces_sample_rate", cfg.TracesSampleRate,
	)
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// IsEnabled reports whether events are being sent.
func IsEnabled() bool {
	return sentryOn.Load()
}

// sensitiveHeaders carry shopper credentials or the CSRF token.
var sensitiveHeaders = []string{"Authorization", "Cookie", "X-Csrf-Token", "Idempotency-Key"}

// scrubEvent drops credentials and payment client secrets before an event
// leaves the process. A client secret is enough to confirm a card payment.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if req := event.Request; req != nil {
		for k := range req.Headers {
			for _, s := range sensitiveHeaders {
				if strings.EqualFold(k, s) {
					delete(req.Headers, k)
				}
			}
		}
		req.Cookies = ""
		if strings.Contains(req.Data, "client_secret") {
			req.Data = "[redacted]"
		}
	}
	for k := range event.Extra {
		if strings.Contains(strings.ToLower(k), "secret") || strings.Contains(strings.ToLower(k), "token") {
			event.Extra[k] = "[redacted]"
		}
	}
	return event
}

// SentryMiddleware gives each request its own hub, tagged with the request
// ID, the storefront session and any resolved user. Panics are left to the
// router's Recovery, which reports them through CaptureErrorFromContext.
// Install it after RequestID and WithSession.
func SentryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			hub := sentry.GetHubFromContext(ctx)
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
			}
			hub.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetRequest(r)
				if id := w.Header().Get("X-Request-ID"); id != "" {
					scope.SetTag("request_id", id)
				}
				if id := domain.SessionIDFromContext(ctx); id != "" {
					scope.SetTag("session_id", id)
				}
				if u := domain.UserFromContext(ctx); u != nil {
					scope.SetUser(sentry.User{ID: u.ID, Email: u.Email})
				}
			})

			next.ServeHTTP(w, r.WithContext(sentry.SetHubOnContext(ctx, hub)))
		})
	}
}

// expected codes are the shopper's own mistakes or normal flow branches.
// They are logged, not reported.
var expected = map[string]bool{
	domain.EINVALID:      true,
	domain.ENOTFOUND:     true,
	domain.EUNAUTHORIZED: true,
	domain.EFORBIDDEN:    true,
	domain.ECONFLICT:     true,
	domain.ETOOLARGE:     true,
	domain.ERATELIMIT:    true,
}

// CaptureErrorFromContext reports err on the request's hub with extras
// attached. Errors with an expected domain code are skipped.
func CaptureErrorFromContext(ctx context.Context, err error, extras map[string]interface{}) {
	if !IsEnabled() || err == nil {
		return
	}
	code := domain.ErrorCode(err)
	if expected[code] {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_code", code)
		scope.SetExtras(extras)
		hub.CaptureException(err)
	})
}

// AddBreadcrumb records a step on the current hub, e.g. a checkout state change.
func AddBreadcrumb(category, message string, data map[string]interface{}) {
	if !IsEnabled() {
		return
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Data:     data,
		Level:    sentry.LevelInfo,
	})
}

// StartSpan opens a tracing span under ctx. Call the returned function to
// finish it.
func StartSpan(ctx context.Context, op, description string) (context.Context, func()) {
	if !IsEnabled() {
		return ctx, func() {}
	}
	span := sentry.StartSpan(ctx, op, sentry.WithDescription(description))
	return span.Context(), span.Finish
}

// HTTPTransport instruments calls to an upstream collaborator (catalog,
// identity, order API). Latency always goes to Metrics; a tracing span is
// added when Sentry is on.
type HTTPTransport struct {
	Transport http.RoundTripper
	Upstream  string
	Metrics   *BusinessMetrics
}

func (t *HTTPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	ctx, finish := StartSpan(req.Context(), "http.client", req.Method+" "+t.Upstream+req.URL.Path)
	resp, err := base.RoundTrip(req.WithContext(ctx))
	finish()
	t.Metrics.ObserveUpstream(t.Upstream, req.Method+" "+req.URL.Path, time.Since(start).Seconds())
	return resp, err
}
