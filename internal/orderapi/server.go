// Package orderapi is the order backend the storefront submits to: it
// authenticates shoppers by bearer JWT, stores orders idempotently and applies
// payment webhooks.
package orderapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dukerupert/cutroom/internal/billing"
	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/dukerupert/cutroom/internal/events"
	"github.com/dukerupert/cutroom/internal/middleware"
	"github.com/dukerupert/cutroom/internal/telemetry"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, idempotencyKey string, sub domain.OrderSubmission) (*domain.Order, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	Ping(ctx context.Context) error
}

// Mailer sends the confirmation for a newly created order.
type Mailer interface {
	OrderConfirmed(ctx context.Context, o *domain.Order) error
}

// Deps configures New.
type Deps struct {
	Store     OrderStore
	Events    events.Publisher
	JWTSecret []byte
	Logger    zerolog.Logger

	// Payments verifies card orders against the payment provider before they
	// are stored. Nil trusts the submitted payment_status.
	Payments billing.Provider

	// Mailer is optional. Confirmations are sent in the background after
	// the create response is written.
	Mailer Mailer

	// Webhook handles POST /webhooks/stripe. Nil leaves the route unset.
	Webhook http.Handler

	Metrics     *middleware.Metrics
	Business    *telemetry.BusinessMetrics
	Gatherer    prometheus.Gatherer
	BodyLimit   string
	ReadTimeout time.Duration
}

// New builds the echo server with every order API route registered.
func New(d Deps) *echo.Echo {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.BodyLimit == "" {
		d.BodyLimit = "1M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Validator = structValidator{}

	e.Use(echomw.RequestID())
	e.Use(requestLogger(d.Logger))
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			zerolog.Ctx(c.Request().Context()).Error().Err(err).Bytes("stack", stack).Msg("panic recovered")
			telemetry.CaptureErrorFromContext(c.Request().Context(), err, nil)
			return err
		},
	}))
	if d.Metrics != nil {
		e.Use(httpMetrics(d.Metrics))
	}
	e.Use(echomw.BodyLimit(d.BodyLimit))

	h := &orderHandler{store: d.Store, events: d.Events, payments: d.Payments, mailer: d.Mailer, metrics: d.Business}

	api := e.Group("/api", bearerAuth(d.JWTSecret))
	api.POST("/orders/create", h.create)
	api.GET("/orders", h.list)
	api.GET("/orders/:id/receipt", h.receipt)

	if d.Webhook != nil {
		e.POST("/webhooks/stripe", echo.WrapHandler(d.Webhook))
	}

	e.GET("/health", health(d.Store))
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(middleware.Handler(d.Gatherer)))
	}

	return e
}

func health(store OrderStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			zerolog.Ctx(c.Request().Context()).Warn().Err(err).Msg("health check failed")
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "degraded",
				"checks": map[string]string{"postgres": err.Error()},
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status": "ok",
			"checks": map[string]string{"postgres": "ok"},
		})
	}
}

// httpMetrics records echo requests under their route template (c.Path()).
func httpMetrics(m *middleware.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			done := m.Track()
			defer done()

			// Resolve the error first so the recorded status is final.
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			res := c.Response()
			m.Record(c.Request().Method, route, res.Status, int(res.Size), time.Since(start))
			return err
		}
	}
}
