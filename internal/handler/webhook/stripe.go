// Package webhook handles payment provider callbacks for the order API.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dukerupert/cutroom/internal/billing"
	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/dukerupert/cutroom/internal/handler"
	"github.com/dukerupert/cutroom/internal/middleware"
	"github.com/dukerupert/cutroom/internal/telemetry"
)

// maxPayloadBytes bounds a webhook body. Stripe events are well under this.
const maxPayloadBytes = 64 * 1024

// PaymentRecorder applies confirmed payment outcomes to stored orders.
type PaymentRecorder interface {
	MarkPaid(ctx context.Context, paymentIntentID string) error
	MarkPaymentFailed(ctx context.Context, paymentIntentID string) error
}

// PaidNotifier is told about orders whose payment was confirmed.
type PaidNotifier interface {
	OrderPaid(ctx context.Context, paymentIntentID string) error
}

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	provider billing.Provider
	orders   PaymentRecorder
	notifier PaidNotifier
	metrics  *telemetry.BusinessMetrics
}

// NewStripeHandler creates a new Stripe webhook handler. notifier and metrics
// may be nil.
func NewStripeHandler(provider billing.Provider, orders PaymentRecorder, notifier PaidNotifier, metrics *telemetry.BusinessMetrics) *StripeHandler {
	return &StripeHandler{
		provider: provider,
		orders:   orders,
		notifier: notifier,
		metrics:  metrics,
	}
}

var _ http.Handler = (*StripeHandler)(nil)

// ServeHTTP lets the handler be mounted directly on a router.
func (h *StripeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.HandleWebhook(w, r)
}

// HandleWebhook processes incoming Stripe webhook events
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3100/webhooks/stripe
//	stripe trigger payment_intent.succeeded
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "webhook.stripe"
	logger := middleware.GetLogger(r.Context())

	if r.Method != http.MethodPost {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, op, "Method not allowed"))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, op, "Error reading request body"))
		return
	}
	if len(payload) > maxPayloadBytes {
		handler.ErrorResponse(w, r, domain.Errorf(domain.ETOOLARGE, op, "Webhook payload too large"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, op, "Missing signature"))
		return
	}

	event, err := h.provider.ParseWebhookEvent(payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidWebhookSignature) {
			logger.Warn("webhook signature verification failed", "error", err)
			h.metrics.Webhook("unknown", "invalid_signature")
			handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, op, "Invalid signature"))
			return
		}
		h.metrics.Webhook("unknown", "malformed")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, op, "Invalid event payload"))
		return
	}

	logger = logger.With("event_id", event.ID, "event_type", event.Type)
	start := time.Now()

	switch event.Type {
	case billing.EventPaymentIntentSucceeded, billing.EventPaymentIntentPaymentFailed:
		if event.PaymentIntent == nil || event.PaymentIntent.ID == "" {
			h.metrics.Webhook(event.Type, "missing_payment_intent")
			handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, op, "Event has no payment intent"))
			return
		}
		if err := h.applyPayment(r.Context(), event); err != nil {
			switch {
			case domain.IsCode(err, domain.ENOTFOUND):
				// Intents created outside checkout (or by the Stripe CLI)
				// have no order. Acknowledge so Stripe stops retrying.
				logger.Info("no order for payment intent", "payment_intent_id", event.PaymentIntent.ID)
				h.metrics.Webhook(event.Type, "order_not_found")
			default:
				logger.Error("failed to apply payment event", "error", err, "payment_intent_id", event.PaymentIntent.ID)
				h.metrics.Webhook(event.Type, "store_failed")
				telemetry.CaptureErrorFromContext(r.Context(), err, map[string]interface{}{
					"payment_intent_id": event.PaymentIntent.ID,
					"event_type":        event.Type,
				})
				// Non-2xx makes Stripe redeliver.
				handler.ErrorResponse(w, r, err)
				return
			}
		} else {
			h.metrics.Webhook(event.Type, "")
			logger.Info("payment event applied",
				"payment_intent_id", event.PaymentIntent.ID,
				"duration", time.Since(start),
			)
		}

	default:
		h.metrics.Webhook(event.Type, "")
		logger.Debug("ignoring webhook event")
	}

	handler.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *StripeHandler) applyPayment(ctx context.Context, event *billing.WebhookEvent) error {
	id := event.PaymentIntent.ID
	if event.Type == billing.EventPaymentIntentPaymentFailed {
		return h.orders.MarkPaymentFailed(ctx, id)
	}

	if err := h.orders.MarkPaid(ctx, id); err != nil {
		return err
	}
	if h.notifier != nil {
		if err := h.notifier.OrderPaid(ctx, id); err != nil {
			middleware.GetLogger(ctx).Warn("failed to publish order.paid", "error", err, "payment_intent_id", id)
		}
	}
	return nil
}
