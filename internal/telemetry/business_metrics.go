package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for the cart and checkout funnel.
// A nil *BusinessMetrics is valid and records nothing.
type BusinessMetrics struct {
	// Cart
	CartItemsAdded *prometheus.CounterVec
	CartUpdated    *prometheus.CounterVec
	PromoCodes     *prometheus.CounterVec

	// Checkout funnel
	CheckoutStep   *prometheus.CounterVec
	PaymentIntents *prometheus.CounterVec

	// Orders
	OrdersSubmitted *prometheus.CounterVec
	OrderValue      *prometheus.HistogramVec

	// Webhooks
	WebhookReceived *prometheus.CounterVec
	WebhookFailed   *prometheus.CounterVec

	// External API performance
	UpstreamLatency *prometheus.HistogramVec
}

// NewBusinessMetrics creates business metrics and registers them with reg.
// A nil reg uses the default Prometheus registry.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "cutroom"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	subsystem := "business"

	return &BusinessMetrics{
		CartItemsAdded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_items_added_total",
				Help:      "Total add to cart actions",
			},
			[]string{"service_id", "plan"},
		),
		CartUpdated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_updated_total",
				Help:      "Total cart mutations other than adds",
			},
			[]string{"action"}, // action: update_quantity, remove, clear
		),
		PromoCodes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "promo_codes_total",
				Help:      "Total promo code submissions",
			},
			[]string{"result"}, // result: applied, rejected
		),
		CheckoutStep: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_step_total",
				Help:      "Total entries into each checkout step",
			},
			[]string{"step"}, // step: details, payment, success
		),
		PaymentIntents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_intents_total",
				Help:      "Total payment intent requests",
			},
			[]string{"result"}, // result: created, failed
		),
		OrdersSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_submitted_total",
				Help:      "Total order submissions",
			},
			[]string{"payment_method", "result"}, // result: created, replayed, failed
		),
		OrderValue: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_dollars",
				Help:      "Distribution of order totals",
				Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000},
			},
			[]string{"payment_method"},
		),
		WebhookReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Total payment webhooks received",
			},
			[]string{"event_type"},
		),
		WebhookFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_failed_total",
				Help:      "Total payment webhooks that could not be processed",
			},
			[]string{"event_type", "reason"},
		),
		UpstreamLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "upstream_duration_seconds",
				Help:      "External API call duration (helps differentiate app slowness from upstream issues)",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"upstream", "operation"}, // upstream: identity, orders, stripe
		),
	}
}

func (m *BusinessMetrics) ItemAdded(serviceID, plan string) {
	if m == nil {
		return
	}
	m.CartItemsAdded.WithLabelValues(serviceID, plan).Inc()
}

func (m *BusinessMetrics) CartChanged(action string) {
	if m == nil {
		return
	}
	m.CartUpdated.WithLabelValues(action).Inc()
}

func (m *BusinessMetrics) PromoCode(applied bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if applied {
		result = "applied"
	}
	m.PromoCodes.WithLabelValues(result).Inc()
}

func (m *BusinessMetrics) EnteredStep(step string) {
	if m == nil {
		return
	}
	m.CheckoutStep.WithLabelValues(step).Inc()
}

func (m *BusinessMetrics) PaymentIntent(ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "created"
	}
	m.PaymentIntents.WithLabelValues(result).Inc()
}

// OrderSubmitted records a submission outcome. value is only observed for
// newly created orders.
func (m *BusinessMetrics) OrderSubmitted(paymentMethod, result string, value float64) {
	if m == nil {
		return
	}
	m.OrdersSubmitted.WithLabelValues(paymentMethod, result).Inc()
	if result == "created" {
		m.OrderValue.WithLabelValues(paymentMethod).Observe(value)
	}
}

func (m *BusinessMetrics) Webhook(eventType, failureReason string) {
	if m == nil {
		return
	}
	m.WebhookReceived.WithLabelValues(eventType).Inc()
	if failureReason != "" {
		m.WebhookFailed.WithLabelValues(eventType, failureReason).Inc()
	}
}

func (m *BusinessMetrics) ObserveUpstream(upstream, operation string, seconds float64) {
	if m == nil {
		return
	}
	m.UpstreamLatency.WithLabelValues(upstream, operation).Observe(seconds)
}
