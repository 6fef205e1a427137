package orderapi

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/dukerupert/cutroom/internal/billing"
	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/dukerupert/cutroom/internal/events"
	"github.com/dukerupert/cutroom/internal/orders"
	"github.com/dukerupert/cutroom/internal/pricing"
	"github.com/dukerupert/cutroom/internal/telemetry"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	maxIdempotencyKeyLength = 128
	confirmationTimeout     = 30 * time.Second
)

// confirmedIntentStatuses are the provider states in which a card payment
// counts as made: captured, settling, or authorized awaiting capture.
var confirmedIntentStatuses = []string{"succeeded", "processing", "requires_capture"}

type orderHandler struct {
	store    OrderStore
	events   events.Publisher
	payments billing.Provider
	mailer   Mailer
	metrics  *telemetry.BusinessMetrics
}

type createResponse struct {
	OrderID       string               `json:"order_id"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time            `json:"created_at"`
}

// create handles POST /api/orders/create. A repeated Idempotency-Key returns
// the stored order with 200 and writes nothing.
func (h *orderHandler) create(c echo.Context) error {
	const op = "orderapi.create_order"
	ctx := c.Request().Context()

	key := c.Request().Header.Get(orders.IdempotencyHeader)
	if key == "" {
		return domain.WithOp(domain.ErrIdempotencyKeyRequired, op)
	}
	if len(key) > maxIdempotencyKeyLength {
		return domain.Invalid(op, "Idempotency-Key is too long")
	}

	var sub domain.OrderSubmission
	if err := c.Bind(&sub); err != nil {
		return err
	}
	if err := c.Validate(&sub); err != nil {
		return err
	}
	if sub.UserID != currentUser(c) {
		return domain.WithOp(domain.ErrOrderUserMismatch, op)
	}
	if err := checkSubmission(op, sub); err != nil {
		return err
	}
	if err := h.verifyPayment(ctx, op, sub); err != nil {
		return err
	}

	order, created, err := h.store.Create(ctx, key, sub)
	if err != nil {
		h.metrics.OrderSubmitted(string(sub.PaymentMethod), "failed", 0)
		return err
	}
	if order.UserID != sub.UserID {
		zerolog.Ctx(ctx).Error().Str("order_id", order.ID.String()).Msg("idempotent replay matched another user's order")
		return domain.WithOp(domain.ErrIdempotencyKeyConflict, op)
	}

	l := zerolog.Ctx(ctx).With().Str("order_id", order.ID.String()).Logger()
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.metrics.OrderSubmitted(string(order.PaymentMethod), "created", order.Total.InexactFloat64())
		if err := h.events.OrderCreated(ctx, order); err != nil {
			l.Warn().Err(err).Msg("failed to publish order.created")
		}
		if h.mailer != nil {
			go h.sendConfirmation(context.WithoutCancel(l.WithContext(ctx)), order)
		}
		l.Info().Str("payment_method", string(order.PaymentMethod)).Msg("order created")
	} else {
		h.metrics.OrderSubmitted(string(order.PaymentMethod), "replayed", 0)
		l.Info().Msg("idempotent replay")
	}

	return c.JSON(status, createResponse{
		OrderID:       order.ID.String(),
		PaymentStatus: order.PaymentStatus,
		CreatedAt:     order.CreatedAt,
	})
}

// sendConfirmation runs detached from the request. A failed mail is logged
// and never affects the order.
func (h *orderHandler) sendConfirmation(ctx context.Context, order *domain.Order) {
	ctx, cancel := context.WithTimeout(ctx, confirmationTimeout)
	defer cancel()

	if err := h.mailer.OrderConfirmed(ctx, order); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to send order confirmation")
		return
	}
	zerolog.Ctx(ctx).Debug().Msg("order confirmation sent")
}

// verifyPayment checks a card order's intent with the provider: it must exist,
// be confirmed and cover exactly the order total.
func (h *orderHandler) verifyPayment(ctx context.Context, op string, sub domain.OrderSubmission) error {
	if h.payments == nil || !sub.PaymentMethod.RequiresPaymentIntent() {
		return nil
	}

	intent, err := h.payments.GetPaymentIntent(ctx, sub.PaymentIntentID)
	if err != nil {
		if errors.Is(err, billing.ErrPaymentIntentNotFound) {
			return domain.NewValidationError(op, "payment_intent_id", "is unknown")
		}
		return domain.WrapError(err, domain.EUNAVAILABLE, op, "Payment provider is unavailable, please retry")
	}

	if !slices.Contains(confirmedIntentStatuses, intent.Status) {
		zerolog.Ctx(ctx).Warn().
			Str("payment_intent_id", intent.ID).
			Str("intent_status", intent.Status).
			Msg("card order submitted before payment was confirmed")
		return domain.WithOp(domain.ErrPaymentNotConfirmed, op)
	}
	if intent.AmountCents != pricing.ToMinorUnits(sub.Total) {
		zerolog.Ctx(ctx).Warn().
			Str("payment_intent_id", intent.ID).
			Int64("intent_amount_cents", intent.AmountCents).
			Str("total", sub.Total.StringFixed(2)).
			Msg("payment intent amount does not match order total")
		return domain.NewValidationError(op, "total", "does not match the confirmed payment")
	}
	return nil
}

// checkSubmission enforces the rules struct tags cannot express.
func checkSubmission(op string, sub domain.OrderSubmission) error {
	if sub.PaymentStatus != domain.PaymentStatusFor(sub.PaymentMethod) {
		return domain.NewValidationError(op, "payment_status", "does not match the payment method")
	}
	if sub.PaymentMethod.RequiresPaymentIntent() && sub.PaymentIntentID == "" {
		return domain.NewValidationError(op, "payment_intent_id", "is required for card payments")
	}

	gross := decimal.Zero
	for _, it := range sub.CartItems {
		gross = gross.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if sub.Total.IsNegative() || sub.Total.GreaterThan(gross) {
		return domain.NewValidationError(op, "total", "must be between 0 and the sum of the items")
	}
	return nil
}

// list handles GET /api/orders.
func (h *orderHandler) list(c echo.Context) error {
	out, err := h.store.ListByUser(c.Request().Context(), currentUser(c))
	if err != nil {
		return err
	}
	if out == nil {
		out = []domain.Order{}
	}
	return c.JSON(http.StatusOK, map[string][]domain.Order{"orders": out})
}

// receipt handles GET /api/orders/:id/receipt. Other users' orders are
// reported as missing.
func (h *orderHandler) receipt(c echo.Context) error {
	const op = "orderapi.receipt"

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return domain.Invalid(op, "Order ID must be a UUID")
	}
	order, err := h.store.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if order.UserID != currentUser(c) {
		return domain.WithOp(domain.ErrOrderNotFound, op)
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return ReceiptPage(order).Render(c.Request().Context(), c.Response().Writer)
}
