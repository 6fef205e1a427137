package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/dukerupert/cutroom/internal/catalog"
	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/dukerupert/cutroom/internal/pricing"
	"github.com/dukerupert/cutroom/internal/session"
	"github.com/dukerupert/cutroom/internal/telemetry"
	"github.com/dukerupert/cutroom/internal/validation"
)

// ComposeParams is everything an order submission is built from.
type ComposeParams struct {
	Items           []domain.CartLineItem
	PromoCode       string
	Billing         domain.BillingInfo
	User            domain.User
	PaymentMethod   domain.PaymentMethod
	PaymentIntentID string
}

// ComposeOrder denormalizes a cart into the payload the order API accepts.
// Addons that no longer resolve against the snapshot are dropped from the
// order and contribute nothing to its total.
func ComposeOrder(snap *catalog.Snapshot, promoCode string, p ComposeParams) (domain.OrderSubmission, error) {
	const op = "order.compose"

	if len(p.Items) == 0 {
		return domain.OrderSubmission{}, domain.WithOp(domain.ErrCartEmpty, op)
	}
	if p.PaymentMethod == "" {
		return domain.OrderSubmission{}, domain.WithOp(ErrNoPaymentMethod, op)
	}

	calc := pricing.New(snap, promoCode)
	totals := calc.Totals(p.Items, p.PromoCode)

	items := make([]domain.OrderItem, 0, len(p.Items))
	for _, line := range totals.Lines {
		addons := make([]domain.OrderAddon, 0, len(line.Item.Addons))
		for _, ref := range line.Item.Addons {
			a, ok := snap.Addon(ref)
			if !ok {
				continue
			}
			addons = append(addons, domain.OrderAddon{ID: a.ID, Name: a.Name, Title: a.Title, Price: a.Price})
		}
		items = append(items, domain.OrderItem{
			Quantity:  line.Item.Quantity,
			UnitPrice: line.UnitPrice,
			ServiceID: line.Item.Service.ID,
			Title:     line.Item.Service.Title,
			Plan:      line.Item.Plan,
			Addons:    addons,
		})
	}

	sub := domain.OrderSubmission{
		UserID:        p.User.ID,
		Total:         totals.Total,
		PaymentMethod: p.PaymentMethod,
		PaymentStatus: domain.PaymentStatusFor(p.PaymentMethod),
		Status:        domain.OrderStatusProcessing,
		Billing:       p.Billing,
		CartItems:     items,
		Customer:      domain.Customer{ID: p.User.ID, Email: p.User.Email, Name: p.User.Name},
		PromoCode:     totals.PromoCode,
	}
	if p.PaymentMethod.RequiresPaymentIntent() {
		sub.PaymentIntentID = p.PaymentIntentID
	}

	if err := validation.Struct(op, sub); err != nil {
		return domain.OrderSubmission{}, err
	}
	return sub, nil
}

// SubmitOrder runs the submission in three steps: claim the checkout under
// the session lock, call the order API without holding it, then record the
// outcome. A failure leaves the cart untouched and the flow in payment.
func (s *checkoutService) SubmitOrder(ctx context.Context, sessionID string) (*CheckoutStatus, error) {
	const op = "checkout.submit_order"

	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	who, err := s.requireShopper(ctx, sess, op)
	if err != nil {
		return nil, err
	}

	var (
		sub domain.OrderSubmission
		key string
	)
	sess, err = s.sessions.Update(ctx, sess.ID, func(sess *session.Session) error {
		c := &sess.Checkout
		if err := s.checkEditable(sess, op); err != nil {
			return err
		}
		if c.State != domain.CheckoutStatePayment {
			return domain.WithOp(ErrWrongCheckoutState, op)
		}
		if c.Billing == nil {
			return domain.WithOp(domain.ErrBillingRequired, op)
		}

		composed, err := ComposeOrder(snap, s.promoCode, ComposeParams{
			Items:           sess.Cart.Items(),
			PromoCode:       sess.PromoCode,
			Billing:         *c.Billing,
			User:            *who.user,
			PaymentMethod:   c.PaymentMethod,
			PaymentIntentID: c.PaymentIntentID,
		})
		if err != nil {
			return err
		}
		sub = composed

		if c.PaymentMethod.RequiresPaymentIntent() &&
			(c.ClientSecret == "" || c.IntentAmountCents != pricing.ToMinorUnits(sub.Total)) {
			return domain.WithOp(domain.ErrPaymentNotReady, op)
		}

		s.applyTokens(sess, who)
		digest := submissionDigest(sub)
		if c.IdempotencyKey == "" || (c.SubmittedDigest != "" && c.SubmittedDigest != digest) {
			c.IdempotencyKey = s.newKey()
		}
		c.SubmittedDigest = digest
		key = c.IdempotencyKey
		now := s.now()
		c.SubmittingSince = &now
		c.SubmitError = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	started := s.now()
	spanCtx, finish := telemetry.StartSpan(ctx, "order.submit", "POST /api/orders/create")
	conf, submitErr := s.orders.Create(spanCtx, who.accessToken, key, sub)
	finish()
	elapsed := s.now().Sub(started)

	// The outcome must be recorded even if the caller has gone away.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	sess, err = s.sessions.Update(recordCtx, sess.ID, func(sess *session.Session) error {
		sess.Checkout.SubmittingSince = nil
		if submitErr != nil {
			sess.Checkout.SubmitError = domain.ErrorMessage(submitErr)
			return nil
		}
		sess.Cart.Clear()
		sess.PromoCode = ""
		sess.Checkout.Order = conf
		sess.Checkout.SubmitError = ""
		s.setState(sess, domain.CheckoutStateSuccess)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to record order submission outcome",
			"session_id", sessionID,
			"idempotency_key", key,
			"error", err,
		)
		return nil, err
	}

	method := string(sub.PaymentMethod)
	value, _ := sub.Total.Float64()
	if submitErr != nil {
		s.metrics.OrderSubmitted(method, "failed", value)
		s.logger.Error("order submission failed",
			"session_id", sess.ID,
			"user_id", who.user.ID,
			"idempotency_key", key,
			"duration", elapsed,
			"error", submitErr,
		)
		if !domain.IsCode(submitErr, domain.EINVALID) {
			telemetry.CaptureErrorFromContext(ctx, submitErr, map[string]interface{}{
				"op":              op,
				"idempotency_key": key,
				"payment_method":  method,
			})
		}
		return nil, submitErr
	}

	result := "created"
	if conf.Replayed {
		result = "replayed"
	}
	s.metrics.OrderSubmitted(method, result, value)
	s.logger.Info("order submitted",
		"session_id", sess.ID,
		"user_id", who.user.ID,
		"order_id", conf.OrderID,
		"replayed", conf.Replayed,
		"payment_method", method,
		"total", sub.Total.StringFixed(2),
		"duration", elapsed,
	)

	return s.status(ctx, sess, who)
}

// OrderHistory lists the resolved shopper's orders.
func (s *checkoutService) OrderHistory(ctx context.Context, sessionID string) ([]domain.Order, error) {
	const op = "checkout.order_history"

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	who, err := s.requireShopper(ctx, sess, op)
	if err != nil {
		return nil, err
	}

	if who.tokens != nil {
		if _, err := s.sessions.Update(ctx, sess.ID, func(sess *session.Session) error {
			s.applyTokens(sess, who)
			return nil
		}); err != nil {
			return nil, err
		}
	}

	list, err := s.orders.List(ctx, who.accessToken)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// submissionDigest fingerprints an order payload. A resubmission with the same
// digest is a retry of the same order; any edit in between makes a new one.
func submissionDigest(sub domain.OrderSubmission) string {
	raw, err := json.Marshal(sub)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
