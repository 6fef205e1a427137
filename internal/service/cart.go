package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/cutroom/internal/catalog"
	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/dukerupert/cutroom/internal/pricing"
	"github.com/dukerupert/cutroom/internal/session"
	"github.com/dukerupert/cutroom/internal/telemetry"
)

// CartService provides business logic for shopping cart operations.
// Every method takes the storefront session ID; an empty or unknown ID starts
// a new session whose ID is returned in the summary.
type CartService interface {
	GetCart(ctx context.Context, sessionID string) ([]domain.CartLineItem, error)
	AddItem(ctx context.Context, sessionID string, params AddItemParams) (*CartSummary, error)
	UpdateItemQuantity(ctx context.Context, sessionID string, index, quantity int) (*CartSummary, error)
	RemoveItem(ctx context.Context, sessionID string, index int) (*CartSummary, error)
	ClearCart(ctx context.Context, sessionID string) (*CartSummary, error)
	ApplyPromoCode(ctx context.Context, sessionID, code string) (*CartSummary, error)
	RemovePromoCode(ctx context.Context, sessionID string) (*CartSummary, error)
	Summary(ctx context.Context, sessionID string) (*CartSummary, error)
}

// AddItemParams describes an "add to cart" action.
type AddItemParams struct {
	ServiceID string      `json:"service_id" validate:"required"`
	Plan      domain.Plan `json:"plan"`

	// Addons are addon IDs. Addon names are accepted and stored as IDs.
	Addons []string `json:"addons"`

	// Quantity defaults to 1 when zero.
	Quantity int `json:"quantity" validate:"gte=0"`
}

// CartSummary aggregates cart information with items and calculated totals.
type CartSummary struct {
	SessionID string                `json:"-"`
	Items     []domain.CartLineItem `json:"items"`
	Totals    pricing.Totals        `json:"totals"`
}

// CartServiceParams groups the dependencies of NewCartService.
type CartServiceParams struct {
	Sessions  *session.Manager
	Catalog   catalog.Provider
	PromoCode string
	Metrics   *telemetry.BusinessMetrics
	Logger    *slog.Logger
}

type cartService struct {
	sessions  *session.Manager
	catalog   catalog.Provider
	promoCode string
	metrics   *telemetry.BusinessMetrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewCartService creates a new CartService instance.
func NewCartService(p CartServiceParams) CartService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &cartService{
		sessions:  p.Sessions,
		catalog:   p.Catalog,
		promoCode: p.PromoCode,
		metrics:   p.Metrics,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *cartService) GetCart(ctx context.Context, sessionID string) ([]domain.CartLineItem, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Cart.Items(), nil
}

func (s *cartService) Summary(ctx context.Context, sessionID string) (*CartSummary, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, sess)
}

func (s *cartService) AddItem(ctx context.Context, sessionID string, params AddItemParams) (*CartSummary, error) {
	const op = "cart.add_item"

	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	svc, ok := snap.Service(params.ServiceID)
	if !ok {
		return nil, domain.WithOp(ErrServiceNotFound, op)
	}

	addons := make([]string, 0, len(params.Addons))
	for _, ref := range params.Addons {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		addon, ok := snap.Addon(ref)
		if !ok {
			return nil, domain.WrapError(ErrUnknownAddon, domain.EINVALID, op, domain.ErrorMessage(ErrUnknownAddon)+": "+ref)
		}
		addons = append(addons, addon.ID)
	}

	qty := params.Quantity
	if qty == 0 {
		qty = 1
	}
	item, err := domain.NewCartLineItem(svc, params.Plan, addons, qty)
	if err != nil {
		return nil, err
	}

	sess, err := s.mutate(ctx, sessionID, func(sess *session.Session) error {
		sess.Cart.Add(item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ItemAdded(item.Service.ID, string(item.Plan))
	s.logger.Debug("cart item added",
		"session_id", sess.ID,
		"service_id", item.Service.ID,
		"quantity", item.Quantity,
	)
	return s.summarizeWith(sess, snap), nil
}

func (s *cartService) UpdateItemQuantity(ctx context.Context, sessionID string, index, quantity int) (*CartSummary, error) {
	sess, err := s.mutate(ctx, sessionID, func(sess *session.Session) error {
		return sess.Cart.UpdateQuantity(index, quantity)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CartChanged("update_quantity")
	return s.summarize(ctx, sess)
}

func (s *cartService) RemoveItem(ctx context.Context, sessionID string, index int) (*CartSummary, error) {
	sess, err := s.mutate(ctx, sessionID, func(sess *session.Session) error {
		return sess.Cart.Remove(index)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CartChanged("remove")
	return s.summarize(ctx, sess)
}

func (s *cartService) ClearCart(ctx context.Context, sessionID string) (*CartSummary, error) {
	sess, err := s.mutate(ctx, sessionID, func(sess *session.Session) error {
		sess.Cart.Clear()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CartChanged("clear")
	return s.summarize(ctx, sess)
}

// ApplyPromoCode validates code and stores it on the session. Applying the
// same valid code again leaves the totals unchanged.
func (s *cartService) ApplyPromoCode(ctx context.Context, sessionID, code string) (*CartSummary, error) {
	calc := pricing.New(nil, s.promoCode)
	if !calc.ValidPromoCode(code) {
		s.metrics.PromoCode(false)
		return nil, domain.WithOp(pricing.ErrInvalidPromoCode, "cart.apply_promo")
	}

	sess, err := s.mutate(ctx, sessionID, func(sess *session.Session) error {
		sess.PromoCode = strings.ToUpper(strings.TrimSpace(code))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.PromoCode(true)
	return s.summarize(ctx, sess)
}

func (s *cartService) RemovePromoCode(ctx context.Context, sessionID string) (*CartSummary, error) {
	sess, err := s.mutate(ctx, sessionID, func(sess *session.Session) error {
		sess.PromoCode = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, sess)
}

// mutate applies fn under the session lock. Carts are frozen while an order
// submission is outstanding, and a finished checkout is reset so the next
// purchase starts fresh.
func (s *cartService) mutate(ctx context.Context, sessionID string, fn func(*session.Session) error) (*session.Session, error) {
	return s.sessions.Update(ctx, sessionID, func(sess *session.Session) error {
		if submitting(sess.Checkout, s.now()) {
			return domain.WithOp(domain.ErrSubmissionInFlight, "cart.mutate")
		}
		if sess.Checkout.State == domain.CheckoutStateSuccess {
			resetCheckout(sess, s.now())
		}
		return fn(sess)
	})
}

func (s *cartService) summarize(ctx context.Context, sess *session.Session) (*CartSummary, error) {
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.summarizeWith(sess, snap), nil
}

func (s *cartService) summarizeWith(sess *session.Session, snap *catalog.Snapshot) *CartSummary {
	calc := pricing.New(snap, s.promoCode)
	items := sess.Cart.Items()
	totals := calc.Totals(items, sess.PromoCode)
	if unknown := totals.UnknownAddons(); len(unknown) > 0 {
		s.logger.Warn("cart references addons missing from catalog",
			"session_id", sess.ID,
			"addons", unknown,
		)
	}
	return &CartSummary{SessionID: sess.ID, Items: items, Totals: totals}
}
