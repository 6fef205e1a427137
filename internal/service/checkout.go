package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukerupert/cutroom/internal/billing"
	"github.com/dukerupert/cutroom/internal/catalog"
	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/dukerupert/cutroom/internal/identity"
	"github.com/dukerupert/cutroom/internal/orders"
	"github.com/dukerupert/cutroom/internal/pricing"
	"github.com/dukerupert/cutroom/internal/session"
	"github.com/dukerupert/cutroom/internal/telemetry"
	"github.com/dukerupert/cutroom/internal/validation"
	"github.com/google/uuid"
)

// submitStaleAfter bounds how long an unfinished submission blocks the
// session. A process that died mid-submit leaves SubmittingSince behind.
const submitStaleAfter = 2 * time.Minute

// CheckoutService drives the auth → details → payment → success flow for a
// storefront session.
type CheckoutService interface {
	// Status reports the checkout state, advancing from auth to details once
	// the shopper's identity resolves.
	Status(ctx context.Context, sessionID string) (*CheckoutStatus, error)

	// StoreTokens caches an access/refresh pair on the session.
	StoreTokens(ctx context.Context, sessionID string, tokens domain.TokenPair) (*CheckoutStatus, error)

	// SubmitDetails records billing information and moves to payment.
	SubmitDetails(ctx context.Context, sessionID string, info domain.BillingInfo) (*CheckoutStatus, error)

	// SelectPaymentMethod sets the payment method. Selecting the card path
	// prepares a payment intent.
	SelectPaymentMethod(ctx context.Context, sessionID, selection string) (*CheckoutStatus, error)

	// RetryPaymentIntent asks the payment provider for a new intent after a
	// failed attempt.
	RetryPaymentIntent(ctx context.Context, sessionID string) (*CheckoutStatus, error)

	// SubmitOrder sends the cart to the order API. On success the cart is
	// cleared and the flow ends in success.
	SubmitOrder(ctx context.Context, sessionID string) (*CheckoutStatus, error)

	// OrderHistory lists the shopper's previous orders.
	OrderHistory(ctx context.Context, sessionID string) ([]domain.Order, error)
}

// CheckoutStatus is the shopper-facing view of a checkout.
type CheckoutStatus struct {
	SessionID string `json:"-"`

	State           domain.CheckoutState      `json:"state"`
	User            *domain.User              `json:"user,omitempty"`
	Billing         *domain.BillingInfo       `json:"billing,omitempty"`
	PaymentMethod   domain.PaymentMethod      `json:"payment_method,omitempty"`
	ClientSecret    string                    `json:"client_secret,omitempty"`
	PaymentError    string                    `json:"payment_error,omitempty"`
	CanRetryPayment bool                      `json:"can_retry_payment"`
	Submitting      bool                      `json:"submitting"`
	SubmitError     string                    `json:"submit_error,omitempty"`
	IdentityError   string                    `json:"identity_error,omitempty"`
	Order           *domain.OrderConfirmation `json:"order,omitempty"`
	Totals          pricing.Totals            `json:"totals"`
}

// CheckoutServiceParams groups the dependencies of NewCheckoutService.
type CheckoutServiceParams struct {
	Sessions  *session.Manager
	Catalog   catalog.Provider
	Identity  *identity.Resolver
	Billing   billing.Provider
	Orders    orders.Creator
	PromoCode string
	Metrics   *telemetry.BusinessMetrics
	Logger    *slog.Logger
}

type checkoutService struct {
	sessions  *session.Manager
	catalog   catalog.Provider
	identity  *identity.Resolver
	billing   billing.Provider
	orders    orders.Creator
	promoCode string
	metrics   *telemetry.BusinessMetrics
	logger    *slog.Logger
	now       func() time.Time
	newKey    func() string
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(p CheckoutServiceParams) CheckoutService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &checkoutService{
		sessions:  p.Sessions,
		catalog:   p.Catalog,
		identity:  p.Identity,
		billing:   p.Billing,
		orders:    p.Orders,
		promoCode: p.PromoCode,
		metrics:   p.Metrics,
		logger:    logger,
		now:       time.Now,
		newKey:    uuid.NewString,
	}
}

// shopper is a resolved identity plus the bearer to forward downstream.
type shopper struct {
	user        *domain.User
	accessToken string

	// tokens is set when the cached pair was refreshed and must be saved.
	tokens *domain.TokenPair
}

// identify resolves the session's user. A shopper with no usable credentials
// yields (nil, nil); provider outages are returned as errors.
func (s *checkoutService) identify(ctx context.Context, sess *session.Session) (*shopper, error) {
	creds := identity.Credentials{
		SessionToken: domain.BearerTokenFromContext(ctx),
		Tokens:       sess.Tokens,
	}
	if s.identity == nil || (creds.SessionToken == "" && creds.Tokens == nil) {
		return nil, nil
	}

	res, err := s.identity.Resolve(ctx, creds)
	if err != nil {
		if domain.IsCode(err, domain.EUNAUTHORIZED) {
			s.logger.Debug("no shopper identity", "session_id", sess.ID, "error", err)
			return nil, nil
		}
		return nil, err
	}

	sh := &shopper{user: res.User, accessToken: creds.SessionToken}
	if res.Tokens != nil {
		sh.accessToken = res.Tokens.AccessToken
		if res.Refreshed {
			sh.tokens = res.Tokens
		}
	}
	return sh, nil
}

// Status resolves identity and persists the auth → details transition.
func (s *checkoutService) Status(ctx context.Context, sessionID string) (*CheckoutStatus, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	who, err := s.identify(ctx, sess)
	if err != nil {
		// An unreachable identity provider parks the flow in auth rather
		// than failing the page; mutating steps still report the outage.
		s.logger.Warn("identity unavailable, checkout parked in auth", "session_id", sess.ID, "error", err)
		telemetry.CaptureErrorFromContext(ctx, err, map[string]interface{}{"session_id": sess.ID})
		st, serr := s.status(ctx, sess, nil)
		if serr != nil {
			return nil, serr
		}
		st.State = domain.CheckoutStateAuth
		st.IdentityError = domain.ErrorMessage(ErrIdentityUnavailable)
		return st, nil
	}

	if who != nil && (who.tokens != nil || sess.Checkout.State == domain.CheckoutStateAuth) {
		sess, err = s.sessions.Update(ctx, sess.ID, func(sess *session.Session) error {
			s.applyTokens(sess, who)
			s.advanceFromAuth(sess)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if who != nil && s.needsIntent(ctx, sess) {
		if sess, err = s.preparePaymentIntent(ctx, sess.ID, who, false); err != nil {
			return nil, err
		}
	}

	return s.status(ctx, sess, who)
}

func (s *checkoutService) StoreTokens(ctx context.Context, sessionID string, tokens domain.TokenPair) (*CheckoutStatus, error) {
	if tokens.AccessToken == "" {
		return nil, domain.NewValidationError("checkout.store_tokens", "access_token", "is required")
	}

	sess, err := s.sessions.Update(ctx, sessionID, func(sess *session.Session) error {
		sess.Tokens = &tokens
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Status(ctx, sess.ID)
}

func (s *checkoutService) SubmitDetails(ctx context.Context, sessionID string, info domain.BillingInfo) (*CheckoutStatus, error) {
	const op = "checkout.submit_details"

	if err := validation.Struct(op, info); err != nil {
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

	sess, err = s.sessions.Update(ctx, sess.ID, func(sess *session.Session) error {
		if err := s.checkEditable(sess, op); err != nil {
			return err
		}
		if sess.Cart.Empty() {
			return domain.WithOp(domain.ErrCartEmpty, op)
		}

		s.applyTokens(sess, who)
		s.advanceFromAuth(sess)

		billingInfo := info
		sess.Checkout.Billing = &billingInfo
		if sess.Checkout.PaymentMethod == "" {
			sess.Checkout.PaymentMethod = domain.PaymentMethodCreditCard
		}
		if sess.Checkout.IdempotencyKey == "" {
			sess.Checkout.IdempotencyKey = s.newKey()
		}
		s.setState(sess, domain.CheckoutStatePayment)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.needsIntent(ctx, sess) {
		if sess, err = s.preparePaymentIntent(ctx, sess.ID, who, false); err != nil {
			return nil, err
		}
	}
	return s.status(ctx, sess, who)
}

func (s *checkoutService) SelectPaymentMethod(ctx context.Context, sessionID, selection string) (*CheckoutStatus, error) {
	const op = "checkout.select_payment_method"

	method, err := domain.ParsePaymentMethod(selection)
	if err != nil {
		return nil, domain.WithOp(err, op)
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	who, err := s.requireShopper(ctx, sess, op)
	if err != nil {
		return nil, err
	}

	sess, err = s.sessions.Update(ctx, sess.ID, func(sess *session.Session) error {
		if err := s.checkEditable(sess, op); err != nil {
			return err
		}
		if sess.Checkout.State != domain.CheckoutStatePayment {
			return domain.WithOp(ErrWrongCheckoutState, op)
		}
		s.applyTokens(sess, who)
		sess.Checkout.PaymentMethod = method
		if !method.RequiresPaymentIntent() {
			sess.Checkout.PaymentError = ""
		}
		sess.Checkout.SubmitError = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.needsIntent(ctx, sess) {
		if sess, err = s.preparePaymentIntent(ctx, sess.ID, who, false); err != nil {
			return nil, err
		}
	}
	return s.status(ctx, sess, who)
}

func (s *checkoutService) RetryPaymentIntent(ctx context.Context, sessionID string) (*CheckoutStatus, error) {
	const op = "checkout.retry_payment_intent"

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Checkout.State != domain.CheckoutStatePayment || !sess.Checkout.PaymentMethod.RequiresPaymentIntent() {
		return nil, domain.WithOp(ErrWrongCheckoutState, op)
	}
	if submitting(sess.Checkout, s.now()) {
		return nil, domain.WithOp(domain.ErrSubmissionInFlight, op)
	}

	who, err := s.requireShopper(ctx, sess, op)
	if err != nil {
		return nil, err
	}

	if sess.Checkout.ClientSecret == "" || s.needsIntent(ctx, sess) {
		if sess, err = s.preparePaymentIntent(ctx, sess.ID, who, true); err != nil {
			return nil, err
		}
	}
	return s.status(ctx, sess, who)
}

// needsIntent reports whether the card path lacks an intent for the current total.
func (s *checkoutService) needsIntent(ctx context.Context, sess *session.Session) bool {
	c := sess.Checkout
	if c.State != domain.CheckoutStatePayment || !c.PaymentMethod.RequiresPaymentIntent() || sess.Cart.Empty() {
		return false
	}
	if c.PaymentIntentID == "" {
		return c.PaymentError == ""
	}
	totals, err := s.totals(ctx, sess)
	if err != nil {
		return false
	}
	return c.IntentAmountCents != pricing.ToMinorUnits(totals.Total)
}

// preparePaymentIntent creates a payment intent for the session's current
// total and records the outcome. A provider failure is recorded on the
// checkout as PaymentError and is not returned.
func (s *checkoutService) preparePaymentIntent(ctx context.Context, sessionID string, who *shopper, retry bool) (*session.Session, error) {
	const op = "checkout.payment_intent"

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	totals, err := s.totals(ctx, sess)
	if err != nil {
		return nil, err
	}

	cents := pricing.ToMinorUnits(totals.Total)
	key := sess.Checkout.IdempotencyKey + ":" + strconv.FormatInt(cents, 10)
	if retry {
		key += ":" + s.newKey()
	}

	intent, perr := s.billing.CreatePaymentIntent(ctx, billing.CreatePaymentIntentParams{
		AmountCents:    cents,
		CustomerEmail:  who.user.Email,
		Description:    "Cutroom video editing order",
		IdempotencyKey: key,
		Metadata: map[string]string{
			"session_id":    sess.ID,
			"user_id":       who.user.ID,
			"checkout_key":  sess.Checkout.IdempotencyKey,
			"item_count":    strconv.Itoa(totals.ItemCount),
			"promo_applied": strconv.FormatBool(totals.PromoCode != ""),
		},
	})
	s.metrics.PaymentIntent(perr == nil)

	if perr != nil {
		s.logger.Error("payment intent creation failed",
			"session_id", sess.ID,
			"op", op,
			"amount_cents", cents,
			"error", perr,
		)
		telemetry.CaptureErrorFromContext(ctx, perr, map[string]interface{}{"op": op, "amount_cents": cents})
	}

	return s.sessions.Update(ctx, sess.ID, func(sess *session.Session) error {
		if sess.Checkout.State != domain.CheckoutStatePayment {
			return nil
		}
		if perr != nil {
			sess.Checkout.PaymentIntentID = ""
			sess.Checkout.ClientSecret = ""
			sess.Checkout.IntentAmountCents = 0
			sess.Checkout.PaymentError = paymentErrorMessage(perr)
			return nil
		}
		sess.Checkout.PaymentIntentID = intent.ID
		sess.Checkout.ClientSecret = intent.ClientSecret
		sess.Checkout.IntentAmountCents = intent.AmountCents
		sess.Checkout.PaymentError = ""
		return nil
	})
}

// paymentErrorMessage turns a provider failure into a message for the shopper.
func paymentErrorMessage(err error) string {
	var serr *billing.StripeError
	switch {
	case errors.Is(err, billing.ErrAmountTooSmall):
		return "Order total is below the minimum card charge. Choose another payment method."
	case errors.As(err, &serr) && serr.IsTemporary():
		return "The payment service is busy right now. Please retry in a moment."
	case domain.IsCode(err, domain.EINVALID):
		return domain.ErrorMessage(err)
	}
	return domain.ErrorMessage(ErrPaymentIntentFailed)
}

// requireShopper resolves identity or fails with ErrAuthenticationNeeded.
func (s *checkoutService) requireShopper(ctx context.Context, sess *session.Session, op string) (*shopper, error) {
	who, err := s.identify(ctx, sess)
	if err != nil {
		return nil, err
	}
	if who == nil {
		return nil, domain.WithOp(domain.ErrAuthenticationNeeded, op)
	}
	return who, nil
}

// checkEditable rejects changes to a completed or submitting checkout.
func (s *checkoutService) checkEditable(sess *session.Session, op string) error {
	if sess.Checkout.State == domain.CheckoutStateSuccess {
		return domain.WithOp(domain.ErrCheckoutComplete, op)
	}
	if submitting(sess.Checkout, s.now()) {
		return domain.WithOp(domain.ErrSubmissionInFlight, op)
	}
	return nil
}

func (s *checkoutService) applyTokens(sess *session.Session, who *shopper) {
	if who != nil && who.tokens != nil {
		tokens := *who.tokens
		sess.Tokens = &tokens
	}
}

func (s *checkoutService) advanceFromAuth(sess *session.Session) {
	if sess.Checkout.State == "" || sess.Checkout.State == domain.CheckoutStateAuth {
		s.setState(sess, domain.CheckoutStateDetails)
	}
}

func (s *checkoutService) setState(sess *session.Session, state domain.CheckoutState) {
	if sess.Checkout.State == state {
		return
	}
	sess.Checkout.State = state
	sess.Checkout.UpdatedAt = s.now()
	s.metrics.EnteredStep(string(state))
	telemetry.AddBreadcrumb("checkout", "entered "+string(state), map[string]interface{}{"session_id": sess.ID})
	s.logger.Debug("checkout state changed", "session_id", sess.ID, "state", state)
}

func (s *checkoutService) totals(ctx context.Context, sess *session.Session) (pricing.Totals, error) {
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return pricing.Totals{}, err
	}
	return pricing.New(snap, s.promoCode).Totals(sess.Cart.Items(), sess.PromoCode), nil
}

func (s *checkoutService) status(ctx context.Context, sess *session.Session, who *shopper) (*CheckoutStatus, error) {
	totals, err := s.totals(ctx, sess)
	if err != nil {
		return nil, err
	}

	c := sess.Checkout
	st := &CheckoutStatus{
		SessionID:     sess.ID,
		State:         c.State,
		Billing:       c.Billing,
		PaymentMethod: c.PaymentMethod,
		PaymentError:  c.PaymentError,
		Submitting:    submitting(c, s.now()),
		SubmitError:   c.SubmitError,
		Order:         c.Order,
		Totals:        totals,
	}
	if st.State == "" {
		st.State = domain.CheckoutStateAuth
	}
	if who != nil {
		st.User = who.user
	} else if st.State == domain.CheckoutStateDetails || st.State == domain.CheckoutStatePayment {
		// Without a shopper the flow shows sign-in again; stored billing and
		// progress come back once the shopper does.
		st.State = domain.CheckoutStateAuth
	}
	if c.PaymentMethod.RequiresPaymentIntent() && st.State == domain.CheckoutStatePayment {
		st.ClientSecret = c.ClientSecret
		st.CanRetryPayment = c.PaymentError != ""
	}
	return st, nil
}

// submitting reports whether an order submission is outstanding.
func submitting(c domain.Checkout, now time.Time) bool {
	return c.SubmittingSince != nil && now.Sub(*c.SubmittingSince) < submitStaleAfter
}

// resetCheckout starts a new checkout attempt. Cached tokens survive.
func resetCheckout(sess *session.Session, now time.Time) {
	sess.Checkout = domain.Checkout{State: domain.CheckoutStateAuth, UpdatedAt: now}
}
