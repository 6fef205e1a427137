package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/cutroom/internal/billing"
	"github.com/dukerupert/cutroom/internal/catalog"
	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/dukerupert/cutroom/internal/identity"
	"github.com/dukerupert/cutroom/internal/orders"
	"github.com/dukerupert/cutroom/internal/session"
	"github.com/dukerupert/cutroom/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// mockIdentityClient implements identity.Client. Access tokens listed in
// expired report ErrTokenExpired; refreshes maps refresh tokens to new pairs.
type mockIdentityClient struct {
	CurrentUserFunc func(ctx context.Context, accessToken string) (*domain.User, error)

	mu           sync.Mutex
	users        map[string]*domain.User
	expired      map[string]bool
	refreshes    map[string]*domain.TokenPair
	refreshCalls int
}

var _ identity.Client = (*mockIdentityClient)(nil)

func newMockIdentityClient() *mockIdentityClient {
	return &mockIdentityClient{
		users: map[string]*domain.User{
			"good":  testUser(),
			"fresh": testUser(),
		},
		expired: map[string]bool{"stale": true},
		refreshes: map[string]*domain.TokenPair{
			"refresh-1": {AccessToken: "fresh", RefreshToken: "refresh-2"},
		},
	}
}

func (m *mockIdentityClient) CurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	if m.CurrentUserFunc != nil {
		return m.CurrentUserFunc(ctx, accessToken)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired[accessToken] {
		return nil, identity.ErrTokenExpired
	}
	if u, ok := m.users[accessToken]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, identity.ErrInvalidToken
}

func (m *mockIdentityClient) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCalls++
	if pair, ok := m.refreshes[refreshToken]; ok {
		cp := *pair
		return &cp, nil
	}
	return nil, identity.ErrRefreshFailed
}

// mockOrders implements orders.Creator.
type mockOrders struct {
	CreateFunc func(ctx context.Context, accessToken, idempotencyKey string, sub domain.OrderSubmission) (*domain.OrderConfirmation, error)
	ListFunc   func(ctx context.Context, accessToken string) ([]domain.Order, error)

	mu      sync.Mutex
	created []createCall
}

type createCall struct {
	AccessToken    string
	IdempotencyKey string
	Submission     domain.OrderSubmission
}

var _ orders.Creator = (*mockOrders)(nil)

func (m *mockOrders) Create(ctx context.Context, accessToken, idempotencyKey string, sub domain.OrderSubmission) (*domain.OrderConfirmation, error) {
	m.mu.Lock()
	m.created = append(m.created, createCall{accessToken, idempotencyKey, sub})
	n := len(m.created)
	m.mu.Unlock()

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, accessToken, idempotencyKey, sub)
	}
	return &domain.OrderConfirmation{OrderID: fmt.Sprintf("order-%d", n)}, nil
}

func (m *mockOrders) List(ctx context.Context, accessToken string) ([]domain.Order, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, accessToken)
	}
	return nil, nil
}

func (m *mockOrders) calls() []createCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]createCall(nil), m.created...)
}

func testUser() *domain.User {
	return &domain.User{ID: "user-1", Email: "editor@example.com", Name: "Sam Editor"}
}

func testCatalog(t *testing.T) *catalog.StaticProvider {
	t.Helper()
	p, err := catalog.NewStaticProvider(
		[]domain.ServiceDefinition{
			{ID: "plus", Title: "Plus Edit", Price: decimal.NewFromInt(250)},
			{ID: "basic", Title: "Basic Edit", Price: decimal.NewFromInt(120)},
		},
		[]domain.AddonDefinition{
			{ID: "addon-rush", Name: "rush-delivery", Title: "Rush delivery", Price: decimal.NewFromInt(30)},
			{ID: "addon-captions", Name: "captions", Title: "Captions", Price: decimal.NewFromInt(15)},
		},
	)
	require.NoError(t, err)
	return p
}

func testBilling() domain.BillingInfo {
	return domain.BillingInfo{
		Phone:         "+1 555 0100",
		Address:       "1 Cutting Room Way, Portland OR",
		Company:       "Frame Co",
		Communication: domain.CommunicationEmail,
	}
}

type harness struct {
	store    *session.MemoryStore
	sessions *session.Manager
	identity *mockIdentityClient
	billing  *billing.MockProvider
	orders   *mockOrders
	metrics  *telemetry.BusinessMetrics

	cart     CartService
	checkout CheckoutService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:    session.NewMemoryStore(time.Hour),
		identity: newMockIdentityClient(),
		billing:  billing.NewMockProvider(),
		orders:   &mockOrders{},
		metrics:  telemetry.NewBusinessMetrics("test", prometheus.NewRegistry()),
	}
	h.sessions = session.NewManager(h.store, nil)
	cat := testCatalog(t)

	h.cart = NewCartService(CartServiceParams{
		Sessions: h.sessions,
		Catalog:  cat,
		Metrics:  h.metrics,
	})
	h.checkout = NewCheckoutService(CheckoutServiceParams{
		Sessions: h.sessions,
		Catalog:  cat,
		Identity: identity.NewResolver(h.identity, nil),
		Billing:  h.billing,
		Orders:   h.orders,
		Metrics:  h.metrics,
	})
	return h
}

// signedInCart returns a session holding plus + rush x2 (560.00) with cached
// tokens that resolve to testUser.
func (h *harness) signedInCart(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	sum, err := h.cart.AddItem(ctx, "", AddItemParams{ServiceID: "plus", Addons: []string{"rush-delivery"}, Quantity: 2})
	require.NoError(t, err)

	st, err := h.checkout.StoreTokens(ctx, sum.SessionID, domain.TokenPair{AccessToken: "good", RefreshToken: "refresh-1"})
	require.NoError(t, err)
	require.Equal(t, domain.CheckoutStateDetails, st.State)
	return sum.SessionID
}

// atPayment advances a signed-in cart to the payment step.
func (h *harness) atPayment(t *testing.T) string {
	t.Helper()
	id := h.signedInCart(t)
	_, err := h.checkout.SubmitDetails(context.Background(), id, testBilling())
	require.NoError(t, err)
	return id
}

func (h *harness) session(t *testing.T, id string) *session.Session {
	t.Helper()
	sess, err := h.sessions.Get(context.Background(), id)
	require.NoError(t, err)
	return sess
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
