package orderapi

import (
	"context"
	"errors"
	"sync"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/google/uuid"
)

var errNotConfigured = errors.New("mock: not configured")

type mockStore struct {
	createFunc     func(ctx context.Context, key string, sub domain.OrderSubmission) (*domain.Order, bool, error)
	getFunc        func(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	listByUserFunc func(ctx context.Context, userID string) ([]domain.Order, error)
	pingFunc       func(ctx context.Context) error
}

func (m *mockStore) Create(ctx context.Context, key string, sub domain.OrderSubmission) (*domain.Order, bool, error) {
	if m.createFunc == nil {
		return nil, false, errNotConfigured
	}
	return m.createFunc(ctx, key, sub)
}

func (m *mockStore) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if m.getFunc == nil {
		return nil, errNotConfigured
	}
	return m.getFunc(ctx, id)
}

func (m *mockStore) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if m.listByUserFunc == nil {
		return nil, errNotConfigured
	}
	return m.listByUserFunc(ctx, userID)
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFunc == nil {
		return nil
	}
	return m.pingFunc(ctx)
}

type recordingEvents struct {
	mu      sync.Mutex
	created []uuid.UUID
	err     error
}

func (r *recordingEvents) OrderCreated(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, o.ID)
	return r.err
}

func (r *recordingEvents) OrderPaid(ctx context.Context, id string) error { return nil }

// chanMailer hands every confirmed order to a buffered channel so tests can
// wait on the background send.
type chanMailer struct {
	sent chan uuid.UUID
	err  error
}

func newChanMailer() *chanMailer { return &chanMailer{sent: make(chan uuid.UUID, 4)} }

func (m *chanMailer) OrderConfirmed(ctx context.Context, o *domain.Order) error {
	m.sent <- o.ID
	return m.err
}
