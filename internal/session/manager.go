package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/cutroom/internal/domain"
)

// Manager wraps a Store with per-session locking so every mutation is a
// load-modify-save under a single writer.
type Manager struct {
	store  Store
	locks  Locker
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a session manager.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger, now: time.Now}
}

// Get loads a session. An unknown id yields an empty, unsaved session with no
// ID; it only gets one when first saved through Update.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return m.empty(), nil
	}
	s, err := m.store.Load(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return m.empty(), nil
	}
	if err != nil {
		return nil, domain.Internal(err, "session.get", "failed to load session")
	}
	return s, nil
}

// Update runs fn against the session while holding its lock and saves the
// result if fn succeeds. An unknown id starts a new session; callers must
// read the returned session's ID to learn it.
func (m *Manager) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	if id != "" {
		unlock := m.locks.Lock(id)
		defer unlock()
	}

	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(s); err != nil {
		return s, err
	}

	if s.ID == "" {
		if s.ID, err = NewID(); err != nil {
			return nil, domain.Internal(err, "session.update", "failed to create session")
		}
	}
	s.UpdatedAt = m.now()
	if err := m.store.Save(ctx, s); err != nil {
		return nil, domain.Internal(err, "session.update", "failed to save session")
	}
	return s, nil
}

// Destroy removes a session.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	unlock := m.locks.Lock(id)
	defer unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return domain.Internal(err, "session.destroy", "failed to delete session")
	}
	m.logger.Debug("session destroyed", "session_id", id)
	return nil
}

func (m *Manager) empty() *Session {
	now := m.now()
	return &Session{
		Checkout:  domain.Checkout{State: domain.CheckoutStateAuth, UpdatedAt: now},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
