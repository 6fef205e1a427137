// Package session persists per-visitor storefront state (cart, promo code,
// checkout progress and identity tokens) keyed by an opaque session ID.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/dukerupert/cutroom/internal/cart"
	"github.com/dukerupert/cutroom/internal/domain"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 30 * 24 * time.Hour

var ErrSessionNotFound = &domain.Error{Code: domain.ENOTFOUND, Message: "Session not found"}

// Session is everything the storefront remembers about one visitor.
type Session struct {
	ID        string            `json:"id"`
	Cart      cart.Cart         `json:"cart"`
	PromoCode string            `json:"promo_code,omitempty"`
	Checkout  domain.Checkout   `json:"checkout"`
	Tokens    *domain.TokenPair `json:"tokens,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// New creates an empty session with a fresh ID.
func New(now time.Time) (*Session, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		Checkout:  domain.Checkout{State: domain.CheckoutStateAuth, UpdatedAt: now},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewID returns a random URL-safe session identifier.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Store loads and saves sessions.
//
// Load returns ErrSessionNotFound for unknown or expired IDs.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
