// Package identity resolves the shopper behind a storefront session by asking
// the external identity provider who owns a bearer token.
package identity

import (
	"context"

	"github.com/dukerupert/cutroom/internal/domain"
)

var (
	ErrNoSession      = &domain.Error{Code: domain.EUNAUTHORIZED, Message: "No active session"}
	ErrTokenExpired   = &domain.Error{Code: domain.EUNAUTHORIZED, Message: "Access token expired"}
	ErrInvalidToken   = &domain.Error{Code: domain.EUNAUTHORIZED, Message: "Access token is not valid"}
	ErrRefreshFailed  = &domain.Error{Code: domain.EUNAUTHORIZED, Message: "Session could not be refreshed"}
	ErrProviderFailed = &domain.Error{Code: domain.EUNAVAILABLE, Message: "Identity provider is unavailable"}
)

// Client talks to the identity provider.
type Client interface {
	// CurrentUser returns the user owning accessToken. An expired token
	// yields ErrTokenExpired.
	CurrentUser(ctx context.Context, accessToken string) (*domain.User, error)

	// Refresh exchanges a refresh token for a new pair. Providers that do not
	// rotate refresh tokens return the input refresh token unchanged.
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
}
