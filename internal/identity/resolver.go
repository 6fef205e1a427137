package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Credentials are the tokens a request can present, in order of precedence.
type Credentials struct {
	// SessionToken is a bearer token issued to the shopper by the identity
	// provider itself, e.g. forwarded in the Authorization header.
	SessionToken string

	// Tokens is the pair cached in the storefront session.
	Tokens *domain.TokenPair
}

// Resolution is a resolved user plus the tokens that should be cached.
type Resolution struct {
	User *domain.User

	// Tokens is non-nil when the cached pair was used. Refreshed reports
	// whether it differs from Credentials.Tokens and must be written back.
	Tokens    *domain.TokenPair
	Refreshed bool
}

// Resolver applies the token precedence rules against a Client.
type Resolver struct {
	client Client
	logger *slog.Logger
	now    func() time.Time
	parser *jwt.Parser
}

// NewResolver creates a resolver.
func NewResolver(client Client, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client: client,
		logger: logger,
		now:    time.Now,
		parser: jwt.NewParser(),
	}
}

// Resolve returns the current user. It tries the session token first, then the
// cached pair with at most one refresh-and-retry, and returns ErrNoSession when
// neither identifies anyone. A provider failure on the session token still falls
// through to the cached pair; it is returned only when nothing else is left.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (*Resolution, error) {
	const op = "identity.resolve"

	var sessionErr error
	if creds.SessionToken != "" {
		user, err := r.client.CurrentUser(ctx, creds.SessionToken)
		if err == nil {
			return &Resolution{User: user}, nil
		}
		if domain.IsCode(err, domain.EUNAUTHORIZED) {
			r.logger.Debug("session token rejected, trying cached tokens", "error", err)
		} else {
			r.logger.Warn("session token lookup failed, trying cached tokens", "error", err)
			sessionErr = err
		}
	}

	if creds.Tokens == nil || creds.Tokens.AccessToken == "" {
		if sessionErr != nil {
			return nil, sessionErr
		}
		return nil, domain.WithOp(ErrNoSession, op)
	}

	tokens := *creds.Tokens
	refreshed := false

	if r.expired(tokens.AccessToken) {
		next, err := r.refresh(ctx, tokens)
		if err != nil {
			return nil, err
		}
		tokens, refreshed = *next, true
	}

	user, err := r.client.CurrentUser(ctx, tokens.AccessToken)
	if err != nil && errors.Is(err, ErrTokenExpired) && !refreshed {
		next, rerr := r.refresh(ctx, tokens)
		if rerr != nil {
			return nil, rerr
		}
		tokens, refreshed = *next, true
		user, err = r.client.CurrentUser(ctx, tokens.AccessToken)
	}
	if err != nil {
		if domain.IsCode(err, domain.EUNAUTHORIZED) {
			return nil, domain.WrapError(err, domain.EUNAUTHORIZED, op, ErrNoSession.Message)
		}
		return nil, err
	}

	return &Resolution{User: user, Tokens: &tokens, Refreshed: refreshed}, nil
}

func (r *Resolver) refresh(ctx context.Context, tokens domain.TokenPair) (*domain.TokenPair, error) {
	if tokens.RefreshToken == "" {
		return nil, domain.WithOp(ErrNoSession, "identity.refresh")
	}
	next, err := r.client.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		r.logger.Warn("token refresh failed", "error", err)
		if domain.IsCode(err, domain.EUNAUTHORIZED) {
			return nil, domain.WrapError(err, domain.EUNAUTHORIZED, "identity.refresh", ErrNoSession.Message)
		}
		return nil, err
	}
	r.logger.Debug("access token refreshed")
	return next, nil
}

// expired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens are never considered expired here.
func (r *Resolver) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := r.parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !r.now().Before(exp.Time)
}
