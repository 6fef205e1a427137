// Package domain holds the storefront's core types: catalog definitions, cart
// line items, checkout state, orders, and the application error type.
package domain

import "context"

type contextKey int

const (
	userContextKey contextKey = iota
	sessionIDContextKey
	bearerTokenContextKey
)

// NewContextWithUser returns a new context with the authenticated user attached.
func NewContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey).(*User)
	return user
}

// NewContextWithSessionID returns a new context carrying the storefront session ID.
func NewContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, id)
}

// SessionIDFromContext retrieves the session ID from context, or "".
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDContextKey).(string)
	return id
}

// NewContextWithBearerToken returns a new context carrying a bearer token the
// caller presented directly, e.g. in an Authorization header.
func NewContextWithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenContextKey, token)
}

// BearerTokenFromContext retrieves the presented bearer token, or "".
func BearerTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(bearerTokenContextKey).(string)
	return token
}
