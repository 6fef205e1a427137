package middleware

import (
	"net/http"
	"strings"

	"github.com/dukerupert/cutroom/internal/cookie"
	"github.com/dukerupert/cutroom/internal/domain"
)

type contextKey string

// maxSessionIDLength bounds the cookie value we are willing to look up.
const maxSessionIDLength = 128

// WithSession copies the storefront session cookie and any Authorization
// bearer token into the request context. Both are optional; handlers decide
// what a missing value means.
func WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if id := cookie.Get(r, cookie.SessionCookieName); id != "" && len(id) <= maxSessionIDLength {
			ctx = domain.NewContextWithSessionID(ctx, id)
		}
		if token := BearerToken(r); token != "" {
			ctx = domain.NewContextWithBearerToken(ctx, token)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken returns the token from an "Authorization: Bearer ..." header,
// or "" when the header is absent or uses another scheme.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
