package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/dukerupert/cutroom/internal/cookie"
)

const (
	// CSRFCookieName holds the double-submit token. Script can read it.
	CSRFCookieName = "cutroom_csrf"

	// CSRFHeaderName is where the storefront echoes the token back, and
	// where GET /api/cart hands it out.
	CSRFHeaderName = "X-CSRF-Token"

	csrfContextKey contextKey = "csrf_token"
)

// CSRF guards cart and checkout mutations with a double-submit token. Any
// unsafe request that carries the session cookie must echo the token cookie
// in X-CSRF-Token. Requests without a session cookie pass: a forged one can
// only reach a fresh, empty cart, and bearer-only API clients send no
// cookies at all. Paths under exempt skip the check.
func CSRF(cookies *cookie.Config, exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range exempt {
				if matchesPathPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}

			token := cookie.Get(r, CSRFCookieName)
			if token == "" {
				var err error
				if token, err = newCSRFToken(); err != nil {
					respondInternalError(w, r, err)
					return
				}
				cookies.SetReadable(w, CSRFCookieName, token)
			}
			r = r.WithContext(context.WithValue(r.Context(), csrfContextKey, token))

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if cookie.Get(r, cookie.SessionCookieName) == "" {
				next.ServeHTTP(w, r)
				return
			}

			sent := r.Header.Get(CSRFHeaderName)
			if sent == "" || subtle.ConstantTimeCompare([]byte(sent), []byte(token)) != 1 {
				respondForbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetCSRFToken returns the token for this request, or "".
func GetCSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfContextKey).(string)
	return token
}

func newCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// matchesPathPrefix reports whether path is prefix or lies below it, so
// "/health" exempts "/health/live" but not "/healthz".
func matchesPathPrefix(path, prefix string) bool {
	rest, ok := strings.CutPrefix(path, prefix)
	return ok && (rest == "" || rest[0] == '/' || strings.HasSuffix(prefix, "/"))
}
