// Package storefront serves the JSON API the storefront front end talks to:
// catalog, cart, checkout and order history.
package storefront

import (
	"net/http"

	"github.com/dukerupert/cutroom/internal/cookie"
	"github.com/dukerupert/cutroom/internal/domain"
)

// sessionID returns the storefront session presented by the caller, from the
// context when WithSession ran and from the cookie otherwise.
func sessionID(r *http.Request) string {
	if id := domain.SessionIDFromContext(r.Context()); id != "" {
		return id
	}
	return cookie.Get(r, cookie.SessionCookieName)
}

// bindSession refreshes the session cookie once the service has a saved
// session. An empty ID means nothing was persisted and no cookie is sent.
func bindSession(w http.ResponseWriter, cfg *cookie.Config, id string) {
	if id == "" || cfg == nil {
		return
	}
	cfg.SetSession(w, id)
}
