// Package cookie writes and reads the storefront's session cookie.
package cookie

import (
	"net/http"
	"time"
)

// SessionCookieName carries the opaque storefront session ID.
const SessionCookieName = "cutroom_session"

// Config holds cookie scoping options.
type Config struct {
	// Domain scopes the cookie. Empty means host-only.
	Domain string

	// Secure determines whether cookies require HTTPS.
	// Should be true in production, false in development.
	Secure bool

	// MaxAge is the cookie lifetime.
	MaxAge time.Duration
}

// NewConfig creates a cookie configuration.
//
// Example:
//
//	cfg := cookie.NewConfig("cutroom.video", true, 30*24*time.Hour) // production
//	cfg := cookie.NewConfig("", false, time.Hour)                   // development
func NewConfig(domain string, secure bool, maxAge time.Duration) *Config {
	return &Config{Domain: domain, Secure: secure, MaxAge: maxAge}
}

// SetSession sets the session cookie.
//
// The cookie is HttpOnly, SameSite=Lax and scoped to "/".
func (c *Config) SetSession(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession removes the session cookie by setting MaxAge to -1.
func (c *Config) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetReadable sets a cookie that the storefront's script must be able to
// read, such as the CSRF token. It shares the session cookie's scope.
func (c *Config) SetReadable(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: false,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Get retrieves a cookie value from the request.
// Returns empty string if cookie not found.
func Get(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
