package middleware

import "net/http"

// apiHeaders are sent on every storefront response. Nothing the storefront
// serves is meant to be framed, sniffed or to load sub-resources.
var apiHeaders = map[string]string{
	"Content-Security-Policy":    "default-src 'none'; frame-ancestors 'none'",
	"X-Frame-Options":            "DENY",
	"X-Content-Type-Options":     "nosniff",
	"Referrer-Policy":            "strict-origin-when-cross-origin",
	"Permissions-Policy":         "camera=(), microphone=(), geolocation=(), payment=(self)",
	"Cross-Origin-Opener-Policy": "same-origin",
}

// hstsValue pins HTTPS for a year.
const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders sets the storefront's response headers. HSTS is only sent
// when hsts is true; local development runs over plain HTTP.
func SecurityHeaders(hsts bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range apiHeaders {
				h.Set(k, v)
			}
			if hsts {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			// Carts, totals and client secrets are per shopper.
			if r.Method == http.MethodGet {
				h.Set("Cache-Control", "no-store")
			}
			next.ServeHTTP(w, r)
		})
	}
}
