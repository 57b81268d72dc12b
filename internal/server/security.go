package server

import (
	"net/http"
	"strings"
)

type SecurityConfig struct {
	BaseURL string
}

// apiCSP locks JSON responses down completely. The docs page sets its own.
const apiCSP = "default-src 'none'; frame-ancestors 'none'"

func securityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	strictTransport := strings.HasPrefix(cfg.BaseURL, "https://")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Content-Security-Policy", apiCSP)
			w.Header().Set("Cache-Control", "no-store")

			if strictTransport {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
