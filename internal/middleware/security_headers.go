package middleware

import "net/http"

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	Env string
}

// SecurityHeaders returns a middleware that adds security headers to all
// responses. The API serves sensitive medical data, so caching of responses
// is disabled outright.
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Pragma", "no-cache")

			var csp string
			if config.Env == "production" {
				csp = "default-src 'self'; " +
					"script-src 'self'; " +
					"style-src 'self' 'unsafe-inline'; " +
					"img-src 'self' data:; " +
					"connect-src 'self'; " +
					"frame-ancestors 'none'; " +
					"base-uri 'self'; " +
					"form-action 'self'"
			} else {
				csp = "default-src 'self' http: https: ws:; " +
					"script-src 'self' 'unsafe-inline' http: https:; " +
					"style-src 'self' 'unsafe-inline' http: https:; " +
					"img-src 'self' data: http: https:; " +
					"connect-src 'self' http: https: ws: wss:; " +
					"frame-ancestors 'self'; " +
					"base-uri 'self'; " +
					"form-action 'self'"
			}
			w.Header().Set("Content-Security-Policy", csp)

			if config.Env == "production" && (r.Header.Get("X-Forwarded-Proto") == "https" || r.URL.Scheme == "https") {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			w.Header().Set("Permissions-Policy",
				"accelerometer=(), "+
					"camera=(), "+
					"gyroscope=(), "+
					"magnetometer=(), "+
					"microphone=(), "+
					"payment=(), "+
					"usb=()",
			)

			next.ServeHTTP(w, r)
		})
	}
}
