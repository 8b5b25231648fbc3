package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	pkghttp "github.com/vida-health/vida/pkg/http"
)

// RateLimitConfig holds rate limiting configuration for one route group.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// OnLimited is invoked with the client IP whenever a request is
	// rejected, so the security monitor can count it. May be nil.
	OnLimited func(ip string)
	// IPConfig resolves the real client IP behind trusted proxies.
	IPConfig *pkghttp.IPConfig
}

// RateLimitByIP rejects requests over the configured rate with the same JSON
// error envelope the handlers use. The key is the resolved client IP, not the
// raw peer address, so all requests behind one proxy are not lumped together.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if config.OnLimited != nil {
				config.OnLimited(pkghttp.ExtractClientIP(r, config.IPConfig))
			}
			pkghttp.WriteTooManyRequests(w, "too many requests")
		}),
	)
}
