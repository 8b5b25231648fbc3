package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	pkglogger "github.com/vida-health/vida/pkg/logger"
)

// SecureLogger returns a middleware for logging HTTP requests with sensitive
// data redaction. Query strings carrying QR tokens or license numbers are
// replaced wholesale.
func SecureLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			requestID := middleware.GetReqID(r.Context())

			path := r.URL.Path
			if pkglogger.SanitizeQueryString(r.URL.RawQuery) {
				path = path + "?[REDACTED]"
			} else if r.URL.RawQuery != "" {
				path = r.URL.Path + "?" + r.URL.RawQuery
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", wrapped.Status()),
				slog.Int64("bytes", int64(wrapped.BytesWritten())),
				slog.String("duration", duration.String()),
				slog.String("request_id", requestID),
				slog.String("remote_addr", r.RemoteAddr),
			}

			logger.LogAttrs(context.Background(), slog.LevelInfo, "http_request", attrs...)
		})
	}
}
