package auth

import (
	"context"
	"net/http"
	"strings"

	pkghttp "github.com/vida-health/vida/pkg/http"
)

type contextKey string

// PatientContextKey is the request-context key holding the session claims.
const PatientContextKey contextKey = "patient"

// RequireAuth validates the Bearer token and injects the claims into the
// request context.
func RequireAuth(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			claims, err := tm.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), PatientContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PatientFromContext extracts the session claims set by RequireAuth.
func PatientFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(PatientContextKey).(*Claims)
	return claims, ok
}
