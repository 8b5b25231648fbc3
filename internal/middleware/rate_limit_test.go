package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkghttp "github.com/vida-health/vida/pkg/http"
)

func newLimitedHandler(requests int, window time.Duration, onLimited func(ip string)) http.Handler {
	limit := RateLimitByIP(RateLimitConfig{
		Requests:  requests,
		Window:    window,
		OnLimited: onLimited,
		IPConfig:  &pkghttp.IPConfig{},
	})
	return limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func doLimitedRequest(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/emergency/access", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP_EleventhRequestRejected(t *testing.T) {
	var limited []string
	handler := newLimitedHandler(10, time.Minute, func(ip string) { limited = append(limited, ip) })

	for i := 0; i < 10; i++ {
		rec := doLimitedRequest(handler, "203.0.113.7:40000")
		require.Equal(t, http.StatusOK, rec.Code, "request %d should be admitted", i+1)
	}

	rec := doLimitedRequest(handler, "203.0.113.7:40000")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")
	assert.Equal(t, []string{"203.0.113.7"}, limited)
}

func TestRateLimitByIP_NextWindowAdmits(t *testing.T) {
	handler := newLimitedHandler(2, 100*time.Millisecond, nil)

	require.Equal(t, http.StatusOK, doLimitedRequest(handler, "203.0.113.8:40000").Code)
	require.Equal(t, http.StatusOK, doLimitedRequest(handler, "203.0.113.8:40000").Code)
	require.Equal(t, http.StatusTooManyRequests, doLimitedRequest(handler, "203.0.113.8:40000").Code)

	// Let the rejected window age out entirely before retrying.
	time.Sleep(250 * time.Millisecond)

	assert.Equal(t, http.StatusOK, doLimitedRequest(handler, "203.0.113.8:40000").Code)
}

func TestRateLimitByIP_IsolatesClients(t *testing.T) {
	handler := newLimitedHandler(1, time.Minute, nil)

	require.Equal(t, http.StatusOK, doLimitedRequest(handler, "203.0.113.9:40000").Code)
	require.Equal(t, http.StatusTooManyRequests, doLimitedRequest(handler, "203.0.113.9:40000").Code)

	assert.Equal(t, http.StatusOK, doLimitedRequest(handler, "198.51.100.2:40000").Code)
}

func TestRateLimitByIP_OnLimitedFiresPerRejection(t *testing.T) {
	var count int
	handler := newLimitedHandler(1, time.Minute, func(string) { count++ })

	doLimitedRequest(handler, "203.0.113.10:40000")
	doLimitedRequest(handler, "203.0.113.10:40000")
	doLimitedRequest(handler, "203.0.113.10:40000")

	assert.Equal(t, 2, count)
}
