package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/croutons-ai/precog/config"
	"github.com/croutons-ai/precog/internal/core"
	"github.com/croutons-ai/precog/internal/ratelimit"
)

func TestBearerAuthRejectsMissingToken(t *testing.T) {
	router, _ := newTestRouter(t, func(s *RouterServices) {
		s.HTTP.BearerToken = "sekrit"
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/invoke", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "auth")
}

func TestBearerAuthAcceptsHeader(t *testing.T) {
	router, _ := newTestRouter(t, func(s *RouterServices) {
		s.HTTP.BearerToken = "sekrit"
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/invoke", strings.NewReader(`{"precog":"nope"}`))
	req.Header.Set("Authorization", "Bearer sekrit")
	router.ServeHTTP(rec, req)

	// Past the gate: the request fails on its own merits, not on auth.
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBearerAuthAcceptsQueryToken(t *testing.T) {
	// EventSource clients cannot set headers, so ?token= must work too.
	router, deps := newTestRouter(t, func(s *RouterServices) {
		s.HTTP.BearerToken = "sekrit"
	})
	deps.facts.EXPECT().ListByDomain(gomock.Any(), "nrlc.ai", core.FactFilter{}).Return(nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/facts/nrlc.ai?token=sekrit", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerAuthRejectsWrongToken(t *testing.T) {
	router, _ := newTestRouter(t, func(s *RouterServices) {
		s.HTTP.BearerToken = "sekrit"
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/facts/nrlc.ai?token=guess", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerAuthSkipsHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t, func(s *RouterServices) {
		s.HTTP.BearerToken = "sekrit"
	})

	for _, path := range []string{"/health", "/health/redis"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRateLimitReturns429WithRetryAfter(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.LimiterOptions{
		Config: config.RateLimitConfig{Requests: 1, Window: time.Minute},
	})
	router, _ := newTestRouter(t, func(s *RouterServices) {
		s.Limiter = limiter
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest("POST", "/v1/invoke", strings.NewReader(`{"precog":"nope"}`)))
	require.Equal(t, http.StatusBadRequest, first.Code, "budget not yet exhausted")

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest("POST", "/v1/invoke", strings.NewReader(`{"precog":"nope"}`)))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "retry_after_seconds")
}

func TestRateLimitSkipsHealth(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.LimiterOptions{
		Config: config.RateLimitConfig{Requests: 1, Window: time.Minute},
	})
	router, _ := newTestRouter(t, func(s *RouterServices) {
		s.Limiter = limiter
	})

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitKeysOnForwardedFor(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.LimiterOptions{
		Config: config.RateLimitConfig{Requests: 1, Window: time.Minute},
	})
	router, _ := newTestRouter(t, func(s *RouterServices) {
		s.Limiter = limiter
	})

	for i, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/v1/invoke", strings.NewReader(`{"precog":"nope"}`))
		req.Header.Set("X-Forwarded-For", ip)
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "client %d has its own budget", i)
	}
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/v1/invoke", nil)
	req.Header.Set("Origin", "https://example.com")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestCORSExactOriginMatch(t *testing.T) {
	router, _ := newTestRouter(t, func(s *RouterServices) {
		s.HTTP.CORSOrigins = []string{"https://app.croutons.ai"}
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://app.croutons.ai")
	router.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.croutons.ai", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.7:4321"
	assert.Equal(t, "192.0.2.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
