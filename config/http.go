package config

import (
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://api.croutons.ai").
	// Used for generating absolute mirror URLs in Link headers.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// BearerToken is the single shared credential gating write endpoints.
	// Empty disables auth entirely.
	BearerToken string `env:"BEARER_TOKEN" envDefault:""`

	// CORSOrigins is a comma-delimited list of allowed origins.
	// "*" allows any origin.
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*"`

	// ShutdownTimeout bounds graceful HTTP server shutdown.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// RateLimit configures the per-IP token bucket.
	RateLimit RateLimitConfig
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.BearerToken = strings.TrimSpace(h.BearerToken)
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 15 * time.Second
	}
	h.RateLimit.Sanitize()
}

// AuthEnabled returns true when a shared bearer credential is configured.
func (h *HTTPConfig) AuthEnabled() bool {
	return h.BearerToken != ""
}

// RateLimitConfig contains the per-IP token bucket parameters.
type RateLimitConfig struct {
	// Requests is the number of requests allowed per window.
	Requests int `env:"RATE_LIMIT_REQUESTS" envDefault:"60"`

	// Window is the replenishment window.
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
}

// Sanitize applies guardrails to rate limit configuration values.
func (r *RateLimitConfig) Sanitize() {
	if r.Requests < 1 {
		r.Requests = 60
	}
	if r.Window <= 0 {
		r.Window = 60 * time.Second
	}
}
