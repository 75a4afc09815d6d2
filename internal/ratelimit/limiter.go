// Package ratelimit implements the per-IP request budget: a fixed window of
// tokens per client, replenished when the window rolls over.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/croutons-ai/precog/config"
)

// Limiter tracks request counts per client key within a rolling fixed window.
// The zero value is not usable; construct with NewLimiter.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	requests int
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type bucket struct {
	count       int
	windowStart time.Time
}

// LimiterOptions groups dependencies for the Limiter.
type LimiterOptions struct {
	Config config.RateLimitConfig
	Logger *slog.Logger     // Optional: defaults to slog.Default()
	Now    func() time.Time // Optional: injectable clock for tests
}

// NewLimiter constructs a Limiter.
func NewLimiter(opts LimiterOptions) *Limiter {
	cfg := opts.Config
	cfg.Sanitize()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		buckets:  make(map[string]*bucket),
		requests: cfg.Requests,
		window:   cfg.Window,
		now:      now,
		logger:   logger.With("component", "ratelimit"),
	}
}

// Allow consumes one token for the key. When the budget is exhausted it
// returns false plus the seconds until the window rolls (minimum 1, so a
// Retry-After header is always positive).
func (l *Limiter) Allow(key string) (ok bool, retryAfterSeconds int) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.buckets[key]
	if !exists || now.Sub(b.windowStart) >= l.window {
		l.buckets[key] = &bucket{count: 1, windowStart: now}
		return true, 0
	}

	if b.count < l.requests {
		b.count++
		return true, 0
	}

	retry := b.windowStart.Add(l.window).Sub(now)
	seconds := int(retry.Seconds())
	if retry > time.Duration(seconds)*time.Second {
		seconds++
	}
	if seconds < 1 {
		seconds = 1
	}
	return false, seconds
}

// Sweep removes buckets whose window has expired and returns how many were
// pruned. Expired buckets are semantically full budgets, so dropping them
// never changes an Allow verdict.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	pruned := 0
	for key, b := range l.buckets {
		if now.Sub(b.windowStart) >= l.window {
			delete(l.buckets, key)
			pruned++
		}
	}
	return pruned
}

// Size returns the number of tracked clients.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RunSweeper prunes expired buckets every two windows until the context is
// canceled. It always returns nil so it can run under an errgroup.
func (l *Limiter) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(2 * l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if pruned := l.Sweep(); pruned > 0 {
				l.logger.DebugContext(ctx, "pruned rate-limit buckets", "pruned", pruned, "remaining", l.Size())
			}
		}
	}
}
