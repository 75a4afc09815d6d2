package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/croutons-ai/precog/config"
)

func newTestLimiter(requests int, window time.Duration) (*Limiter, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(LimiterOptions{
		Config: config.RateLimitConfig{Requests: requests, Window: window},
		Now:    func() time.Time { return now },
	})
	return l, &now
}

func TestLimiterBurstOfSixtyOne(t *testing.T) {
	l, _ := newTestLimiter(60, time.Minute)

	rejected := 0
	for i := 0; i < 61; i++ {
		ok, retryAfter := l.Allow("10.0.0.1")
		if !ok {
			rejected++
			assert.Equal(t, 60, retryAfter)
		}
	}
	assert.Equal(t, 1, rejected)
}

func TestLimiterReplenishesOnWindowRoll(t *testing.T) {
	l, now := newTestLimiter(2, time.Minute)

	ok, _ := l.Allow("ip")
	assert.True(t, ok)
	ok, _ = l.Allow("ip")
	assert.True(t, ok)
	ok, retryAfter := l.Allow("ip")
	assert.False(t, ok)
	assert.Equal(t, 60, retryAfter)

	*now = now.Add(time.Minute)
	ok, _ = l.Allow("ip")
	assert.True(t, ok, "a rolled window replenishes the budget")
}

func TestLimiterRetryAfterShrinksWithinWindow(t *testing.T) {
	l, now := newTestLimiter(1, time.Minute)

	ok, _ := l.Allow("ip")
	assert.True(t, ok)

	*now = now.Add(45 * time.Second)
	ok, retryAfter := l.Allow("ip")
	assert.False(t, ok)
	assert.Equal(t, 15, retryAfter)

	*now = now.Add(14*time.Second + 500*time.Millisecond)
	ok, retryAfter = l.Allow("ip")
	assert.False(t, ok)
	assert.Equal(t, 1, retryAfter, "retry-after rounds up, never zero")
}

func TestLimiterIsolatesClients(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("b")
	assert.True(t, ok, "one client's exhaustion must not affect another")
	ok, _ = l.Allow("a")
	assert.False(t, ok)
}

func TestLimiterSweepPrunesExpired(t *testing.T) {
	l, now := newTestLimiter(10, time.Minute)

	l.Allow("stale")
	*now = now.Add(30 * time.Second)
	l.Allow("fresh")
	assert.Equal(t, 2, l.Size())

	*now = now.Add(31 * time.Second)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Size())

	// The fresh bucket keeps its count across the sweep.
	for i := 0; i < 9; i++ {
		ok, _ := l.Allow("fresh")
		assert.True(t, ok)
	}
	ok, _ := l.Allow("fresh")
	assert.False(t, ok)
}
