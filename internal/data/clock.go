package data

import "time"

// Clock abstracts time.Now so repository timestamps can be controlled in
// tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the Clock used in production.
type SystemClock struct{}

func (*SystemClock) Now() time.Time { return time.Now() }

// FrozenClock reports a fixed instant until moved, letting tests assert on
// exact timestamps and simulate the passage of time.
type FrozenClock struct {
	instant time.Time
}

// NewFrozenClock pins the clock to t.
func NewFrozenClock(t time.Time) *FrozenClock {
	return &FrozenClock{instant: t}
}

func (f *FrozenClock) Now() time.Time { return f.instant }

// Set moves the clock to t.
func (f *FrozenClock) Set(t time.Time) { f.instant = t }

// Advance moves the clock forward by d.
func (f *FrozenClock) Advance(d time.Duration) { f.instant = f.instant.Add(d) }
