// Package notify fans dead-letter alerts out to operator-facing webhooks.
// Delivery is best effort: a failing sink is logged and never blocks the
// worker's failure path.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DeadLetterAlert is the payload delivered when a job exhausts its retries
// and lands on the dead-letter stream.
type DeadLetterAlert struct {
	JobID      string
	Precog     string
	Task       string
	Error      string
	ErrorClass string
	Retries    int
	FailedAt   time.Time
}

// Sink is a destination for dead-letter alerts.
type Sink interface {
	SendDeadLetter(ctx context.Context, alert DeadLetterAlert) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, alert DeadLetterAlert) error

// SendDeadLetter implements Sink.
func (f SinkFunc) SendDeadLetter(ctx context.Context, alert DeadLetterAlert) error {
	if f == nil {
		return nil
	}
	return f(ctx, alert)
}

// Registration pairs a sink with the name used in delivery logs.
type Registration struct {
	Name string
	Sink Sink
}

// FanoutOptions configures a Fanout.
type FanoutOptions struct {
	Logger *slog.Logger
	Sinks  []Registration
}

// Fanout delivers each alert to every registered sink concurrently.
type Fanout struct {
	logger *slog.Logger
	sinks  []Registration
}

var _ Sink = (*Fanout)(nil)

// NewFanout constructs a Fanout, dropping nil sinks.
func NewFanout(opts FanoutOptions) *Fanout {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sinks []Registration
	for _, reg := range opts.Sinks {
		if reg.Sink == nil {
			continue
		}
		if reg.Name == "" {
			reg.Name = "sink"
		}
		sinks = append(sinks, reg)
	}

	return &Fanout{
		logger: logger.With("component", "notify"),
		sinks:  sinks,
	}
}

// Enabled reports whether any sink is registered.
func (f *Fanout) Enabled() bool {
	return f != nil && len(f.sinks) > 0
}

// SendDeadLetter fans the alert out to every sink and waits for delivery.
// Per-sink failures are logged, not returned, so a webhook outage cannot
// derail the caller's failure handling.
func (f *Fanout) SendDeadLetter(ctx context.Context, alert DeadLetterAlert) error {
	if !f.Enabled() {
		return nil
	}

	var wg sync.WaitGroup
	for _, reg := range f.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := reg.Sink.SendDeadLetter(ctx, alert); err != nil {
				f.logger.ErrorContext(ctx, "dead-letter alert delivery failed",
					"sink", reg.Name,
					"job_id", alert.JobID,
					"precog", alert.Precog,
					"error", err)
			}
		}()
	}
	wg.Wait()
	return nil
}
