package worker

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/croutons-ai/precog/config"
	"github.com/croutons-ai/precog/internal/bus"
	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
	"github.com/croutons-ai/precog/internal/observability/metrics"
	"github.com/croutons-ai/precog/internal/observability/notify"
	"github.com/croutons-ai/precog/internal/observability/statsd"
)

// ReclaimStream is the reclaimer's view of the job bus.
type ReclaimStream interface {
	EnsureGroup(ctx context.Context) error
	Reclaim(ctx context.Context, consumer string, minIdle time.Duration, start string, count int64) ([]bus.Message, string, error)
	Ack(ctx context.Context, id string) error
	WriteDLQ(ctx context.Context, dl model.DeadLetter) (string, error)
}

// ReclaimerOptions configures the abandoned-message reclaimer.
type ReclaimerOptions struct {
	Stream   ReclaimStream       // Required: job bus
	Jobs     Jobs                // Required: job registry
	Config   config.WorkerConfig // Reclaim interval and idle threshold
	Logger   *slog.Logger        // Optional: structured logger
	Metrics  statsd.Sink         // Optional: reclaim counters
	Prom     *metrics.Registry   // Optional: Prometheus lifecycle counters
	Notifier notify.Sink         // Optional: dead-letter alert fan-out
	Consumer string              // Optional: override the derived consumer name
}

// Reclaimer periodically claims messages whose consumer stopped acking and
// fails them over to the dead-letter stream. A worker that crashes mid-job
// leaves its message pending forever otherwise; the reclaimer turns that
// silence into a terminal error an operator can see and requeue.
type Reclaimer struct {
	stream   ReclaimStream
	jobs     Jobs
	cfg      config.WorkerConfig
	logger   *slog.Logger
	metrics  statsd.Sink
	prom     *metrics.Registry
	notifier notify.Sink
	consumer string
}

// NewReclaimer constructs a Reclaimer.
func NewReclaimer(opts ReclaimerOptions) (*Reclaimer, error) {
	if opts.Stream == nil {
		return nil, errors.New("Stream is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("Jobs is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	consumer := opts.Consumer
	if consumer == "" {
		consumer = bus.ConsumerName()
	}

	return &Reclaimer{
		stream:   opts.Stream,
		jobs:     opts.Jobs,
		cfg:      cfg,
		logger:   logger.With("component", "reclaimer"),
		metrics:  opts.Metrics,
		prom:     opts.Prom,
		notifier: opts.Notifier,
		consumer: consumer,
	}, nil
}

// Run sweeps at the configured interval until ctx is cancelled. Returns nil
// on graceful shutdown.
func (r *Reclaimer) Run(ctx context.Context) error {
	if err := r.stream.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("ensure group: %w", err)
	}

	r.logger.InfoContext(ctx, "reclaimer started",
		"consumer", r.consumer,
		"interval", r.cfg.ReclaimInterval,
		"min_idle", r.cfg.ReclaimMinIdle)

	r.waitWithJitter(ctx)

	ticker := time.NewTicker(r.cfg.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reclaimer stopped")
			return nil
		case <-ticker.C:
			n, err := r.sweep(ctx)
			if err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "reclaim sweep failed", "error", err)
			}
			if n > 0 {
				r.logger.WarnContext(ctx, "failed over abandoned messages",
					"count", n, "min_idle", r.cfg.ReclaimMinIdle)
			}
		}
	}
}

// waitWithJitter staggers the first sweep by up to 10% of the interval so
// multiple instances do not scan in lockstep.
func (r *Reclaimer) waitWithJitter(ctx context.Context) {
	maxJitter := int64(r.cfg.ReclaimInterval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)))
	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// sweep walks the whole pending entries list once, failing over every message
// idle past the threshold. Claiming resets an entry's idle time, so
// concurrent sweepers cannot double-fail the same message.
func (r *Reclaimer) sweep(ctx context.Context) (int, error) {
	total := 0
	start := "0-0"
	for {
		msgs, next, err := r.stream.Reclaim(ctx, r.consumer, r.cfg.ReclaimMinIdle, start, int64(r.cfg.BatchSize))
		if err != nil {
			return total, err
		}
		for _, msg := range msgs {
			if r.failover(ctx, msg) {
				total++
			}
		}
		if next == "0-0" || next == start {
			return total, nil
		}
		start = next
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

// failover settles one reclaimed message: the job is marked error and
// dead-lettered, then the entry is acked. A job that reached a terminal
// status on its own (worker died between finishing and acking) is just
// acked. Reports whether the message was dead-lettered.
func (r *Reclaimer) failover(ctx context.Context, msg bus.Message) bool {
	job := msg.Job
	log := r.logger.With("job_id", job.JobID, "precog", job.Precog, "entry_id", msg.ID)
	reason := fmt.Sprintf("worker lost: message unacked for over %s", r.cfg.ReclaimMinIdle)
	failedAt := time.Now().UTC()

	if _, err := r.jobs.UpdateStatus(ctx, job.JobID, model.JobStatusError, reason); err != nil {
		if apperrors.IsNotFound(err) || apperrors.IsConflict(err) {
			log.WarnContext(ctx, "reclaimed message for settled job; acking", "error", err)
			r.ack(ctx, msg.ID)
			return false
		}
		log.ErrorContext(ctx, "mark error failed; leaving message pending", "error", err)
		return false
	}

	if _, err := r.jobs.AppendEvent(ctx, job.JobID, model.EventTypeError, map[string]any{
		"message": reason,
	}); err != nil {
		log.ErrorContext(ctx, "append error event failed", "error", err)
	}

	if _, err := r.stream.WriteDLQ(ctx, model.DeadLetter{
		JobID:    job.JobID,
		Precog:   job.Precog,
		Task:     job.Task,
		Context:  job.Context,
		Error:    reason,
		Retries:  0,
		FailedAt: failedAt,
	}); err != nil {
		log.ErrorContext(ctx, "dead letter write failed; leaving message pending", "error", err)
		return false
	}
	r.ack(ctx, msg.ID)
	log.ErrorContext(ctx, "job failed over after worker loss")

	if r.metrics != nil {
		r.metrics.Count("worker.jobs.reclaimed", 1, map[string]string{"precog": job.Precog})
	}
	if r.prom != nil {
		r.prom.Failed.WithLabelValues(job.Precog).Inc()
	}
	if r.notifier != nil {
		if err := r.notifier.SendDeadLetter(ctx, notify.DeadLetterAlert{
			JobID:      job.JobID,
			Precog:     job.Precog,
			Task:       job.Task,
			Error:      reason,
			ErrorClass: "worker_lost",
			Retries:    0,
			FailedAt:   failedAt,
		}); err != nil {
			log.ErrorContext(ctx, "dead-letter alert failed", "error", err)
		}
	}
	return true
}

func (r *Reclaimer) ack(ctx context.Context, id string) {
	if err := r.stream.Ack(ctx, id); err != nil {
		r.logger.ErrorContext(ctx, "ack failed", "entry_id", id, "error", err)
	}
}
