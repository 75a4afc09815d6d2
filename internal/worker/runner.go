// Package worker consumes the job stream and drives precog processors,
// appending their events to the durable log and routing exhausted jobs to
// the dead-letter stream.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/croutons-ai/precog/config"
	"github.com/croutons-ai/precog/internal/bus"
	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
	"github.com/croutons-ai/precog/internal/observability/metrics"
	"github.com/croutons-ai/precog/internal/observability/notify"
	"github.com/croutons-ai/precog/internal/observability/statsd"
	"github.com/croutons-ai/precog/internal/precog"
)

// Stream is the runner's view of the job bus.
type Stream interface {
	EnsureGroup(ctx context.Context) error
	ReadGroup(ctx context.Context, consumer string, count int64, block time.Duration) ([]bus.Message, error)
	Ack(ctx context.Context, id string) error
	WriteDLQ(ctx context.Context, dl model.DeadLetter) (string, error)
}

// Jobs is the runner's view of the job registry.
type Jobs interface {
	UpdateStatus(ctx context.Context, id string, status model.JobStatus, errMsg string) (*model.Job, error)
	AppendEvent(ctx context.Context, jobID, eventType string, data any) (*model.Event, error)
}

// SleepFunc blocks for d or until the context is done. Returns false when the
// context won. Injectable so retry backoff is testable without real waits.
type SleepFunc func(ctx context.Context, d time.Duration) bool

// RunnerOptions configures the worker runner.
type RunnerOptions struct {
	Stream   Stream               // Required: job bus
	Jobs     Jobs                 // Required: job registry
	Registry *precog.Registry     // Required: precog processor catalog
	Config   config.WorkerConfig  // Batch/retry/drain settings
	Logger   *slog.Logger         // Optional: structured logger
	Metrics  statsd.Sink          // Optional: worker counters and timings
	Prom     *metrics.Registry    // Optional: Prometheus lifecycle counters
	Notifier notify.Sink          // Optional: dead-letter alert fan-out
	Consumer string               // Optional: override the derived consumer name
	Sleep    SleepFunc            // Optional: override backoff sleeps in tests
}

// Runner claims stream messages and executes their processors, retrying
// in-process with exponential backoff before dead-lettering.
type Runner struct {
	stream   Stream
	jobs     Jobs
	registry *precog.Registry
	cfg      config.WorkerConfig
	logger   *slog.Logger
	metrics  statsd.Sink
	prom     *metrics.Registry
	notifier notify.Sink
	consumer string
	sleep    SleepFunc
}

// NewRunner constructs a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Stream == nil {
		return nil, errors.New("Stream is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("Jobs is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("Registry is required")
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
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	return &Runner{
		stream:   opts.Stream,
		jobs:     opts.Jobs,
		registry: opts.Registry,
		cfg:      cfg,
		logger:   logger.With("component", "worker"),
		metrics:  opts.Metrics,
		prom:     opts.Prom,
		notifier: opts.Notifier,
		consumer: consumer,
		sleep:    sleep,
	}, nil
}

// MustNewRunner constructs a Runner and panics on error.
func MustNewRunner(opts RunnerOptions) *Runner {
	r, err := NewRunner(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create worker Runner: %v", err))
	}
	return r
}

// Run consumes the stream until ctx is cancelled. In-flight jobs get a drain
// window after cancellation; messages still unfinished when it elapses are
// left unacked so redelivery can claim them.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.stream.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	r.logger.InfoContext(ctx, "worker started",
		"consumer", r.consumer,
		"batch_size", r.cfg.BatchSize,
		"max_retries", r.cfg.MaxRetries,
		"drain_timeout", r.cfg.DrainTimeout)

	workCtx, workCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer workCancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		timer := time.NewTimer(r.cfg.DrainTimeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			r.logger.Warn("drain timeout elapsed; abandoning in-flight jobs", "consumer", r.consumer)
			workCancel()
		case <-done:
		}
	}()

	for ctx.Err() == nil {
		msgs, err := r.stream.ReadGroup(ctx, r.consumer, int64(r.cfg.BatchSize), r.cfg.BlockTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			r.logger.ErrorContext(ctx, "stream read failed", "error", err)
			if !r.sleep(ctx, time.Second) {
				break
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}
		r.runBatch(workCtx, msgs)
	}

	r.logger.Info("worker stopped", "consumer", r.consumer)
	return ctx.Err()
}

// runBatch processes one claimed batch concurrently and waits for it. The
// claim count stays bounded by the batch size.
func (r *Runner) runBatch(ctx context.Context, msgs []bus.Message) {
	g := new(errgroup.Group)
	g.SetLimit(r.cfg.BatchSize)
	for _, msg := range msgs {
		g.Go(func() error {
			r.processMessage(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Runner) processMessage(ctx context.Context, msg bus.Message) {
	start := time.Now()
	job := msg.Job
	log := r.logger.With("job_id", job.JobID, "precog", job.Precog, "entry_id", msg.ID)

	if _, err := r.jobs.UpdateStatus(ctx, job.JobID, model.JobStatusRunning, ""); err != nil {
		if apperrors.IsNotFound(err) || apperrors.IsConflict(err) {
			// Deleted, cancelled, or already terminal. Nothing to run.
			log.WarnContext(ctx, "job not eligible to run; dropping", "error", err)
			r.ack(ctx, msg.ID)
			return
		}
		log.ErrorContext(ctx, "mark running failed; leaving message pending", "error", err)
		return
	}

	reg, ok := r.registry.Resolve(job.Precog)
	if !ok {
		r.finishFailure(ctx, msg, 0, fmt.Errorf("no processor registered for precog %q", job.Precog))
		return
	}

	var answered bool
	emit := func(ctx context.Context, eventType string, data any) error {
		_, err := r.jobs.AppendEvent(ctx, job.JobID, eventType, data)
		if err == nil && eventType == model.EventTypeAnswerComplete {
			answered = true
		}
		return err
	}
	pj := precog.Job{ID: job.JobID, Precog: job.Precog, Task: job.Task, Context: job.Context}

	var procErr error
	retries := 0
	for attempt := 0; ; attempt++ {
		procErr = reg.Processor.Process(ctx, pj, emit)
		if procErr == nil || attempt >= r.cfg.MaxRetries {
			retries = attempt
			break
		}
		backoff := r.cfg.BaseBackoff << attempt
		log.WarnContext(ctx, "processing failed; retrying",
			"attempt", attempt+1, "backoff", backoff, "error", procErr)
		if !r.sleep(ctx, backoff) {
			// Drain cutoff mid-retry. Leave the message pending for redelivery.
			return
		}
	}

	if procErr != nil {
		if r.metrics != nil {
			r.metrics.Count("worker.jobs.failed", 1, map[string]string{
				"precog":      job.Precog,
				"error_class": apperrors.Classify(procErr),
			})
		}
		if r.prom != nil {
			r.prom.Failed.WithLabelValues(job.Precog).Inc()
		}
		r.finishFailure(ctx, msg, retries, procErr)
		return
	}

	// Every successful job's log ends with answer.complete exactly once.
	// Processors emit their own with the answer payload; this is the
	// fallback for ones that return nil without it.
	if !answered {
		if _, err := r.jobs.AppendEvent(ctx, job.JobID, model.EventTypeAnswerComplete, map[string]any{
			"job_id": job.JobID,
		}); err != nil {
			log.ErrorContext(ctx, "append answer.complete failed", "error", err)
		}
	}
	if _, err := r.jobs.UpdateStatus(ctx, job.JobID, model.JobStatusDone, ""); err != nil {
		log.ErrorContext(ctx, "mark done failed", "error", err)
	}
	r.ack(ctx, msg.ID)
	r.count("jobs.processed", job.Precog)
	if r.prom != nil {
		r.prom.Processed.WithLabelValues(job.Precog).Inc()
	}
	if r.metrics != nil {
		r.metrics.Timing("worker.job_duration", time.Since(start), map[string]string{"precog": job.Precog})
	}
	log.InfoContext(ctx, "job done", "duration", time.Since(start), "retries", retries)
}

// finishFailure records the terminal error, dead-letters the payload, acks
// the original entry so it cannot be redelivered, and alerts operators.
func (r *Runner) finishFailure(ctx context.Context, msg bus.Message, retries int, procErr error) {
	job := msg.Job
	log := r.logger.With("job_id", job.JobID, "precog", job.Precog, "entry_id", msg.ID)
	failedAt := time.Now().UTC()

	if _, err := r.jobs.AppendEvent(ctx, job.JobID, model.EventTypeError, map[string]any{
		"message": procErr.Error(),
		"retries": retries,
	}); err != nil {
		log.ErrorContext(ctx, "append error event failed", "error", err)
	}
	if _, err := r.jobs.UpdateStatus(ctx, job.JobID, model.JobStatusError, procErr.Error()); err != nil {
		log.ErrorContext(ctx, "mark error failed", "error", err)
	}
	if _, err := r.stream.WriteDLQ(ctx, model.DeadLetter{
		JobID:    job.JobID,
		Precog:   job.Precog,
		Task:     job.Task,
		Context:  job.Context,
		Error:    procErr.Error(),
		Retries:  retries,
		FailedAt: failedAt,
	}); err != nil {
		log.ErrorContext(ctx, "dead letter write failed", "error", err)
	}
	r.ack(ctx, msg.ID)
	log.ErrorContext(ctx, "job exhausted retries", "retries", retries, "error", procErr)

	if r.notifier != nil {
		if err := r.notifier.SendDeadLetter(ctx, notify.DeadLetterAlert{
			JobID:      job.JobID,
			Precog:     job.Precog,
			Task:       job.Task,
			Error:      procErr.Error(),
			ErrorClass: apperrors.Classify(procErr),
			Retries:    retries,
			FailedAt:   failedAt,
		}); err != nil {
			log.ErrorContext(ctx, "dead-letter alert failed", "error", err)
		}
	}
}

func (r *Runner) ack(ctx context.Context, id string) {
	if err := r.stream.Ack(ctx, id); err != nil {
		r.logger.ErrorContext(ctx, "ack failed", "entry_id", id, "error", err)
	}
}

func (r *Runner) count(name, precogTag string) {
	if r.metrics == nil {
		return
	}
	r.metrics.Count("worker."+name, 1, map[string]string{"precog": precogTag})
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
