package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/croutons-ai/precog/config"
	"github.com/croutons-ai/precog/internal/bus"
	"github.com/croutons-ai/precog/internal/domain/model"
	"github.com/croutons-ai/precog/internal/observability/metrics"
	"github.com/croutons-ai/precog/internal/observability/notify"
	"github.com/croutons-ai/precog/internal/observability/statsd"
	"github.com/croutons-ai/precog/internal/precog"
	"github.com/croutons-ai/precog/internal/ratelimit"
	"github.com/croutons-ai/precog/internal/service"
	"github.com/croutons-ai/precog/internal/worker"
)

// WorkerRuntimeConfig contains configuration for the stream worker.
type WorkerRuntimeConfig struct {
	Bus      *bus.Bus
	Jobs     *service.JobService
	Registry *precog.Registry
	Config   config.WorkerConfig
	Logger   *slog.Logger
	Metrics  statsd.Sink
	Prom     *metrics.Registry
	Notifier notify.Sink
}

// RunWorker starts the stream worker service.
func RunWorker(ctx context.Context, cfg WorkerRuntimeConfig) error {
	runner, err := worker.NewRunner(worker.RunnerOptions{
		Stream:   cfg.Bus,
		Jobs:     cfg.Jobs,
		Registry: cfg.Registry,
		Config:   cfg.Config,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
		Prom:     cfg.Prom,
		Notifier: cfg.Notifier,
	})
	if err != nil {
		return fmt.Errorf("create worker runner: %w", err)
	}

	return runner.Run(ctx)
}

// SweeperRuntimeConfig contains configuration for the sweeper.
type SweeperRuntimeConfig struct {
	Limiter  *ratelimit.Limiter
	Jobs     *service.JobService
	Bus      *bus.Bus
	Worker   config.WorkerConfig
	Prom     *metrics.Registry
	Metrics  statsd.Sink
	Notifier notify.Sink
	Interval time.Duration
	Logger   *slog.Logger
}

// RunSweeper starts the rate-limiter sweeper, the abandoned-message
// reclaimer, and the queue reporter.
func RunSweeper(ctx context.Context, cfg SweeperRuntimeConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sweeper")

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Limiter != nil {
		g.Go(func() error {
			return cfg.Limiter.RunSweeper(gctx)
		})
	}

	if cfg.Bus != nil && cfg.Jobs != nil {
		reclaimer, err := worker.NewReclaimer(worker.ReclaimerOptions{
			Stream:   cfg.Bus,
			Jobs:     cfg.Jobs,
			Config:   cfg.Worker,
			Logger:   logger,
			Metrics:  cfg.Metrics,
			Prom:     cfg.Prom,
			Notifier: cfg.Notifier,
		})
		if err != nil {
			return fmt.Errorf("create reclaimer: %w", err)
		}
		g.Go(func() error {
			return reclaimer.Run(gctx)
		})
	}

	if cfg.Prom != nil && cfg.Jobs != nil {
		source := &queueStatsSource{jobs: cfg.Jobs}
		g.Go(func() error {
			return cfg.Prom.RunPoller(gctx, source, cfg.Interval, logger)
		})
	}

	if cfg.Bus != nil {
		g.Go(func() error {
			return runQueueReporter(gctx, cfg.Bus, cfg.Interval, logger)
		})
	}

	return g.Wait()
}

// runQueueReporter periodically logs stream depth so operators can spot
// stuck consumers without scraping metrics. Dead letters are surfaced at
// warn level.
func runQueueReporter(ctx context.Context, streamBus *bus.Bus, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			info, err := streamBus.PendingInfo(ctx)
			if err != nil {
				logger.WarnContext(ctx, "queue report failed", "error", err)
				continue
			}
			attrs := []any{
				"stream_length", info.StreamLength,
				"dlq_length", info.DLQLength,
				"pending_count", info.PendingCount,
			}
			if info.DLQLength > 0 {
				logger.WarnContext(ctx, "dead letters waiting", attrs...)
			} else {
				logger.InfoContext(ctx, "queue report", attrs...)
			}
		}
	}
}

// statsJobs is the slice of the job service the queue poller needs.
type statsJobs interface {
	Stats(ctx context.Context) (*model.JobStats, error)
	LastEventAge(ctx context.Context) (float64, error)
}

// queueStatsSource feeds the Prometheus poller from the job registry.
type queueStatsSource struct {
	jobs statsJobs
}

func (s *queueStatsSource) QueueStats(ctx context.Context) (*metrics.QueueStats, error) {
	stats, err := s.jobs.Stats(ctx)
	if err != nil {
		return nil, err
	}

	lag, err := s.jobs.LastEventAge(ctx)
	if err != nil {
		return nil, err
	}

	return &metrics.QueueStats{
		Running:                 stats.Running,
		OldestPendingAgeSeconds: stats.OldestPendingAgeSeconds,
		BusLagSeconds:           lag,
	}, nil
}
