package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/croutons-ai/precog/config"
	"github.com/croutons-ai/precog/internal/bus"
	"github.com/croutons-ai/precog/internal/data"
	"github.com/croutons-ai/precog/internal/discover"
	"github.com/croutons-ai/precog/internal/ingest"
	"github.com/croutons-ai/precog/internal/observability/metrics"
	"github.com/croutons-ai/precog/internal/observability/notify"
	"github.com/croutons-ai/precog/internal/observability/notify/pagerduty"
	"github.com/croutons-ai/precog/internal/observability/notify/slack"
	"github.com/croutons-ai/precog/internal/observability/statsd"
	"github.com/croutons-ai/precog/internal/precog"
	"github.com/croutons-ai/precog/internal/ratelimit"
	"github.com/croutons-ai/precog/internal/service"
	"github.com/croutons-ai/precog/internal/verify"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs          *service.JobService
	Publisher     *service.PublisherService
	Ingestor      *ingest.Ingestor
	Discoverer    *discover.Discoverer
	Verifier      *verify.Verifier
	Limiter       *ratelimit.Limiter
	Bus           *bus.Bus
	Registry      *precog.Registry
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	Prom          *metrics.Registry
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
	Notifier      *notify.Fanout
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB           *sql.DB
	Redis        redis.UniversalClient
	JobRepo      *data.JobRepo
	FactRepo     *data.FactRepo
	SnapshotRepo *data.SnapshotRepo
	MarkdownRepo *data.MarkdownRepo
	DomainRepo   *data.DomainRepo
	PageRepo     *data.PageRepo
}

// buildObservability configures the metrics surfaces and the alert fan-out.
// The Prometheus registry is always built; the StatsD sink and webhook sinks
// only dial out when enabled.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "precog",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		Prom:          metrics.NewRegistry(),
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
		Notifier:      buildAlertFanout(obsLogger, cfg.Notifications),
	}
}

// buildAlertFanout assembles the dead-letter notifier from whichever webhook
// sinks are configured. A sink that fails to construct is logged and skipped
// so one bad credential cannot take down the rest of the fan-out.
func buildAlertFanout(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *notify.Fanout {
	var sinks []notify.Registration

	if cfg.Slack.Enabled {
		sink, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise slack sink", "error", err)
		} else {
			sinks = append(sinks, notify.Registration{Name: "slack", Sink: sink})
		}
	}

	if cfg.PagerDuty.Enabled {
		sink, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise pagerduty sink", "error", err)
		} else {
			sinks = append(sinks, notify.Registration{Name: "pagerduty", Sink: sink})
		}
	}

	return notify.NewFanout(notify.FanoutOptions{Logger: logger, Sinks: sinks})
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redisClient redis.UniversalClient, logger *slog.Logger) *serviceRepositories {
	cfg := data.RepoConfig{Logger: logger}
	return &serviceRepositories{
		DB:           db,
		Redis:        redisClient,
		JobRepo:      data.NewJobRepo(db, cfg),
		FactRepo:     data.NewFactRepo(db, cfg),
		SnapshotRepo: data.NewSnapshotRepo(db, cfg),
		MarkdownRepo: data.NewMarkdownRepo(db, cfg),
		DomainRepo:   data.NewDomainRepo(db, cfg),
		PageRepo:     data.NewPageRepo(db, cfg),
	}
}

func newStreamBus(redisClient redis.UniversalClient, cfg config.WorkerConfig, logger *slog.Logger) (*bus.Bus, error) {
	return bus.NewBus(bus.Options{
		Client:    redisClient,
		Stream:    cfg.Stream,
		DLQStream: cfg.DLQStream,
		Group:     cfg.Group,
		Logger:    logger,
	})
}

// newPrecogRegistry binds the built-in processors. schema runs the full
// ingest pipeline; echo is the diagnostic round-trip; home.* demonstrates
// namespace dispatch for the external home verticals.
func newPrecogRegistry(ing *ingest.Ingestor) *precog.Registry {
	registry := precog.NewRegistry()
	registry.MustRegister(precog.Registration{
		Tag:         "schema",
		DefaultTask: "ingest",
		Processor:   ingest.NewSchemaProcessor(ing),
	})
	registry.MustRegister(precog.Registration{
		Tag:         "echo",
		DefaultTask: "echo",
		Processor:   precog.NewEchoProcessor(),
	})
	registry.MustRegister(precog.Registration{
		Tag:         "home.*",
		DefaultTask: "assess",
		Processor:   precog.NewHomeProcessor(),
	})
	return registry
}

func newIngestor(repos *serviceRepositories, obs ObservabilityContainer, cfg config.IngestConfig, logger *slog.Logger) *ingest.Ingestor {
	fetchClient := &http.Client{Timeout: cfg.FetchTimeout}
	return ingest.MustNewIngestor(ingest.IngestorOptions{
		DB:        repos.DB,
		Fetcher:   ingest.NewFetcher(fetchClient, cfg.UserAgent, cfg.MaxBodyBytes),
		Snapshots: repos.SnapshotRepo,
		Facts:     repos.FactRepo,
		Markdown:  repos.MarkdownRepo,
		Domains:   repos.DomainRepo,
		Config:    cfg,
		Logger:    logger,
		Metrics:   obs.MetricsSink,
	})
}

func newJobService(repos *serviceRepositories, queue *bus.Bus, catalog *precog.Registry, logger *slog.Logger) *service.JobService {
	return service.MustNewJobService(service.JobServiceOptions{
		Repo:    repos.JobRepo,
		Queue:   queue,
		Catalog: catalog,
		Logger:  logger,
	})
}

func newPublisherService(repos *serviceRepositories, logger *slog.Logger) *service.PublisherService {
	return service.MustNewPublisherService(service.PublisherServiceOptions{
		Facts:     repos.FactRepo,
		Snapshots: repos.SnapshotRepo,
		Markdown:  repos.MarkdownRepo,
		Domains:   repos.DomainRepo,
		Logger:    logger,
	})
}

func newVerifier(repos *serviceRepositories, probeClient *http.Client, logger *slog.Logger) *verify.Verifier {
	return verify.MustNewVerifier(verify.VerifierOptions{
		Domains:  repos.DomainRepo,
		Resolver: net.DefaultResolver,
		Client:   probeClient,
		Logger:   logger,
	})
}

func newDiscoverer(repos *serviceRepositories, ing *ingest.Ingestor, probeClient *http.Client, logger *slog.Logger) *discover.Discoverer {
	return discover.MustNewDiscoverer(discover.DiscovererOptions{
		Domains:  repos.DomainRepo,
		Pages:    repos.PageRepo,
		Ingestor: ing,
		Client:   probeClient,
		Logger:   logger,
	})
}

// NewServices wires repositories, the stream bus, the processor registry, and
// the domain services.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service deps are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := deps.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	observability := buildObservability(logger, appCfg.Observability)
	repos := buildRepositories(deps.DB, deps.RedisClient, logger)

	streamBus, err := newStreamBus(deps.RedisClient, appCfg.Worker, logger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build stream bus: %w", err)
	}

	ingestor := newIngestor(repos, observability, appCfg.Ingest, logger)
	registry := newPrecogRegistry(ingestor)

	// The probe client serves short verification and discovery fetches; the
	// ingest fetcher has its own client with the body-size cap.
	probeClient := &http.Client{Timeout: appCfg.Ingest.FetchTimeout}

	return ServiceContainer{
		Jobs:       newJobService(repos, streamBus, registry, logger),
		Publisher:  newPublisherService(repos, logger),
		Ingestor:   ingestor,
		Discoverer: newDiscoverer(repos, ingestor, probeClient, logger),
		Verifier:   newVerifier(repos, probeClient, logger),
		Limiter: ratelimit.NewLimiter(ratelimit.LimiterOptions{
			Config: appCfg.HTTP.RateLimit,
			Logger: logger,
		}),
		Bus:           streamBus,
		Registry:      registry,
		Observability: observability,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		DB:       deps.cfg.DB,
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				if deps.logger != nil {
					deps.logger.WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
				} else {
					slog.Default().WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
				}
			}
		}
	}()

	if deps.logger != nil {
		deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	} else {
		slog.Default().InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	}

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newWorkerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeWorker,
		name: "stream worker",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			workerCfg := config.WorkerConfig{}
			if deps.cfg.Config != nil {
				workerCfg = deps.cfg.Config.Worker
			}
			return RunWorker(ctx, WorkerRuntimeConfig{
				Bus:      deps.cfg.Services.Bus,
				Jobs:     deps.cfg.Services.Jobs,
				Registry: deps.cfg.Services.Registry,
				Config:   workerCfg,
				Logger:   deps.logger,
				Metrics:  deps.cfg.Services.Observability.MetricsSink,
				Prom:     deps.cfg.Services.Observability.Prom,
				Notifier: deps.cfg.Services.Observability.Notifier,
			})
		},
	}
}

func newSweeperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeSweeper,
		name: "sweeper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			sweeperCfg := config.SweeperConfig{}
			workerCfg := config.WorkerConfig{}
			if deps.cfg.Config != nil {
				sweeperCfg = deps.cfg.Config.Sweeper
				workerCfg = deps.cfg.Config.Worker
			}
			return RunSweeper(ctx, SweeperRuntimeConfig{
				Limiter:  deps.cfg.Services.Limiter,
				Jobs:     deps.cfg.Services.Jobs,
				Bus:      deps.cfg.Services.Bus,
				Worker:   workerCfg,
				Prom:     deps.cfg.Services.Observability.Prom,
				Metrics:  deps.cfg.Services.Observability.MetricsSink,
				Notifier: deps.cfg.Services.Observability.Notifier,
				Interval: sweeperCfg.Interval,
				Logger:   deps.logger,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newWorkerBackgroundService(deps),
		newSweeperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	ctx := context.Background()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:             serviceCtx,
		cancel:          cancel,
		errCh:           errCh,
		httpServer:      result.HTTPServer,
		shutdownTimeout: cfg.Config.HTTP.ShutdownTimeout,
		metricsSink:     cfg.Services.Observability.MetricsSink,
		logger:          logger,
		backgrounds:     result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	modes := []config.ServiceMode{
		config.ServiceModeHTTP,
		config.ServiceModeWorker,
		config.ServiceModeSweeper,
	}

	count := 0
	for _, mode := range modes {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx             context.Context
	cancel          context.CancelFunc
	errCh           <-chan error
	httpServer      *http.Server
	shutdownTimeout time.Duration
	metricsSink     *statsd.Client
	logger          *slog.Logger
	backgrounds     []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	// Gracefully stop HTTP server if running
	if cfg.httpServer != nil {
		timeout := cfg.shutdownTimeout
		if timeout <= 0 {
			timeout = shutdownWaitTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	// Release the StatsD socket last so drain counters still emit.
	if cfg.metricsSink != nil {
		if err := cfg.metricsSink.Close(); err != nil {
			cfg.logger.Warn("close statsd sink failed", "error", err)
		}
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
