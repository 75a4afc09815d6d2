package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/croutons-ai/precog/config"
	httpx "github.com/croutons-ai/precog/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Build router services
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	services := httpx.RouterServices{
		Jobs:       cfg.Services.Jobs,
		Publisher:  cfg.Services.Publisher,
		Ingestor:   cfg.Services.Ingestor,
		Discoverer: cfg.Services.Discoverer,
		Verifier:   cfg.Services.Verifier,
		Limiter:    cfg.Services.Limiter,
		Metrics:    cfg.Services.Observability.Prom,
		HTTP:       appCfg.HTTP,
		Stream:     appCfg.Stream,
		Logger:     logger,
	}
	if cfg.DB != nil {
		db := cfg.DB
		services.StorePing = func(ctx context.Context) error {
			return db.PingContext(ctx)
		}
	}
	if cfg.Services.Bus != nil {
		services.BusPing = cfg.Services.Bus.Ping
	}

	// The router applies auth, rate limiting, CORS, logging, and recovery
	// itself, so the handler goes straight onto the server.
	handler := httpx.NewRouter(services)

	// Start server (logs "starting HTTP server" internally)
	server := startServer(logger, handler, appCfg.HTTP.Addr)

	return server
}

func startServer(logger *slog.Logger, handler http.Handler, addr string) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// Event subscriptions stay open up to the stream window, so no
		// fixed write deadline; handlers bound their own lifetime.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server. Open event
// subscriptions are not interrupted by Shutdown, so when the grace window
// expires the server is force-closed.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Server.Shutdown(ctx); err != nil {
		if closeErr := cfg.Server.Close(); closeErr != nil {
			return errors.Join(err, closeErr)
		}
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
