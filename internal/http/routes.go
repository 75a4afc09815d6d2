// Package httpx serves the precog oracle HTTP surface: job submission and
// event fan-out, the ingestion and verification write side, and the
// published truth surface (facts, graph, extract, status, mirror).
package httpx

import (
	"log/slog"
	"net/http"

	"github.com/croutons-ai/precog/config"
	"github.com/croutons-ai/precog/internal/discover"
	"github.com/croutons-ai/precog/internal/ingest"
	"github.com/croutons-ai/precog/internal/observability/metrics"
	"github.com/croutons-ai/precog/internal/ratelimit"
	"github.com/croutons-ai/precog/internal/service"
	"github.com/croutons-ai/precog/internal/verify"
)

// RouterServices holds everything the HTTP router serves.
type RouterServices struct {
	Jobs       *service.JobService       // Required: submission + fan-out
	Publisher  *service.PublisherService // Required: truth surface reads
	Ingestor   *ingest.Ingestor          // Required: direct ingest
	Discoverer *discover.Discoverer      // Required: mirror discovery
	Verifier   *verify.Verifier          // Required: ownership proof
	Limiter    *ratelimit.Limiter        // Optional: per-IP throttling
	Metrics    *metrics.Registry         // Optional: /metrics + request counter
	HTTP       config.HTTPConfig
	Stream     config.StreamConfig
	StorePing  Pinger       // Optional: /health store probe
	BusPing    Pinger       // Optional: /health/redis probe
	Logger     *slog.Logger // Optional: request logging
}

// NewRouter wires the full route table and middleware chain. Auth and rate
// limiting guard everything under /v1; /metrics and /health* stay open so
// probes and scrapes survive an outage or a misbehaving client.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	jobs := &JobHandlers{Svc: services.Jobs, Stream: services.Stream}
	writes := &IngestHandlers{
		Ingestor:   services.Ingestor,
		Discoverer: services.Discoverer,
		Verifier:   services.Verifier,
	}
	reads := &PublishHandlers{Svc: services.Publisher, BaseURL: services.HTTP.BaseURL}
	health := &HealthHandlers{Store: services.StorePing, Bus: services.BusPing}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/invoke", jobs.Invoke)
	mux.HandleFunc("GET /v1/jobs/{id}/events", jobs.Events)
	mux.HandleFunc("GET /v1/run.ndjson", jobs.Run)
	mux.HandleFunc("POST /v1/run.ndjson", jobs.Run)

	mux.HandleFunc("POST /v1/ingest", writes.Ingest)
	mux.HandleFunc("POST /v1/discover", writes.Discover)
	mux.HandleFunc("POST /v1/verify/initiate", writes.VerifyInitiate)
	mux.HandleFunc("POST /v1/verify/check", writes.VerifyCheck)

	mux.HandleFunc("GET /v1/facts/{domain}", reads.Facts)
	mux.HandleFunc("GET /v1/graph/{domain}", reads.Graph)
	mux.HandleFunc("GET /v1/extract/{domain}", reads.Extract)
	mux.HandleFunc("GET /v1/status/{domain}", reads.Status)
	mux.HandleFunc("GET /v1/mirror/{domain}", reads.Mirror)
	mux.HandleFunc("GET /v1/mirror/{domain}/{path...}", reads.Mirror)

	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /health/redis", health.Redis)
	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = BearerAuth(services.HTTP.BearerToken)(handler)
	handler = RateLimit(services.Limiter)(handler)
	handler = CORS(services.HTTP.CORSOrigins)(handler)
	handler = Logging(logger, services.Metrics)(handler)
	handler = Recover(logger)(handler)
	return handler
}
