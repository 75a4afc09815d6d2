// Package metrics exposes the Prometheus surface: job lifecycle counters,
// queue freshness gauges, and the HTTP request counter.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the collectors this process exports.
type Registry struct {
	registry *prometheus.Registry

	Processed     *prometheus.CounterVec
	Failed        *prometheus.CounterVec
	InflightJobs  prometheus.Gauge
	OldestPending prometheus.Gauge
	BusLag        prometheus.Gauge
	HTTPRequests  *prometheus.CounterVec
}

// NewRegistry builds a fresh registry with all precog collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		Processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "precog_processed_total",
			Help: "Jobs processed to a done status, by precog tag.",
		}, []string{"precog"}),
		Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "precog_failed_total",
			Help: "Jobs routed to the dead-letter stream, by precog tag.",
		}, []string{"precog"}),
		InflightJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "precog_inflight_jobs",
			Help: "Jobs currently in running status.",
		}),
		OldestPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "precog_oldest_pending_age_seconds",
			Help: "Age of the oldest pending job.",
		}),
		BusLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "precog_bus_lag_seconds",
			Help: "Seconds since the last event append.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "precog_http_requests_total",
			Help: "HTTP requests served, by method, route, and status.",
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(r.Processed, r.Failed, r.InflightJobs, r.OldestPending, r.BusLag, r.HTTPRequests)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRequest counts one served HTTP request.
func (r *Registry) ObserveRequest(method, route string, status int) {
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// QueueStats is the slice of job-registry state the poller mirrors into gauges.
type QueueStats struct {
	Running                 int
	OldestPendingAgeSeconds float64
	BusLagSeconds           float64
}

// StatsSource supplies queue freshness numbers for the gauge poller.
type StatsSource interface {
	QueueStats(ctx context.Context) (*QueueStats, error)
}

// RunPoller refreshes the queue gauges from the source every interval until
// the context is canceled. It always returns nil so it can run under an
// errgroup.
func (r *Registry) RunPoller(ctx context.Context, source StatsSource, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := source.QueueStats(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "refresh queue gauges", "error", err)
				continue
			}
			r.InflightJobs.Set(float64(stats.Running))
			r.OldestPending.Set(stats.OldestPendingAgeSeconds)
			r.BusLag.Set(stats.BusLagSeconds)
		}
	}
}
