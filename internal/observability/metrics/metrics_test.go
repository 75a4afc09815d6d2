package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCounters(t *testing.T) {
	r := NewRegistry()

	r.Processed.WithLabelValues("schema.site").Inc()
	r.Processed.WithLabelValues("schema.site").Inc()
	r.Failed.WithLabelValues("echo").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Processed.WithLabelValues("schema.site")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Failed.WithLabelValues("echo")))
}

func TestObserveRequest(t *testing.T) {
	r := NewRegistry()

	r.ObserveRequest("POST", "/v1/invoke", 202)
	r.ObserveRequest("POST", "/v1/invoke", 202)
	r.ObserveRequest("GET", "/v1/status/{domain}", 404)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.HTTPRequests.WithLabelValues("POST", "/v1/invoke", "202")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.HTTPRequests.WithLabelValues("GET", "/v1/status/{domain}", "404")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	r := NewRegistry()
	r.Processed.WithLabelValues("echo").Inc()
	r.InflightJobs.Set(3)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, `precog_processed_total{precog="echo"} 1`)
	assert.Contains(t, text, "precog_inflight_jobs 3")
	assert.Contains(t, text, "go_goroutines")
}

type fakeStatsSource struct {
	stats QueueStats
	seen  chan struct{}
}

func (f *fakeStatsSource) QueueStats(context.Context) (*QueueStats, error) {
	select {
	case f.seen <- struct{}{}:
	default:
	}
	s := f.stats
	return &s, nil
}

func TestRunPollerSetsGauges(t *testing.T) {
	r := NewRegistry()
	source := &fakeStatsSource{
		stats: QueueStats{Running: 4, OldestPendingAgeSeconds: 12.5, BusLagSeconds: 0.25},
		seen:  make(chan struct{}, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.RunPoller(ctx, source, time.Millisecond, nil) }()

	select {
	case <-source.seen:
	case <-time.After(time.Second):
		t.Fatal("poller never queried the stats source")
	}
	// One more tick so the gauges from the observed poll are surely set.
	select {
	case <-source.seen:
	case <-time.After(time.Second):
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 4.0, testutil.ToFloat64(r.InflightJobs))
	assert.Equal(t, 12.5, testutil.ToFloat64(r.OldestPending))
	assert.Equal(t, 0.25, testutil.ToFloat64(r.BusLag))
}

func TestHandlerOmitsUntouchedLabels(t *testing.T) {
	r := NewRegistry()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.False(t, strings.Contains(rec.Body.String(), "precog_http_requests_total{"))
}
