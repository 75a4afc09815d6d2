package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server (API, fan-out, publishers).
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the stream bus consumer.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeSweeper runs the rate-limiter sweeper, the stream
	// reclaimer, and the queue reporter.
	ServiceModeSweeper ServiceMode = "sweeper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeWorker, ServiceModeSweeper}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeWorker, ServiceModeSweeper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, worker, sweeper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// WorkerConfig contains stream worker configuration.
type WorkerConfig struct {
	// Stream is the primary work queue stream key.
	Stream string `env:"WORKER_STREAM" envDefault:"precog:jobs"`

	// DLQStream is the dead-letter stream key.
	DLQStream string `env:"WORKER_DLQ_STREAM" envDefault:"precog:jobs:dlq"`

	// Group is the consumer group name on the primary stream.
	Group string `env:"WORKER_GROUP" envDefault:"precog-workers"`

	// BatchSize is the maximum number of messages to claim per read.
	BatchSize int `env:"WORKER_BATCH_SIZE" envDefault:"10"`

	// BlockTimeout is how long a group read blocks waiting for messages.
	BlockTimeout time.Duration `env:"WORKER_BLOCK_TIMEOUT" envDefault:"10s"`

	// MaxRetries is the in-process retry budget before a job routes to the DLQ.
	MaxRetries int `env:"WORKER_MAX_RETRIES" envDefault:"3"`

	// BaseBackoff is the first retry delay; subsequent delays double.
	BaseBackoff time.Duration `env:"WORKER_BASE_BACKOFF" envDefault:"1s"`

	// DrainTimeout bounds how long in-flight processors get on shutdown.
	DrainTimeout time.Duration `env:"WORKER_DRAIN_TIMEOUT" envDefault:"30s"`

	// ReclaimInterval is how often the sweeper scans for abandoned messages.
	ReclaimInterval time.Duration `env:"WORKER_RECLAIM_INTERVAL" envDefault:"1m"`

	// ReclaimMinIdle is how long a message must sit unacked before the
	// sweeper treats its consumer as dead. Must comfortably exceed the
	// longest legitimate processing time including retries.
	ReclaimMinIdle time.Duration `env:"WORKER_RECLAIM_MIN_IDLE" envDefault:"5m"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.BatchSize < 1 {
		w.BatchSize = 1
	}
	if w.BlockTimeout <= 0 {
		w.BlockTimeout = 10 * time.Second
	}
	if w.MaxRetries < 0 {
		w.MaxRetries = 0
	}
	if w.BaseBackoff <= 0 {
		w.BaseBackoff = time.Second
	}
	if w.DrainTimeout <= 0 {
		w.DrainTimeout = 30 * time.Second
	}
	if w.ReclaimInterval <= 0 {
		w.ReclaimInterval = time.Minute
	}
	if w.ReclaimMinIdle < time.Minute {
		w.ReclaimMinIdle = 5 * time.Minute
	}
}

// SweeperConfig contains sweeper service configuration.
type SweeperConfig struct {
	// Interval is the sweep tick; the rate-limiter prune runs every tick.
	Interval time.Duration `env:"SWEEPER_INTERVAL" envDefault:"2m"`
}

// Sanitize applies guardrails to sweeper configuration values.
func (s *SweeperConfig) Sanitize() {
	if s.Interval < 10*time.Second {
		s.Interval = 10 * time.Second
	}
}

// StreamConfig contains event fan-out configuration shared by the SSE and
// NDJSON endpoints.
type StreamConfig struct {
	// PollInterval is how often the tail loop queries for new events.
	PollInterval time.Duration `env:"STREAM_POLL_INTERVAL" envDefault:"500ms"`

	// BatchLimit caps events fetched per poll.
	BatchLimit int `env:"STREAM_BATCH_LIMIT" envDefault:"1000"`

	// HeartbeatInterval is how often a keep-alive frame is emitted.
	HeartbeatInterval time.Duration `env:"STREAM_HEARTBEAT_INTERVAL" envDefault:"15s"`

	// MaxDuration is the hard ceiling on a single subscription.
	MaxDuration time.Duration `env:"STREAM_MAX_DURATION" envDefault:"5m"`
}

// Sanitize applies guardrails to stream fan-out configuration values.
func (s *StreamConfig) Sanitize() {
	if s.PollInterval <= 0 {
		s.PollInterval = 500 * time.Millisecond
	}
	if s.BatchLimit < 1 {
		s.BatchLimit = 1000
	}
	if s.HeartbeatInterval <= 0 {
		s.HeartbeatInterval = 15 * time.Second
	}
	if s.MaxDuration <= 0 {
		s.MaxDuration = 5 * time.Minute
	}
}
