package config

import (
	"strings"
	"time"
)

// IngestConfig contains ingestion pipeline and QA gate configuration.
type IngestConfig struct {
	// UserAgent identifies the fetcher to origin servers.
	UserAgent string `env:"INGEST_USER_AGENT" envDefault:"croutons-precog/1.1 (+https://croutons.ai)"`

	// FetchTimeout bounds a single source fetch.
	FetchTimeout time.Duration `env:"INGEST_FETCH_TIMEOUT" envDefault:"30s"`

	// MaxBodyBytes caps the fetched HTML body size.
	MaxBodyBytes int64 `env:"INGEST_MAX_BODY_BYTES" envDefault:"10485760"`

	// GroundedRateThreshold is the minimum grounded-fact rate the QA gate accepts.
	GroundedRateThreshold float64 `env:"INGEST_GROUNDED_RATE_THRESHOLD" envDefault:"0.6"`

	// AtomicityThreshold is the minimum atomic-fact rate the QA gate accepts.
	AtomicityThreshold float64 `env:"INGEST_ATOMICITY_THRESHOLD" envDefault:"0.7"`

	// SchemaCoverageThreshold is the minimum KB schema coverage; relaxed to 0
	// for verified domains.
	SchemaCoverageThreshold float64 `env:"INGEST_SCHEMA_COVERAGE_THRESHOLD" envDefault:"0.5"`

	// AnchorCoverageThreshold is the minimum anchored share of text facts.
	AnchorCoverageThreshold float64 `env:"INGEST_ANCHOR_COVERAGE_THRESHOLD" envDefault:"0.95"`

	// HopDensityThreshold is the minimum entity-graph edges per unit.
	HopDensityThreshold float64 `env:"INGEST_HOP_DENSITY_THRESHOLD" envDefault:"0.1"`
}

// Sanitize applies guardrails to ingestion configuration values.
func (c *IngestConfig) Sanitize() {
	c.UserAgent = strings.TrimSpace(c.UserAgent)
	if c.UserAgent == "" {
		c.UserAgent = "croutons-precog/1.1"
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.MaxBodyBytes < 1 {
		c.MaxBodyBytes = 10 << 20
	}
	clamp01 := func(v *float64) {
		if *v < 0 {
			*v = 0
		}
		if *v > 1 {
			*v = 1
		}
	}
	clamp01(&c.GroundedRateThreshold)
	clamp01(&c.AtomicityThreshold)
	clamp01(&c.SchemaCoverageThreshold)
	clamp01(&c.AnchorCoverageThreshold)
	if c.HopDensityThreshold < 0 {
		c.HopDensityThreshold = 0
	}
}
