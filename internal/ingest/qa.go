package ingest

import (
	"fmt"
	"strings"

	"github.com/croutons-ai/precog/config"
	"github.com/croutons-ai/precog/internal/domain/model"
)

// GateReport is the QA gate's verdict over one ingest: the computed rates,
// the threshold failures, and actionable fix suggestions.
type GateReport struct {
	GroundedRate      float64  `json:"grounded_rate"`
	AtomicityRate     float64  `json:"atomicity_rate"`
	SchemaCoverage    float64  `json:"schema_coverage"`
	HopDensity        float64  `json:"hop_density"`
	AnchorCoverage    float64  `json:"anchor_coverage"`
	MissingProperties []string `json:"missing_properties,omitempty"`
	Pass              bool     `json:"pass"`
	Errors            []string `json:"errors,omitempty"`
	FixSuggestions    []string `json:"fix_suggestions,omitempty"`
}

// GateInput carries everything the gate inspects.
type GateInput struct {
	TextFacts       []model.Fact
	StructuredFacts []model.Fact
	Items           []StructuredItem
	Extraction      *Extraction
	Vertical        string
	DomainVerified  bool
}

// EvaluateGate computes the quality rates for an ingest and compares them to
// the configured thresholds. Verified domains relax the schema-coverage
// threshold to zero: ownership proof substitutes for markup completeness.
func EvaluateGate(cfg config.IngestConfig, in GateInput) (*GateReport, error) {
	r := &GateReport{}

	total := len(in.TextFacts) + len(in.StructuredFacts)
	anchored := 0
	atomic := 0
	for _, f := range in.TextFacts {
		if ok, _ := f.ValidateAnchor(in.Extraction.Canonical); ok && !f.AnchorMissing {
			anchored++
		}
		if isAtomic(f.Text) {
			atomic++
		}
	}
	grounded := anchored
	for _, f := range in.StructuredFacts {
		if f.SourcePath != nil {
			grounded++
		}
	}

	if total > 0 {
		r.GroundedRate = float64(grounded) / float64(total)
	}
	if len(in.TextFacts) > 0 {
		r.AtomicityRate = float64(atomic) / float64(len(in.TextFacts))
		r.AnchorCoverage = float64(anchored) / float64(len(in.TextFacts))
	}

	coverage, missing, err := SchemaCoverage(in.Items, in.Vertical)
	if err != nil {
		return nil, err
	}
	r.SchemaCoverage = coverage
	r.MissingProperties = missing

	// Edges per content unit: every triple is one edge, every section one unit.
	if n := len(in.Extraction.Sections); n > 0 {
		r.HopDensity = float64(total) / float64(n)
	}

	schemaThreshold := cfg.SchemaCoverageThreshold
	if in.DomainVerified {
		schemaThreshold = 0
	}

	check := func(name string, got, want float64, suggestion string) {
		if got >= want {
			return
		}
		r.Errors = append(r.Errors, fmt.Sprintf("%s %.2f below threshold %.2f", name, got, want))
		r.FixSuggestions = append(r.FixSuggestions, suggestion)
	}

	if len(in.TextFacts) == 0 {
		r.Errors = append(r.Errors, "no text facts extracted")
		r.FixSuggestions = append(r.FixSuggestions,
			"add declarative body copy: full sentences of 40-240 characters stating what the business does")
	}
	check("grounded_fact_rate", r.GroundedRate, cfg.GroundedRateThreshold,
		"ensure extracted statements appear verbatim in the page body so they can be anchored")
	check("atomicity_rate", r.AtomicityRate, cfg.AtomicityThreshold,
		"split compound statements into single-claim sentences")
	check("schema_coverage", r.SchemaCoverage, schemaThreshold,
		schemaSuggestion(missing))
	check("hop_density", r.HopDensity, cfg.HopDensityThreshold,
		"add structured data linking the page's entities (organization, offers, locations)")
	check("anchor_coverage", r.AnchorCoverage, cfg.AnchorCoverageThreshold,
		"remove dynamic or templated text that shifts between fetches")

	r.Pass = len(r.Errors) == 0
	return r, nil
}

func schemaSuggestion(missing []string) string {
	if len(missing) == 0 {
		return "add JSON-LD markup covering the expected schema.org properties"
	}
	return "add JSON-LD markup for the missing properties: " + strings.Join(missing, ", ")
}

// isAtomic reports whether a fact text is a single bounded claim.
func isAtomic(text string) bool {
	if len(text) > maxSentenceLen {
		return false
	}
	// An embedded sentence boundary means two claims were fused.
	for _, sep := range []string{". ", "! ", "? "} {
		if strings.Contains(text, sep) {
			return false
		}
	}
	return true
}
