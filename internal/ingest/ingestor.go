package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/croutons-ai/precog/config"
	"github.com/croutons-ai/precog/internal/core"
	"github.com/croutons-ai/precog/internal/data/pgxutil"
	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
	"github.com/croutons-ai/precog/internal/observability/statsd"
)

// EmitFunc forwards an intermediate event to a job's event log. A nil emit
// runs the pipeline silently (direct API ingest).
type EmitFunc func(ctx context.Context, eventType string, data any) error

// PageFetcher retrieves one source page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// TxRunner executes fn inside one transaction. Injectable for tests.
type TxRunner func(ctx context.Context, fn func(q core.DBTX) error) error

// IngestorOptions groups dependencies for the Ingestor.
type IngestorOptions struct {
	DB        *sql.DB                 // Required unless RunTx is injected
	Fetcher   PageFetcher             // Required: page fetcher
	Snapshots core.SnapshotRepository // Required: html snapshot storage
	Facts     core.FactRepository     // Required: crouton storage
	Markdown  core.MarkdownRepository // Required: mirror storage
	Domains   core.DomainRepository   // Required: verified-domain records
	Config    config.IngestConfig
	Logger    *slog.Logger
	Metrics   statsd.Sink
	RunTx     TxRunner // Optional: overrides the DB-backed transaction runner
}

// Ingestor runs the citation-grade pipeline end to end. Facts and the mirror
// commit in one transaction only after the QA gate passes; a failed gate
// persists nothing but the snapshot.
type Ingestor struct {
	fetcher   PageFetcher
	snapshots core.SnapshotRepository
	facts     core.FactRepository
	markdown  core.MarkdownRepository
	domains   core.DomainRepository
	cfg       config.IngestConfig
	logger    *slog.Logger
	metrics   statsd.Sink
	runTx     TxRunner
}

// Result summarizes one successful ingest.
type Result struct {
	DocID           string      `json:"doc_id"`
	Domain          string      `json:"domain"`
	SourceURL       string      `json:"source_url"`
	Path            string      `json:"path"`
	ContentHash     string      `json:"content_hash"`
	Tier            model.QATier `json:"tier"`
	FactsTotal      int         `json:"facts_total"`
	FactsText       int         `json:"facts_text_extraction"`
	FactsStructured int         `json:"facts_structured_data"`
	AnchorCoverage  float64     `json:"anchor_coverage"`
	Gate            *GateReport `json:"qa"`
}

// NewIngestor constructs an Ingestor.
func NewIngestor(opts IngestorOptions) (*Ingestor, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("PageFetcher is required")
	}
	if opts.Snapshots == nil || opts.Facts == nil || opts.Markdown == nil || opts.Domains == nil {
		return nil, errors.New("snapshot, fact, markdown, and domain repositories are required")
	}
	runTx := opts.RunTx
	if runTx == nil {
		if opts.DB == nil {
			return nil, errors.New("DB is required when no TxRunner is injected")
		}
		db := opts.DB
		runTx = func(ctx context.Context, fn func(q core.DBTX) error) error {
			return pgxutil.WithSQLTx(ctx, db, pgxutil.SQLTxConfig{
				Fn: func(tx *sql.Tx) error { return fn(tx) },
			})
		}
	}

	cfg := opts.Config
	cfg.Sanitize()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Ingestor{
		fetcher:   opts.Fetcher,
		snapshots: opts.Snapshots,
		facts:     opts.Facts,
		markdown:  opts.Markdown,
		domains:   opts.Domains,
		cfg:       cfg,
		logger:    logger.With("component", "ingestor"),
		metrics:   opts.Metrics,
		runTx:     runTx,
	}, nil
}

// MustNewIngestor constructs an Ingestor and panics on error.
func MustNewIngestor(opts IngestorOptions) *Ingestor {
	ing, err := NewIngestor(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create Ingestor: %v", err))
	}
	return ing
}

// Ingest runs the full pipeline for one (domain, url). The vertical selects
// the KB expectations; empty falls back to the default set.
func (ing *Ingestor) Ingest(ctx context.Context, domain, sourceURL, vertical string, emit EmitFunc) (*Result, error) {
	if err := validateIngestInput(domain, sourceURL); err != nil {
		return nil, err
	}

	ing.emit(ctx, emit, model.EventTypeThinking, map[string]any{
		"text": "fetching " + sourceURL,
	})
	htmlSrc, err := ing.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	ext, err := ExtractCanonical(htmlSrc)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "canonicalize %s", sourceURL)
	}

	// The snapshot persists regardless of the gate verdict: it is the
	// reference all later anchor validation runs against.
	snap := &model.HtmlSnapshot{
		Domain:             domain,
		SourceURL:          sourceURL,
		HTML:               htmlSrc,
		CanonicalText:      ext.Canonical,
		ExtractionTextHash: ext.Hash,
		ExtractionMethod:   ext.Method,
	}
	if err := ing.snapshots.Upsert(ctx, snap); err != nil {
		return nil, err
	}

	for _, section := range ext.Sections {
		ing.emit(ctx, emit, model.EventTypeGroundingChunk, map[string]any{
			"heading":    section.Heading,
			"char_start": section.CharStart,
			"char_end":   section.CharEnd,
			"preview":    preview(section.Text, 160),
		})
	}

	items, err := HarvestStructured(htmlSrc)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "harvest structured data of %s", sourceURL)
	}
	structFacts := StructuredFacts(items, domain, sourceURL)
	textFacts := AtomizeText(ext, domain, sourceURL)

	verified, err := ing.domains.IsVerified(ctx, domain)
	if err != nil {
		return nil, err
	}

	gate, err := EvaluateGate(ing.cfg, GateInput{
		TextFacts:       textFacts,
		StructuredFacts: structFacts,
		Items:           items,
		Extraction:      ext,
		Vertical:        vertical,
		DomainVerified:  verified,
	})
	if err != nil {
		return nil, err
	}

	if !gate.Pass {
		ing.count("ingest.gate_failed", domain)
		ing.logger.WarnContext(ctx, "quality gate refused ingest",
			"domain", domain, "source_url", sourceURL, "errors", gate.Errors)
		if txErr := ing.runTx(ctx, func(q core.DBTX) error {
			return ing.domains.TouchIngestedInTx(ctx, q, domain, model.TierBestEffort, false)
		}); txErr != nil {
			ing.logger.ErrorContext(ctx, "record gate failure", "domain", domain, "error", txErr)
		}
		return nil, apperrors.QAGate(gate.Errors, gate.FixSuggestions)
	}

	path := DerivePath(sourceURL)
	content := GenerateMarkdown(domain, sourceURL, textFacts, structFacts)
	version := &model.MarkdownVersion{Domain: domain, Path: path, Content: content}
	tier := model.ComputeTier(len(textFacts), anchoredCount(textFacts),
		model.MarkdownVersionLabel, model.ProtocolVersion, len(structFacts) > 0)

	err = ing.runTx(ctx, func(q core.DBTX) error {
		for i := range textFacts {
			if upErr := ing.facts.UpsertInTx(ctx, q, &textFacts[i]); upErr != nil {
				return upErr
			}
		}
		for i := range structFacts {
			if upErr := ing.facts.UpsertInTx(ctx, q, &structFacts[i]); upErr != nil {
				return upErr
			}
		}
		if pubErr := ing.markdown.PublishInTx(ctx, q, version); pubErr != nil {
			return pubErr
		}
		return ing.domains.TouchIngestedInTx(ctx, q, domain, tier, true)
	})
	if err != nil {
		return nil, err
	}

	ing.count("ingest.succeeded", domain)
	res := &Result{
		DocID:           version.ContentHash,
		Domain:          domain,
		SourceURL:       sourceURL,
		Path:            path,
		ContentHash:     version.ContentHash,
		Tier:            tier,
		FactsTotal:      len(textFacts) + len(structFacts),
		FactsText:       len(textFacts),
		FactsStructured: len(structFacts),
		AnchorCoverage:  gate.AnchorCoverage,
		Gate:            gate,
	}
	ing.logger.InfoContext(ctx, "ingest complete",
		"domain", domain, "source_url", sourceURL, "path", path,
		"facts_text", res.FactsText, "facts_structured", res.FactsStructured, "tier", tier)
	return res, nil
}

func (ing *Ingestor) emit(ctx context.Context, emit EmitFunc, eventType string, data any) {
	if emit == nil {
		return
	}
	if err := emit(ctx, eventType, data); err != nil {
		ing.logger.ErrorContext(ctx, "emit event failed", "event_type", eventType, "error", err)
	}
}

func (ing *Ingestor) count(name, domain string) {
	if ing.metrics == nil {
		return
	}
	ing.metrics.Count(name, 1, map[string]string{"domain": domain})
}

func validateIngestInput(domain, sourceURL string) error {
	if strings.TrimSpace(domain) == "" {
		return apperrors.ValidationField("domain", "domain is required")
	}
	parsed, err := url.Parse(sourceURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return apperrors.ValidationField("url", "url must be absolute")
	}
	return nil
}

func anchoredCount(textFacts []model.Fact) int {
	n := 0
	for _, f := range textFacts {
		if !f.AnchorMissing && f.EvidenceAnchor != nil {
			n++
		}
	}
	return n
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
