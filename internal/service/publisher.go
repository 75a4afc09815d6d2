package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/croutons-ai/precog/internal/core"
	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
)

// PublisherServiceOptions groups dependencies for the PublisherService.
type PublisherServiceOptions struct {
	Facts     core.FactRepository     // Required: crouton reads
	Snapshots core.SnapshotRepository // Required: anchor validation reference
	Markdown  core.MarkdownRepository // Required: mirror reads
	Domains   core.DomainRepository   // Required: verification state
	Logger    *slog.Logger            // Optional: defaults to slog.Default()
}

// PublisherService exposes the read-only truth surface: status/tier reports,
// fact listings, the entity graph, per-URL anchor validation, and the active
// markdown mirror.
type PublisherService struct {
	facts     core.FactRepository
	snapshots core.SnapshotRepository
	markdown  core.MarkdownRepository
	domains   core.DomainRepository
	logger    *slog.Logger
}

// NewPublisherService creates a new PublisherService with the given options.
func NewPublisherService(opts PublisherServiceOptions) (*PublisherService, error) {
	if opts.Facts == nil || opts.Snapshots == nil || opts.Markdown == nil || opts.Domains == nil {
		return nil, errors.New("fact, snapshot, markdown, and domain repositories are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PublisherService{
		facts:     opts.Facts,
		snapshots: opts.Snapshots,
		markdown:  opts.Markdown,
		domains:   opts.Domains,
		logger:    logger.With("component", "publisher_service"),
	}, nil
}

// MustNewPublisherService creates a new PublisherService and panics on error.
func MustNewPublisherService(opts PublisherServiceOptions) *PublisherService {
	svc, err := NewPublisherService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create PublisherService: %v", err))
	}
	return svc
}

// StatusVersions reports the protocol versions of each published surface;
// empty means the surface has not been published.
type StatusVersions struct {
	Markdown string `json:"markdown"`
	Facts    string `json:"facts"`
	Graph    string `json:"graph"`
}

// StatusNonEmpty flags which surfaces carry content.
type StatusNonEmpty struct {
	Markdown bool `json:"markdown"`
	Facts    bool `json:"facts"`
	Graph    bool `json:"graph"`
}

// StatusCounts summarizes the fact corpus for one domain.
type StatusCounts struct {
	FactsTotal          int `json:"facts_total"`
	FactsTextExtraction int `json:"facts_text_extraction"`
	FactsStructuredData int `json:"facts_structured_data"`
	Pages               int `json:"pages"`
	Entities            int `json:"entities"`
}

// StatusQA is the quality section of the status report.
type StatusQA struct {
	AnchorCoverageText float64     `json:"anchor_coverage_text"`
	Tier               model.QATier `json:"tier"`
	Pass               bool        `json:"pass"`
}

// StatusReport is the full per-domain status response.
type StatusReport struct {
	Domain          string         `json:"domain"`
	Verified        bool           `json:"verified"`
	ProtocolVersion string         `json:"protocol_version"`
	LastIngestedAt  *time.Time     `json:"last_ingested_at,omitempty"`
	Versions        StatusVersions `json:"versions"`
	NonEmpty        StatusNonEmpty `json:"nonempty"`
	Counts          StatusCounts   `json:"counts"`
	QA              StatusQA       `json:"qa"`
}

// Status assembles the per-domain report: verification flag, surface versions,
// corpus counts, anchor coverage over text facts, and the derived tier. A
// domain with no verification row reports as unverified rather than missing;
// the fact corpus alone determines the tier.
func (s *PublisherService) Status(ctx context.Context, domain string) (*StatusReport, error) {
	report := &StatusReport{Domain: domain}

	rec, err := s.domains.Get(ctx, domain)
	switch {
	case err == nil:
		report.Verified = rec.Verified()
		report.ProtocolVersion = rec.ProtocolVersion
		report.LastIngestedAt = rec.LastIngestedAt
		report.QA.Pass = rec.QAPass
	case apperrors.IsNotFound(err):
		report.ProtocolVersion = model.ProtocolVersion
	default:
		return nil, fmt.Errorf("load domain record: %w", err)
	}

	counts, err := s.facts.CountsByDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("count facts: %w", err)
	}
	report.Counts = StatusCounts{
		FactsTotal:          counts.FactsTotal,
		FactsTextExtraction: counts.FactsTextExtraction,
		FactsStructuredData: counts.FactsStructuredData,
		Pages:               counts.Pages,
		Entities:            counts.Entities,
	}

	mdVersion, err := s.markdown.ActiveVersionLabel(ctx, domain)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("load active mirror version: %w", err)
	}
	report.Versions.Markdown = mdVersion
	if counts.FactsTotal > 0 {
		report.Versions.Facts = model.ProtocolVersion
	}
	if counts.Entities > 0 {
		report.Versions.Graph = model.ProtocolVersion
	}
	report.NonEmpty = StatusNonEmpty{
		Markdown: mdVersion != "",
		Facts:    counts.FactsTotal > 0,
		Graph:    counts.Entities > 0,
	}

	if counts.FactsTextExtraction > 0 {
		report.QA.AnchorCoverageText = float64(counts.AnchoredTextFacts) / float64(counts.FactsTextExtraction)
	}
	report.QA.Tier = model.ComputeTier(counts.FactsTextExtraction, counts.AnchoredTextFacts,
		mdVersion, report.Versions.Facts, counts.Entities > 0)
	return report, nil
}

// Facts lists a domain's facts, optionally filtered by evidence type and
// source URL. Source-URL filtering tolerates the single-slash sibling.
func (s *PublisherService) Facts(ctx context.Context, domain string, filter core.FactFilter) ([]model.Fact, error) {
	if filter.EvidenceType != "" && !filter.EvidenceType.Valid() {
		return nil, apperrors.ValidationField("evidence_type", fmt.Sprintf("unknown evidence type %q", filter.EvidenceType))
	}
	facts, err := s.facts.ListByDomain(ctx, domain, filter)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	return facts, nil
}

// GraphDocument is the JSON-LD entity graph for a domain.
type GraphDocument struct {
	Context string           `json:"@context"`
	ID      string           `json:"@id"`
	Graph   []map[string]any `json:"@graph"`
}

// Graph renders the domain's facts as a JSON-LD entity graph: one node per
// subject, each predicate holding its object (or object list). Node and
// predicate order is deterministic.
func (s *PublisherService) Graph(ctx context.Context, domain string) (*GraphDocument, error) {
	facts, err := s.facts.ListByDomain(ctx, domain, core.FactFilter{})
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}

	bySubject := make(map[string]map[string][]string)
	var subjects []string
	for _, f := range facts {
		node, ok := bySubject[f.Triple.Subject]
		if !ok {
			node = make(map[string][]string)
			bySubject[f.Triple.Subject] = node
			subjects = append(subjects, f.Triple.Subject)
		}
		node[f.Triple.Predicate] = append(node[f.Triple.Predicate], f.Triple.Object)
	}
	sort.Strings(subjects)

	doc := &GraphDocument{
		Context: "https://schema.org",
		ID:      fmt.Sprintf("https://%s/#graph", domain),
		Graph:   make([]map[string]any, 0, len(subjects)),
	}
	for _, subject := range subjects {
		node := map[string]any{"@id": subject}
		for predicate, objects := range bySubject[subject] {
			if len(objects) == 1 {
				node[predicate] = objects[0]
			} else {
				node[predicate] = objects
			}
		}
		doc.Graph = append(doc.Graph, node)
	}
	return doc, nil
}

// FailedExample describes one fact that failed re-validation.
type FailedExample struct {
	FactID       string `json:"fact_id"`
	Reason       string `json:"reason"`
	ExpectedHash string `json:"expected_hash,omitempty"`
	ActualHash   string `json:"actual_hash,omitempty"`
	CharStart    int    `json:"char_start,omitempty"`
	CharEnd      int    `json:"char_end,omitempty"`
}

// ExtractValidation is the anchor re-validation section of the extract report.
type ExtractValidation struct {
	FactsValidated int             `json:"facts_validated"`
	FactsPassed    int             `json:"facts_passed"`
	PassRate       float64         `json:"pass_rate"`
	CitationGrade  bool            `json:"citation_grade"`
	FailedExamples []FailedExample `json:"failed_examples,omitempty"`
}

// ExtractReport proves (or disproves) that every stored text fact is a
// literal substring of the latest canonical extraction.
type ExtractReport struct {
	Domain             string            `json:"domain"`
	SourceURL          string            `json:"source_url"`
	ExtractionTextHash string            `json:"extraction_text_hash"`
	Validation         ExtractValidation `json:"validation"`
}

// maxFailedExamples caps the failure detail in an extract report.
const maxFailedExamples = 3

// Extract re-reads the latest snapshot for the URL and re-validates every
// text-extraction fact against it: slice the canonical text at the anchor,
// recompute the hash, compare. Citation grade requires a 95% pass rate over
// at least ten passing facts.
func (s *PublisherService) Extract(ctx context.Context, domain, sourceURL string) (*ExtractReport, error) {
	snap, err := s.snapshots.Get(ctx, domain, sourceURL)
	if err != nil {
		return nil, err
	}

	facts, err := s.facts.ListBySource(ctx, domain, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}

	report := &ExtractReport{
		Domain:             domain,
		SourceURL:          sourceURL,
		ExtractionTextHash: snap.ExtractionTextHash,
	}
	v := &report.Validation
	for _, f := range facts {
		if f.EvidenceType != model.EvidenceTypeTextExtraction {
			continue
		}
		v.FactsValidated++

		ok, reason := f.ValidateAnchor(snap.CanonicalText)
		if ok && f.EvidenceAnchor.ExtractionTextHash != snap.ExtractionTextHash {
			// Anchored into a previous extraction: the snapshot has moved on.
			ok, reason = false, "hash_mismatch"
		}
		if ok {
			v.FactsPassed++
			continue
		}
		if len(v.FailedExamples) < maxFailedExamples {
			v.FailedExamples = append(v.FailedExamples, failedExample(&f, snap.CanonicalText, reason))
		}
	}

	if v.FactsValidated > 0 {
		v.PassRate = float64(v.FactsPassed) / float64(v.FactsValidated)
	}
	v.CitationGrade = v.PassRate >= 0.95 && v.FactsPassed >= 10
	return report, nil
}

func failedExample(f *model.Fact, canonicalText, reason string) FailedExample {
	ex := FailedExample{FactID: f.FactID, Reason: reason}
	if f.EvidenceAnchor == nil {
		return ex
	}
	a := f.EvidenceAnchor
	ex.ExpectedHash = a.FragmentHash
	ex.CharStart = a.CharStart
	ex.CharEnd = a.CharEnd
	if a.CharStart >= 0 && a.CharEnd <= len(canonicalText) && a.CharStart < a.CharEnd {
		ex.ActualHash = model.HashHex(canonicalText[a.CharStart:a.CharEnd])
	}
	return ex
}

// Mirror returns the active markdown version for (domain, path).
func (s *PublisherService) Mirror(ctx context.Context, domain, path string) (*model.MarkdownVersion, error) {
	return s.markdown.GetActive(ctx, domain, path)
}
