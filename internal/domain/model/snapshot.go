package model

import "time"

// ProtocolVersion is the truth-substrate protocol implemented by this build.
const ProtocolVersion = "1.1"

// MarkdownVersionLabel is the frontmatter version stamped into every
// generated mirror document.
const MarkdownVersionLabel = "1.1"

// HtmlSnapshot is the latest fetched copy of a page. The canonical extracted
// text is the sole reference for anchor validation; facts bind to it through
// ExtractionTextHash.
type HtmlSnapshot struct {
	ID                  int64     `json:"id"                     db:"id"`
	Domain              string    `json:"domain"                 db:"domain"`
	SourceURL           string    `json:"source_url"             db:"source_url"`
	HTML                string    `json:"-"                      db:"html"`
	CanonicalText       string    `json:"canonical_extracted_text" db:"canonical_extracted_text"`
	ExtractionTextHash  string    `json:"extraction_text_hash"   db:"extraction_text_hash"`
	ExtractionMethod    string    `json:"extraction_method"      db:"extraction_method"`
	FetchedAt           time.Time `json:"fetched_at"             db:"fetched_at"`
}

// MarkdownVersion is one generated mirror document for a (domain, path).
// At most one row per (domain, path) is active; publishing swaps atomically.
type MarkdownVersion struct {
	ID              int64     `json:"id"               db:"id"`
	Domain          string    `json:"domain"           db:"domain"`
	Path            string    `json:"path"             db:"path"`
	Content         string    `json:"-"                db:"content"`
	ContentHash     string    `json:"content_hash"     db:"content_hash"`
	GeneratedAt     time.Time `json:"generated_at"     db:"generated_at"`
	IsActive        bool      `json:"is_active"        db:"is_active"`
	MarkdownVersion string    `json:"markdown_version" db:"markdown_version"`
	ProtocolVersion string    `json:"protocol_version" db:"protocol_version"`
}

// VerifiedDomain tracks domain ownership proof and ingest quality state.
// A domain is verified iff VerifiedAt is non-null.
type VerifiedDomain struct {
	Domain            string     `json:"domain"                      db:"domain"`
	VerificationToken string     `json:"verification_token"          db:"verification_token"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"       db:"verified_at"`
	ProtocolVersion   string     `json:"protocol_version"            db:"protocol_version"`
	LastIngestedAt    *time.Time `json:"last_ingested_at,omitempty"  db:"last_ingested_at"`
	QATier            string     `json:"qa_tier"                     db:"qa_tier"`
	QAPass            bool       `json:"qa_pass"                     db:"qa_pass"`
}

// Verified reports whether ownership proof succeeded.
func (d *VerifiedDomain) Verified() bool {
	return d.VerifiedAt != nil
}

// DiscoveryMethod records how a page's markdown alternate was found.
type DiscoveryMethod string

const (
	DiscoveryMethodHTMLLink DiscoveryMethod = "html_link"
	DiscoveryMethodHTTPLink DiscoveryMethod = "http_link"
	DiscoveryMethodBoth     DiscoveryMethod = "both"
	DiscoveryMethodNone     DiscoveryMethod = "none"
)

// DiscoveredPage records a probe of a page for markdown alternates.
type DiscoveredPage struct {
	ID                 int64           `json:"id"                     db:"id"`
	Domain             string          `json:"domain"                 db:"domain"`
	PageURL            string          `json:"page_url"               db:"page_url"`
	AlternateHref      *string         `json:"alternate_href,omitempty" db:"alternate_href"`
	DiscoveredMirror   *string         `json:"discovered_mirror_url,omitempty" db:"discovered_mirror_url"`
	DiscoveryMethod    DiscoveryMethod `json:"discovery_method"       db:"discovery_method"`
	DiscoveredAt       time.Time       `json:"discovered_at"          db:"discovered_at"`
	IngestionID        *string         `json:"ingestion_id,omitempty" db:"ingestion_id"`
}

// QATier is the coarse quality label derived from anchor coverage and
// protocol version alignment.
type QATier string

const (
	TierBestEffort    QATier = "best_effort"
	TierCitationGrade QATier = "citation_grade"
	TierFullProtocol  QATier = "full_protocol"
)

// ComputeTier applies the tier rules: citation_grade requires at least ten
// text-extraction facts with 95% of them anchored; full_protocol additionally
// requires protocol 1.1 markdown and facts plus a non-empty graph.
func ComputeTier(textFacts, anchoredTextFacts int, markdownVersion, factsVersion string, graphNonEmpty bool) QATier {
	if textFacts < 10 {
		return TierBestEffort
	}
	coverage := float64(anchoredTextFacts) / float64(textFacts)
	if coverage < 0.95 {
		return TierBestEffort
	}
	if markdownVersion == MarkdownVersionLabel && factsVersion == ProtocolVersion && graphNonEmpty {
		return TierFullProtocol
	}
	return TierCitationGrade
}
