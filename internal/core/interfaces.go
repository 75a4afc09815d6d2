// Package core defines the port interfaces between the service layer and the
// data and transport adapters. Services depend on these contracts, not on
// concrete implementations.
package core

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/croutons-ai/precog/internal/domain/model"
)

// DBTX abstracts *sql.DB and *sql.Tx so repository writes can participate in
// a caller-controlled transaction.
type DBTX interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// JobRepository defines the interface for job and event log operations.
// The job registry is the exclusive writer of jobs and events.
type JobRepository interface {
	Insert(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	UpdateStatus(ctx context.Context, id string, status model.JobStatus, errMsg string) (*model.Job, error)
	AppendEvent(ctx context.Context, jobID, eventType string, data json.RawMessage) (*model.Event, error)
	EventsSince(ctx context.Context, jobID string, lastID int64, max int) ([]model.Event, error)
	Stats(ctx context.Context) (*model.JobStats, error)
	LastEventAge(ctx context.Context) (float64, error)
}

// JobQueue defines the dispatcher's view of the stream bus.
type JobQueue interface {
	Enqueue(ctx context.Context, job model.QueuedJob) (string, error)
}

// FactFilter narrows fact listings.
type FactFilter struct {
	// EvidenceType filters by evidence kind when non-empty.
	EvidenceType model.EvidenceType
	// SourceURL filters by source URL when non-empty; the single-slash
	// sibling of the URL matches too.
	SourceURL string
}

// DomainCounts summarizes the fact corpus for the status report.
type DomainCounts struct {
	FactsTotal          int
	FactsTextExtraction int
	FactsStructuredData int
	AnchoredTextFacts   int
	Pages               int
	Entities            int
}

// FactRepository defines the interface for crouton reads and writes.
type FactRepository interface {
	UpsertInTx(ctx context.Context, q DBTX, f *model.Fact) error
	ListByDomain(ctx context.Context, domain string, filter FactFilter) ([]model.Fact, error)
	ListBySource(ctx context.Context, domain, sourceURL string) ([]model.Fact, error)
	CountsByDomain(ctx context.Context, domain string) (*DomainCounts, error)
}

// SnapshotRepository defines the interface for HTML snapshot storage.
type SnapshotRepository interface {
	Upsert(ctx context.Context, snap *model.HtmlSnapshot) error
	Get(ctx context.Context, domain, sourceURL string) (*model.HtmlSnapshot, error)
}

// MarkdownRepository defines the interface for mirror version storage.
type MarkdownRepository interface {
	PublishInTx(ctx context.Context, q DBTX, v *model.MarkdownVersion) error
	GetActive(ctx context.Context, domain, path string) (*model.MarkdownVersion, error)
	ActiveVersionLabel(ctx context.Context, domain string) (string, error)
	CountVersions(ctx context.Context, domain, path string) (int, error)
}

// DomainRepository defines the interface for verified-domain records.
type DomainRepository interface {
	UpsertToken(ctx context.Context, domain, token string) (*model.VerifiedDomain, error)
	Get(ctx context.Context, domain string) (*model.VerifiedDomain, error)
	IsVerified(ctx context.Context, domain string) (bool, error)
	MarkVerified(ctx context.Context, domain string) (*model.VerifiedDomain, error)
	TouchIngestedInTx(ctx context.Context, q DBTX, domain string, tier model.QATier, pass bool) error
}

// PageRepository defines the interface for discovered-page records.
type PageRepository interface {
	Upsert(ctx context.Context, page *model.DiscoveredPage) error
	Get(ctx context.Context, domain, pageURL string) (*model.DiscoveredPage, error)
}
