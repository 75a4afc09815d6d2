package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
)

// SnapshotRepo provides database operations for HTML snapshots.
type SnapshotRepo struct {
	DB     *sql.DB
	clock  Clock
	logger *slog.Logger
}

// NewSnapshotRepo creates a new SnapshotRepo instance.
func NewSnapshotRepo(db *sql.DB, cfg RepoConfig) *SnapshotRepo {
	return &SnapshotRepo{
		DB:     db,
		clock:  cfg.clock(),
		logger: cfg.Logger,
	}
}

const snapshotColumns = `
  id,
  domain,
  source_url,
  html,
  canonical_extracted_text,
  extraction_text_hash,
  extraction_method,
  fetched_at
`

// Upsert stores the latest snapshot for (domain, source_url), replacing any
// prior row. The stored canonical text is the sole anchor-validation reference.
func (r *SnapshotRepo) Upsert(ctx context.Context, snap *model.HtmlSnapshot) error {
	if snap == nil {
		return errors.New("snapshot is required")
	}
	if snap.Domain == "" || snap.SourceURL == "" {
		return apperrors.Validation("snapshot requires domain and source_url")
	}

	snap.FetchedAt = r.clock.Now().UTC()

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO html_snapshots (
			domain, source_url, html, canonical_extracted_text,
			extraction_text_hash, extraction_method, fetched_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (domain, source_url) DO UPDATE SET
			html = EXCLUDED.html,
			canonical_extracted_text = EXCLUDED.canonical_extracted_text,
			extraction_text_hash = EXCLUDED.extraction_text_hash,
			extraction_method = EXCLUDED.extraction_method,
			fetched_at = EXCLUDED.fetched_at
		RETURNING id`,
		snap.Domain, snap.SourceURL, snap.HTML, snap.CanonicalText,
		snap.ExtractionTextHash, snap.ExtractionMethod, snap.FetchedAt)

	if err := row.Scan(&snap.ID); err != nil {
		return apperrors.MapDBError(fmt.Errorf("upsert snapshot: %w", err))
	}
	return nil
}

// Get returns the latest snapshot for (domain, source_url).
func (r *SnapshotRepo) Get(ctx context.Context, domain, sourceURL string) (*model.HtmlSnapshot, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+` FROM html_snapshots
		WHERE domain = $1 AND source_url = $2`,
		domain, sourceURL)

	var snap model.HtmlSnapshot
	if err := row.Scan(
		&snap.ID, &snap.Domain, &snap.SourceURL, &snap.HTML,
		&snap.CanonicalText, &snap.ExtractionTextHash, &snap.ExtractionMethod, &snap.FetchedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("no snapshot for %s", sourceURL)
		}
		return nil, apperrors.MapDBError(fmt.Errorf("get snapshot: %w", err))
	}
	return &snap, nil
}
