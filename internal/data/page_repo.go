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

// PageRepo provides database operations for discovered pages.
type PageRepo struct {
	DB     *sql.DB
	clock  Clock
	logger *slog.Logger
}

// NewPageRepo creates a new PageRepo instance.
func NewPageRepo(db *sql.DB, cfg RepoConfig) *PageRepo {
	return &PageRepo{
		DB:     db,
		clock:  cfg.clock(),
		logger: cfg.Logger,
	}
}

const pageColumns = `
  id,
  domain,
  page_url,
  alternate_href,
  discovered_mirror_url,
  discovery_method,
  discovered_at,
  ingestion_id
`

// Upsert records a discovery probe for (domain, page_url), replacing any
// prior result.
func (r *PageRepo) Upsert(ctx context.Context, page *model.DiscoveredPage) error {
	if page == nil {
		return errors.New("page is required")
	}
	if page.Domain == "" || page.PageURL == "" {
		return apperrors.Validation("page requires domain and page_url")
	}

	page.DiscoveredAt = r.clock.Now().UTC()

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO discovered_pages (
			domain, page_url, alternate_href, discovered_mirror_url,
			discovery_method, discovered_at, ingestion_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (domain, page_url) DO UPDATE SET
			alternate_href = EXCLUDED.alternate_href,
			discovered_mirror_url = EXCLUDED.discovered_mirror_url,
			discovery_method = EXCLUDED.discovery_method,
			discovered_at = EXCLUDED.discovered_at,
			ingestion_id = EXCLUDED.ingestion_id
		RETURNING id`,
		page.Domain, page.PageURL, page.AlternateHref, page.DiscoveredMirror,
		page.DiscoveryMethod, page.DiscoveredAt, page.IngestionID)

	if err := row.Scan(&page.ID); err != nil {
		return apperrors.MapDBError(fmt.Errorf("upsert discovered page: %w", err))
	}
	return nil
}

// Get returns the discovery record for (domain, page_url).
func (r *PageRepo) Get(ctx context.Context, domain, pageURL string) (*model.DiscoveredPage, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+pageColumns+` FROM discovered_pages
		WHERE domain = $1 AND page_url = $2`, domain, pageURL)

	var (
		page      model.DiscoveredPage
		alternate sql.NullString
		mirror    sql.NullString
		ingestion sql.NullString
	)
	if err := row.Scan(
		&page.ID, &page.Domain, &page.PageURL, &alternate, &mirror,
		&page.DiscoveryMethod, &page.DiscoveredAt, &ingestion,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("no discovery record for %s", pageURL)
		}
		return nil, apperrors.MapDBError(fmt.Errorf("get discovered page: %w", err))
	}
	if alternate.Valid {
		page.AlternateHref = &alternate.String
	}
	if mirror.Valid {
		page.DiscoveredMirror = &mirror.String
	}
	if ingestion.Valid {
		page.IngestionID = &ingestion.String
	}
	return &page, nil
}
