package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/croutons-ai/precog/internal/core"
	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
)

// MarkdownRepo provides database operations for mirror markdown versions.
type MarkdownRepo struct {
	DB     *sql.DB
	clock  Clock
	logger *slog.Logger
}

// NewMarkdownRepo creates a new MarkdownRepo instance.
func NewMarkdownRepo(db *sql.DB, cfg RepoConfig) *MarkdownRepo {
	return &MarkdownRepo{
		DB:     db,
		clock:  cfg.clock(),
		logger: cfg.Logger,
	}
}

const markdownColumns = `
  id,
  domain,
  path,
  content,
  content_hash,
  generated_at,
  is_active,
  markdown_version,
  protocol_version
`

// PublishInTx deactivates the prior active version for (domain, path) and
// inserts or re-activates the given version, all inside the caller's
// transaction. A version whose content hash already exists is re-activated
// rather than duplicated, so unchanged re-ingests create no new rows.
func (r *MarkdownRepo) PublishInTx(ctx context.Context, q core.DBTX, v *model.MarkdownVersion) error {
	if v == nil {
		return errors.New("markdown version is required")
	}
	if v.Domain == "" || v.Path == "" {
		return apperrors.Validation("markdown version requires domain and path")
	}
	if v.ContentHash == "" {
		v.ContentHash = model.HashHex(v.Content)
	}
	if v.MarkdownVersion == "" {
		v.MarkdownVersion = model.MarkdownVersionLabel
	}
	if v.ProtocolVersion == "" {
		v.ProtocolVersion = model.ProtocolVersion
	}

	now := r.clock.Now().UTC()

	if _, err := q.ExecContext(ctx, `
		UPDATE markdown_versions SET is_active = false
		WHERE domain = $1 AND path = $2 AND is_active AND content_hash <> $3`,
		v.Domain, v.Path, v.ContentHash); err != nil {
		return apperrors.MapDBError(fmt.Errorf("deactivate prior markdown: %w", err))
	}

	row := q.QueryRowContext(ctx, `
		INSERT INTO markdown_versions (
			domain, path, content, content_hash, generated_at,
			is_active, markdown_version, protocol_version
		) VALUES ($1,$2,$3,$4,$5,true,$6,$7)
		ON CONFLICT (domain, path, content_hash) DO UPDATE SET is_active = true
		RETURNING id, generated_at`,
		v.Domain, v.Path, v.Content, v.ContentHash, now,
		v.MarkdownVersion, v.ProtocolVersion)

	if err := row.Scan(&v.ID, &v.GeneratedAt); err != nil {
		return apperrors.MapDBError(fmt.Errorf("publish markdown: %w", err))
	}
	v.IsActive = true
	return nil
}

// GetActive returns the active markdown version for (domain, path).
func (r *MarkdownRepo) GetActive(ctx context.Context, domain, path string) (*model.MarkdownVersion, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+markdownColumns+` FROM markdown_versions
		WHERE domain = $1 AND path = $2 AND is_active`,
		domain, path)

	v, err := scanMarkdownVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("no active mirror for %s/%s", domain, path)
		}
		return nil, apperrors.MapDBError(fmt.Errorf("get active markdown: %w", err))
	}
	return v, nil
}

// ActiveVersionLabel returns the markdown_version label of any active mirror
// for the domain, or empty when none exists. The status report uses this as
// the domain's markdown protocol version.
func (r *MarkdownRepo) ActiveVersionLabel(ctx context.Context, domain string) (string, error) {
	var label string
	err := r.DB.QueryRowContext(ctx, `
		SELECT markdown_version FROM markdown_versions
		WHERE domain = $1 AND is_active
		ORDER BY generated_at DESC
		LIMIT 1`, domain).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.MapDBError(fmt.Errorf("active markdown label: %w", err))
	}
	return label, nil
}

// CountVersions returns how many versions exist for (domain, path); used by
// the idempotency checks around re-ingest.
func (r *MarkdownRepo) CountVersions(ctx context.Context, domain, path string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM markdown_versions WHERE domain = $1 AND path = $2`,
		domain, path).Scan(&n)
	if err != nil {
		return 0, apperrors.MapDBError(fmt.Errorf("count markdown versions: %w", err))
	}
	return n, nil
}

func scanMarkdownVersion(row scanner) (*model.MarkdownVersion, error) {
	var v model.MarkdownVersion
	if err := row.Scan(
		&v.ID, &v.Domain, &v.Path, &v.Content, &v.ContentHash,
		&v.GeneratedAt, &v.IsActive, &v.MarkdownVersion, &v.ProtocolVersion,
	); err != nil {
		return nil, err
	}
	return &v, nil
}
