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

// DomainRepo provides database operations for verified domains.
type DomainRepo struct {
	DB     *sql.DB
	clock  Clock
	logger *slog.Logger
}

// NewDomainRepo creates a new DomainRepo instance.
func NewDomainRepo(db *sql.DB, cfg RepoConfig) *DomainRepo {
	return &DomainRepo{
		DB:     db,
		clock:  cfg.clock(),
		logger: cfg.Logger,
	}
}

const domainColumns = `
  domain,
  verification_token,
  verified_at,
  protocol_version,
  last_ingested_at,
  qa_tier,
  qa_pass
`

// UpsertToken records a fresh verification token for a domain. An already
// verified domain keeps its verified state and existing token.
func (r *DomainRepo) UpsertToken(ctx context.Context, domain, token string) (*model.VerifiedDomain, error) {
	if domain == "" || token == "" {
		return nil, apperrors.Validation("domain and token are required")
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO verified_domains (domain, verification_token, protocol_version)
		VALUES ($1, $2, $3)
		ON CONFLICT (domain) DO UPDATE SET
			verification_token = CASE
				WHEN verified_domains.verified_at IS NULL THEN EXCLUDED.verification_token
				ELSE verified_domains.verification_token
			END
		RETURNING `+domainColumns,
		domain, token, model.ProtocolVersion)

	return scanVerifiedDomain(row)
}

// Get returns the verification record for a domain.
func (r *DomainRepo) Get(ctx context.Context, domain string) (*model.VerifiedDomain, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+domainColumns+` FROM verified_domains WHERE domain = $1`, domain)
	d, err := scanVerifiedDomain(row)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NotFoundf("domain %s not found", domain)
		}
		return nil, err
	}
	return d, nil
}

// IsVerified reports whether ownership proof succeeded for the domain.
// Unknown domains are simply unverified.
func (r *DomainRepo) IsVerified(ctx context.Context, domain string) (bool, error) {
	d, err := r.Get(ctx, domain)
	if apperrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return d.Verified(), nil
}

// MarkVerified stamps verified_at for a domain. Verifying twice is a conflict.
func (r *DomainRepo) MarkVerified(ctx context.Context, domain string) (*model.VerifiedDomain, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE verified_domains
		SET verified_at = $2
		WHERE domain = $1 AND verified_at IS NULL
		RETURNING `+domainColumns,
		domain, r.clock.Now().UTC())

	d, err := scanVerifiedDomain(row)
	if err == nil {
		return d, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	existing, getErr := r.Get(ctx, domain)
	if getErr != nil {
		return nil, getErr
	}
	if existing.Verified() {
		return nil, apperrors.Conflict(fmt.Sprintf("domain %s is already verified", domain))
	}
	return nil, apperrors.Internalf("mark verified for %s did not apply", domain)
}

// TouchIngestedInTx records an ingest outcome for the domain inside the
// caller's transaction, creating the row for never-verified domains.
func (r *DomainRepo) TouchIngestedInTx(ctx context.Context, q core.DBTX, domain string, tier model.QATier, pass bool) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO verified_domains (domain, verification_token, protocol_version, last_ingested_at, qa_tier, qa_pass)
		VALUES ($1, '', $2, $3, $4, $5)
		ON CONFLICT (domain) DO UPDATE SET
			last_ingested_at = EXCLUDED.last_ingested_at,
			qa_tier = EXCLUDED.qa_tier,
			qa_pass = EXCLUDED.qa_pass`,
		domain, model.ProtocolVersion, r.clock.Now().UTC(), tier, pass)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("touch ingested: %w", err))
	}
	return nil
}

func scanVerifiedDomain(row scanner) (*model.VerifiedDomain, error) {
	var (
		d          model.VerifiedDomain
		verifiedAt sql.NullTime
		ingestedAt sql.NullTime
	)
	if err := row.Scan(
		&d.Domain, &d.VerificationToken, &verifiedAt,
		&d.ProtocolVersion, &ingestedAt, &d.QATier, &d.QAPass,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("domain record not found")
		}
		return nil, apperrors.MapDBError(fmt.Errorf("scan verified domain: %w", err))
	}
	if verifiedAt.Valid {
		d.VerifiedAt = &verifiedAt.Time
	}
	if ingestedAt.Valid {
		d.LastIngestedAt = &ingestedAt.Time
	}
	return &d, nil
}
