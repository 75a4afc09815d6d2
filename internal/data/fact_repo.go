package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/croutons-ai/precog/internal/core"
	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
)

// FactRepo provides database operations for croutons (facts).
type FactRepo struct {
	DB     *sql.DB
	clock  Clock
	logger *slog.Logger
}

// NewFactRepo creates a new FactRepo instance.
func NewFactRepo(db *sql.DB, cfg RepoConfig) *FactRepo {
	return &FactRepo{
		DB:     db,
		clock:  cfg.clock(),
		logger: cfg.Logger,
	}
}

const factColumns = `
  crouton_id,
  domain,
  source_url,
  slot_id,
  fact_id,
  revision,
  previous_fact_id,
  subject,
  predicate,
  object,
  text,
  supporting_text,
  char_start,
  char_end,
  fragment_hash,
  extraction_text_hash,
  evidence_type,
  source_path,
  anchor_missing,
  confidence,
  updated_at
`

// UpsertInTx writes one fact, maintaining the slot revision chain:
//   - first fact in a slot gets revision 1;
//   - a fact whose crouton_id already exists only refreshes updated_at;
//   - a new crouton_id in an existing slot gets the slot's next revision and
//     records the prior latest fact_id as previous_fact_id.
//
// The fact must already carry its identity (AssignIdentity).
func (r *FactRepo) UpsertInTx(ctx context.Context, q core.DBTX, f *model.Fact) error {
	if f == nil {
		return errors.New("fact is required")
	}
	if f.CroutonID == "" || f.SlotID == "" || f.FactID == "" {
		return apperrors.Validation("fact identity must be assigned before upsert")
	}
	if !f.EvidenceType.Valid() {
		return apperrors.Validationf("invalid evidence type %q", f.EvidenceType)
	}

	now := r.clock.Now().UTC()

	// Existing crouton: content is byte-identical by construction of
	// crouton_id, so only updated_at moves.
	res, err := q.ExecContext(ctx,
		`UPDATE croutons SET updated_at = $2 WHERE crouton_id = $1`, f.CroutonID, now)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("touch crouton: %w", err))
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n > 0 {
		f.UpdatedAt = now
		return nil
	}

	revision := 1
	var previous *string
	var priorFactID string
	var priorRevision int
	err = q.QueryRowContext(ctx, `
		SELECT fact_id, revision FROM croutons
		WHERE slot_id = $1
		ORDER BY revision DESC
		LIMIT 1`, f.SlotID).Scan(&priorFactID, &priorRevision)
	switch {
	case err == nil:
		revision = priorRevision + 1
		previous = &priorFactID
	case errors.Is(err, sql.ErrNoRows):
		// first revision in this slot
	default:
		return apperrors.MapDBError(fmt.Errorf("lookup slot head: %w", err))
	}

	var charStart, charEnd any
	var fragmentHash, extractionHash any
	if f.EvidenceAnchor != nil {
		charStart = f.EvidenceAnchor.CharStart
		charEnd = f.EvidenceAnchor.CharEnd
		fragmentHash = f.EvidenceAnchor.FragmentHash
		extractionHash = f.EvidenceAnchor.ExtractionTextHash
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO croutons (
			crouton_id, domain, source_url, slot_id, fact_id, revision, previous_fact_id,
			subject, predicate, object, text, supporting_text,
			char_start, char_end, fragment_hash, extraction_text_hash,
			evidence_type, source_path, anchor_missing, confidence, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		f.CroutonID, f.Domain, f.SourceURL, f.SlotID, f.FactID, revision, previous,
		f.Triple.Subject, f.Triple.Predicate, f.Triple.Object, f.Text, f.SupportingText,
		charStart, charEnd, fragmentHash, extractionHash,
		f.EvidenceType, f.SourcePath, f.AnchorMissing, f.Confidence, now)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("insert crouton: %w", err))
	}

	f.Revision = revision
	f.PreviousFactID = previous
	f.UpdatedAt = now
	return nil
}

// ListByDomain returns all facts for a domain, newest revisions included,
// ordered by slot and revision for stable output.
func (r *FactRepo) ListByDomain(ctx context.Context, domain string, filter core.FactFilter) ([]model.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM croutons WHERE domain = $1`
	args := []any{domain}

	if filter.EvidenceType != "" {
		args = append(args, filter.EvidenceType)
		query += fmt.Sprintf(" AND evidence_type = $%d", len(args))
	}
	if filter.SourceURL != "" {
		urls := slashSiblings(filter.SourceURL)
		args = append(args, urls[0], urls[1])
		query += fmt.Sprintf(" AND source_url IN ($%d, $%d)", len(args)-1, len(args))
	}
	query += " ORDER BY slot_id, revision, crouton_id"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("list facts: %w", err))
	}
	defer rows.Close()

	return collectFacts(rows)
}

// ListBySource returns the text-extraction facts for one exact source URL.
// The extract validator re-checks these against the latest snapshot.
func (r *FactRepo) ListBySource(ctx context.Context, domain, sourceURL string) ([]model.Fact, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+factColumns+` FROM croutons
		WHERE domain = $1 AND source_url = $2 AND evidence_type = 'text_extraction'
		ORDER BY slot_id, revision, crouton_id`,
		domain, sourceURL)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("list facts by source: %w", err))
	}
	defer rows.Close()

	return collectFacts(rows)
}

// CountsByDomain computes the status-report counters in one pass.
func (r *FactRepo) CountsByDomain(ctx context.Context, domain string) (*core.DomainCounts, error) {
	var c core.DomainCounts
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE evidence_type = 'text_extraction'),
			COUNT(*) FILTER (WHERE evidence_type = 'structured_data'),
			COUNT(*) FILTER (WHERE evidence_type = 'text_extraction' AND NOT anchor_missing),
			COUNT(DISTINCT source_url),
			COUNT(DISTINCT subject)
		FROM croutons
		WHERE domain = $1`, domain).Scan(
		&c.FactsTotal, &c.FactsTextExtraction, &c.FactsStructuredData,
		&c.AnchoredTextFacts, &c.Pages, &c.Entities)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("count facts: %w", err))
	}
	return &c, nil
}

// slashSiblings returns the URL and its single trailing-slash sibling.
func slashSiblings(u string) [2]string {
	if strings.HasSuffix(u, "/") {
		return [2]string{u, strings.TrimSuffix(u, "/")}
	}
	return [2]string{u, u + "/"}
}

func collectFacts(rows *sql.Rows) ([]model.Fact, error) {
	var facts []model.Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, apperrors.MapDBError(fmt.Errorf("scan fact: %w", err))
		}
		facts = append(facts, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("iterate facts: %w", err))
	}
	return facts, nil
}

func scanFact(row scanner) (*model.Fact, error) {
	var (
		f              model.Fact
		previous       sql.NullString
		supporting     sql.NullString
		charStart      sql.NullInt64
		charEnd        sql.NullInt64
		fragmentHash   sql.NullString
		extractionHash sql.NullString
		sourcePath     sql.NullString
	)
	if err := row.Scan(
		&f.CroutonID, &f.Domain, &f.SourceURL, &f.SlotID, &f.FactID,
		&f.Revision, &previous,
		&f.Triple.Subject, &f.Triple.Predicate, &f.Triple.Object,
		&f.Text, &supporting, &charStart, &charEnd, &fragmentHash, &extractionHash,
		&f.EvidenceType, &sourcePath, &f.AnchorMissing, &f.Confidence, &f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if previous.Valid {
		f.PreviousFactID = &previous.String
	}
	if supporting.Valid {
		f.SupportingText = &supporting.String
	}
	if sourcePath.Valid {
		f.SourcePath = &sourcePath.String
	}
	if fragmentHash.Valid {
		f.EvidenceAnchor = &model.EvidenceAnchor{
			CharStart:          int(charStart.Int64),
			CharEnd:            int(charEnd.Int64),
			FragmentHash:       fragmentHash.String,
			ExtractionTextHash: extractionHash.String,
		}
	}
	return &f, nil
}
