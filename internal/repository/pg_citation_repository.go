package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/theke/citation-graph-service/internal/domain"
)

// Compile-time interface verification.
var _ CitationRepository = (*PgCitationRepository)(nil)

// PgCitationRepository is a PostgreSQL implementation of CitationRepository.
type PgCitationRepository struct {
	db DBTX
}

// NewPgCitationRepository creates a new PostgreSQL citation repository.
func NewPgCitationRepository(db DBTX) *PgCitationRepository {
	return &PgCitationRepository{db: db}
}

const citationColumns = `id, citing_paper_id, cited_paper_id, identity_key, status,
	cited_title, cited_authors, cited_year, cited_journal, cited_doi,
	sources, confidence, raw_text, created_at, updated_at`

const upsertCitationQuery = `
	INSERT INTO citations (
		id, citing_paper_id, cited_paper_id, identity_key, status,
		cited_title, cited_authors, cited_year, cited_journal, cited_doi,
		sources, confidence, raw_text, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14
	)
	ON CONFLICT (citing_paper_id, identity_key) DO UPDATE SET
		cited_paper_id = CASE WHEN citations.status = 'resolved' THEN citations.cited_paper_id ELSE EXCLUDED.cited_paper_id END,
		status = CASE WHEN citations.status = 'resolved' THEN citations.status ELSE EXCLUDED.status END,
		cited_title = CASE WHEN citations.cited_title = '' THEN EXCLUDED.cited_title ELSE citations.cited_title END,
		cited_authors = CASE WHEN citations.cited_authors IS NULL THEN EXCLUDED.cited_authors ELSE citations.cited_authors END,
		cited_year = CASE WHEN citations.cited_year = 0 THEN EXCLUDED.cited_year ELSE citations.cited_year END,
		cited_journal = CASE WHEN citations.cited_journal = '' THEN EXCLUDED.cited_journal ELSE citations.cited_journal END,
		cited_doi = CASE WHEN citations.cited_doi = '' THEN EXCLUDED.cited_doi ELSE citations.cited_doi END,
		sources = EXCLUDED.sources,
		confidence = GREATEST(EXCLUDED.confidence, citations.confidence),
		raw_text = CASE WHEN citations.raw_text = '' THEN EXCLUDED.raw_text ELSE citations.raw_text END,
		updated_at = NOW()
	RETURNING ` + citationColumns

// UpsertBatch inserts or updates citations in one pipelined batch.
// Snapshot fields only fill what the stored row is missing. The
// resolution fields take the newest value unless the stored row is
// already resolved, so re-extraction never undoes a manual or earlier
// resolution. Run inside WithTransaction when the rows must land
// atomically.
func (r *PgCitationRepository) UpsertBatch(ctx context.Context, citations []domain.Citation) ([]domain.Citation, error) {
	if len(citations) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for i := range citations {
		c := &citations[i]
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}

		authorsJSON, err := json.Marshal(c.CitedAuthors)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal authors: %w", err)
		}
		sourcesJSON, err := json.Marshal(c.Sources)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sources: %w", err)
		}

		batch.Queue(upsertCitationQuery,
			c.ID, c.CitingPaperID, c.CitedPaperID, c.IdentityKey, c.Status,
			c.CitedTitle, authorsJSON, c.CitedYear, c.CitedJournal, c.CitedDOI,
			sourcesJSON, c.Confidence, c.RawText, c.CreatedAt,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	results := make([]domain.Citation, len(citations))
	for i := range citations {
		citation, err := scanCitation(br.QueryRow())
		if err != nil {
			return nil, fmt.Errorf("failed to upsert citation at index %d: %w", i, err)
		}
		results[i] = *citation
	}

	return results, nil
}

// GetByID retrieves a citation by its UUID.
func (r *PgCitationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Citation, error) {
	query := `SELECT ` + citationColumns + ` FROM citations WHERE id = $1`

	citation, err := scanCitation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("citation", id.String())
		}
		return nil, fmt.Errorf("failed to get citation: %w", err)
	}

	return citation, nil
}

// ListByCitingPaper returns all citations made by the given paper.
func (r *PgCitationRepository) ListByCitingPaper(ctx context.Context, citingPaperID uuid.UUID) ([]domain.Citation, error) {
	query := `SELECT ` + citationColumns + ` FROM citations
		WHERE citing_paper_id = $1
		ORDER BY created_at, identity_key`
	return r.queryCitations(ctx, query, citingPaperID)
}

// ListByCitedPaper returns resolved citations pointing at the given paper.
func (r *PgCitationRepository) ListByCitedPaper(ctx context.Context, citedPaperID uuid.UUID) ([]domain.Citation, error) {
	query := `SELECT ` + citationColumns + ` FROM citations
		WHERE cited_paper_id = $1
		ORDER BY created_at, identity_key`
	return r.queryCitations(ctx, query, citedPaperID)
}

// ListAll returns every citation row.
func (r *PgCitationRepository) ListAll(ctx context.Context) ([]domain.Citation, error) {
	query := `SELECT ` + citationColumns + ` FROM citations ORDER BY created_at, identity_key`
	return r.queryCitations(ctx, query)
}

// CountByCitingPaper returns the number of persisted citations for the paper.
func (r *PgCitationRepository) CountByCitingPaper(ctx context.Context, citingPaperID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM citations WHERE citing_paper_id = $1`,
		citingPaperID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count citations: %w", err)
	}
	return count, nil
}

// DeleteByCitingPaper removes all citations made by the given paper.
func (r *PgCitationRepository) DeleteByCitingPaper(ctx context.Context, citingPaperID uuid.UUID) (int64, error) {
	result, err := r.db.Exec(ctx,
		`DELETE FROM citations WHERE citing_paper_id = $1`,
		citingPaperID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete citations: %w", err)
	}
	return result.RowsAffected(), nil
}

// Resolve links an existing citation to a catalog paper.
func (r *PgCitationRepository) Resolve(ctx context.Context, citationID, citedPaperID uuid.UUID) (*domain.Citation, error) {
	query := `UPDATE citations
		SET cited_paper_id = $2, status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + citationColumns

	citation, err := scanCitation(r.db.QueryRow(ctx, query, citationID, citedPaperID, domain.CitationStatusResolved))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("citation", citationID.String())
		}
		return nil, fmt.Errorf("failed to resolve citation: %w", err)
	}

	return citation, nil
}

// queryCitations runs a citation select and scans all rows.
func (r *PgCitationRepository) queryCitations(ctx context.Context, query string, args ...interface{}) ([]domain.Citation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query citations: %w", err)
	}
	defer rows.Close()

	var citations []domain.Citation
	for rows.Next() {
		citation, err := scanCitationFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan citation: %w", err)
		}
		citations = append(citations, *citation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate citations: %w", err)
	}

	return citations, nil
}

// citationScanDest holds the destination pointers for scanning a Citation row.
type citationScanDest struct {
	citation    domain.Citation
	authorsJSON []byte
	sourcesJSON []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *citationScanDest) destinations() []interface{} {
	return []interface{}{
		&d.citation.ID, &d.citation.CitingPaperID, &d.citation.CitedPaperID,
		&d.citation.IdentityKey, &d.citation.Status,
		&d.citation.CitedTitle, &d.authorsJSON, &d.citation.CitedYear,
		&d.citation.CitedJournal, &d.citation.CitedDOI,
		&d.sourcesJSON, &d.citation.Confidence, &d.citation.RawText,
		&d.citation.CreatedAt, &d.citation.UpdatedAt,
	}
}

// finalize performs post-scan processing: unmarshals JSON fields.
func (d *citationScanDest) finalize() (*domain.Citation, error) {
	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &d.citation.CitedAuthors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}
	if len(d.sourcesJSON) > 0 {
		if err := json.Unmarshal(d.sourcesJSON, &d.citation.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
		}
	}
	return &d.citation, nil
}

// scanCitation scans a single row into a Citation.
func scanCitation(row pgx.Row) (*domain.Citation, error) {
	var dest citationScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanCitationFromRows scans the current row from pgx.Rows into a Citation.
func scanCitationFromRows(rows pgx.Rows) (*domain.Citation, error) {
	var dest citationScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
