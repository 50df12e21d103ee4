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
var _ PaperRepository = (*PgPaperRepository)(nil)

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

const paperColumns = `id, title, abstract, authors, publication_year, journal,
	doi, arxiv_id, pubmed_id, pdf_path, summary, summary_model,
	created_at, updated_at`

// GetByID retrieves a paper by its UUID.
func (r *PgPaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id.String())
		}
		return nil, fmt.Errorf("failed to get paper by ID: %w", err)
	}

	return paper, nil
}

// GetByDOI retrieves a paper by its normalized DOI.
func (r *PgPaperRepository) GetByDOI(ctx context.Context, doi string) (*domain.Paper, error) {
	if doi == "" {
		return nil, domain.NewValidationError("doi", "DOI is required")
	}

	query := `SELECT ` + paperColumns + ` FROM papers WHERE LOWER(doi) = LOWER($1)`

	row := r.db.QueryRow(ctx, query, doi)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", doi)
		}
		return nil, fmt.Errorf("failed to get paper by DOI: %w", err)
	}

	return paper, nil
}

// ListByYearRange returns papers within the year window; unknown-year
// papers are always included so fuzzy matching can still consider them.
func (r *PgPaperRepository) ListByYearRange(ctx context.Context, yearFrom, yearTo int) ([]*domain.Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers`
	var args []interface{}
	if yearFrom != 0 || yearTo != 0 {
		query += ` WHERE publication_year = 0
			OR (publication_year >= $1 AND publication_year <= $2)`
		args = append(args, yearFrom, yearTo)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers by year range: %w", err)
	}
	defer rows.Close()

	var papers []*domain.Paper
	for rows.Next() {
		paper, err := scanPaperFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate papers: %w", err)
	}

	return papers, nil
}

// List retrieves catalog papers with pagination, newest first.
func (r *PgPaperRepository) List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM papers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count papers: %w", err)
	}

	query := `SELECT ` + paperColumns + ` FROM papers
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	var papers []*domain.Paper
	for rows.Next() {
		paper, err := scanPaperFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate papers: %w", err)
	}

	return papers, total, nil
}

// UpdateSummary stores a generated summary and the producing model.
func (r *PgPaperRepository) UpdateSummary(ctx context.Context, id uuid.UUID, summary, model string) error {
	query := `UPDATE papers SET summary = $2, summary_model = $3, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, summary, model)
	if err != nil {
		return fmt.Errorf("failed to update summary: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", id.String())
	}

	return nil
}

// paperScanDest holds the destination pointers for scanning a Paper row.
type paperScanDest struct {
	paper       domain.Paper
	authorsJSON []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.ID, &d.paper.Title, &d.paper.Abstract, &d.authorsJSON,
		&d.paper.PublicationYear, &d.paper.Journal,
		&d.paper.DOI, &d.paper.ArXivID, &d.paper.PubMedID, &d.paper.PDFPath,
		&d.paper.Summary, &d.paper.SummaryModel,
		&d.paper.CreatedAt, &d.paper.UpdatedAt,
	}
}

// finalize performs post-scan processing: unmarshals JSON fields.
func (d *paperScanDest) finalize() (*domain.Paper, error) {
	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &d.paper.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}
	return &d.paper, nil
}

// scanPaper scans a single row into a Paper.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanPaperFromRows scans the current row from pgx.Rows into a Paper.
func scanPaperFromRows(rows pgx.Rows) (*domain.Paper, error) {
	var dest paperScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
