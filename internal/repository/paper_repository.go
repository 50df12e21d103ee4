package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/theke/citation-graph-service/internal/domain"
)

// PaperRepository reads the paper catalog. The catalog itself is written by
// the library application that owns the papers table; this service only
// resolves citations against it and stores generated summaries back.
type PaperRepository interface {
	// GetByID retrieves a paper by its internal UUID.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error)

	// GetByDOI retrieves a paper by its normalized (lowercase) DOI.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByDOI(ctx context.Context, doi string) (*domain.Paper, error)

	// ListByYearRange returns papers whose publication year falls in
	// [yearFrom, yearTo]. Papers with unknown year (zero) are always
	// included; passing 0, 0 returns the whole catalog.
	ListByYearRange(ctx context.Context, yearFrom, yearTo int) ([]*domain.Paper, error)

	// List retrieves catalog papers with pagination, newest first.
	// Returns the page and the total count.
	List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, int64, error)

	// UpdateSummary stores a generated summary and the model that produced
	// it. Returns domain.ErrNotFound if the paper does not exist.
	UpdateSummary(ctx context.Context, id uuid.UUID, summary, model string) error
}

// PaperFilter specifies criteria for listing papers.
type PaperFilter struct {
	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate sets pagination defaults.
func (f *PaperFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
