package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/theke/citation-graph-service/internal/domain"
)

// CitationRepository persists citation edges. At most one row exists per
// (citing_paper_id, identity_key); re-extraction upserts into the existing
// row instead of duplicating it.
type CitationRepository interface {
	// UpsertBatch inserts or updates the given citations. On conflict
	// the snapshot fields fill gaps in the stored row but never
	// overwrite data already present. The resolution fields (status,
	// cited_paper_id) take the newest value unless the stored row is
	// already resolved. Returns the rows in their final database state,
	// in input order.
	UpsertBatch(ctx context.Context, citations []domain.Citation) ([]domain.Citation, error)

	// GetByID retrieves a citation by its UUID.
	// Returns domain.ErrNotFound if no matching citation exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Citation, error)

	// ListByCitingPaper returns all citations made by the given paper.
	ListByCitingPaper(ctx context.Context, citingPaperID uuid.UUID) ([]domain.Citation, error)

	// ListByCitedPaper returns resolved citations pointing at the given
	// paper, the incoming side of the graph.
	ListByCitedPaper(ctx context.Context, citedPaperID uuid.UUID) ([]domain.Citation, error)

	// ListAll returns every citation row, for the library-wide network view.
	ListAll(ctx context.Context) ([]domain.Citation, error)

	// CountByCitingPaper returns the number of persisted citations for
	// the given citing paper.
	CountByCitingPaper(ctx context.Context, citingPaperID uuid.UUID) (int64, error)

	// DeleteByCitingPaper removes all citations made by the given paper.
	// Returns the number of rows removed.
	DeleteByCitingPaper(ctx context.Context, citingPaperID uuid.UUID) (int64, error)

	// Resolve links an existing citation to a catalog paper and marks it
	// resolved. Used by the manual resolve operation.
	// Returns domain.ErrNotFound if the citation does not exist.
	Resolve(ctx context.Context, citationID, citedPaperID uuid.UUID) (*domain.Citation, error)
}
