// Package repository provides data access interfaces and their PostgreSQL
// implementations for the citation graph service.
//
// Repositories follow the repository pattern: interfaces here, pgx-backed
// implementations alongside, constructed over the DBTX interface so the
// same code runs on the pool or inside a transaction from
// database.DB.WithTransaction. All implementations are safe for concurrent
// use; pgxpool handles connection pooling.
//
// Methods return domain errors (domain.ErrNotFound, domain.ErrJobAlreadyActive)
// and wrap database errors with fmt.Errorf and %w.
package repository

import (
	"github.com/theke/citation-graph-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction
// contexts. Pass database.DB for standard operations or a pgx.Tx for
// atomic multi-statement work.
type DBTX = database.DBTX

// Pagination defaults and limits for list queries.
const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// applyPaginationDefaults clamps limit to [1, maxListLimit] and ensures
// offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultListLimit
	}
	if *limit > maxListLimit {
		*limit = maxListLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}
