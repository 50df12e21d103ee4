package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/theke/citation-graph-service/internal/domain"
)

// JobRepository persists job rows. A partial unique index on
// (paper_id, type) over active statuses enforces the single-active-job
// invariant under concurrent submissions.
type JobRepository interface {
	// Create inserts a queued job. If an active job of the same type
	// already exists for the paper, returns a *domain.JobConflictError
	// carrying the active job's ID.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by its UUID.
	// Returns domain.ErrJobNotFound if no matching job exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// GetActive returns the queued or running job of the given type for
	// the paper, or domain.ErrJobNotFound when none is active.
	GetActive(ctx context.Context, paperID uuid.UUID, jobType domain.JobType) (*domain.Job, error)

	// ListByPaper returns all jobs for the given paper, newest first.
	ListByPaper(ctx context.Context, paperID uuid.UUID) ([]*domain.Job, error)

	// Update persists the job's mutable fields: status, progress, result,
	// error, started_at and completed_at.
	// Returns domain.ErrJobNotFound if the job does not exist.
	Update(ctx context.Context, job *domain.Job) error

	// DeleteOlderThan removes terminal jobs whose completion predates the
	// cutoff. Returns the number of rows removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
