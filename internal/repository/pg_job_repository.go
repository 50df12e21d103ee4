package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/theke/citation-graph-service/internal/domain"
)

// Compile-time interface verification.
var _ JobRepository = (*PgJobRepository)(nil)

// PgJobRepository is a PostgreSQL implementation of JobRepository.
type PgJobRepository struct {
	db DBTX
}

// NewPgJobRepository creates a new PostgreSQL job repository.
func NewPgJobRepository(db DBTX) *PgJobRepository {
	return &PgJobRepository{db: db}
}

const jobColumns = `id, paper_id, type, status, progress, progress_message,
	result, error, created_at, started_at, completed_at`

// Create inserts a queued job. The jobs_one_active partial unique index
// rejects a second active job for the same paper and type; that violation
// is translated into a JobConflictError carrying the blocking job's ID.
func (r *PgJobRepository) Create(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return domain.NewValidationError("job", "job cannot be nil")
	}
	if !job.Type.Valid() {
		return domain.NewValidationError("type", fmt.Sprintf("unknown job type %q", job.Type))
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	resultJSON, err := marshalResult(job.Result)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO jobs (id, paper_id, type, status, progress, progress_message, result, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		job.ID, job.PaperID, job.Type, job.Status, job.Progress,
		job.ProgressMessage, resultJSON, job.Error, job.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return r.conflictError(ctx, job.PaperID, job.Type)
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// conflictError looks up the blocking active job so callers can report its
// ID. If the active job finished in the meantime, the sentinel alone is
// returned and the caller may simply retry.
func (r *PgJobRepository) conflictError(ctx context.Context, paperID uuid.UUID, jobType domain.JobType) error {
	active, err := r.GetActive(ctx, paperID, jobType)
	if err != nil {
		return domain.ErrJobAlreadyActive
	}
	return &domain.JobConflictError{
		PaperID:     paperID,
		Type:        jobType,
		ActiveJobID: active.ID,
	}
}

// GetByID retrieves a job by its UUID.
func (r *PgJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// GetActive returns the queued or running job of the given type for the paper.
func (r *PgJobRepository) GetActive(ctx context.Context, paperID uuid.UUID, jobType domain.JobType) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE paper_id = $1 AND type = $2 AND status IN ($3, $4)
		ORDER BY created_at DESC
		LIMIT 1`

	job, err := scanJob(r.db.QueryRow(ctx, query, paperID, jobType,
		domain.JobStatusQueued, domain.JobStatusRunning))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get active job: %w", err)
	}

	return job, nil
}

// ListByPaper returns all jobs for the given paper, newest first.
func (r *PgJobRepository) ListByPaper(ctx context.Context, paperID uuid.UUID) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE paper_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJobFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}

	return jobs, nil
}

// Update persists the job's mutable fields.
func (r *PgJobRepository) Update(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return domain.NewValidationError("job", "job cannot be nil")
	}

	resultJSON, err := marshalResult(job.Result)
	if err != nil {
		return err
	}

	query := `UPDATE jobs
		SET status = $2, progress = $3, progress_message = $4, result = $5,
			error = $6, started_at = $7, completed_at = $8
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		job.ID, job.Status, job.Progress, job.ProgressMessage,
		resultJSON, job.Error, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

// DeleteOlderThan removes terminal jobs completed before the cutoff.
func (r *PgJobRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM jobs
		WHERE status IN ($1, $2) AND completed_at < $3`

	result, err := r.db.Exec(ctx, query,
		domain.JobStatusCompleted, domain.JobStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old jobs: %w", err)
	}

	return result.RowsAffected(), nil
}

// marshalResult serializes the job result map, nil staying nil.
func marshalResult(result map[string]interface{}) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job result: %w", err)
	}
	return data, nil
}

// jobScanDest holds the destination pointers for scanning a Job row.
type jobScanDest struct {
	job        domain.Job
	resultJSON []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *jobScanDest) destinations() []interface{} {
	return []interface{}{
		&d.job.ID, &d.job.PaperID, &d.job.Type, &d.job.Status, &d.job.Progress,
		&d.job.ProgressMessage, &d.resultJSON, &d.job.Error,
		&d.job.CreatedAt, &d.job.StartedAt, &d.job.CompletedAt,
	}
}

// finalize performs post-scan processing: unmarshals JSON fields.
func (d *jobScanDest) finalize() (*domain.Job, error) {
	if len(d.resultJSON) > 0 {
		if err := json.Unmarshal(d.resultJSON, &d.job.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job result: %w", err)
		}
	}
	return &d.job, nil
}

// scanJob scans a single row into a Job.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var dest jobScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanJobFromRows scans the current row from pgx.Rows into a Job.
func scanJobFromRows(rows pgx.Rows) (*domain.Job, error) {
	var dest jobScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
