// Package jobs runs long operations off the request path.
//
// A Manager owns a Postgres-backed job table and a bounded in-memory
// execution queue drained by a fixed worker pool. Clients submit a job,
// receive its ID immediately and poll for status; there is no push
// channel. At most one queued or running job may exist per paper and
// job type, enforced by a partial unique index in the job table.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/events"
	"github.com/theke/citation-graph-service/internal/observability"
	"github.com/theke/citation-graph-service/internal/repository"
)

// ErrQueueFull is returned by Submit when the execution queue cannot
// accept another job. The job row is marked failed before returning.
var ErrQueueFull = errors.New("job queue full")

// advisory lock key for the terminal-job cleanup, shared by all
// replicas so only one runs the delete per interval.
const cleanupLockKey int64 = 826341

const (
	defaultWorkers   = 4
	defaultQueueSize = 64
	defaultRetention = 7 * 24 * time.Hour
	defaultCleanup   = time.Hour
)

// AdvisoryLocker guards cross-replica critical sections. *database.DB
// satisfies it.
type AdvisoryLocker interface {
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) error
}

// SubmitOptions carries per-job parameters supplied by the trigger
// endpoint. Fields not relevant to the job type are ignored.
type SubmitOptions struct {
	// Direction selects which citation edges an extraction job covers.
	Direction domain.ExtractionDirection

	// Sources restricts an extraction job to specific reference
	// sources. Empty means all enabled sources.
	Sources []domain.SourceType

	// CustomPrompt replaces the default summarization instructions.
	CustomPrompt string
}

// Task is one queued unit of work. Options are held in memory only;
// a job still queued when the process dies is not re-executed after
// restart.
type Task struct {
	Job     *domain.Job
	Options SubmitOptions
}

// ProgressFunc lets an action report progress at phase boundaries.
// Percent regressions are clamped, not rejected.
type ProgressFunc func(percent int, message string)

// Action executes one type of job.
type Action interface {
	// Type returns the job type this action serves.
	Type() domain.JobType

	// Run performs the work and returns the job's result payload.
	Run(ctx context.Context, task Task, progress ProgressFunc) (map[string]interface{}, error)
}

// Config holds the manager's pool and retention settings.
type Config struct {
	Workers         int
	QueueSize       int
	Retention       time.Duration
	CleanupInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Retention <= 0 {
		c.Retention = defaultRetention
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = defaultCleanup
	}
	return c
}

// Manager owns job rows and the worker pool that executes them.
type Manager struct {
	repo    repository.JobRepository
	locker  AdvisoryLocker
	emitter *events.Emitter
	cfg     Config
	logger  zerolog.Logger
	metrics *observability.Metrics

	actions map[domain.JobType]Action
	queue   chan Task

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewManager creates a job manager. The locker may be nil; cleanup then
// runs unguarded, which is fine for a single replica.
func NewManager(
	repo repository.JobRepository,
	locker AdvisoryLocker,
	emitter *events.Emitter,
	cfg Config,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		repo:    repo,
		locker:  locker,
		emitter: emitter,
		cfg:     cfg,
		logger:  logger.With().Str("component", "jobs").Logger(),
		metrics: metrics,
		actions: make(map[domain.JobType]Action),
		queue:   make(chan Task, cfg.QueueSize),
	}
}

// RegisterAction installs the action for its job type. Must be called
// before Start; later registrations race with the workers.
func (m *Manager) RegisterAction(action Action) {
	m.actions[action.Type()] = action
}

// Start launches the worker pool and the cleanup ticker. Safe to call
// once; subsequent calls are no-ops.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		m.cancel = cancel

		for i := 0; i < m.cfg.Workers; i++ {
			m.wg.Add(1)
			go m.runWorker(runCtx, i)
		}

		m.wg.Add(1)
		go m.runCleanup(runCtx)

		m.logger.Info().
			Int("workers", m.cfg.Workers).
			Int("queue_size", m.cfg.QueueSize).
			Dur("retention", m.cfg.Retention).
			Msg("job manager started")
	})
}

// Stop cancels the run context and waits for the workers to wind
// down. In-flight actions observe the cancellation and fail.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.logger.Info().Msg("job manager stopped")
}

// Submit creates a job row and enqueues it for execution. A second
// active job for the same paper and type surfaces as a
// domain.JobConflictError; a full queue fails the job row and returns
// ErrQueueFull.
func (m *Manager) Submit(ctx context.Context, paperID uuid.UUID, jobType domain.JobType, opts SubmitOptions) (*domain.Job, error) {
	if _, ok := m.actions[jobType]; !ok {
		return nil, domain.NewValidationError("type", fmt.Sprintf("no action registered for job type %q", jobType))
	}

	job := domain.NewJob(paperID, jobType)
	if err := m.repo.Create(ctx, job); err != nil {
		if errors.Is(err, domain.ErrJobAlreadyActive) {
			if m.metrics != nil {
				m.metrics.RecordJobRejected(string(jobType))
			}
		}
		return nil, err
	}

	select {
	case m.queue <- Task{Job: job, Options: opts}:
		if m.metrics != nil {
			m.metrics.RecordJobSubmitted(string(jobType))
			m.metrics.JobQueueDepth.Inc()
		}
		m.logger.Info().
			Str("job_id", job.ID.String()).
			Str("paper_id", paperID.String()).
			Str("type", string(jobType)).
			Msg("job submitted")
		return job, nil
	default:
	}

	// The queue is full. Fail the row so the per-paper slot frees up
	// and the client sees a terminal state on the next poll.
	if err := m.Fail(ctx, job.ID, "internal: job queue full"); err != nil {
		m.logger.Error().Err(err).
			Str("job_id", job.ID.String()).
			Msg("failed to mark rejected job as failed")
	}
	if m.metrics != nil {
		m.metrics.RecordJobRejected(string(jobType))
	}
	return nil, fmt.Errorf("%w: %d jobs pending", ErrQueueFull, m.cfg.QueueSize)
}

// GetJob returns the job snapshot for polling.
func (m *Manager) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	return m.repo.GetByID(ctx, jobID)
}

// ListJobs returns all jobs for a paper, newest first.
func (m *Manager) ListJobs(ctx context.Context, paperID uuid.UUID) ([]*domain.Job, error) {
	return m.repo.ListByPaper(ctx, paperID)
}

// ReportProgress records a progress update for a running job. A percent
// below the stored value is clamped to the stored value with a warning;
// values above 100 are clamped to 100. Terminal jobs reject updates
// with domain.ErrJobTerminal.
func (m *Manager) ReportProgress(ctx context.Context, jobID uuid.UUID, percent int, message string) error {
	job, err := m.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrJobTerminal)
	}

	if percent > 100 {
		percent = 100
	}
	if percent < job.Progress {
		m.logger.Warn().
			Str("job_id", jobID.String()).
			Int("reported", percent).
			Int("stored", job.Progress).
			Msg("progress regression clamped")
		percent = job.Progress
	}

	job.Progress = percent
	job.ProgressMessage = message
	return m.repo.Update(ctx, job)
}

// Complete transitions a job to completed with the given result.
// Exactly one terminal transition is allowed per job.
func (m *Manager) Complete(ctx context.Context, jobID uuid.UUID, result map[string]interface{}) error {
	job, err := m.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrJobTerminal)
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	job.Result = result
	job.CompletedAt = &now
	if err := m.repo.Update(ctx, job); err != nil {
		return err
	}

	if m.metrics != nil {
		m.metrics.RecordJobCompleted(string(job.Type), job.Duration().Seconds())
	}
	if m.emitter != nil {
		m.emitter.EmitJobCompleted(ctx, job)
	}
	m.logger.Info().
		Str("job_id", jobID.String()).
		Str("type", string(job.Type)).
		Dur("duration", job.Duration()).
		Msg("job completed")
	return nil
}

// Fail transitions a job to failed with a categorized error message.
func (m *Manager) Fail(ctx context.Context, jobID uuid.UUID, message string) error {
	job, err := m.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrJobTerminal)
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusFailed
	job.Error = message
	job.CompletedAt = &now
	if err := m.repo.Update(ctx, job); err != nil {
		return err
	}

	if m.metrics != nil {
		m.metrics.RecordJobFailed(string(job.Type), job.Duration().Seconds())
	}
	if m.emitter != nil {
		m.emitter.EmitJobFailed(ctx, job)
	}
	m.logger.Warn().
		Str("job_id", jobID.String()).
		Str("type", string(job.Type)).
		Str("error", message).
		Msg("job failed")
	return nil
}

// runCleanup deletes terminal jobs past the retention window on a
// fixed interval. An advisory lock keeps concurrent replicas from
// doing duplicate work.
func (m *Manager) runCleanup(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanupOnce(ctx)
		}
	}
}

func (m *Manager) cleanupOnce(ctx context.Context) {
	if m.locker != nil {
		acquired, err := m.locker.AcquireAdvisoryLock(ctx, cleanupLockKey)
		if err != nil {
			m.logger.Error().Err(err).Msg("cleanup lock acquisition failed")
			return
		}
		if !acquired {
			return
		}
		defer func() {
			if err := m.locker.ReleaseAdvisoryLock(ctx, cleanupLockKey); err != nil {
				m.logger.Error().Err(err).Msg("cleanup lock release failed")
			}
		}()
	}

	cutoff := time.Now().UTC().Add(-m.cfg.Retention)
	deleted, err := m.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		m.logger.Error().Err(err).Msg("terminal job cleanup failed")
		return
	}
	if deleted > 0 {
		m.logger.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("cleaned up terminal jobs")
	}
}
