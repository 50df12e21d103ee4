package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/llm"
)

// runWorker drains the queue until the run context is cancelled.
// In-flight jobs finish; the queue drains no further once ctx is done.
func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()

	logger := m.logger.With().Int("worker", id).Logger()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-m.queue:
			if m.metrics != nil {
				m.metrics.JobQueueDepth.Dec()
			}
			m.execute(ctx, task, logger)
		}
	}
}

// execute runs one task through its action, translating panics and
// errors into a failed terminal state.
func (m *Manager) execute(ctx context.Context, task Task, logger zerolog.Logger) {
	jobID := task.Job.ID

	action, ok := m.actions[task.Job.Type]
	if !ok {
		m.failJob(ctx, jobID, fmt.Errorf("no action registered for job type %q", task.Job.Type))
		return
	}

	if err := m.markRunning(ctx, task.Job); err != nil {
		logger.Error().Err(err).
			Str("job_id", jobID.String()).
			Msg("failed to mark job running")
		return
	}

	logger.Info().
		Str("job_id", jobID.String()).
		Str("type", string(task.Job.Type)).
		Msg("job started")

	progress := func(percent int, message string) {
		if err := m.ReportProgress(ctx, jobID, percent, message); err != nil {
			logger.Warn().Err(err).
				Str("job_id", jobID.String()).
				Msg("progress update dropped")
		}
	}

	result, err := m.runAction(ctx, action, task, progress, logger)
	if err != nil {
		m.failJob(ctx, jobID, err)
		return
	}

	if err := m.Complete(ctx, jobID, result); err != nil {
		logger.Error().Err(err).
			Str("job_id", jobID.String()).
			Msg("failed to complete job")
	}
}

// runAction invokes the action with panic recovery. A panicking action
// fails its job instead of taking the worker down.
func (m *Manager) runAction(ctx context.Context, action Action, task Task, progress ProgressFunc, logger zerolog.Logger) (result map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("job_id", task.Job.ID.String()).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("job action panicked")
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return action.Run(ctx, task, progress)
}

// markRunning transitions a queued job to running.
func (m *Manager) markRunning(ctx context.Context, job *domain.Job) error {
	now := time.Now().UTC()
	job.Status = domain.JobStatusRunning
	job.StartedAt = &now
	return m.repo.Update(ctx, job)
}

// failJob records the failure with a categorized message so callers
// can tell retryable upstream trouble from configuration errors.
func (m *Manager) failJob(ctx context.Context, jobID uuid.UUID, cause error) {
	message := fmt.Sprintf("%s: %s", categorize(cause), cause.Error())
	if err := m.Fail(ctx, jobID, message); err != nil {
		m.logger.Error().Err(err).
			Str("job_id", jobID.String()).
			Msg("failed to record job failure")
	}
}

// categorize maps an action error to a failure category:
// upstream-quota, upstream-auth, timeout, or internal.
func categorize(err error) string {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrRateLimited):
		return "upstream-quota"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "timeout"
	default:
		return "internal"
	}
}
