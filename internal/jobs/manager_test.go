package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/llm"
)

// memJobRepo is an in-memory JobRepository that enforces the
// single-active invariant the way the partial unique index does.
type memJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (r *memJobRepo) Create(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.jobs {
		if existing.PaperID == job.PaperID && existing.Type == job.Type && existing.IsActive() {
			return &domain.JobConflictError{
				PaperID:     job.PaperID,
				Type:        job.Type,
				ActiveJobID: existing.ID,
			}
		}
	}
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *memJobRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (r *memJobRepo) GetActive(_ context.Context, paperID uuid.UUID, jobType domain.JobType) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.PaperID == paperID && job.Type == jobType && job.IsActive() {
			copied := *job
			return &copied, nil
		}
	}
	return nil, domain.ErrJobNotFound
}

func (r *memJobRepo) ListByPaper(_ context.Context, paperID uuid.UUID) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Job
	for _, job := range r.jobs {
		if job.PaperID == paperID {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memJobRepo) Update(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *memJobRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, job := range r.jobs {
		if job.Status.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(r.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

// stubAction lets tests control the outcome of a job run.
type stubAction struct {
	jobType domain.JobType
	run     func(ctx context.Context, task Task, progress ProgressFunc) (map[string]interface{}, error)
}

func (a *stubAction) Type() domain.JobType { return a.jobType }

func (a *stubAction) Run(ctx context.Context, task Task, progress ProgressFunc) (map[string]interface{}, error) {
	return a.run(ctx, task, progress)
}

func newTestManager(repo *memJobRepo, cfg Config, actions ...Action) *Manager {
	m := NewManager(repo, nil, nil, cfg, zerolog.Nop(), nil)
	for _, a := range actions {
		m.RegisterAction(a)
	}
	return m
}

func waitForStatus(t *testing.T, repo *memJobRepo, jobID uuid.UUID, status domain.JobStatus) *domain.Job {
	t.Helper()
	var job *domain.Job
	require.Eventually(t, func() bool {
		j, err := repo.GetByID(context.Background(), jobID)
		if err != nil {
			return false
		}
		job = j
		return j.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestManager_SubmitAndComplete(t *testing.T) {
	repo := newMemJobRepo()
	action := &stubAction{
		jobType: domain.JobTypeSummary,
		run: func(_ context.Context, task Task, progress ProgressFunc) (map[string]interface{}, error) {
			progress(50, "halfway")
			return map[string]interface{}{"summary": "done"}, nil
		},
	}
	m := newTestManager(repo, Config{Workers: 1, QueueSize: 4}, action)
	m.Start(context.Background())
	defer m.Stop()

	paperID := uuid.New()
	job, err := m.Submit(context.Background(), paperID, domain.JobTypeSummary, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, job.Status)

	final := waitForStatus(t, repo, job.ID, domain.JobStatusCompleted)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, "done", final.Result["summary"])
	assert.NotNil(t, final.StartedAt)
	assert.NotNil(t, final.CompletedAt)
}

func TestManager_SubmitConflict(t *testing.T) {
	repo := newMemJobRepo()
	release := make(chan struct{})
	action := &stubAction{
		jobType: domain.JobTypeCitationExtraction,
		run: func(ctx context.Context, _ Task, _ ProgressFunc) (map[string]interface{}, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil, nil
		},
	}
	m := newTestManager(repo, Config{Workers: 1, QueueSize: 4}, action)
	m.Start(context.Background())
	defer func() {
		close(release)
		m.Stop()
	}()

	paperID := uuid.New()
	first, err := m.Submit(context.Background(), paperID, domain.JobTypeCitationExtraction, SubmitOptions{})
	require.NoError(t, err)

	_, err = m.Submit(context.Background(), paperID, domain.JobTypeCitationExtraction, SubmitOptions{})
	assert.ErrorIs(t, err, domain.ErrJobAlreadyActive)

	var conflict *domain.JobConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, first.ID, conflict.ActiveJobID)

	// A different paper is not blocked.
	_, err = m.Submit(context.Background(), uuid.New(), domain.JobTypeCitationExtraction, SubmitOptions{})
	assert.NoError(t, err)
}

func TestManager_SubmitUnregisteredType(t *testing.T) {
	m := newTestManager(newMemJobRepo(), Config{})

	_, err := m.Submit(context.Background(), uuid.New(), domain.JobTypeSummary, SubmitOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestManager_SubmitQueueFull(t *testing.T) {
	repo := newMemJobRepo()
	action := &stubAction{
		jobType: domain.JobTypeSummary,
		run: func(_ context.Context, _ Task, _ ProgressFunc) (map[string]interface{}, error) {
			return nil, nil
		},
	}
	// Workers never started, so the queue only drains by capacity.
	m := newTestManager(repo, Config{Workers: 1, QueueSize: 1}, action)

	_, err := m.Submit(context.Background(), uuid.New(), domain.JobTypeSummary, SubmitOptions{})
	require.NoError(t, err)

	rejected, err2 := m.Submit(context.Background(), uuid.New(), domain.JobTypeSummary, SubmitOptions{})
	assert.ErrorIs(t, err2, ErrQueueFull)
	assert.Nil(t, rejected)

	// The rejected job's row is terminal so the slot is free again.
	for _, job := range repo.jobs {
		if job.Status == domain.JobStatusFailed {
			assert.Contains(t, job.Error, "queue full")
			return
		}
	}
	t.Fatal("expected a failed job row for the rejected submission")
}

func TestManager_ReportProgress(t *testing.T) {
	repo := newMemJobRepo()
	m := newTestManager(repo, Config{})

	job := domain.NewJob(uuid.New(), domain.JobTypeSummary)
	require.NoError(t, repo.Create(context.Background(), job))

	require.NoError(t, m.ReportProgress(context.Background(), job.ID, 40, "fetching"))
	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.Progress)
	assert.Equal(t, "fetching", stored.ProgressMessage)

	// A regression is clamped to the stored value, not rejected.
	require.NoError(t, m.ReportProgress(context.Background(), job.ID, 20, "retrying"))
	stored, err = repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.Progress)
	assert.Equal(t, "retrying", stored.ProgressMessage)

	// Values above 100 are clamped down.
	require.NoError(t, m.ReportProgress(context.Background(), job.ID, 150, "overshoot"))
	stored, err = repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.Progress)
}

func TestManager_TerminalTransitions(t *testing.T) {
	repo := newMemJobRepo()
	m := newTestManager(repo, Config{})

	job := domain.NewJob(uuid.New(), domain.JobTypeSummary)
	require.NoError(t, repo.Create(context.Background(), job))
	require.NoError(t, m.Complete(context.Background(), job.ID, map[string]interface{}{"ok": true}))

	// Exactly one terminal transition per job.
	assert.ErrorIs(t, m.Complete(context.Background(), job.ID, nil), domain.ErrJobTerminal)
	assert.ErrorIs(t, m.Fail(context.Background(), job.ID, "late failure"), domain.ErrJobTerminal)
	assert.ErrorIs(t, m.ReportProgress(context.Background(), job.ID, 99, "late"), domain.ErrJobTerminal)

	// The terminal snapshot stays stable across polls.
	first, err := m.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	second, err := m.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.CompletedAt, second.CompletedAt)
}

func TestManager_FailedActionCategorized(t *testing.T) {
	repo := newMemJobRepo()
	action := &stubAction{
		jobType: domain.JobTypeSummary,
		run: func(_ context.Context, _ Task, _ ProgressFunc) (map[string]interface{}, error) {
			return nil, &llm.APIError{StatusCode: 429, Message: "rate limited"}
		},
	}
	m := newTestManager(repo, Config{Workers: 1, QueueSize: 4}, action)
	m.Start(context.Background())
	defer m.Stop()

	job, err := m.Submit(context.Background(), uuid.New(), domain.JobTypeSummary, SubmitOptions{})
	require.NoError(t, err)

	final := waitForStatus(t, repo, job.ID, domain.JobStatusFailed)
	assert.Contains(t, final.Error, "upstream-quota")
	assert.NotNil(t, final.CompletedAt)
}

func TestManager_PanickingActionFailsJob(t *testing.T) {
	repo := newMemJobRepo()
	action := &stubAction{
		jobType: domain.JobTypeSummary,
		run: func(_ context.Context, _ Task, _ ProgressFunc) (map[string]interface{}, error) {
			panic("summary exploded")
		},
	}
	m := newTestManager(repo, Config{Workers: 1, QueueSize: 4}, action)
	m.Start(context.Background())
	defer m.Stop()

	job, err := m.Submit(context.Background(), uuid.New(), domain.JobTypeSummary, SubmitOptions{})
	require.NoError(t, err)

	final := waitForStatus(t, repo, job.ID, domain.JobStatusFailed)
	assert.Contains(t, final.Error, "internal")
	assert.Contains(t, final.Error, "summary exploded")
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"llm quota", &llm.APIError{StatusCode: 429}, "upstream-quota"},
		{"llm auth", &llm.APIError{StatusCode: 401}, "upstream-auth"},
		{"llm network", &llm.APIError{StatusCode: 0}, "timeout"},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"rate limited", domain.ErrRateLimited, "upstream-quota"},
		{"unavailable", domain.ErrServiceUnavailable, "timeout"},
		{"generic", errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, categorize(tt.err))
		})
	}
}
