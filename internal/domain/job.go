package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job tracks one asynchronous operation over a paper. Clients poll it by ID;
// there is no push channel.
type Job struct {
	ID              uuid.UUID
	PaperID         uuid.UUID
	Type            JobType
	Status          JobStatus
	Progress        int
	ProgressMessage string
	Result          map[string]interface{}
	Error           string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// NewJob creates a queued job for the given paper and type.
func NewJob(paperID uuid.UUID, jobType JobType) *Job {
	return &Job{
		ID:        uuid.New(),
		PaperID:   paperID,
		Type:      jobType,
		Status:    JobStatusQueued,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}
}

// IsActive returns true while the job still occupies the per-paper slot for
// its type.
func (j *Job) IsActive() bool {
	return !j.Status.IsTerminal()
}

// Duration returns the wall time between start and completion, or zero if
// either timestamp is unset.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}
