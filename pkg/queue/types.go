package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusStalled marks a job whose worker lease expired mid-processing.
	// Stalled jobs remain claimable; the broker decides requeue-or-fail.
	StatusStalled Status = "stalled"

	// StatusDelayed and StatusPaused are derived, never stored: a waiting job
	// scheduled in the future is delayed, a waiting job on a paused queue is
	// paused.
	StatusDelayed Status = "delayed"
	StatusPaused  Status = "paused"
)

// DefaultMaxAttempts is the retry budget applied when neither the queue
// configuration nor the enqueue options override it.
const DefaultMaxAttempts int8 = 3

// DefaultBackoffBase is the first retry delay; each subsequent retry doubles it.
const DefaultBackoffBase = time.Second

// Job is a durable unit of asynchronous work.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	Queue       string          `json:"queue"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Attempts    int8            `json:"attempts"`
	MaxAttempts int8            `json:"max_attempts"`
	BackoffBase time.Duration   `json:"backoff_base"`
	Status      Status          `json:"status"`
	Progress    int             `json:"progress"`
	Error       *string         `json:"error,omitempty"`
	RunAt       time.Time       `json:"run_at"`
	LockedUntil *time.Time      `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID      `json:"locked_by,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NextBackoff returns the delay before the next retry: the base delay doubled
// for every attempt already made beyond the first.
func (j *Job) NextBackoff() time.Duration {
	base := j.BackoffBase
	if base <= 0 {
		base = DefaultBackoffBase
	}
	shift := int(j.Attempts) - 1
	if shift < 0 {
		shift = 0
	}
	return base << shift
}

// PresentedStatus derives the externally visible status from the stored one.
func (j *Job) PresentedStatus(paused bool, now time.Time) Status {
	if j.Status == StatusWaiting || j.Status == StatusStalled {
		if j.RunAt.After(now) {
			return StatusDelayed
		}
		if paused {
			return StatusPaused
		}
	}
	return j.Status
}

// JobStatus is the read model returned by status queries.
type JobStatus struct {
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats holds per-queue job counts by presented status.
type Stats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Delayed   int `json:"delayed"`
	Paused    int `json:"paused"`
}
