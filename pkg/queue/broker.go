package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Broker is the durable store behind the queue manager. Implementations must
// make Claim atomic: a job is leased to at most one worker at a time, which
// is what upholds the at-most-one-concurrent-execution guarantee.
type Broker interface {
	// Enqueue persists a new job. Returning nil means the job is durably
	// acknowledged; processing happens later.
	Enqueue(ctx context.Context, job *Job) error

	// Claim atomically leases the next runnable job of the queue to workerID
	// for the lease duration. Returns ErrNoJobToClaim when the queue is empty,
	// paused, or holds only delayed jobs.
	Claim(ctx context.Context, queue string, workerID uuid.UUID, lease time.Duration) (*Job, error)

	// Complete marks a leased job completed.
	Complete(ctx context.Context, queue string, id uuid.UUID) error

	// Fail records a failed execution: the attempt count is incremented and
	// the job is either rescheduled with exponential backoff or, once the
	// budget is exhausted, marked failed. Reports whether the budget is
	// exhausted.
	Fail(ctx context.Context, queue string, id uuid.UUID, errMsg string) (exhausted bool, err error)

	// FailPermanently marks a job failed without consuming the remaining
	// retry budget. Used for deterministic failures such as unknown job types.
	FailPermanently(ctx context.Context, queue string, id uuid.UUID, errMsg string) error

	// Job returns a snapshot of a job, or ErrJobNotFound.
	Job(ctx context.Context, queue string, id uuid.UUID) (*Job, error)

	// SetProgress updates a job's progress indicator, or ErrJobNotFound.
	SetProgress(ctx context.Context, queue string, id uuid.UUID, progress int) error

	// Stats returns job counts for the queue by presented status.
	Stats(ctx context.Context, queue string) (Stats, error)

	// Pause stops consumption from the queue without losing enqueued jobs.
	Pause(ctx context.Context, queue string) error

	// Resume re-enables consumption.
	Resume(ctx context.Context, queue string) error

	// Paused reports whether the queue is paused.
	Paused(ctx context.Context, queue string) (bool, error)

	// Clean removes completed and failed jobs processed before olderThan.
	// Waiting, active, and delayed jobs are never touched. Returns the number
	// of removed jobs.
	Clean(ctx context.Context, queue string, olderThan time.Time) (int, error)

	// RetryFailed re-enqueues every failed job of the queue with attempt
	// accounting reset. Returns the number of re-enqueued jobs.
	RetryFailed(ctx context.Context, queue string) (int, error)

	// Close releases broker resources.
	Close() error
}
