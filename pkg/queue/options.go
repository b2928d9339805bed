package queue

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// QueueConfig holds the per-queue defaults applied to enqueued jobs and the
// consumption concurrency of the queue's worker loop.
type QueueConfig struct {
	MaxAttempts int8
	BackoffBase time.Duration
	Concurrency int
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return c
}

// ManagerOption is a functional option for configuring a Manager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	queues       map[string]QueueConfig
	pollInterval time.Duration
	lockTimeout  time.Duration
	logger       *slog.Logger
}

// WithQueue declares a named queue. The fixed queue set is established at
// construction; queues are never created at runtime.
func WithQueue(name string, cfg QueueConfig) ManagerOption {
	return func(o *managerOptions) {
		if name != "" {
			o.queues[name] = cfg.withDefaults()
		}
	}
}

// WithPollInterval sets how often each queue's worker loop checks for jobs.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithLockTimeout sets the lease duration for claimed jobs. A worker that
// holds a job past this deadline is considered dead and the job stalls.
func WithLockTimeout(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithManagerLogger sets the logger for the manager and its worker loops.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(o *managerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// JobOption is a functional option for AddJob.
type JobOption func(*jobOptions)

type jobOptions struct {
	id          uuid.UUID
	delay       time.Duration
	maxAttempts int8
}

// WithJobID sets an explicit job ID instead of a generated one. Useful for
// idempotent enqueue from callers that derive the ID from their own state.
func WithJobID(id uuid.UUID) JobOption {
	return func(o *jobOptions) {
		if id != uuid.Nil {
			o.id = id
		}
	}
}

// WithDelay defers the job's first execution.
func WithDelay(d time.Duration) JobOption {
	return func(o *jobOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithMaxAttempts overrides the queue's retry budget for this job (1-10).
// The cap prevents unbounded retry loops on persistent failures.
func WithMaxAttempts(n int8) JobOption {
	return func(o *jobOptions) {
		if n >= 1 && n <= 10 {
			o.maxAttempts = n
		}
	}
}
