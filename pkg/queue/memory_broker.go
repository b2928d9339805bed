package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBroker is an in-memory Broker for tests and local development. Jobs
// do not survive process restarts.
type MemoryBroker struct {
	mu     sync.RWMutex
	jobs   map[string]map[uuid.UUID]*Job
	paused map[string]bool
}

// NewMemoryBroker creates an empty in-memory broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		jobs:   make(map[string]map[uuid.UUID]*Job),
		paused: make(map[string]bool),
	}
}

func (b *MemoryBroker) queueJobs(queue string) map[uuid.UUID]*Job {
	jobs, ok := b.jobs[queue]
	if !ok {
		jobs = make(map[uuid.UUID]*Job)
		b.jobs[queue] = jobs
	}
	return jobs
}

// Enqueue persists a new job.
func (b *MemoryBroker) Enqueue(_ context.Context, job *Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *job
	b.queueJobs(job.Queue)[job.ID] = &cp
	return nil
}

// Claim leases the oldest runnable job. Jobs whose lease expired are treated
// as stalled and become claimable again alongside waiting jobs.
func (b *MemoryBroker) Claim(_ context.Context, queue string, workerID uuid.UUID, lease time.Duration) (*Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.paused[queue] {
		return nil, ErrNoJobToClaim
	}

	now := time.Now()
	b.markStalledLocked(queue, now)

	var candidates []*Job
	for _, job := range b.jobs[queue] {
		if (job.Status == StatusWaiting || job.Status == StatusStalled) && !job.RunAt.After(now) {
			candidates = append(candidates, job)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoJobToClaim
	}

	// FIFO by scheduled time, ties broken by creation time.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RunAt.Equal(candidates[j].RunAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].RunAt.Before(candidates[j].RunAt)
	})

	job := candidates[0]
	job.Status = StatusActive
	lockedUntil := now.Add(lease)
	job.LockedUntil = &lockedUntil
	job.LockedBy = &workerID

	cp := *job
	return &cp, nil
}

// markStalledLocked flags active jobs whose lease has expired. They stay in
// storage as stalled until reclaimed, failed, or completed.
func (b *MemoryBroker) markStalledLocked(queue string, now time.Time) {
	for _, job := range b.jobs[queue] {
		if job.Status == StatusActive && job.LockedUntil != nil && job.LockedUntil.Before(now) {
			job.Status = StatusStalled
			job.LockedUntil = nil
			job.LockedBy = nil
		}
	}
}

// Complete marks a job completed.
func (b *MemoryBroker) Complete(_ context.Context, queue string, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[queue][id]
	if !ok {
		return ErrJobNotFound
	}

	now := time.Now()
	job.Status = StatusCompleted
	job.Progress = 100
	job.ProcessedAt = &now
	job.LockedUntil = nil
	job.LockedBy = nil
	job.Error = nil
	return nil
}

// Fail records a failed execution and either reschedules the job with
// exponential backoff or marks it failed once the budget is exhausted.
func (b *MemoryBroker) Fail(_ context.Context, queue string, id uuid.UUID, errMsg string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[queue][id]
	if !ok {
		return false, ErrJobNotFound
	}

	now := time.Now()
	job.Attempts++
	job.Error = &errMsg
	job.LockedUntil = nil
	job.LockedBy = nil

	if job.Attempts >= job.MaxAttempts {
		job.Status = StatusFailed
		job.ProcessedAt = &now
		return true, nil
	}

	job.Status = StatusWaiting
	job.RunAt = now.Add(job.NextBackoff())
	return false, nil
}

// FailPermanently marks a job failed regardless of remaining retry budget.
func (b *MemoryBroker) FailPermanently(_ context.Context, queue string, id uuid.UUID, errMsg string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[queue][id]
	if !ok {
		return ErrJobNotFound
	}

	now := time.Now()
	job.Attempts++
	job.Status = StatusFailed
	job.Error = &errMsg
	job.ProcessedAt = &now
	job.LockedUntil = nil
	job.LockedBy = nil
	return nil
}

// Job returns a snapshot of a job.
func (b *MemoryBroker) Job(_ context.Context, queue string, id uuid.UUID) (*Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.markStalledLocked(queue, time.Now())

	job, ok := b.jobs[queue][id]
	if !ok {
		return nil, ErrJobNotFound
	}

	cp := *job
	return &cp, nil
}

// SetProgress updates a job's progress indicator.
func (b *MemoryBroker) SetProgress(_ context.Context, queue string, id uuid.UUID, progress int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[queue][id]
	if !ok {
		return ErrJobNotFound
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	job.Progress = progress
	return nil
}

// Stats returns job counts by presented status.
func (b *MemoryBroker) Stats(_ context.Context, queue string) (Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.markStalledLocked(queue, now)
	paused := b.paused[queue]

	var stats Stats
	for _, job := range b.jobs[queue] {
		switch job.PresentedStatus(paused, now) {
		case StatusWaiting, StatusStalled:
			stats.Waiting++
		case StatusActive:
			stats.Active++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		case StatusDelayed:
			stats.Delayed++
		case StatusPaused:
			stats.Paused++
		}
	}
	return stats, nil
}

// Pause stops consumption from the queue.
func (b *MemoryBroker) Pause(_ context.Context, queue string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.paused[queue] = true
	return nil
}

// Resume re-enables consumption.
func (b *MemoryBroker) Resume(_ context.Context, queue string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.paused[queue] = false
	return nil
}

// Paused reports whether the queue is paused.
func (b *MemoryBroker) Paused(_ context.Context, queue string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.paused[queue], nil
}

// Clean removes completed and failed jobs processed before olderThan.
func (b *MemoryBroker) Clean(_ context.Context, queue string, olderThan time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for id, job := range b.jobs[queue] {
		if job.Status != StatusCompleted && job.Status != StatusFailed {
			continue
		}
		if job.ProcessedAt != nil && job.ProcessedAt.Before(olderThan) {
			delete(b.jobs[queue], id)
			removed++
		}
	}
	return removed, nil
}

// RetryFailed re-enqueues every failed job with attempt accounting reset.
func (b *MemoryBroker) RetryFailed(_ context.Context, queue string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	retried := 0
	for _, job := range b.jobs[queue] {
		if job.Status != StatusFailed {
			continue
		}
		job.Status = StatusWaiting
		job.Attempts = 0
		job.Error = nil
		job.ProcessedAt = nil
		job.RunAt = now
		retried++
	}
	return retried, nil
}

// Close is a no-op for the in-memory broker.
func (b *MemoryBroker) Close() error {
	return nil
}

var _ Broker = (*MemoryBroker)(nil)
