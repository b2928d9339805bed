package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBroker is a Redis-backed Broker. Jobs are stored as JSON blobs keyed
// by id, with one sorted set per lifecycle bucket:
//
//	waiting    scored by the scheduled run time
//	active     scored by the lease deadline
//	completed  scored by the processing time
//	failed     scored by the processing time
//
// Claiming is a Lua script so the waiting-to-active transition is atomic
// across competing workers. An active entry whose score is in the past is a
// stalled job; the claim script reclaims those alongside waiting ones.
type RedisBroker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBroker creates a broker over an established Redis client. The
// prefix namespaces all keys; pass "" for the default.
func NewRedisBroker(client redis.UniversalClient, prefix string) (*RedisBroker, error) {
	if client == nil {
		return nil, ErrBrokerNil
	}
	if prefix == "" {
		prefix = "queue"
	}
	return &RedisBroker{client: client, prefix: prefix}, nil
}

func (b *RedisBroker) waitingKey(queue string) string { return b.prefix + ":" + queue + ":waiting" }
func (b *RedisBroker) activeKey(queue string) string  { return b.prefix + ":" + queue + ":active" }
func (b *RedisBroker) completedKey(queue string) string {
	return b.prefix + ":" + queue + ":completed"
}
func (b *RedisBroker) failedKey(queue string) string { return b.prefix + ":" + queue + ":failed" }
func (b *RedisBroker) pausedKey(queue string) string { return b.prefix + ":" + queue + ":paused" }
func (b *RedisBroker) jobKey(queue string, id uuid.UUID) string {
	return b.prefix + ":" + queue + ":job:" + id.String()
}

// claimScript atomically moves one runnable job id into the active set.
// Preference order: due waiting jobs first, then stalled jobs whose lease
// deadline has passed. Returns the id and the source bucket, or false.
//
// KEYS[1] waiting zset, KEYS[2] active zset
// ARGV[1] now (unix ms), ARGV[2] lease deadline (unix ms)
var claimScript = redis.NewScript(`
local id = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)[1]
local src = 'waiting'
if not id then
	id = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1], 'LIMIT', 0, 1)[1]
	src = 'stalled'
end
if not id then
	return false
end
if src == 'waiting' then
	redis.call('ZREM', KEYS[1], id)
end
redis.call('ZADD', KEYS[2], ARGV[2], id)
return {id, src}
`)

// Enqueue persists a new job.
func (b *RedisBroker) Enqueue(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.jobKey(job.Queue, job.ID), raw, 0)
	pipe.ZAdd(ctx, b.waitingKey(job.Queue), redis.Z{
		Score:  float64(job.RunAt.UnixMilli()),
		Member: job.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Claim leases the next runnable job to workerID.
func (b *RedisBroker) Claim(ctx context.Context, queue string, workerID uuid.UUID, lease time.Duration) (*Job, error) {
	paused, err := b.Paused(ctx, queue)
	if err != nil {
		return nil, err
	}
	if paused {
		return nil, ErrNoJobToClaim
	}

	now := time.Now()
	res, err := claimScript.Run(ctx, b.client,
		[]string{b.waitingKey(queue), b.activeKey(queue)},
		now.UnixMilli(), now.Add(lease).UnixMilli(),
	).Result()
	if err == redis.Nil {
		return nil, ErrNoJobToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	parts, ok := res.([]any)
	if !ok || len(parts) != 2 {
		return nil, fmt.Errorf("unexpected claim script result: %v", res)
	}
	idStr, _ := parts[0].(string)
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse claimed job id %q: %w", idStr, err)
	}

	// The id is exclusively leased now, so the blob update is uncontended.
	job, err := b.loadJob(ctx, queue, id)
	if err != nil {
		// Dangling zset entry, drop it.
		b.client.ZRem(ctx, b.activeKey(queue), idStr)
		return nil, ErrNoJobToClaim
	}

	lockedUntil := now.Add(lease)
	job.Status = StatusActive
	job.LockedUntil = &lockedUntil
	job.LockedBy = &workerID

	if err := b.saveJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Complete marks a leased job completed.
func (b *RedisBroker) Complete(ctx context.Context, queue string, id uuid.UUID) error {
	job, err := b.loadJob(ctx, queue, id)
	if err != nil {
		return err
	}

	now := time.Now()
	job.Status = StatusCompleted
	job.Progress = 100
	job.ProcessedAt = &now
	job.LockedUntil = nil
	job.LockedBy = nil
	job.Error = nil

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.jobKey(queue, id), raw, 0)
	pipe.ZRem(ctx, b.activeKey(queue), id.String())
	pipe.ZAdd(ctx, b.completedKey(queue), redis.Z{Score: float64(now.UnixMilli()), Member: id.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// Fail records a failed execution, rescheduling with backoff or marking the
// job failed once the retry budget is exhausted.
func (b *RedisBroker) Fail(ctx context.Context, queue string, id uuid.UUID, errMsg string) (bool, error) {
	job, err := b.loadJob(ctx, queue, id)
	if err != nil {
		return false, err
	}

	now := time.Now()
	job.Attempts++
	job.Error = &errMsg
	job.LockedUntil = nil
	job.LockedBy = nil

	exhausted := job.Attempts >= job.MaxAttempts
	if exhausted {
		job.Status = StatusFailed
		job.ProcessedAt = &now
	} else {
		job.Status = StatusWaiting
		job.RunAt = now.Add(job.NextBackoff())
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.jobKey(queue, id), raw, 0)
	pipe.ZRem(ctx, b.activeKey(queue), id.String())
	if exhausted {
		pipe.ZAdd(ctx, b.failedKey(queue), redis.Z{Score: float64(now.UnixMilli()), Member: id.String()})
	} else {
		pipe.ZAdd(ctx, b.waitingKey(queue), redis.Z{Score: float64(job.RunAt.UnixMilli()), Member: id.String()})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to record job failure: %w", err)
	}
	return exhausted, nil
}

// FailPermanently marks a job failed regardless of remaining retry budget.
func (b *RedisBroker) FailPermanently(ctx context.Context, queue string, id uuid.UUID, errMsg string) error {
	job, err := b.loadJob(ctx, queue, id)
	if err != nil {
		return err
	}

	now := time.Now()
	job.Attempts++
	job.Status = StatusFailed
	job.Error = &errMsg
	job.ProcessedAt = &now
	job.LockedUntil = nil
	job.LockedBy = nil

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.jobKey(queue, id), raw, 0)
	pipe.ZRem(ctx, b.activeKey(queue), id.String())
	pipe.ZRem(ctx, b.waitingKey(queue), id.String())
	pipe.ZAdd(ctx, b.failedKey(queue), redis.Z{Score: float64(now.UnixMilli()), Member: id.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to permanently fail job: %w", err)
	}
	return nil
}

// Job returns a snapshot of a job. An active job whose lease has expired is
// reported as stalled.
func (b *RedisBroker) Job(ctx context.Context, queue string, id uuid.UUID) (*Job, error) {
	job, err := b.loadJob(ctx, queue, id)
	if err != nil {
		return nil, err
	}
	if job.Status == StatusActive && job.LockedUntil != nil && job.LockedUntil.Before(time.Now()) {
		job.Status = StatusStalled
		job.LockedUntil = nil
		job.LockedBy = nil
	}
	return job, nil
}

// SetProgress updates a job's progress indicator.
func (b *RedisBroker) SetProgress(ctx context.Context, queue string, id uuid.UUID, progress int) error {
	job, err := b.loadJob(ctx, queue, id)
	if err != nil {
		return err
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	job.Progress = progress
	return b.saveJob(ctx, job)
}

// Stats returns job counts by presented status. Stalled jobs count as
// waiting since they are claimable again.
func (b *RedisBroker) Stats(ctx context.Context, queue string) (Stats, error) {
	now := time.Now()
	nowArg := strconv.FormatInt(now.UnixMilli(), 10)

	pipe := b.client.Pipeline()
	dueWaiting := pipe.ZCount(ctx, b.waitingKey(queue), "-inf", nowArg)
	delayed := pipe.ZCount(ctx, b.waitingKey(queue), "("+nowArg, "+inf")
	stalled := pipe.ZCount(ctx, b.activeKey(queue), "-inf", nowArg)
	active := pipe.ZCount(ctx, b.activeKey(queue), "("+nowArg, "+inf")
	completed := pipe.ZCard(ctx, b.completedKey(queue))
	failed := pipe.ZCard(ctx, b.failedKey(queue))
	pausedFlag := pipe.Exists(ctx, b.pausedKey(queue))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Stats{}, fmt.Errorf("failed to read queue stats: %w", err)
	}

	runnable := int(dueWaiting.Val() + stalled.Val())
	stats := Stats{
		Active:    int(active.Val()),
		Completed: int(completed.Val()),
		Failed:    int(failed.Val()),
		Delayed:   int(delayed.Val()),
	}
	if pausedFlag.Val() > 0 {
		stats.Paused = runnable
	} else {
		stats.Waiting = runnable
	}
	return stats, nil
}

// Pause stops consumption from the queue.
func (b *RedisBroker) Pause(ctx context.Context, queue string) error {
	if err := b.client.Set(ctx, b.pausedKey(queue), "1", 0).Err(); err != nil {
		return fmt.Errorf("failed to pause queue: %w", err)
	}
	return nil
}

// Resume re-enables consumption.
func (b *RedisBroker) Resume(ctx context.Context, queue string) error {
	if err := b.client.Del(ctx, b.pausedKey(queue)).Err(); err != nil {
		return fmt.Errorf("failed to resume queue: %w", err)
	}
	return nil
}

// Paused reports whether the queue is paused.
func (b *RedisBroker) Paused(ctx context.Context, queue string) (bool, error) {
	n, err := b.client.Exists(ctx, b.pausedKey(queue)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read pause flag: %w", err)
	}
	return n > 0, nil
}

// Clean removes completed and failed jobs processed before olderThan.
func (b *RedisBroker) Clean(ctx context.Context, queue string, olderThan time.Time) (int, error) {
	cutoff := strconv.FormatInt(olderThan.UnixMilli(), 10)
	removed := 0

	for _, key := range []string{b.completedKey(queue), b.failedKey(queue)} {
		ids, err := b.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "-inf", Max: "(" + cutoff}).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to list old jobs: %w", err)
		}
		if len(ids) == 0 {
			continue
		}

		pipe := b.client.TxPipeline()
		members := make([]any, 0, len(ids))
		for _, idStr := range ids {
			members = append(members, idStr)
			if id, err := uuid.Parse(idStr); err == nil {
				pipe.Del(ctx, b.jobKey(queue, id))
			}
		}
		pipe.ZRem(ctx, key, members...)
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, fmt.Errorf("failed to remove old jobs: %w", err)
		}
		removed += len(ids)
	}
	return removed, nil
}

// RetryFailed re-enqueues every failed job with attempt accounting reset.
func (b *RedisBroker) RetryFailed(ctx context.Context, queue string) (int, error) {
	ids, err := b.client.ZRange(ctx, b.failedKey(queue), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list failed jobs: %w", err)
	}

	now := time.Now()
	retried := 0
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			b.client.ZRem(ctx, b.failedKey(queue), idStr)
			continue
		}

		job, err := b.loadJob(ctx, queue, id)
		if err != nil {
			b.client.ZRem(ctx, b.failedKey(queue), idStr)
			continue
		}

		job.Status = StatusWaiting
		job.Attempts = 0
		job.Error = nil
		job.ProcessedAt = nil
		job.RunAt = now

		raw, err := json.Marshal(job)
		if err != nil {
			return retried, fmt.Errorf("failed to marshal job: %w", err)
		}

		pipe := b.client.TxPipeline()
		pipe.Set(ctx, b.jobKey(queue, id), raw, 0)
		pipe.ZRem(ctx, b.failedKey(queue), idStr)
		pipe.ZAdd(ctx, b.waitingKey(queue), redis.Z{Score: float64(now.UnixMilli()), Member: idStr})
		if _, err := pipe.Exec(ctx); err != nil {
			return retried, fmt.Errorf("failed to re-enqueue job %s: %w", id, err)
		}
		retried++
	}
	return retried, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisBroker) Close() error {
	return nil
}

func (b *RedisBroker) loadJob(ctx context.Context, queue string, id uuid.UUID) (*Job, error) {
	raw, err := b.client.Get(ctx, b.jobKey(queue, id)).Bytes()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}

	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

func (b *RedisBroker) saveJob(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := b.client.Set(ctx, b.jobKey(job.Queue, job.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

var _ Broker = (*RedisBroker)(nil)
