package queue_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peoplehub/dispatch/pkg/queue"
)

func newTestJob(t *testing.T, queueName, jobType string) *queue.Job {
	t.Helper()
	now := time.Now()
	return &queue.Job{
		ID:          uuid.New(),
		Queue:       queueName,
		Type:        jobType,
		Payload:     json.RawMessage(`{"user_id":42}`),
		MaxAttempts: 3,
		BackoffBase: time.Second,
		Status:      queue.StatusWaiting,
		RunAt:       now,
		CreatedAt:   now,
	}
}

func TestMemoryBroker_EnqueueAndClaim(t *testing.T) {
	t.Parallel()

	t.Run("claims enqueued job", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		ctx := context.Background()
		workerID := uuid.New()

		job := newTestJob(t, "emails", "email:welcome")
		require.NoError(t, broker.Enqueue(ctx, job))

		claimed, err := broker.Claim(ctx, "emails", workerID, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, job.ID, claimed.ID)
		assert.Equal(t, queue.StatusActive, claimed.Status)
		require.NotNil(t, claimed.LockedBy)
		assert.Equal(t, workerID, *claimed.LockedBy)
		assert.JSONEq(t, `{"user_id":42}`, string(claimed.Payload))
	})

	t.Run("empty queue returns ErrNoJobToClaim", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		_, err := broker.Claim(context.Background(), "emails", uuid.New(), time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoJobToClaim)
	})

	t.Run("claims oldest runnable job first", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		ctx := context.Background()

		first := newTestJob(t, "emails", "email:welcome")
		first.RunAt = time.Now().Add(-2 * time.Minute)
		second := newTestJob(t, "emails", "email:welcome")
		second.RunAt = time.Now().Add(-time.Minute)

		require.NoError(t, broker.Enqueue(ctx, second))
		require.NoError(t, broker.Enqueue(ctx, first))

		claimed, err := broker.Claim(ctx, "emails", uuid.New(), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, first.ID, claimed.ID)
	})

	t.Run("delayed job is not claimable before its run time", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		ctx := context.Background()

		job := newTestJob(t, "emails", "email:welcome")
		job.RunAt = time.Now().Add(time.Hour)
		require.NoError(t, broker.Enqueue(ctx, job))

		_, err := broker.Claim(ctx, "emails", uuid.New(), time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoJobToClaim)
	})

	t.Run("claimed job is not claimable again while leased", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		ctx := context.Background()

		job := newTestJob(t, "emails", "email:welcome")
		require.NoError(t, broker.Enqueue(ctx, job))

		_, err := broker.Claim(ctx, "emails", uuid.New(), time.Minute)
		require.NoError(t, err)

		_, err = broker.Claim(ctx, "emails", uuid.New(), time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoJobToClaim)
	})

	t.Run("paused queue yields no jobs", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		ctx := context.Background()

		require.NoError(t, broker.Enqueue(ctx, newTestJob(t, "emails", "email:welcome")))
		require.NoError(t, broker.Pause(ctx, "emails"))

		_, err := broker.Claim(ctx, "emails", uuid.New(), time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoJobToClaim)

		require.NoError(t, broker.Resume(ctx, "emails"))
		_, err = broker.Claim(ctx, "emails", uuid.New(), time.Minute)
		assert.NoError(t, err)
	})
}

func TestMemoryBroker_StalledJobs(t *testing.T) {
	t.Parallel()

	t.Run("expired lease makes job claimable again", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		ctx := context.Background()

		job := newTestJob(t, "emails", "email:welcome")
		require.NoError(t, broker.Enqueue(ctx, job))

		_, err := broker.Claim(ctx, "emails", uuid.New(), time.Millisecond)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		snapshot, err := broker.Job(ctx, "emails", job.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusStalled, snapshot.Status)

		reclaimed, err := broker.Claim(ctx, "emails", uuid.New(), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, job.ID, reclaimed.ID)
		assert.Equal(t, queue.StatusActive, reclaimed.Status)
	})
}

func TestMemoryBroker_CompleteAndFail(t *testing.T) {
	t.Parallel()

	t.Run("complete finalizes the job", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		ctx := context.Background()

		job := newTestJob(t, "emails", "email:welcome")
		require.NoError(t, broker.Enqueue(ctx, job))
		_, err := broker.Claim(ctx, "emails", uuid.New(), time.Minute)
		require.NoError(t, err)

		require.NoError(t, broker.Complete(ctx, "emails", job.ID))

		snapshot, err := broker.Job(ctx, "emails", job.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusCompleted, snapshot.Status)
		assert.Equal(t, 100, snapshot.Progress)
		assert.NotNil(t, snapshot.ProcessedAt)
		assert.Nil(t, snapshot.Error)
	})

	t.Run("fail reschedules with backoff until budget exhausted", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		ctx := context.Background()

		job := newTestJob(t, "emails", "email:welcome")
		job.MaxAttempts = 3
		require.NoError(t, broker.Enqueue(ctx, job))

		before := time.Now()
		exhausted, err := broker.Fail(ctx, "emails", job.ID, "smtp timeout")
		require.NoError(t, err)
		assert.False(t, exhausted)

		snapshot, err := broker.Job(ctx, "emails", job.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusWaiting, snapshot.Status)
		assert.EqualValues(t, 1, snapshot.Attempts)
		require.NotNil(t, snapshot.Error)
		assert.Equal(t, "smtp timeout", *snapshot.Error)
		// First retry: base delay of one second.
		assert.True(t, snapshot.RunAt.After(before.Add(900*time.Millisecond)))

		firstRetryAt := snapshot.RunAt

		exhausted, err = broker.Fail(ctx, "emails", job.ID, "smtp timeout")
		require.NoError(t, err)
		assert.False(t, exhausted)

		snapshot, err = broker.Job(ctx, "emails", job.ID)
		require.NoError(t, err)
		// Second retry delay doubles, so it lands strictly later.
		assert.True(t, snapshot.RunAt.After(firstRetryAt))

		exhausted, err = broker.Fail(ctx, "emails", job.ID, "smtp timeout")
		require.NoError(t, err)
		assert.True(t, exhausted)

		snapshot, err = broker.Job(ctx, "emails", job.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusFailed, snapshot.Status)
		assert.EqualValues(t, 3, snapshot.Attempts)
	})

	t.Run("fail permanently skips remaining budget", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		ctx := context.Background()

		job := newTestJob(t, "emails", "email:welcome")
		require.NoError(t, broker.Enqueue(ctx, job))

		require.NoError(t, broker.FailPermanently(ctx, "emails", job.ID, "no handler"))

		snapshot, err := broker.Job(ctx, "emails", job.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusFailed, snapshot.Status)
		assert.EqualValues(t, 1, snapshot.Attempts)
	})

	t.Run("unknown job id", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		ctx := context.Background()

		assert.ErrorIs(t, broker.Complete(ctx, "emails", uuid.New()), queue.ErrJobNotFound)
		_, err := broker.Fail(ctx, "emails", uuid.New(), "boom")
		assert.ErrorIs(t, err, queue.ErrJobNotFound)
		_, err = broker.Job(ctx, "emails", uuid.New())
		assert.ErrorIs(t, err, queue.ErrJobNotFound)
	})
}

func TestMemoryBroker_Progress(t *testing.T) {
	t.Parallel()

	broker := queue.NewMemoryBroker()
	ctx := context.Background()

	job := newTestJob(t, "reports", "report:attendance")
	require.NoError(t, broker.Enqueue(ctx, job))

	require.NoError(t, broker.SetProgress(ctx, "reports", job.ID, 55))
	snapshot, err := broker.Job(ctx, "reports", job.ID)
	require.NoError(t, err)
	assert.Equal(t, 55, snapshot.Progress)

	// Values outside 0-100 are clamped.
	require.NoError(t, broker.SetProgress(ctx, "reports", job.ID, 150))
	snapshot, err = broker.Job(ctx, "reports", job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, snapshot.Progress)

	assert.ErrorIs(t, broker.SetProgress(ctx, "reports", uuid.New(), 10), queue.ErrJobNotFound)
}

func TestMemoryBroker_Stats(t *testing.T) {
	t.Parallel()

	broker := queue.NewMemoryBroker()
	ctx := context.Background()

	waiting := newTestJob(t, "emails", "email:welcome")
	require.NoError(t, broker.Enqueue(ctx, waiting))

	delayed := newTestJob(t, "emails", "email:welcome")
	delayed.RunAt = time.Now().Add(time.Hour)
	require.NoError(t, broker.Enqueue(ctx, delayed))

	done := newTestJob(t, "emails", "email:welcome")
	require.NoError(t, broker.Enqueue(ctx, done))
	require.NoError(t, broker.Complete(ctx, "emails", done.ID))

	failed := newTestJob(t, "emails", "email:welcome")
	require.NoError(t, broker.Enqueue(ctx, failed))
	require.NoError(t, broker.FailPermanently(ctx, "emails", failed.ID, "boom"))

	stats, err := broker.Stats(ctx, "emails")
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{Waiting: 1, Completed: 1, Failed: 1, Delayed: 1}, stats)

	// Pausing reclassifies runnable jobs.
	require.NoError(t, broker.Pause(ctx, "emails"))
	stats, err = broker.Stats(ctx, "emails")
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{Paused: 1, Completed: 1, Failed: 1, Delayed: 1}, stats)
}

func TestMemoryBroker_Clean(t *testing.T) {
	t.Parallel()

	broker := queue.NewMemoryBroker()
	ctx := context.Background()

	old := newTestJob(t, "emails", "email:welcome")
	require.NoError(t, broker.Enqueue(ctx, old))
	require.NoError(t, broker.Complete(ctx, "emails", old.ID))

	pending := newTestJob(t, "emails", "email:welcome")
	require.NoError(t, broker.Enqueue(ctx, pending))

	// Cutoff in the future sweeps everything already processed.
	removed, err := broker.Clean(ctx, "emails", time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = broker.Job(ctx, "emails", old.ID)
	assert.ErrorIs(t, err, queue.ErrJobNotFound)

	// Waiting jobs are untouched.
	_, err = broker.Job(ctx, "emails", pending.ID)
	assert.NoError(t, err)
}

func TestMemoryBroker_RetryFailed(t *testing.T) {
	t.Parallel()

	broker := queue.NewMemoryBroker()
	ctx := context.Background()

	failed := newTestJob(t, "emails", "email:welcome")
	require.NoError(t, broker.Enqueue(ctx, failed))
	require.NoError(t, broker.FailPermanently(ctx, "emails", failed.ID, "boom"))

	completed := newTestJob(t, "emails", "email:welcome")
	require.NoError(t, broker.Enqueue(ctx, completed))
	require.NoError(t, broker.Complete(ctx, "emails", completed.ID))

	retried, err := broker.RetryFailed(ctx, "emails")
	require.NoError(t, err)
	assert.Equal(t, 1, retried)

	snapshot, err := broker.Job(ctx, "emails", failed.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusWaiting, snapshot.Status)
	assert.EqualValues(t, 0, snapshot.Attempts)
	assert.Nil(t, snapshot.Error)

	// Completed jobs stay completed.
	snapshot, err = broker.Job(ctx, "emails", completed.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusCompleted, snapshot.Status)
}

func TestMemoryBroker_QueueIsolation(t *testing.T) {
	t.Parallel()

	broker := queue.NewMemoryBroker()
	ctx := context.Background()

	job := newTestJob(t, "emails", "email:welcome")
	require.NoError(t, broker.Enqueue(ctx, job))

	_, err := broker.Claim(ctx, "reports", uuid.New(), time.Minute)
	assert.ErrorIs(t, err, queue.ErrNoJobToClaim)

	_, err = broker.Job(ctx, "reports", job.ID)
	assert.ErrorIs(t, err, queue.ErrJobNotFound)
}
