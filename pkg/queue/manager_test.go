package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peoplehub/dispatch/pkg/queue"
)

type welcomePayload struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

func newTestManager(t *testing.T, broker queue.Broker, queues ...string) *queue.Manager {
	t.Helper()

	opts := []queue.ManagerOption{
		queue.WithPollInterval(5 * time.Millisecond),
	}
	for _, name := range queues {
		opts = append(opts, queue.WithQueue(name, queue.QueueConfig{
			BackoffBase: time.Millisecond,
			Concurrency: 2,
		}))
	}

	manager, err := queue.NewManager(broker, opts...)
	require.NoError(t, err)
	return manager
}

func TestNewManager(t *testing.T) {
	t.Parallel()

	t.Run("nil broker", func(t *testing.T) {
		t.Parallel()

		_, err := queue.NewManager(nil, queue.WithQueue("emails", queue.QueueConfig{}))
		assert.ErrorIs(t, err, queue.ErrBrokerNil)
	})

	t.Run("no queues declared", func(t *testing.T) {
		t.Parallel()

		_, err := queue.NewManager(queue.NewMemoryBroker())
		assert.ErrorIs(t, err, queue.ErrNoQueues)
	})

	t.Run("valid configuration", func(t *testing.T) {
		t.Parallel()

		manager, err := queue.NewManager(queue.NewMemoryBroker(),
			queue.WithQueue("emails", queue.QueueConfig{}),
			queue.WithQueue("reports", queue.QueueConfig{}),
		)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"emails", "reports"}, manager.Queues())
	})
}

func TestManager_Register(t *testing.T) {
	t.Parallel()

	noop := func(ctx context.Context, payload json.RawMessage) error { return nil }

	t.Run("unknown queue", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, queue.NewMemoryBroker(), "emails")
		err := manager.Register("nope", "email:welcome", noop)
		assert.ErrorIs(t, err, queue.ErrUnknownQueue)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, queue.NewMemoryBroker(), "emails")
		require.NoError(t, manager.Register("emails", "email:welcome", noop))
		err := manager.Register("emails", "email:welcome", noop)
		assert.ErrorIs(t, err, queue.ErrHandlerExists)
	})

	t.Run("same type on different queues", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, queue.NewMemoryBroker(), "emails", "reports")
		require.NoError(t, manager.Register("emails", "cleanup", noop))
		assert.NoError(t, manager.Register("reports", "cleanup", noop))
	})
}

func TestManager_AddJob(t *testing.T) {
	t.Parallel()

	t.Run("unknown queue is rejected synchronously", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, queue.NewMemoryBroker(), "emails")
		_, err := manager.AddJob(context.Background(), "nope", "email:welcome", welcomePayload{UserID: 1})
		assert.ErrorIs(t, err, queue.ErrUnknownQueue)
	})

	t.Run("nil payload is rejected", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, queue.NewMemoryBroker(), "emails")
		_, err := manager.AddJob(context.Background(), "emails", "email:welcome", nil)
		assert.ErrorIs(t, err, queue.ErrPayloadNil)
	})

	t.Run("returns id and status is waiting", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, queue.NewMemoryBroker(), "emails")
		id, err := manager.AddJob(context.Background(), "emails", "email:welcome", welcomePayload{UserID: 1})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)

		status, err := manager.JobStatus(context.Background(), "emails", id)
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, queue.StatusWaiting, status.Status)
		assert.Equal(t, 0, status.Attempts)
	})

	t.Run("explicit job id is honored", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, queue.NewMemoryBroker(), "emails")
		want := uuid.New()
		id, err := manager.AddJob(context.Background(), "emails", "email:welcome",
			welcomePayload{UserID: 1}, queue.WithJobID(want))
		require.NoError(t, err)
		assert.Equal(t, want, id)

		status, err := manager.JobStatus(context.Background(), "emails", want)
		require.NoError(t, err)
		require.NotNil(t, status)
	})

	t.Run("delayed job reports delayed status", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, queue.NewMemoryBroker(), "emails")
		id, err := manager.AddJob(context.Background(), "emails", "email:welcome",
			welcomePayload{UserID: 1}, queue.WithDelay(time.Hour))
		require.NoError(t, err)

		status, err := manager.JobStatus(context.Background(), "emails", id)
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, queue.StatusDelayed, status.Status)
	})
}

func TestManager_JobStatus(t *testing.T) {
	t.Parallel()

	t.Run("unknown queue yields nil without error", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, queue.NewMemoryBroker(), "emails")
		status, err := manager.JobStatus(context.Background(), "nope", uuid.New())
		require.NoError(t, err)
		assert.Nil(t, status)
	})

	t.Run("unknown job yields nil without error", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, queue.NewMemoryBroker(), "emails")
		status, err := manager.JobStatus(context.Background(), "emails", uuid.New())
		require.NoError(t, err)
		assert.Nil(t, status)
	})
}

func TestManager_Processing(t *testing.T) {
	t.Parallel()

	t.Run("handler receives the enqueued payload exactly once", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		manager := newTestManager(t, broker, "emails")

		var calls atomic.Int64
		received := make(chan welcomePayload, 1)
		require.NoError(t, manager.Register("emails", "email:welcome", func(ctx context.Context, payload json.RawMessage) error {
			calls.Add(1)
			var p welcomePayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return err
			}
			received <- p
			return nil
		}))

		require.NoError(t, manager.Start(context.Background()))
		defer manager.Stop()

		sent := welcomePayload{UserID: 42, Email: "jane@example.com"}
		id, err := manager.AddJob(context.Background(), "emails", "email:welcome", sent)
		require.NoError(t, err)

		select {
		case got := <-received:
			assert.Equal(t, sent, got)
		case <-time.After(2 * time.Second):
			t.Fatal("handler was not invoked")
		}

		assert.Eventually(t, func() bool {
			status, err := manager.JobStatus(context.Background(), "emails", id)
			return err == nil && status != nil && status.Status == queue.StatusCompleted
		}, 2*time.Second, 10*time.Millisecond)

		assert.EqualValues(t, 1, calls.Load())

		status, err := manager.JobStatus(context.Background(), "emails", id)
		require.NoError(t, err)
		assert.Equal(t, 100, status.Progress)
	})

	t.Run("failing handler is retried then succeeds", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		manager := newTestManager(t, broker, "emails")

		var calls atomic.Int64
		require.NoError(t, manager.Register("emails", "email:welcome", func(ctx context.Context, payload json.RawMessage) error {
			if calls.Add(1) < 3 {
				return errors.New("transient failure")
			}
			return nil
		}))

		require.NoError(t, manager.Start(context.Background()))
		defer manager.Stop()

		id, err := manager.AddJob(context.Background(), "emails", "email:welcome", welcomePayload{UserID: 1})
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			status, err := manager.JobStatus(context.Background(), "emails", id)
			return err == nil && status != nil && status.Status == queue.StatusCompleted
		}, 5*time.Second, 10*time.Millisecond)

		assert.EqualValues(t, 3, calls.Load())
	})

	t.Run("exhausted retry budget lands in failed", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		manager := newTestManager(t, broker, "emails")

		var calls atomic.Int64
		require.NoError(t, manager.Register("emails", "email:welcome", func(ctx context.Context, payload json.RawMessage) error {
			calls.Add(1)
			return errors.New("persistent failure")
		}))

		require.NoError(t, manager.Start(context.Background()))
		defer manager.Stop()

		id, err := manager.AddJob(context.Background(), "emails", "email:welcome",
			welcomePayload{UserID: 1}, queue.WithMaxAttempts(2))
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			status, err := manager.JobStatus(context.Background(), "emails", id)
			return err == nil && status != nil && status.Status == queue.StatusFailed
		}, 5*time.Second, 10*time.Millisecond)

		assert.EqualValues(t, 2, calls.Load())

		status, err := manager.JobStatus(context.Background(), "emails", id)
		require.NoError(t, err)
		assert.Equal(t, 2, status.Attempts)
	})

	t.Run("unregistered job type fails immediately", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		manager := newTestManager(t, broker, "emails")

		require.NoError(t, manager.Register("emails", "email:welcome", func(ctx context.Context, payload json.RawMessage) error {
			return nil
		}))

		require.NoError(t, manager.Start(context.Background()))
		defer manager.Stop()

		id, err := manager.AddJob(context.Background(), "emails", "email:never-registered", welcomePayload{UserID: 1})
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			status, err := manager.JobStatus(context.Background(), "emails", id)
			return err == nil && status != nil && status.Status == queue.StatusFailed
		}, 2*time.Second, 10*time.Millisecond)

		// One recorded attempt, no retries burned.
		status, err := manager.JobStatus(context.Background(), "emails", id)
		require.NoError(t, err)
		assert.Equal(t, 1, status.Attempts)
	})

	t.Run("panicking handler counts as a failed attempt", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		manager := newTestManager(t, broker, "emails")

		var calls atomic.Int64
		require.NoError(t, manager.Register("emails", "email:welcome", func(ctx context.Context, payload json.RawMessage) error {
			if calls.Add(1) == 1 {
				panic("handler exploded")
			}
			return nil
		}))

		require.NoError(t, manager.Start(context.Background()))
		defer manager.Stop()

		id, err := manager.AddJob(context.Background(), "emails", "email:welcome", welcomePayload{UserID: 1})
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			status, err := manager.JobStatus(context.Background(), "emails", id)
			return err == nil && status != nil && status.Status == queue.StatusCompleted
		}, 5*time.Second, 10*time.Millisecond)

		assert.EqualValues(t, 2, calls.Load())
	})

	t.Run("queues are consumed independently", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		manager := newTestManager(t, broker, "emails", "reports")

		emailDone := make(chan struct{}, 1)
		reportDone := make(chan struct{}, 1)
		require.NoError(t, manager.Register("emails", "email:welcome", func(ctx context.Context, payload json.RawMessage) error {
			emailDone <- struct{}{}
			return nil
		}))
		require.NoError(t, manager.Register("reports", "report:attendance", func(ctx context.Context, payload json.RawMessage) error {
			reportDone <- struct{}{}
			return nil
		}))

		require.NoError(t, manager.Start(context.Background()))
		defer manager.Stop()

		_, err := manager.AddJob(context.Background(), "emails", "email:welcome", welcomePayload{UserID: 1})
		require.NoError(t, err)
		_, err = manager.AddJob(context.Background(), "reports", "report:attendance", map[string]any{"month": "2024-06"})
		require.NoError(t, err)

		for _, ch := range []chan struct{}{emailDone, reportDone} {
			select {
			case <-ch:
			case <-time.After(2 * time.Second):
				t.Fatal("handler was not invoked")
			}
		}
	})
}

func TestManager_PauseResume(t *testing.T) {
	t.Parallel()

	broker := queue.NewMemoryBroker()
	manager := newTestManager(t, broker, "emails")

	var calls atomic.Int64
	require.NoError(t, manager.Register("emails", "email:welcome", func(ctx context.Context, payload json.RawMessage) error {
		calls.Add(1)
		return nil
	}))

	require.NoError(t, manager.PauseQueue(context.Background(), "emails"))
	require.NoError(t, manager.Start(context.Background()))
	defer manager.Stop()

	id, err := manager.AddJob(context.Background(), "emails", "email:welcome", welcomePayload{UserID: 1})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 0, calls.Load())

	status, err := manager.JobStatus(context.Background(), "emails", id)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPaused, status.Status)

	require.NoError(t, manager.ResumeQueue(context.Background(), "emails"))

	assert.Eventually(t, func() bool {
		return calls.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_QueueStats(t *testing.T) {
	t.Parallel()

	broker := queue.NewMemoryBroker()
	manager := newTestManager(t, broker, "emails")

	_, err := manager.AddJob(context.Background(), "emails", "email:welcome", welcomePayload{UserID: 1})
	require.NoError(t, err)
	_, err = manager.AddJob(context.Background(), "emails", "email:welcome", welcomePayload{UserID: 2}, queue.WithDelay(time.Hour))
	require.NoError(t, err)

	stats, err := manager.QueueStats(context.Background(), "emails")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Waiting)
	assert.Equal(t, 1, stats.Delayed)

	_, err = manager.QueueStats(context.Background(), "nope")
	assert.ErrorIs(t, err, queue.ErrUnknownQueue)
}

func TestManager_RetryFailedJobs(t *testing.T) {
	t.Parallel()

	broker := queue.NewMemoryBroker()
	manager := newTestManager(t, broker, "emails")

	var calls atomic.Int64
	var failFirst atomic.Bool
	failFirst.Store(true)
	require.NoError(t, manager.Register("emails", "email:welcome", func(ctx context.Context, payload json.RawMessage) error {
		calls.Add(1)
		if failFirst.Load() {
			return errors.New("outage")
		}
		return nil
	}))

	require.NoError(t, manager.Start(context.Background()))
	defer manager.Stop()

	id, err := manager.AddJob(context.Background(), "emails", "email:welcome",
		welcomePayload{UserID: 1}, queue.WithMaxAttempts(1))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		status, err := manager.JobStatus(context.Background(), "emails", id)
		return err == nil && status != nil && status.Status == queue.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	failFirst.Store(false)
	require.NoError(t, manager.RetryFailedJobs(context.Background(), "emails"))

	assert.Eventually(t, func() bool {
		status, err := manager.JobStatus(context.Background(), "emails", id)
		return err == nil && status != nil && status.Status == queue.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("start without handlers", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, queue.NewMemoryBroker(), "emails")
		err := manager.Start(context.Background())
		assert.ErrorIs(t, err, queue.ErrNoHandlers)
	})

	t.Run("double start and stop", func(t *testing.T) {
		t.Parallel()

		manager := newTestManager(t, queue.NewMemoryBroker(), "emails")
		require.NoError(t, manager.Register("emails", "email:welcome", func(ctx context.Context, payload json.RawMessage) error {
			return nil
		}))

		require.NoError(t, manager.Start(context.Background()))
		assert.Error(t, manager.Start(context.Background()))
		require.NoError(t, manager.Stop())
		assert.Error(t, manager.Stop())
	})

	t.Run("stop joins worker loops before restart", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		manager := newTestManager(t, broker, "emails")

		var processed atomic.Int64
		require.NoError(t, manager.Register("emails", "email:welcome", func(ctx context.Context, payload json.RawMessage) error {
			processed.Add(1)
			return nil
		}))

		// Cycle the manager several times. Each Stop must fully retire the
		// previous run's loops so restarting never races them.
		for i := 0; i < 3; i++ {
			require.NoError(t, manager.Start(context.Background()))
			require.NoError(t, manager.Stop())
		}

		require.NoError(t, manager.Start(context.Background()))
		_, err := manager.AddJob(context.Background(), "emails", "email:welcome", welcomePayload{UserID: 1})
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			return processed.Load() == 1
		}, 2*time.Second, 5*time.Millisecond)
		require.NoError(t, manager.Stop())
	})

	t.Run("stop drains in-flight jobs", func(t *testing.T) {
		t.Parallel()

		broker := queue.NewMemoryBroker()
		manager := newTestManager(t, broker, "emails")

		started := make(chan struct{})
		var finished atomic.Bool
		require.NoError(t, manager.Register("emails", "email:welcome", func(ctx context.Context, payload json.RawMessage) error {
			close(started)
			time.Sleep(100 * time.Millisecond)
			finished.Store(true)
			return nil
		}))

		require.NoError(t, manager.Start(context.Background()))

		_, err := manager.AddJob(context.Background(), "emails", "email:welcome", welcomePayload{UserID: 1})
		require.NoError(t, err)

		<-started
		require.NoError(t, manager.Stop())
		assert.True(t, finished.Load())
	})
}
