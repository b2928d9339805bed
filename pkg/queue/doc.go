// Package queue implements a durable asynchronous job queue with named
// queues, per-type handler dispatch, and automatic retries with exponential
// backoff.
//
// A Manager owns a fixed set of queues declared at construction. Producers
// enqueue through AddJob and get a job id back once the broker has durably
// acknowledged the job; processing happens later in the manager's worker
// loops. Each queue runs one polling loop with a bounded concurrency
// semaphore, and each claimed job is dispatched to the handler registered
// for its type discriminator.
//
// Delivery is at-least-once. The Broker leases a claimed job to exactly one
// worker for a bounded time, so at most one worker processes a job at any
// moment, but a crashed worker's job becomes stalled when its lease expires
// and is claimed again. Handlers must therefore tolerate re-execution.
//
// Failed executions are retried with exponential backoff (base delay doubled
// per attempt) up to the job's attempt budget, after which the job lands in
// the failed set where it stays inspectable until retried in bulk or cleaned.
// Jobs whose type has no registered handler fail immediately without
// consuming the budget.
//
// Two brokers are provided: MemoryBroker for tests and local development,
// and RedisBroker for production.
//
// Usage:
//
//	broker := queue.NewMemoryBroker()
//	manager, err := queue.NewManager(broker,
//		queue.WithQueue("emails", queue.QueueConfig{Concurrency: 4}),
//	)
//	if err != nil {
//		return err
//	}
//
//	err = manager.Register("emails", "email:welcome", func(ctx context.Context, payload json.RawMessage) error {
//		var p WelcomePayload
//		if err := json.Unmarshal(payload, &p); err != nil {
//			return err
//		}
//		return sendWelcome(ctx, p)
//	})
//	if err != nil {
//		return err
//	}
//
//	if err := manager.Start(ctx); err != nil {
//		return err
//	}
//	defer manager.Stop()
//
//	id, err := manager.AddJob(ctx, "emails", "email:welcome", WelcomePayload{UserID: 42})
package queue
