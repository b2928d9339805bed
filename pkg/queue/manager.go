package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// HandlerFunc processes one job payload. Delivery is at-least-once: handlers
// must tolerate duplicate execution of the same logical operation.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// queueRuntime is the per-queue consumption state: the dispatch registry and
// the concurrency semaphore of the queue's worker loop.
type queueRuntime struct {
	name     string
	cfg      QueueConfig
	handlers map[string]HandlerFunc
	sem      chan struct{}
}

// Manager owns the fixed set of durable queues. It is constructed once at
// process start, handlers are registered, Start spawns the worker loops, and
// Stop drains them. Callers enqueue through AddJob and never touch the broker
// directly.
type Manager struct {
	broker   Broker
	queues   map[string]*queueRuntime
	workerID uuid.UUID

	pollInterval time.Duration
	lockTimeout  time.Duration
	logger       *slog.Logger

	mu       sync.RWMutex
	wg       sync.WaitGroup
	loopWg   sync.WaitGroup
	stopMu   sync.Mutex
	stopping atomic.Bool
	cancel   context.CancelFunc
}

// NewManager creates a queue manager over the given broker. At least one
// queue must be declared via WithQueue.
func NewManager(broker Broker, opts ...ManagerOption) (*Manager, error) {
	if broker == nil {
		return nil, ErrBrokerNil
	}

	options := &managerOptions{
		queues:       make(map[string]QueueConfig),
		pollInterval: time.Second,
		lockTimeout:  5 * time.Minute,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	if len(options.queues) == 0 {
		return nil, ErrNoQueues
	}

	queues := make(map[string]*queueRuntime, len(options.queues))
	for name, cfg := range options.queues {
		queues[name] = &queueRuntime{
			name:     name,
			cfg:      cfg,
			handlers: make(map[string]HandlerFunc),
			sem:      make(chan struct{}, cfg.Concurrency),
		}
	}

	return &Manager{
		broker:       broker,
		queues:       queues,
		workerID:     uuid.New(),
		pollInterval: options.pollInterval,
		lockTimeout:  options.lockTimeout,
		logger:       options.logger,
	}, nil
}

// Register binds a job type discriminator to its handler on the given queue.
// Registration happens at startup, before Start.
func (m *Manager) Register(queue, jobType string, handler HandlerFunc) error {
	q, ok := m.queues[queue]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
	}
	if handler == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := q.handlers[jobType]; exists {
		return fmt.Errorf("%w: %q on queue %q", ErrHandlerExists, jobType, queue)
	}
	q.handlers[jobType] = handler
	return nil
}

// AddJob durably enqueues a job and returns once the broker acknowledges
// persistence. Processing happens asynchronously; from the caller's
// perspective this is fire-and-forget.
func (m *Manager) AddJob(ctx context.Context, queue, jobType string, payload any, opts ...JobOption) (uuid.UUID, error) {
	q, ok := m.queues[queue]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
	}
	if payload == nil {
		return uuid.Nil, ErrPayloadNil
	}

	options := &jobOptions{maxAttempts: q.cfg.MaxAttempts}
	for _, opt := range opts {
		opt(options)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	jobID := options.id
	if jobID == uuid.Nil {
		jobID = uuid.New()
	}

	now := time.Now()
	job := &Job{
		ID:          jobID,
		Queue:       queue,
		Type:        jobType,
		Payload:     payloadBytes,
		Attempts:    0,
		MaxAttempts: options.maxAttempts,
		BackoffBase: q.cfg.BackoffBase,
		Status:      StatusWaiting,
		RunAt:       now.Add(options.delay),
		CreatedAt:   now,
	}

	if err := m.broker.Enqueue(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue job %q on queue %q: %w", jobType, queue, err)
	}

	m.logger.Debug("job enqueued",
		slog.String("queue", queue),
		slog.String("job_type", jobType),
		slog.String("job_id", job.ID.String()))

	return job.ID, nil
}

// JobStatus returns the status read model for a job. A nil result with a nil
// error means the queue or the job does not exist.
func (m *Manager) JobStatus(ctx context.Context, queue string, id uuid.UUID) (*JobStatus, error) {
	if _, ok := m.queues[queue]; !ok {
		return nil, nil
	}

	job, err := m.broker.Job(ctx, queue, id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil, nil
		}
		return nil, err
	}

	paused, err := m.broker.Paused(ctx, queue)
	if err != nil {
		return nil, err
	}

	return &JobStatus{
		Status:    job.PresentedStatus(paused, time.Now()),
		Progress:  job.Progress,
		Attempts:  int(job.Attempts),
		Timestamp: job.CreatedAt,
	}, nil
}

// SetJobProgress updates a job's progress indicator. Unlike JobStatus, an
// absent job is an error here.
func (m *Manager) SetJobProgress(ctx context.Context, queue string, id uuid.UUID, progress int) error {
	if _, ok := m.queues[queue]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
	}
	return m.broker.SetProgress(ctx, queue, id, progress)
}

// QueueStats returns job counts for the queue by presented status.
func (m *Manager) QueueStats(ctx context.Context, queue string) (Stats, error) {
	if _, ok := m.queues[queue]; !ok {
		return Stats{}, fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
	}
	return m.broker.Stats(ctx, queue)
}

// PauseQueue stops consumption without losing enqueued jobs.
func (m *Manager) PauseQueue(ctx context.Context, queue string) error {
	if _, ok := m.queues[queue]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
	}
	if err := m.broker.Pause(ctx, queue); err != nil {
		return err
	}
	m.logger.Info("queue paused", slog.String("queue", queue))
	return nil
}

// ResumeQueue re-enables consumption.
func (m *Manager) ResumeQueue(ctx context.Context, queue string) error {
	if _, ok := m.queues[queue]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
	}
	if err := m.broker.Resume(ctx, queue); err != nil {
		return err
	}
	m.logger.Info("queue resumed", slog.String("queue", queue))
	return nil
}

// CleanOldJobs removes completed and failed jobs older than the retention
// window. Waiting, active, and delayed jobs are untouched.
func (m *Manager) CleanOldJobs(ctx context.Context, queue string, days int) error {
	if _, ok := m.queues[queue]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
	}
	if days <= 0 {
		days = 7
	}

	removed, err := m.broker.Clean(ctx, queue, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return err
	}

	m.logger.Info("cleaned old jobs",
		slog.String("queue", queue),
		slog.Int("removed", removed))
	return nil
}

// RetryFailedJobs re-enqueues every failed job of the queue, resetting
// attempt accounting. This is the only path that revives exhausted jobs.
func (m *Manager) RetryFailedJobs(ctx context.Context, queue string) error {
	if _, ok := m.queues[queue]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
	}

	retried, err := m.broker.RetryFailed(ctx, queue)
	if err != nil {
		return err
	}

	m.logger.Info("retried failed jobs",
		slog.String("queue", queue),
		slog.Int("retried", retried))
	return nil
}

// Start spawns one worker loop per queue. It fails when the manager is
// already running or no handlers have been registered.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return fmt.Errorf("queue manager already started")
	}

	registered := 0
	for _, q := range m.queues {
		registered += len(q.handlers)
	}
	if registered == 0 {
		m.mu.Unlock()
		return ErrNoHandlers
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.stopping.Store(false)

	for _, q := range m.queues {
		m.loopWg.Add(1)
		go func(q *queueRuntime) {
			defer m.loopWg.Done()
			m.consume(runCtx, q)
		}(q)
	}

	m.logger.Info("queue manager started",
		slog.String("worker_id", m.workerID.String()),
		slog.Int("queues", len(m.queues)),
		slog.Int("handlers", registered))

	return nil
}

// Stop cancels the worker loops and waits for in-flight jobs to finish.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.cancel == nil {
		m.mu.Unlock()
		return fmt.Errorf("queue manager not started")
	}

	m.stopMu.Lock()
	m.stopping.Store(true)
	m.stopMu.Unlock()

	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	cancel()

	m.logger.Info("queue manager stopping, draining active jobs",
		slog.String("worker_id", m.workerID.String()))

	// Join the consume loops before the in-flight jobs so a subsequent Start
	// never races a loop from the previous run.
	m.loopWg.Wait()
	m.wg.Wait()

	m.logger.Info("queue manager stopped",
		slog.String("worker_id", m.workerID.String()))

	return nil
}

// Run adapts the manager's lifecycle to an errgroup function.
func (m *Manager) Run(ctx context.Context) func() error {
	return func() error {
		if err := m.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return m.Stop()
	}
}

// consume is the worker loop of one queue: poll, claim, dispatch.
func (m *Manager) consume(ctx context.Context, q *queueRuntime) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case q.sem <- struct{}{}:
				// stopMu guards against adding to the WaitGroup after Stop
				// has begun waiting on it.
				m.stopMu.Lock()
				if m.stopping.Load() {
					m.stopMu.Unlock()
					<-q.sem
					return
				}
				m.wg.Add(1)
				m.stopMu.Unlock()

				go func() {
					defer m.wg.Done()
					defer func() { <-q.sem }()

					if err := m.claimAndProcess(ctx, q); err != nil && !errors.Is(err, ErrUnknownJobType) {
						m.logger.Error("failed to process job",
							slog.String("queue", q.name),
							slog.String("error", err.Error()))
					}
				}()
			default:
				// All slots busy this tick.
			}
		}
	}
}

func (m *Manager) claimAndProcess(ctx context.Context, q *queueRuntime) error {
	job, err := m.broker.Claim(ctx, q.name, m.workerID, m.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoJobToClaim) {
			return nil
		}
		return fmt.Errorf("failed to claim job: %w", err)
	}

	m.logger.Debug("claimed job",
		slog.String("queue", q.name),
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", job.Type))

	return m.process(q, job)
}

// process executes one claimed job through its registered handler.
func (m *Manager) process(q *queueRuntime, job *Job) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			m.logger.Error("handler panicked",
				slog.String("queue", q.name),
				slog.String("job_id", job.ID.String()),
				slog.String("job_type", job.Type),
				slog.Any("panic", r))
			_ = m.recordFailure(q, job, retErr, time.Since(start))
		}
	}()

	m.mu.RLock()
	handler, ok := q.handlers[job.Type]
	m.mu.RUnlock()

	if !ok {
		return m.recordUnknownType(q, job)
	}

	// The handler context is deliberately detached from the manager's
	// lifecycle so graceful shutdown lets in-flight jobs finish.
	ctx, cancel := context.WithTimeout(context.Background(), m.lockTimeout)
	defer cancel()

	err := handler(ctx, job.Payload)
	duration := time.Since(start)

	if err != nil {
		return m.recordFailure(q, job, err, duration)
	}
	return m.recordSuccess(q, job, duration)
}

// recordUnknownType fails a job immediately: without a handler every retry
// would deterministically reproduce the same failure, so the budget is not
// consumed and an operator can retry after deploying the missing handler.
func (m *Manager) recordUnknownType(q *queueRuntime, job *Job) error {
	m.logger.Error("no handler registered for job type",
		slog.String("queue", q.name),
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", job.Type))

	ctx, cancel := m.recordContext()
	defer cancel()

	errMsg := ErrUnknownJobType.Error() + ": " + job.Type
	if err := m.broker.FailPermanently(ctx, q.name, job.ID, errMsg); err != nil {
		return fmt.Errorf("failed to mark job %s as permanently failed: %w", job.ID, err)
	}
	return ErrUnknownJobType
}

func (m *Manager) recordFailure(q *queueRuntime, job *Job, execErr error, duration time.Duration) error {
	ctx, cancel := m.recordContext()
	defer cancel()

	exhausted, err := m.broker.Fail(ctx, q.name, job.ID, execErr.Error())
	if err != nil {
		return fmt.Errorf("failed to record failure of job %s: %w", job.ID, err)
	}

	if exhausted {
		m.logger.Error("job failed, retry budget exhausted",
			slog.String("queue", q.name),
			slog.String("job_id", job.ID.String()),
			slog.String("job_type", job.Type),
			slog.Int("attempts", int(job.Attempts)+1),
			slog.Duration("duration", duration),
			slog.String("error", execErr.Error()))
		return nil
	}

	m.logger.Warn("job failed, retry scheduled",
		slog.String("queue", q.name),
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", job.Type),
		slog.Int("attempts", int(job.Attempts)+1),
		slog.Int("max_attempts", int(job.MaxAttempts)),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()))
	return nil
}

func (m *Manager) recordSuccess(q *queueRuntime, job *Job, duration time.Duration) error {
	ctx, cancel := m.recordContext()
	defer cancel()

	if err := m.broker.Complete(ctx, q.name, job.ID); err != nil {
		return fmt.Errorf("failed to mark job %s as completed: %w", job.ID, err)
	}

	m.logger.Info("job completed",
		slog.String("queue", q.name),
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", job.Type),
		slog.Duration("duration", duration))
	return nil
}

// recordContext returns the context used for broker bookkeeping. It is
// detached from the manager's lifecycle so outcomes of in-flight jobs still
// land during graceful shutdown.
func (m *Manager) recordContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// Queues returns the names of the fixed queue set.
func (m *Manager) Queues() []string {
	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	return names
}
