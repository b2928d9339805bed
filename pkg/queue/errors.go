package queue

import "errors"

var (
	// ErrBrokerNil is returned when a nil broker is provided.
	ErrBrokerNil = errors.New("broker cannot be nil")

	// ErrUnknownQueue is returned when an operation references a queue outside
	// the fixed set declared at manager construction. This is a caller-side
	// programming error and is surfaced synchronously.
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrUnknownJobType is returned when a claimed job's type discriminator has
	// no registered handler. Such jobs fail immediately without burning the
	// retry budget since retrying deterministically reproduces the failure.
	ErrUnknownJobType = errors.New("no handler registered for job type")

	// ErrJobNotFound is returned for reads and updates against absent jobs.
	ErrJobNotFound = errors.New("job not found")

	// ErrNoJobToClaim signals an idle poll; it is not an error condition.
	ErrNoJobToClaim = errors.New("no job available to claim")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload.
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrHandlerExists is returned on duplicate handler registration for a
	// (queue, job type) pair.
	ErrHandlerExists = errors.New("handler already registered for job type")

	// ErrNoHandlers is returned when the manager is started with an empty
	// dispatch registry.
	ErrNoHandlers = errors.New("no job handlers registered")

	// ErrNoQueues is returned when a manager is constructed without any queues.
	ErrNoQueues = errors.New("no queues declared")
)
