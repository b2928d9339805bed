package realtime

import (
	"context"
	"sync"
)

// Subscriber receives messages published to one user's stream.
type Subscriber[T any] struct {
	ch     chan T
	closed bool
	mu     sync.Mutex
}

// Receive returns the channel of published messages. The channel is closed
// when the subscriber is closed or its context is cancelled.
func (s *Subscriber[T]) Receive() <-chan T {
	return s.ch
}

// Close closes the subscriber. Idempotent.
func (s *Subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

// send delivers non-blocking; a full buffer means the consumer is too slow
// and the message is dropped.
func (s *Subscriber[T]) send(msg T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// Hub fans messages out to the live subscribers of individual users. A user
// with no subscribers simply does not receive the message; callers that need
// durability must persist elsewhere before publishing.
type Hub[T any] struct {
	subscribers map[int64]map[*Subscriber[T]]struct{}
	bufferSize  int
	closed      bool
	done        chan struct{}
	mu          sync.RWMutex
	cleanupWg   sync.WaitGroup
}

// NewHub creates a hub whose subscribers buffer up to bufferSize messages.
// A minimum buffer of 1 keeps sends non-blocking.
func NewHub[T any](bufferSize int) *Hub[T] {
	return &Hub[T]{
		subscribers: make(map[int64]map[*Subscriber[T]]struct{}),
		bufferSize:  max(bufferSize, 1),
		done:        make(chan struct{}),
	}
}

// Subscribe registers a live session for userID. The subscription is removed
// when ctx is cancelled. Subscribing on a closed hub yields an already-closed
// subscriber.
func (h *Hub[T]) Subscribe(ctx context.Context, userID int64) *Subscriber[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber[T]{ch: make(chan T, h.bufferSize)}
	if h.closed {
		_ = sub.Close()
		return sub
	}

	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[*Subscriber[T]]struct{})
	}
	h.subscribers[userID][sub] = struct{}{}

	if ctx.Done() != nil {
		h.cleanupWg.Add(1)
		go func() {
			defer h.cleanupWg.Done()
			select {
			case <-ctx.Done():
				h.unsubscribe(userID, sub)
			case <-h.done:
				// Close already detached and closed every subscriber.
			}
		}()
	}

	return sub
}

// Publish sends msg to every live subscriber of userID. Offline users and
// slow consumers are skipped without error.
func (h *Hub[T]) Publish(ctx context.Context, userID int64, msg T) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil
	}

	for sub := range h.subscribers[userID] {
		if !sub.send(msg) {
			// Detach dead or saturated sessions off the hot path.
			go h.unsubscribe(userID, sub)
		}
	}
	return nil
}

// Connected reports whether userID currently has at least one live session.
func (h *Hub[T]) Connected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID]) > 0
}

// Close shuts the hub down and closes every subscriber. Idempotent.
func (h *Hub[T]) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.done)

	for _, subs := range h.subscribers {
		for sub := range subs {
			_ = sub.Close()
		}
	}
	clear(h.subscribers)
	h.mu.Unlock()

	h.cleanupWg.Wait()
	return nil
}

func (h *Hub[T]) unsubscribe(userID int64, sub *Subscriber[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subscribers[userID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subscribers, userID)
		}
	}
	_ = sub.Close()
}
