package events

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrQueueFull is returned when no buffer space frees up before the publish context ends.
	ErrQueueFull = errors.New("events: queue full")
	// ErrQueueClosed is returned when publishing after Close.
	ErrQueueClosed = errors.New("events: queue closed")
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Publisher accepts events for asynchronous processing.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Queue is a bounded channel between producers and a single consumer.
type Queue struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

// NewQueue creates a queue holding at most capacity pending events.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// Publish enqueues event, waiting for space until ctx is done.
func (q *Queue) Publish(ctx context.Context, event Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- event:
		return nil
	default:
	}

	select {
	case q.ch <- event:
		return nil
	case <-ctx.Done():
		return ErrQueueFull
	}
}

// Consume hands events to handler one at a time until ctx is done or the queue is closed
// and drained. Handler errors do not stop consumption; onError receives them when set.
func (q *Queue) Consume(ctx context.Context, handler EventHandler, onError func(Event, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-q.ch:
			if !ok {
				return
			}
			if err := handler(ctx, event); err != nil && onError != nil {
				onError(event, err)
			}
		}
	}
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting events. Pending events remain available to Consume.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
