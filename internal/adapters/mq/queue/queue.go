// Package queue holds alerts between the request path and the notification
// workers.
//
// The queue is a bounded in-memory channel; enqueue never blocks so a slow
// SMS webhook cannot stall risk requests.
package queue

import (
	"context"
	"sync"

	"github.com/okian/farmwatch/internal/domain/model"
	"github.com/okian/farmwatch/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Alert is the payload type flowing through the queue.
type Alert = model.Alert

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an alert to the queue.
	// Returns ErrFull, ErrClosed or the context error when the alert was not accepted.
	Enqueue(ctx context.Context, a Alert) error

	// Dequeue returns the channel workers receive alerts from.
	// The channel is closed when the queue is closed and drained.
	Dequeue() <-chan Alert

	// Len returns the current number of queued alerts.
	Len() int

	// Cap returns the queue capacity.
	Cap() int

	// Close stops accepting alerts; queued alerts remain readable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	alerts   chan Alert
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.alerts = make(chan Alert, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0, q.capacity)

	return q
}

// Enqueue adds an alert to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, a Alert) error { //nolint:gocritic // hugeParam: Alert is passed by value for channel semantics
	// Closing takes the write lock, so the channel cannot close mid-send.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueReject("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueReject("context_cancelled")
		return err
	}

	select {
	case q.alerts <- a:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.alerts), q.capacity)
		return nil
	default:
		metrics.RecordQueueReject("full")
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue. Every consumer shares the
// same channel, so each alert is delivered to exactly one worker.
func (q *InMemoryQueue) Dequeue() <-chan Alert {
	return q.alerts
}

// Len returns the current number of queued alerts.
func (q *InMemoryQueue) Len() int {
	size := len(q.alerts)
	metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int {
	return q.capacity
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.alerts)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
