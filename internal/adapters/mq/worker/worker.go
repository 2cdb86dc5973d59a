// Package worker delivers queued alerts through a notifier in the background.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/farmwatch/internal/adapters/mq/queue"
	"github.com/okian/farmwatch/pkg/logger"
	"github.com/okian/farmwatch/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Alert is what workers read off the queue.
type Alert = queue.Alert

// Notifier delivers one alert message. It reports delivery success and
// must not panic.
type Notifier interface {
	Notify(ctx context.Context, phone, message string) bool
}

// Queue defines how workers receive alerts.
type Queue interface {
	Dequeue() <-chan Alert
}

// Worker delivers alerts using the provided notifier.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Stop is called or
	// the queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining the queue.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for delivering alerts.
type InMemoryWorker struct {
	queue    Queue
	notifier Notifier
	name     string

	// Shutdown control
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, notifier Notifier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		notifier: notifier,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	alerts := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case a, ok := <-alerts:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			w.deliver(ctx, a)
		}
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// Stop signals the worker to return after the alert in hand.
func (w *InMemoryWorker) Stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Shutdown stops the worker and waits for it to return.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.Stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// deliver hands one alert to the notifier. Failures are terminal for the
// alert; the notifier already logged and counted them.
func (w *InMemoryWorker) deliver(ctx context.Context, a Alert) { //nolint:gocritic // hugeParam: Alert is passed by value for channel semantics
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByType("notifier_panic", "high")
			w.logger.Error(ctx, "notifier crashed",
				logger.String("alert_id", a.ID),
				logger.Any("panic", r),
			)
		}
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if !w.notifier.Notify(ctx, a.Phone, a.Message) {
		metrics.RecordWorkerError()
		w.logger.Warn(ctx, "alert not delivered",
			logger.String("alert_id", a.ID),
			logger.String("request_id", a.RequestID),
			logger.String("farmer_id", a.FarmerID),
		)
		return
	}

	w.logger.Debug(ctx, "alert delivered",
		logger.String("alert_id", a.ID),
		logger.String("farmer_id", a.FarmerID),
		logger.Duration("queued_for", start.Sub(a.CreatedAt)),
	)
}

// Pool manages multiple workers reading from one queue.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	notifier Notifier

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive workerCount picks a
// default based on the CPU count.
func NewPool(workerCount int, q Queue, notifier Notifier) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		notifier: notifier,
		logger:   logger.Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			q,
			notifier,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Stop signals every worker to return without draining the queue.
func (p *Pool) Stop() {
	for _, worker := range p.workers {
		worker.Stop()
	}

	for _, worker := range p.workers {
		select {
		case <-worker.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue and waits for the workers to drain it. Workers
// still busy when ctx (or the pool's own limit) expires are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			timedOut = true
			worker.Stop()
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
