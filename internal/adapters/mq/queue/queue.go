// Package queue hands batches from dispatchers to the worker pool.
//
// The queue is bounded by permits: a batch holds a permit from Enqueue until
// the worker that finished it calls Release, so at most Permits batches are
// queued, scoring or persisting at any time across all jobs.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/churnbatch/internal/domain/model"
	"github.com/okian/churnbatch/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultPermits = 8
)

// BatchQueue is a permit-bounded channel of batches.
type BatchQueue struct {
	batches chan *model.Batch
	permits chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewBatchQueue creates a queue.
func NewBatchQueue(opts ...Option) *BatchQueue {
	q := &BatchQueue{permits: make(chan struct{}, defaultPermits)}
	for _, opt := range opts {
		opt(q)
	}
	// Every queued batch holds a permit, so sends on batches never block.
	q.batches = make(chan *model.Batch, cap(q.permits))

	metrics.UpdateBatchesInFlight(0)
	return q
}

// Enqueue blocks until a permit is free, then queues b. It returns ctx.Err()
// if ctx ends first and ErrClosed after Close.
func (q *BatchQueue) Enqueue(ctx context.Context, b *model.Batch) error {
	if q.IsClosed() {
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	start := time.Now()
	select {
	case q.permits <- struct{}{}:
	case <-ctx.Done():
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return ctx.Err()
	}
	metrics.RecordPermitWait(float64(time.Since(start).Microseconds()) / 1000)

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		<-q.permits
		return ErrClosed
	}
	q.batches <- b

	metrics.RecordBatchDispatched()
	metrics.UpdateBatchesInFlight(len(q.permits))
	return nil
}

// Dequeue returns the channel workers read from. It is closed by Close.
func (q *BatchQueue) Dequeue() <-chan *model.Batch {
	return q.batches
}

// Release returns the permit held by a finished batch.
func (q *BatchQueue) Release() {
	select {
	case <-q.permits:
	default:
	}
	metrics.UpdateBatchesInFlight(len(q.permits))
}

// InFlight returns the number of permits currently held.
func (q *BatchQueue) InFlight() int {
	return len(q.permits)
}

// Permits returns the permit count.
func (q *BatchQueue) Permits() int {
	return cap(q.permits)
}

// Close stops accepting batches and closes the dequeue channel.
func (q *BatchQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.batches)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *BatchQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
