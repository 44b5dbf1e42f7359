// Package dispatch groups a job's decoded records into batches and feeds
// them to the batch queue.
package dispatch

import (
	"context"
	"sync"

	"github.com/okian/churnbatch/internal/domain/model"
	"github.com/okian/churnbatch/pkg/logger"
)

// DefaultBatchSize is the number of records per batch.
const DefaultBatchSize = 5000

// Enqueuer accepts batches, blocking while no permit is free.
type Enqueuer interface {
	Enqueue(ctx context.Context, b *model.Batch) error
}

// Dispatcher accumulates records for one job. It is not safe for concurrent
// use: a job has a single decoding goroutine.
type Dispatcher struct {
	jobID       string
	queue       Enqueuer
	batchSize   int
	requesterIP string
	onComplete  func(model.BatchOutcome)
	logger      logger.Logger

	buf     []model.Record
	seq     int
	pending sync.WaitGroup
}

// New creates a dispatcher for jobID.
func New(jobID string, queue Enqueuer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		jobID:      jobID,
		queue:      queue,
		batchSize:  DefaultBatchSize,
		onComplete: func(model.BatchOutcome) {},
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.buf = make([]model.Record, 0, d.batchSize)
	return d
}

// Add buffers rec and dispatches a batch once the buffer is full.
func (d *Dispatcher) Add(ctx context.Context, rec model.Record) error {
	d.buf = append(d.buf, rec)
	if len(d.buf) < d.batchSize {
		return nil
	}
	return d.Flush(ctx)
}

// Flush dispatches buffered records as a batch, if any. If the batch cannot
// be enqueued its completion callback still fires, with the enqueue error,
// so every record is accounted for.
func (d *Dispatcher) Flush(ctx context.Context) error {
	if len(d.buf) == 0 {
		return nil
	}

	b := &model.Batch{
		JobID:       d.jobID,
		Seq:         d.seq,
		Records:     d.buf,
		RequesterIP: d.requesterIP,
		Ctx:         ctx,
	}
	b.Done = func(o model.BatchOutcome) {
		defer d.pending.Done()
		d.onComplete(o)
	}

	d.buf = make([]model.Record, 0, d.batchSize)
	d.seq++
	d.pending.Add(1)

	if err := d.queue.Enqueue(ctx, b); err != nil {
		d.logger.Warn(ctx, "batch not dispatched",
			logger.String("job_id", d.jobID),
			logger.Int("seq", b.Seq),
			logger.Error(err),
		)
		b.Done(model.BatchOutcome{Size: len(b.Records), Err: err})
		return err
	}

	d.logger.Debug(ctx, "batch dispatched",
		logger.String("job_id", d.jobID),
		logger.Int("seq", b.Seq),
		logger.Int("records", len(b.Records)),
	)
	return nil
}

// Wait blocks until every dispatched batch has completed.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// Batches returns how many batches have been dispatched.
func (d *Dispatcher) Batches() int {
	return d.seq
}

// Pending returns the number of buffered records not yet dispatched.
func (d *Dispatcher) Pending() int {
	return len(d.buf)
}
