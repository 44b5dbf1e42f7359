// Package worker runs the process-wide batch pool: records of a batch are
// scored in parallel and the survivors are handed to the bulk writer.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/okian/churnbatch/internal/domain/features"
	"github.com/okian/churnbatch/internal/domain/model"
	"github.com/okian/churnbatch/internal/domain/scoring"
	"github.com/okian/churnbatch/pkg/logger"
	"github.com/okian/churnbatch/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Scorer scores a single profile.
type Scorer interface {
	Score(ctx context.Context, p model.CustomerProfile, f model.EngineeredFeatures) (scoring.Prediction, error)
	Threshold() float64
}

// Writer persists scored records and returns how many were committed.
type Writer interface {
	Write(ctx context.Context, recs []model.ScoredRecord) (int, error)
}

// Queue defines how the pool receives batches and returns their permits.
type Queue interface {
	Dequeue() <-chan *model.Batch
	Release()
}

// Pool processes batches with a fixed number of goroutines.
type Pool struct {
	queue  Queue
	scorer Scorer
	writer Writer

	workerCount      int
	inferenceThreads int64
	sem              *semaphore.Weighted
	now              func() time.Time

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(queue Queue, scorer Scorer, writer Writer, opts ...Option) *Pool {
	p := &Pool{
		queue:            queue,
		scorer:           scorer,
		writer:           writer,
		workerCount:      runtime.NumCPU(),
		inferenceThreads: int64(runtime.NumCPU()),
		now:              time.Now,
		shutdown:         make(chan struct{}),
		logger:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	// One semaphore for the whole process: concurrent batches share the
	// record fan-out budget.
	p.sem = semaphore.NewWeighted(p.inferenceThreads)
	return p
}

// Start launches the workers. They run until ctx ends, Shutdown is called or
// the queue is closed.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	p.logger.Info(ctx, "worker pool started",
		logger.Int("workers", p.workerCount),
		logger.Int64("inference_threads", p.inferenceThreads),
	)
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()

	batches := p.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case b, ok := <-batches:
			if !ok {
				return
			}
			p.process(b)
		}
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), poolShutdownTimeout)
	defer cancel()
	_ = p.Shutdown(ctx)
}

// Shutdown signals the workers, waits for in-progress batches and then fails
// whatever is still queued so every batch callback fires.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() { close(p.shutdown) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}

	p.drain()
	return nil
}

func (p *Pool) drain() {
	batches := p.queue.Dequeue()
	for {
		select {
		case b, ok := <-batches:
			if !ok {
				return
			}
			p.queue.Release()
			if b.Done != nil {
				b.Done(model.BatchOutcome{Size: len(b.Records), Err: ErrPoolStopped})
			}
		default:
			return
		}
	}
}

// process handles one batch. The permit is released and Done invoked exactly
// once, including when handling panics.
func (p *Pool) process(b *model.Batch) {
	start := time.Now()
	outcome := model.BatchOutcome{Size: len(b.Records)}

	defer func() {
		if r := recover(); r != nil {
			outcome = model.BatchOutcome{Size: len(b.Records), Err: fmt.Errorf("%w: %v", ErrBatchPanic, r)}
			metrics.RecordErrorByComponent("worker", "panic")
			p.logger.Error(b.Context(), "batch panicked",
				logger.String("job_id", b.JobID),
				logger.Int("seq", b.Seq),
				logger.Any("panic", r),
			)
		}
		p.queue.Release()

		metrics.RecordBatchLatency(float64(time.Since(start).Milliseconds()))
		metrics.RecordBatchRecords("persisted", outcome.Persisted)
		metrics.RecordBatchRecords("failed", outcome.Failed())

		if b.Done != nil {
			b.Done(outcome)
		}
	}()

	outcome = p.handle(b)
}

type result struct {
	record model.ScoredRecord
	err    error
}

func (p *Pool) handle(b *model.Batch) model.BatchOutcome {
	ctx := b.Context()
	outcome := model.BatchOutcome{Size: len(b.Records)}
	if err := ctx.Err(); err != nil {
		outcome.Err = err
		return outcome
	}

	createdAt := p.now()
	results := make([]result, len(b.Records))

	var wg sync.WaitGroup
	for i := range b.Records {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			outcome.Err = err
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer p.sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					results[i].err = fmt.Errorf("%w: %v", ErrBatchPanic, r)
				}
			}()
			results[i] = p.score(ctx, b, b.Records[i], createdAt)
		}(i)
	}
	wg.Wait()

	if outcome.Err != nil {
		// Cancelled mid-batch: nothing is persisted.
		return outcome
	}

	scored := make([]model.ScoredRecord, 0, len(results))
	for i, r := range results {
		if r.err != nil {
			rec := b.Records[i]
			outcome.Errors = append(outcome.Errors, model.ProcessingError{
				Line:    rec.Line,
				Message: fmt.Sprintf("user %s: %v", rec.Profile.UserID(), r.err),
			})
			continue
		}
		scored = append(scored, r.record)
	}

	if len(outcome.Errors) > 0 {
		p.logger.Debug(ctx, "records dropped during scoring",
			logger.String("job_id", b.JobID),
			logger.Int("seq", b.Seq),
			logger.Int("dropped", len(outcome.Errors)),
		)
	}
	if len(scored) == 0 {
		return outcome
	}

	persisted, err := p.writer.Write(ctx, scored)
	outcome.Persisted = persisted
	if err != nil {
		outcome.Err = fmt.Errorf("persist batch %d: %w", b.Seq, err)
		metrics.RecordErrorByComponent("worker", "persistence")
		p.logger.Error(ctx, "batch persistence failed",
			logger.String("job_id", b.JobID),
			logger.Int("seq", b.Seq),
			logger.Int("persisted", persisted),
			logger.Error(err),
		)
	}
	return outcome
}

func (p *Pool) score(ctx context.Context, b *model.Batch, rec model.Record, createdAt time.Time) result {
	f := features.Compute(rec.Profile)

	pred, err := p.scorer.Score(ctx, rec.Profile, f)
	if err != nil {
		return result{err: err}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return result{err: fmt.Errorf("record id: %w", err)}
	}

	return result{record: model.ScoredRecord{
		ID:          id.String(),
		Profile:     rec.Profile,
		Label:       pred.Label,
		Probability: pred.ChurnProbability,
		Features:    f,
		Diagnosis:   features.Diagnose(rec.Profile, pred.ChurnProbability, p.scorer.Threshold()),
		RequesterID: model.BatchRequesterID,
		RequesterIP: b.RequesterIP,
		CreatedAt:   createdAt,
	}}
}
