package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/okian/churnbatch/internal/domain/model"
	"github.com/okian/churnbatch/pkg/logger"
	"github.com/okian/churnbatch/pkg/metrics"
)

// BulkWriter splits a batch into chunks and inserts them in parallel on a
// process-wide I/O pool shared by every batch.
type BulkWriter struct {
	store     Store
	chunkSize int
	ioWorkers int
	sem       *semaphore.Weighted
	log       logger.Logger
}

// NewBulkWriter creates a writer over store.
func NewBulkWriter(store Store, opts ...Option) *BulkWriter {
	w := &BulkWriter{
		store:     store,
		chunkSize: DefaultChunkSize,
		ioWorkers: DefaultIOWorkers,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.sem = semaphore.NewWeighted(int64(w.ioWorkers))
	return w
}

// Write persists recs and returns how many were committed. Any failing chunk
// fails the whole write and cancels chunks that have not started; chunks
// already committed stay committed.
func (w *BulkWriter) Write(ctx context.Context, recs []model.ScoredRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	var persisted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)

	for i, chunk := range chunks(recs, w.chunkSize) {
		g.Go(func() error {
			if err := w.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer w.sem.Release(1)

			start := time.Now()
			if err := w.store.SaveAll(gctx, chunk); err != nil {
				metrics.RecordPersistenceError()
				metrics.RecordErrorByComponent("repository", "chunk_insert")
				return fmt.Errorf("persist chunk %d (%d records): %w", i, len(chunk), err)
			}
			metrics.RecordChunkWritten(len(chunk), float64(time.Since(start).Microseconds())/1000)
			persisted.Add(int64(len(chunk)))
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		w.log.Warn(ctx, "bulk write failed",
			logger.Int("records", len(recs)),
			logger.Int64("persisted", persisted.Load()),
			logger.Error(err),
		)
	}
	return int(persisted.Load()), err
}

// CountTotal returns the number of persisted records.
func (w *BulkWriter) CountTotal(ctx context.Context) (int64, error) {
	return w.store.CountTotal(ctx)
}
