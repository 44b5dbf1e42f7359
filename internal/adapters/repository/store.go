// Package repository persists scored records.
package repository

import (
	"context"
	"fmt"

	"github.com/okian/churnbatch/internal/domain/model"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Store is a bulk store for scored records.
type Store interface {
	// SaveAll persists recs atomically: all or none.
	SaveAll(ctx context.Context, recs []model.ScoredRecord) error
	// SaveBatch persists recs in consecutive chunks of chunkSize, each chunk
	// atomic. It stops at the first failing chunk.
	SaveBatch(ctx context.Context, recs []model.ScoredRecord, chunkSize int) error
	// CountTotal returns the number of persisted records.
	CountTotal(ctx context.Context) (int64, error)
	Close() error
}

// Open creates the store named by driver. path is ignored by the memory
// driver.
func Open(ctx context.Context, driver, path string) (Store, error) {
	switch driver {
	case DriverSQLite:
		return NewSQLiteStore(ctx, path)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// chunks splits recs into slices of at most size elements.
func chunks(recs []model.ScoredRecord, size int) [][]model.ScoredRecord {
	if len(recs) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(recs)
	}
	out := make([][]model.ScoredRecord, 0, (len(recs)+size-1)/size)
	for start := 0; start < len(recs); start += size {
		end := min(start+size, len(recs))
		out = append(out, recs[start:end])
	}
	return out
}

// saveChunks runs save over consecutive chunks.
func saveChunks(ctx context.Context, recs []model.ScoredRecord, chunkSize int,
	save func(context.Context, []model.ScoredRecord) error,
) error {
	for i, chunk := range chunks(recs, chunkSize) {
		if err := save(ctx, chunk); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return nil
}
