package repository

import (
	"context"
	"sync"

	"github.com/okian/churnbatch/internal/domain/model"
)

// MemoryStore keeps records in process. Used for dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.ScoredRecord
	closed  bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveAll(ctx context.Context, recs []model.ScoredRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.records = append(s.records, recs...)
	return nil
}

func (s *MemoryStore) SaveBatch(ctx context.Context, recs []model.ScoredRecord, chunkSize int) error {
	return saveChunks(ctx, recs, chunkSize, s.SaveAll)
}

func (s *MemoryStore) CountTotal(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Records returns a copy of everything stored.
func (s *MemoryStore) Records() []model.ScoredRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ScoredRecord(nil), s.records...)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
