package memory

import (
	"context"
	"sync"
	"time"

	"rentcar/internal/app/middleware"
)

// IdempotencyStore stores results in memory; Purge enforces the TTL.
type IdempotencyStore struct {
	mu    sync.RWMutex
	items map[string]middleware.IdempotencyRecord
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{items: make(map[string]middleware.IdempotencyRecord)}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[key]
	return rec, ok, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	return nil
}

// Purge removes records older than cutoff and reports how many were dropped.
func (s *IdempotencyStore) Purge(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, rec := range s.items {
		if rec.OccurredAt.Before(cutoff) {
			delete(s.items, key)
			removed++
		}
	}
	return removed, nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
