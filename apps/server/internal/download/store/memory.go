package store

import (
	"context"
	"sync"

	"github.com/tilsley/dirpack/apps/server/internal/download"
)

// Compile-time check: *MemoryStore implements download.JobStore.
var _ download.JobStore = (*MemoryStore)(nil)

// MemoryStore keeps the most recent job records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	max     int
	order   []string // oldest first
	records map[string]download.JobRecord
}

// NewMemoryStore creates a MemoryStore retaining at most capacity records.
// A non-positive capacity keeps 1000.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryStore{max: capacity, records: make(map[string]download.JobRecord)}
}

// Save stores rec, evicting the oldest record once the store is full.
func (s *MemoryStore) Save(_ context.Context, rec download.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.records[rec.ID] = rec

	for len(s.order) > s.max {
		delete(s.records, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// Get returns the record for id, or nil if it is unknown or evicted.
func (s *MemoryStore) Get(_ context.Context, id string) (*download.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	return &rec, nil
}

// List returns up to limit records, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]download.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = normLimit(limit)
	out := make([]download.JobRecord, 0, min(limit, len(s.order)))
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[s.order[i]])
	}
	return out, nil
}
