package risk

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []*RunSummary
}

// NewMemoryStore creates an in-memory run summary store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) RecordRun(ctx context.Context, run *RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *run
	s.runs = append(s.runs, &r)
	return nil
}

func (s *MemoryStore) RecentRuns(ctx context.Context, limit int) ([]*RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return nil, nil
	}

	// Most recent first, up to limit.
	start := len(s.runs) - limit
	if start < 0 {
		start = 0
	}

	result := make([]*RunSummary, 0, len(s.runs)-start)
	for i := len(s.runs) - 1; i >= start; i-- {
		r := *s.runs[i]
		result = append(result, &r)
	}
	return result, nil
}
