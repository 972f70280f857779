package notify

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu         sync.RWMutex
	deliveries []*Delivery
}

// NewMemoryStore creates an in-memory delivery history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Record(ctx context.Context, d *Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *d
	copied.Recipients = append([]string(nil), d.Recipients...)
	copied.FailedRecipients = append([]string(nil), d.FailedRecipients...)
	s.deliveries = append(s.deliveries, &copied)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]*Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Most recent first.
	var result []*Delivery
	for i := len(s.deliveries) - 1; i >= 0; i-- {
		d := s.deliveries[i]
		if f.StudentID != "" && d.StudentID != f.StudentID {
			continue
		}
		if f.AlertType != "" && d.AlertType != f.AlertType {
			continue
		}
		copied := *d
		copied.Recipients = append([]string(nil), d.Recipients...)
		copied.FailedRecipients = append([]string(nil), d.FailedRecipients...)
		result = append(result, &copied)
		if f.Limit > 0 && len(result) >= f.Limit {
			break
		}
	}
	return result, nil
}
