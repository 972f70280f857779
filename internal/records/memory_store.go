package records

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store, the default when no
// database is configured. Data does not survive a restart.
type MemoryStore struct {
	mu         sync.RWMutex
	attendance []AttendanceRecord
	marks      []MarksRecord
	fees       []FeeRecord
}

// NewMemoryStore creates an in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AppendAttendance(ctx context.Context, recs []AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendance = append(s.attendance, recs...)
	return nil
}

func (s *MemoryStore) AppendMarks(ctx context.Context, recs []MarksRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks = append(s.marks, recs...)
	return nil
}

func (s *MemoryStore) AppendFees(ctx context.Context, recs []FeeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fees = append(s.fees, recs...)
	return nil
}

// Snapshot returns a copy of all accumulated records. Records are value types
// with no reference fields, so copying the slices is enough.
func (s *MemoryStore) Snapshot(ctx context.Context) (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds := &Dataset{
		Attendance: make([]AttendanceRecord, len(s.attendance)),
		Marks:      make([]MarksRecord, len(s.marks)),
		Fees:       make([]FeeRecord, len(s.fees)),
	}
	copy(ds.Attendance, s.attendance)
	copy(ds.Marks, s.marks)
	copy(ds.Fees, s.fees)
	return ds, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendance = nil
	s.marks = nil
	s.fees = nil
	return nil
}

func (s *MemoryStore) Counts(ctx context.Context) (int, int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attendance), len(s.marks), len(s.fees), nil
}
