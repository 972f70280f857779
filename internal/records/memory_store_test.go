package records

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryStore_AppendAndSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.AppendAttendance(ctx, []AttendanceRecord{
		{StudentName: "Priya Sharma", Class: "10A", Date: "2024-01-15", IsPresent: true},
		{StudentName: "Raj Kumar", Class: "10A", Date: "2024-01-15", IsPresent: false},
	}); err != nil {
		t.Fatalf("AppendAttendance failed: %v", err)
	}
	if err := store.AppendMarks(ctx, []MarksRecord{
		{StudentName: "Priya Sharma", Subject: "Math", Test: "Test1", Marks: 85},
	}); err != nil {
		t.Fatalf("AppendMarks failed: %v", err)
	}
	if err := store.AppendFees(ctx, []FeeRecord{
		{StudentName: "Raj Kumar", Month: "Jan2024", Amount: 5000, Status: FeeOverdue, IsPaid: false},
	}); err != nil {
		t.Fatalf("AppendFees failed: %v", err)
	}

	ds, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(ds.Attendance) != 2 || len(ds.Marks) != 1 || len(ds.Fees) != 1 {
		t.Errorf("unexpected snapshot sizes: %d/%d/%d", len(ds.Attendance), len(ds.Marks), len(ds.Fees))
	}

	a, m, f, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if a != 2 || m != 1 || f != 1 {
		t.Errorf("unexpected counts: %d/%d/%d", a, m, f)
	}
}

func TestMemoryStore_SnapshotIsIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.AppendMarks(ctx, []MarksRecord{{StudentName: "A", Marks: 50}})

	ds, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	// Appending after the snapshot must not be visible in it
	_ = store.AppendMarks(ctx, []MarksRecord{{StudentName: "B", Marks: 60}})
	if len(ds.Marks) != 1 {
		t.Errorf("snapshot mutated by later append: %d records", len(ds.Marks))
	}

	// Mutating the snapshot must not leak back into the store
	ds.Marks[0].Marks = 0
	ds2, _ := store.Snapshot(ctx)
	if ds2.Marks[0].Marks != 50 {
		t.Errorf("store mutated through snapshot: %v", ds2.Marks[0])
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.AppendAttendance(ctx, []AttendanceRecord{{StudentName: "A", IsPresent: true}})
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	ds, _ := store.Snapshot(ctx)
	if !ds.Empty() {
		t.Error("store not empty after Clear")
	}
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.AppendAttendance(ctx, []AttendanceRecord{
				{StudentName: "A", IsPresent: true},
				{StudentName: "B", IsPresent: false},
			})
		}()
	}
	wg.Wait()

	a, _, _, _ := store.Counts(ctx)
	if a != 20 {
		t.Errorf("expected 20 attendance records, got %d", a)
	}
}

func TestDataTypeValid(t *testing.T) {
	for _, typ := range AllTypes {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if DataType("bogus").Valid() {
		t.Error("bogus type should be invalid")
	}
}
