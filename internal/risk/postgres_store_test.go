package risk

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dropwatch/dropwatch/internal/testutil"
)

func TestPostgresRecentRunsMostRecentFirst(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		run := &RunSummary{
			ID:               fmt.Sprintf("run_%d", i),
			StudentsAnalyzed: 10 + i,
			HighRisk:         i,
			AverageScore:     50,
			RanAt:            base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.RecordRun(ctx, run); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	runs, err := store.RecentRuns(ctx, 3)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(runs))
	}
	for i, wantID := range []string{"run_4", "run_3", "run_2"} {
		if runs[i].ID != wantID {
			t.Errorf("runs[%d].ID = %q, want %q", i, runs[i].ID, wantID)
		}
	}
	if runs[0].StudentsAnalyzed != 14 {
		t.Errorf("studentsAnalyzed = %d, want 14", runs[0].StudentsAnalyzed)
	}
}

func TestPostgresRecordRunRejectsOutOfRangeScore(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	err := store.RecordRun(ctx, &RunSummary{
		ID:           "run_bad",
		AverageScore: 250,
		RanAt:        time.Now().UTC(),
	})
	if err == nil {
		t.Fatal("expected the score range check to reject the run")
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("runs = %d, want 0", len(runs))
	}
}
