package exportstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/daimoniac/covdocs/internal/defects"
)

func testRecords() []defects.Record {
	return []defects.Record{
		{
			CID:            1234,
			Checker:        "MISRA 2 KEY operand",
			Classification: "Unclassified",
			Action:         "Undecided",
			Status:         "Triaged",
			Component:      "firmware",
			Impact:         "High",
			Kind:           "Quality",
			CWE:            "476",
			FilePath:       "src/main.c",
			LineNumber:     42,
			Comment:        "needs review",
			CheckerProperties: map[string]string{
				"Category": "Null pointer dereferences",
			},
		},
		{
			CID:            5678,
			Checker:        "DIVIDE_BY_ZERO",
			Classification: "Bug",
			Action:         "Fix Required",
			Status:         "New",
			Impact:         "Medium",
			Kind:           "Quality",
			FilePath:       "src/calc.c",
			LineNumber:     7,
		},
	}
}

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "export.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	var runID int64

	t.Run("RecordRun", func(t *testing.T) {
		run, err := store.RecordRun(ctx, "main", "last()", testRecords())
		if err != nil {
			t.Fatalf("Failed to record run: %v", err)
		}
		if run.DefectCount != 2 {
			t.Errorf("Expected defect count 2, got %d", run.DefectCount)
		}
		if run.CreatedAt == 0 {
			t.Error("Expected non-zero created_at")
		}
		runID = run.ID
	})

	t.Run("GetLastRun", func(t *testing.T) {
		run, err := store.GetLastRun(ctx, "main")
		if err != nil {
			t.Fatalf("Failed to get last run: %v", err)
		}
		if run.ID != runID {
			t.Errorf("Expected run %d, got %d", runID, run.ID)
		}
		if run.Snapshot != "last()" {
			t.Errorf("Expected snapshot last(), got %s", run.Snapshot)
		}
	})

	t.Run("GetDefects", func(t *testing.T) {
		records, err := store.GetDefects(ctx, runID)
		if err != nil {
			t.Fatalf("Failed to load defects: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("Expected 2 defects, got %d", len(records))
		}
		if records[0].CID != 1234 {
			t.Errorf("Expected CID 1234 first, got %d", records[0].CID)
		}
		if records[0].CheckerProperties["Category"] != "Null pointer dereferences" {
			t.Errorf("Expected checker properties to survive a round trip, got %v", records[0].CheckerProperties)
		}
		if records[1].CheckerProperties != nil {
			t.Errorf("Expected nil properties for record without extras, got %v", records[1].CheckerProperties)
		}
	})

	t.Run("GetLastRunUnknownStream", func(t *testing.T) {
		_, err := store.GetLastRun(ctx, "nonexistent")
		if err != ErrRunNotFound {
			t.Errorf("Expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("ListRuns", func(t *testing.T) {
		if _, err := store.RecordRun(ctx, "main", "1024", nil); err != nil {
			t.Fatalf("Failed to record second run: %v", err)
		}
		if _, err := store.RecordRun(ctx, "release", "last()", testRecords()[:1]); err != nil {
			t.Fatalf("Failed to record third run: %v", err)
		}

		runs, err := store.ListRuns(ctx, RunFilter{Stream: "main"})
		if err != nil {
			t.Fatalf("Failed to list runs: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("Expected 2 runs for main, got %d", len(runs))
		}
		if runs[0].Snapshot != "1024" {
			t.Errorf("Expected newest run first, got snapshot %s", runs[0].Snapshot)
		}

		all, err := store.ListRuns(ctx, RunFilter{})
		if err != nil {
			t.Fatalf("Failed to list all runs: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("Expected 3 runs total, got %d", len(all))
		}
	})
}

func TestSQLiteStoreCleanupExcessRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "export.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := store.RecordRun(ctx, "main", "last()", testRecords()); err != nil {
			t.Fatalf("Failed to record run %d: %v", i, err)
		}
	}
	if _, err := store.RecordRun(ctx, "release", "last()", nil); err != nil {
		t.Fatalf("Failed to record release run: %v", err)
	}

	deleted, err := store.CleanupExcessRuns(ctx, "main", 2)
	if err != nil {
		t.Fatalf("Failed to clean up runs: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Expected 3 runs deleted, got %d", deleted)
	}

	runs, err := store.ListRuns(ctx, RunFilter{Stream: "main"})
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("Expected 2 runs kept, got %d", len(runs))
	}

	// other streams untouched
	if _, err := store.GetLastRun(ctx, "release"); err != nil {
		t.Errorf("Expected release run to survive cleanup: %v", err)
	}

	// defects of deleted runs cascade away
	for _, run := range runs {
		records, err := store.GetDefects(ctx, run.ID)
		if err != nil {
			t.Fatalf("Failed to load defects: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("Expected kept run %d to retain its defects, got %d", run.ID, len(records))
		}
	}

	if _, err := store.CleanupExcessRuns(ctx, "main", 0); err == nil {
		t.Error("Expected error for non-positive keep count")
	}
}
