package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "checkpoints.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(""); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestSQLiteStoreRoundtrip(t *testing.T) {
	s := openTestDB(t)

	original := validCheckpoint()
	if err := s.SaveCheckpoint(original.JobID, original); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	loaded, err := s.LoadCheckpoint(original.JobID)
	if err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}

	if loaded.JobID != original.JobID || loaded.BestCost != original.BestCost || loaded.Iteration != original.Iteration {
		t.Errorf("Loaded checkpoint differs: %+v vs %+v", loaded, original)
	}
	for i := range original.BestParams {
		if loaded.BestParams[i] != original.BestParams[i] {
			t.Errorf("Param %d differs: %g vs %g", i, loaded.BestParams[i], original.BestParams[i])
		}
	}
	if loaded.Config.Mode != original.Config.Mode {
		t.Errorf("Expected config carried through, got %+v", loaded.Config)
	}
}

func TestSQLiteStoreUpsert(t *testing.T) {
	s := openTestDB(t)

	c := validCheckpoint()
	if err := s.SaveCheckpoint(c.JobID, c); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	c.BestCost = 0.25
	if err := s.SaveCheckpoint(c.JobID, c); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	infos, err := s.ListCheckpoints()
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("Expected a single row after upsert, got %d", len(infos))
	}
	if infos[0].BestCost != 0.25 {
		t.Errorf("Expected updated cost 0.25, got %g", infos[0].BestCost)
	}
}

func TestSQLiteStoreMissingCheckpoint(t *testing.T) {
	s := openTestDB(t)

	if _, err := s.LoadCheckpoint("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on load, got %v", err)
	}
	if err := s.DeleteCheckpoint("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on delete, got %v", err)
	}
}

func TestSQLiteStoreDelete(t *testing.T) {
	s := openTestDB(t)

	c := validCheckpoint()
	s.SaveCheckpoint(c.JobID, c)

	if err := s.DeleteCheckpoint(c.JobID); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := s.LoadCheckpoint(c.JobID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteStoreListOrdersByTimestamp(t *testing.T) {
	s := openTestDB(t)

	newer := validCheckpoint()
	newer.JobID = "job-newer"

	older := validCheckpoint()
	older.JobID = "job-older"
	older.Timestamp = newer.Timestamp.AddDate(0, 0, -1)

	s.SaveCheckpoint(newer.JobID, newer)
	s.SaveCheckpoint(older.JobID, older)

	infos, err := s.ListCheckpoints()
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(infos))
	}
	if infos[0].JobID != "job-older" || infos[1].JobID != "job-newer" {
		t.Errorf("Expected oldest first, got %s then %s", infos[0].JobID, infos[1].JobID)
	}
}
