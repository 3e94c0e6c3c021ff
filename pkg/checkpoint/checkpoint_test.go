package checkpoint

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestCheckpointManager(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	labels := []string{"crypto", "pets", "kpop"}

	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr, err := NewManager("run")
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		cp, err := mgr.Create(3, "./dataset3", labels)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if _, err := uuid.Parse(cp.RunID); err != nil {
			t.Errorf("Expected a uuid run id, got %q", cp.RunID)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if loaded.RunID != cp.RunID {
			t.Errorf("Expected run id %s, got %s", cp.RunID, loaded.RunID)
		}
		if loaded.Generation != 3 || loaded.DatasetDir != "./dataset3" {
			t.Errorf("Unexpected generation %d in %s", loaded.Generation, loaded.DatasetDir)
		}
		if !loaded.Matches(labels) {
			t.Errorf("Expected topics %v, got %v", labels, loaded.Topics)
		}
	})

	t.Run("RecordProgress", func(t *testing.T) {
		mgr, err := NewManager("run")
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		cp, err := mgr.Create(1, "./dataset1", labels)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}

		if err := mgr.RecordFetch(cp); err != nil {
			t.Fatalf("Failed to record fetch: %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := mgr.RecordRefresh(cp); err != nil {
				t.Fatalf("Failed to record refresh: %v", err)
			}
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if !loaded.Fetched {
			t.Error("Expected fetch to be recorded")
		}
		if loaded.RefreshesDone != 2 {
			t.Errorf("Expected 2 refreshes, got %d", loaded.RefreshesDone)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		mgr, err := NewManager("run")
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		if _, err := mgr.Create(1, "./dataset1", labels); err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if !mgr.Exists() {
			t.Error("Expected checkpoint to exist")
		}

		if err := mgr.Delete(); err != nil {
			t.Fatalf("Failed to delete checkpoint: %v", err)
		}
		if mgr.Exists() {
			t.Error("Expected checkpoint to not exist after deletion")
		}

		cp, err := mgr.Load()
		if err != nil || cp != nil {
			t.Errorf("Expected no checkpoint after deletion, got %v, %v", cp, err)
		}
	})

	t.Run("RejectsUnknownVersion", func(t *testing.T) {
		mgr, err := NewManager("old")
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if err := os.WriteFile(mgr.Path(), []byte(`{"run_id":"x","version":99}`), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := mgr.Load(); err == nil || !strings.Contains(err.Error(), "version") {
			t.Errorf("Expected version error, got %v", err)
		}
	})

	t.Run("BackupCheckpoint", func(t *testing.T) {
		mgr, err := NewManager("run")
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		if _, err := mgr.Create(2, "./dataset2", labels); err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if err := mgr.BackupCheckpoint(); err != nil {
			t.Fatalf("Failed to backup checkpoint: %v", err)
		}

		if _, err := os.Stat(mgr.Path() + ".backup"); os.IsNotExist(err) {
			t.Error("Backup file not created")
		}
	})
}

func TestMatches(t *testing.T) {
	cp := &Checkpoint{Topics: []string{"a", "b"}}

	tests := []struct {
		topics []string
		want   bool
	}{
		{[]string{"a", "b"}, true},
		{[]string{"b", "a"}, false},
		{[]string{"a"}, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := cp.Matches(tt.topics); got != tt.want {
			t.Errorf("Matches(%v) = %v, want %v", tt.topics, got, tt.want)
		}
	}
}

func TestGetDataDirectory(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_DATA_HOME", base)

	dir, err := getDataDirectory()
	if err != nil {
		t.Fatalf("Failed to get data directory: %v", err)
	}
	if dir == "" {
		t.Error("Data directory is empty")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Data directory not created: %v", err)
	}
	if runtime.GOOS == "linux" && dir != filepath.Join(base, "twdataset") {
		t.Errorf("Expected %s, got %s", filepath.Join(base, "twdataset"), dir)
	}
}
