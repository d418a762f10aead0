package main

import (
	"testing"
	"time"

	"github.com/cwbudde/grnfit/internal/store"
)

func infoAt(jobID string, age time.Duration) store.CheckpointInfo {
	return store.CheckpointInfo{
		JobID:     jobID,
		Timestamp: time.Now().Add(-age),
		Iteration: 100,
		BestCost:  1.5,
		Dim:       6,
	}
}

func TestSelectCheckpointsForDeletionByAge(t *testing.T) {
	infos := []store.CheckpointInfo{
		infoAt("old", 10*24*time.Hour),
		infoAt("recent", 2*24*time.Hour),
		infoAt("ancient", 30*24*time.Hour),
	}

	toDelete := selectCheckpointsForDeletion(infos, 0, 7)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 checkpoints older than 7 days, got %d", len(toDelete))
	}
	for _, info := range toDelete {
		if info.JobID == "recent" {
			t.Error("Expected recent checkpoint to survive age-based cleanup")
		}
	}
}

func TestSelectCheckpointsForDeletionByCount(t *testing.T) {
	infos := []store.CheckpointInfo{
		infoAt("newest", time.Hour),
		infoAt("oldest", 72*time.Hour),
		infoAt("middle", 24*time.Hour),
	}

	toDelete := selectCheckpointsForDeletion(infos, 2, 0)

	if len(toDelete) != 1 {
		t.Fatalf("Expected 1 checkpoint beyond keep-last=2, got %d", len(toDelete))
	}
	if toDelete[0].JobID != "oldest" {
		t.Errorf("Expected oldest checkpoint selected, got %s", toDelete[0].JobID)
	}
}

func TestSelectCheckpointsForDeletionCombined(t *testing.T) {
	infos := []store.CheckpointInfo{
		infoAt("ancient", 30*24*time.Hour),
		infoAt("newest", time.Hour),
	}

	// Matches both the age rule and the count rule, but must only
	// appear once.
	toDelete := selectCheckpointsForDeletion(infos, 1, 7)

	if len(toDelete) != 1 {
		t.Fatalf("Expected 1 checkpoint, got %d", len(toDelete))
	}
	if toDelete[0].JobID != "ancient" {
		t.Errorf("Expected ancient checkpoint selected, got %s", toDelete[0].JobID)
	}
}

func TestSelectCheckpointsForDeletionKeepAll(t *testing.T) {
	infos := []store.CheckpointInfo{
		infoAt("a", time.Hour),
		infoAt("b", 2*time.Hour),
	}

	if got := selectCheckpointsForDeletion(infos, 5, 0); len(got) != 0 {
		t.Errorf("Expected nothing to delete when under keep-last, got %d", len(got))
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, got, tt.expected)
		}
	}
}
