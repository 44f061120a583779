// ABOUTME: Tests for the in-memory checkpoint store, including snapshot isolation.
package store

import (
	"context"
	"errors"
	"testing"

	"github.com/2389-research/tome/pipeline"
)

func TestMemoryStoreSaveAndLoad(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	state := pipeline.NewState("proj-1")
	state.StageIndex = 2
	if err := s.Save(ctx, "proj-1", state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load(ctx, "proj-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.StageIndex != 2 {
		t.Errorf("StageIndex = %d, want 2", loaded.StageIndex)
	}
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	state := pipeline.NewState("proj-1")
	state.StageIndex = 1
	if err := s.Save(ctx, "proj-1", state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutating the original after save must not change the stored snapshot.
	state.StageIndex = 99

	loaded, err := s.Load(ctx, "proj-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.StageIndex != 1 {
		t.Errorf("stored snapshot was mutated: StageIndex = %d, want 1", loaded.StageIndex)
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Load(context.Background(), "nope")
	if !errors.Is(err, pipeline.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListVersions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	state := pipeline.NewState("proj-1")
	for i := 0; i < 3; i++ {
		if err := s.Save(ctx, "proj-1", state); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	versions, err := s.ListVersions(ctx, "proj-1")
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if len(versions) != 3 {
		t.Errorf("expected 3 versions, got %d", len(versions))
	}
}
