// ABOUTME: In-memory checkpoint store for tests and ephemeral runs.
// ABOUTME: Stores deep-cloned snapshots so later mutations never leak into saved versions.
package store

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/tome/pipeline"
)

type memoryVersion struct {
	id    string
	state *pipeline.GenerationState
}

var (
	_ pipeline.CheckpointStore = (*MemoryStore)(nil)
	_ pipeline.CheckpointStore = (*FileStore)(nil)
	_ pipeline.CheckpointStore = (*SqliteStore)(nil)
)

// MemoryStore is an in-memory CheckpointStore. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	projects map[string][]memoryVersion
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string][]memoryVersion)}
}

// Save appends a cloned snapshot as a new version.
func (s *MemoryStore) Save(ctx context.Context, projectID string, state *pipeline.GenerationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[projectID] = append(s.projects[projectID], memoryVersion{
		id:    ulid.Make().String(),
		state: state.Clone(),
	})
	return nil
}

// Load returns a clone of the most recent version, or pipeline.ErrNotFound.
func (s *MemoryStore) Load(ctx context.Context, projectID string) (*pipeline.GenerationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.projects[projectID]
	if len(versions) == 0 {
		return nil, pipeline.ErrNotFound
	}
	return versions[len(versions)-1].state.Clone(), nil
}

// ListVersions returns all version IDs for the project, oldest first.
func (s *MemoryStore) ListVersions(ctx context.Context, projectID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.projects[projectID]
	ids := make([]string, len(versions))
	for i, v := range versions {
		ids[i] = v.id
	}
	return ids, nil
}
