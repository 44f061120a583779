// ABOUTME: CheckpointStore interface consumed by the orchestrator for durable state snapshots.
// ABOUTME: Save must be atomic; Load reports ErrNotFound for unknown projects.
package pipeline

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no checkpoint exists for a project.
var ErrNotFound = errors.New("checkpoint not found")

// CheckpointStore persists GenerationState snapshots keyed by project.
// Implementations must guarantee that a partially written checkpoint is
// never visible to Load.
type CheckpointStore interface {
	// Save durably writes a snapshot of the state.
	Save(ctx context.Context, projectID string, state *GenerationState) error
	// Load returns the most recent snapshot, or ErrNotFound.
	Load(ctx context.Context, projectID string) (*GenerationState, error)
	// ListVersions returns checkpoint identifiers oldest-first. Used for
	// rollback and debugging, not for normal operation.
	ListVersions(ctx context.Context, projectID string) ([]string, error)
}
