// ABOUTME: Filesystem-backed checkpoint store with atomic writes and ULID-versioned snapshots.
// ABOUTME: Each save writes a new version file (write to .tmp, fsync, rename) under the project directory.
package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/tome/pipeline"
)

// FileStore persists checkpoints as JSON files on disk. Each project gets a
// directory; each save creates a new ULID-named version file. ULIDs are
// lexicographically sortable by creation time, so the latest version is the
// highest filename. Monotonic entropy keeps versions strictly increasing
// even for saves within the same millisecond.
type FileStore struct {
	root string

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint root: %w", err)
	}
	return &FileStore{
		root:    dir,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

func (s *FileStore) newVersion() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), s.entropy)
	if err != nil {
		return "", fmt.Errorf("generate version id: %w", err)
	}
	return id.String(), nil
}

func (s *FileStore) projectDir(projectID string) string {
	return filepath.Join(s.root, projectID)
}

// Save writes a new checkpoint version for the project using atomic write
// (write to .tmp, fsync, rename). A failed save leaves prior versions intact.
func (s *FileStore) Save(ctx context.Context, projectID string, state *pipeline.GenerationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := s.projectDir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}

	data, err := state.Marshal()
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	version, err := s.newVersion()
	if err != nil {
		return err
	}
	tmpPath := filepath.Join(dir, version+".tmp")
	finalPath := filepath.Join(dir, version+".json")

	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint data: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fsync checkpoint: %w", err)
	}
	_ = tmpFile.Close()

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}

// Load returns the most recent checkpoint for the project, or
// pipeline.ErrNotFound if none exists.
func (s *FileStore) Load(ctx context.Context, projectID string) (*pipeline.GenerationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	versions, err := s.versionFiles(projectID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, pipeline.ErrNotFound
	}

	latest := versions[len(versions)-1]
	contents, err := os.ReadFile(filepath.Join(s.projectDir(projectID), latest+".json"))
	if err != nil {
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	state, err := pipeline.UnmarshalState(contents)
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return state, nil
}

// ListVersions returns all checkpoint versions for the project, oldest first.
func (s *FileStore) ListVersions(ctx context.Context, projectID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.versionFiles(projectID)
}

// LoadVersion returns one specific checkpoint version for the project.
func (s *FileStore) LoadVersion(ctx context.Context, projectID, version string) (*pipeline.GenerationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contents, err := os.ReadFile(filepath.Join(s.projectDir(projectID), version+".json"))
	if os.IsNotExist(err) {
		return nil, pipeline.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	state, err := pipeline.UnmarshalState(contents)
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return state, nil
}

func (s *FileStore) versionFiles(projectID string) ([]string, error) {
	entries, err := os.ReadDir(s.projectDir(projectID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read project dir: %w", err)
	}

	var versions []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if _, err := ulid.Parse(id); err != nil {
			continue
		}
		versions = append(versions, id)
	}
	sort.Strings(versions)
	return versions, nil
}
