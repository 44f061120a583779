// ABOUTME: SQLite-backed checkpoint store keeping all versions in a single checkpoints table.
// ABOUTME: Versions are ULIDs so lexical ordering matches creation order.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/2389-research/tome/pipeline"
)

// SqliteStore persists checkpoints in a SQLite database. Every save inserts
// a new row, so the full version history remains queryable. Versions use
// monotonic ULIDs so lexical order matches save order.
type SqliteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// OpenSqlite opens or creates a SQLite checkpoint database at the given path.
func OpenSqlite(path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			project_id TEXT NOT NULL,
			version TEXT NOT NULL,
			state TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			PRIMARY KEY (project_id, version)
		);
		CREATE INDEX IF NOT EXISTS idx_checkpoints_project ON checkpoints(project_id);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SqliteStore{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

func (s *SqliteStore) newVersion() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), s.entropy)
	if err != nil {
		return "", fmt.Errorf("generate version id: %w", err)
	}
	return id.String(), nil
}

// Close closes the underlying database.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// Save inserts a new checkpoint version for the project.
func (s *SqliteStore) Save(ctx context.Context, projectID string, state *pipeline.GenerationState) error {
	data, err := state.Marshal()
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	version, err := s.newVersion()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (project_id, version, state, saved_at) VALUES (?, ?, ?, ?)`,
		projectID, version, string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// Load returns the most recent checkpoint for the project, or
// pipeline.ErrNotFound if none exists.
func (s *SqliteStore) Load(ctx context.Context, projectID string) (*pipeline.GenerationState, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM checkpoints WHERE project_id = ? ORDER BY version DESC LIMIT 1`,
		projectID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, pipeline.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checkpoint: %w", err)
	}

	state, err := pipeline.UnmarshalState([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return state, nil
}

// ListVersions returns all checkpoint versions for the project, oldest first.
func (s *SqliteStore) ListVersions(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version FROM checkpoints WHERE project_id = ? ORDER BY version ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

// LoadVersion returns one specific checkpoint version for the project.
func (s *SqliteStore) LoadVersion(ctx context.Context, projectID, version string) (*pipeline.GenerationState, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM checkpoints WHERE project_id = ? AND version = ?`,
		projectID, version,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, pipeline.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checkpoint: %w", err)
	}

	state, err := pipeline.UnmarshalState([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return state, nil
}
