package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface on a single SQLite file.
// Useful as a durable archive of many runs where a directory per job
// gets unwieldy. The full checkpoint is stored as a JSON payload next to
// the columns needed for listing.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			job_id     TEXT PRIMARY KEY,
			best_cost  REAL NOT NULL,
			iteration  INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			mode       TEXT NOT NULL,
			payload    BLOB NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{path: path, db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// SaveCheckpoint upserts the checkpoint for the given job.
func (s *SQLiteStore) SaveCheckpoint(jobID string, checkpoint *Checkpoint) error {
	if jobID == "" {
		return fmt.Errorf("jobID cannot be empty")
	}
	if checkpoint == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}

	payload, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err = s.db.Exec(`
		INSERT INTO checkpoints (job_id, best_cost, iteration, created_at, mode, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			best_cost  = excluded.best_cost,
			iteration  = excluded.iteration,
			created_at = excluded.created_at,
			mode       = excluded.mode,
			payload    = excluded.payload
	`, jobID, checkpoint.BestCost, checkpoint.Iteration,
		checkpoint.Timestamp.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
		checkpoint.Config.Mode, payload)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Debug("Checkpoint saved", "jobID", jobID, "db", s.path)
	return nil
}

// LoadCheckpoint retrieves the checkpoint for the given job.
func (s *SQLiteStore) LoadCheckpoint(jobID string) (*Checkpoint, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM checkpoints WHERE job_id = ?`, jobID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{JobID: jobID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoint: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(payload, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}
	return &checkpoint, nil
}

// ListCheckpoints returns metadata for every stored checkpoint.
func (s *SQLiteStore) ListCheckpoints() ([]CheckpointInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT payload FROM checkpoints ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	infos := []CheckpointInfo{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		var checkpoint Checkpoint
		if err := json.Unmarshal(payload, &checkpoint); err != nil {
			slog.Warn("Skipping corrupt checkpoint payload", "error", err)
			continue
		}
		infos = append(infos, checkpoint.ToInfo())
	}
	return infos, rows.Err()
}

// DeleteCheckpoint removes the checkpoint for the given job.
func (s *SQLiteStore) DeleteCheckpoint(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("jobID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	res, err := s.db.Exec(`DELETE FROM checkpoints WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return &NotFoundError{JobID: jobID}
	}
	return nil
}
