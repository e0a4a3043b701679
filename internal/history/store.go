// Package history persists a journal of completed jobs in SQLite. Every
// write is best-effort from the caller's point of view: a broken journal
// must never fail or delay a running job.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// Entry is one finished (or cancelled) job.
type Entry struct {
	ID         int64
	JobID      string
	Action     string
	Title      string
	URL        string
	Quality    string
	Genre      string
	Outcome    string
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Outcomes recorded in the journal.
const (
	OutcomeComplete    = "complete"
	OutcomeError       = "error"
	OutcomeCancelled   = "cancelled"
	OutcomeInterrupted = "interrupted"
)

// Store wraps the journal database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// Single writer; the busy timeout covers a status command racing a
	// finishing worker.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		version = 0
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS jobs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id      TEXT NOT NULL,
    action      TEXT NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    url         TEXT NOT NULL DEFAULT '',
    quality     TEXT NOT NULL DEFAULT '',
    genre       TEXT NOT NULL DEFAULT '',
    outcome     TEXT NOT NULL,
    detail      TEXT NOT NULL DEFAULT '',
    started_at  TEXT NOT NULL,
    finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_finished_at ON jobs(finished_at DESC);
`); err != nil {
		return fmt.Errorf("create jobs table: %w", err)
	}

	if version == 0 {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	} else {
		if _, err := s.db.ExecContext(ctx, `UPDATE schema_version SET version = ?`, schemaVersion); err != nil {
			return fmt.Errorf("update schema version: %w", err)
		}
	}
	return nil
}

// Record appends entry to the journal.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now()
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = entry.FinishedAt
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs (job_id, action, title, url, quality, genre, outcome, detail, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.JobID, entry.Action, entry.Title, entry.URL, entry.Quality, entry.Genre,
		entry.Outcome, entry.Detail,
		entry.StartedAt.UTC().Format(time.RFC3339),
		entry.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first. When onlyFailed is
// set, completed jobs are filtered out.
func (s *Store) List(ctx context.Context, limit int, onlyFailed bool) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT id, job_id, action, title, url, quality, genre, outcome, detail, started_at, finished_at
FROM jobs`
	if onlyFailed {
		query += ` WHERE outcome != '` + OutcomeComplete + `'`
	}
	query += ` ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var started, finished string
		if err := rows.Scan(&entry.ID, &entry.JobID, &entry.Action, &entry.Title, &entry.URL,
			&entry.Quality, &entry.Genre, &entry.Outcome, &entry.Detail, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		entry.StartedAt, _ = time.Parse(time.RFC3339, started)
		entry.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return entries, nil
}
