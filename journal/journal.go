// Package journal keeps a durable history of reload attempts in SQLite.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome values stored in the journal.
const (
	OutcomeSwapped      = "swapped"
	OutcomeCompileError = "compile_error"
	OutcomeRuntimeError = "runtime_error"
	OutcomeWatchError   = "watch_error"
	OutcomePathChanged  = "path_changed"
)

// Entry is one row of reload history.
type Entry struct {
	ID      int64
	At      time.Time
	Path    string
	Digest  string
	UnitID  string
	Outcome string
	Message string
}

// Journal is an append-only reload history.
type Journal struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the journal database at path. ":memory:" keeps the
// history for the life of the process only.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// One connection: writes come from the tick goroutine and an in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS reloads (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		at       INTEGER NOT NULL,
		path     TEXT NOT NULL,
		digest   TEXT NOT NULL,
		unit_id  TEXT NOT NULL,
		outcome  TEXT NOT NULL,
		message  TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record appends e. A zero At is set to now.
func (j *Journal) Record(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := j.db.Exec(
		"INSERT INTO reloads (at, path, digest, unit_id, outcome, message) VALUES (?, ?, ?, ?, ?, ?)",
		e.At.UnixNano(), e.Path, e.Digest, e.UnitID, e.Outcome, e.Message,
	)
	if err != nil {
		return fmt.Errorf("recording reload: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		"SELECT id, at, path, digest, unit_id, outcome, message FROM reloads ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("querying reloads: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.ID, &at, &e.Path, &e.Digest, &e.UnitID, &e.Outcome, &e.Message); err != nil {
			return nil, fmt.Errorf("scanning reload: %w", err)
		}
		e.At = time.Unix(0, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of entries with the given outcome, or all entries
// when outcome is empty.
func (j *Journal) Count(outcome string) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var n int
	var err error
	if outcome == "" {
		err = j.db.QueryRow("SELECT COUNT(*) FROM reloads").Scan(&n)
	} else {
		err = j.db.QueryRow("SELECT COUNT(*) FROM reloads WHERE outcome = ?", outcome).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting reloads: %w", err)
	}
	return n, nil
}
