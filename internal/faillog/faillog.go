// Package faillog persists the error log entries written when a
// background job exhausts its retries.
package faillog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// timeLayout keeps a fixed-width fraction so the stored strings sort
// lexicographically in timestamp order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one recorded failure.
type Entry struct {
	ID        string
	Title     string
	Detail    string
	CreatedAt time.Time
}

// Store writes failure entries to SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates an unopened store.
func NewStore() *Store {
	return &Store{}
}

// Open opens the SQLite database and runs pending migrations.
// Use ":memory:" for an in-memory database.
func (s *Store) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", path)
	} else {
		dsn = ":memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return s.migrate()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts a failure entry. It satisfies the jobs.FailureLog
// interface, so it must not itself fail the caller; errors surface
// through the returned error only.
func (s *Store) Record(title, detail string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.Exec(
		`INSERT INTO failures (id, title, detail, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), title, detail, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(limit int) ([]*Entry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, title, detail, created_at FROM failures ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.Title, &e.Detail, &created); err != nil {
			return nil, fmt.Errorf("failed to scan failure row: %w", err)
		}
		if t, perr := time.Parse(timeLayout, created); perr == nil {
			e.CreatedAt = t
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
