// Package journal keeps a history of completed exports in a small
// SQLite database.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one completed export.
type Entry struct {
	ID          int64
	Source      string
	Destination string
	Format      string
	Duration    time.Duration
	ExportedAt  time.Time
}

// Journal records export history. database/sql serializes access, so
// a Journal is safe for concurrent use.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on journal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout on journal: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS exports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			destination TEXT NOT NULL,
			format TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			exported_at TEXT NOT NULL
		);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create exports table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record stores one entry. The entry's ID is assigned by the
// database; a zero ExportedAt means now.
func (j *Journal) Record(e Entry) error {
	when := e.ExportedAt
	if when.IsZero() {
		when = time.Now()
	}
	_, err := j.db.Exec(
		`INSERT INTO exports (source, destination, format, duration_ms, exported_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Source, e.Destination, e.Format,
		e.Duration.Milliseconds(), when.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record export of %s: %w", e.Source, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive
// limit defaults to 20.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(
		`SELECT id, source, destination, format, duration_ms, exported_at
		 FROM exports ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query export history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ms int64
		var when string
		if err := rows.Scan(&e.ID, &e.Source, &e.Destination, &e.Format, &ms, &when); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		if t, err := time.Parse(time.RFC3339, when); err == nil {
			e.ExportedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
