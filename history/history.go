// Package history persists tool invocations in a SQLite database so a
// session can be reviewed after the fact.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one tool invocation.
type Record struct {
	ID        string
	SessionID string
	Tool      string
	// Input is the raw tool input, truncated for display.
	Input    string
	Result   string
	IsError  bool
	Started  time.Time
	Duration time.Duration
}

// timeFormat is fixed width so start times sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; the HTTP server records from several goroutines.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	ddl := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			input TEXT NOT NULL,
			result TEXT NOT NULL,
			is_error INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_session ON invocations(session_id);`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_started ON invocations(started_at);`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores rec.
func (s *Store) Record(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocations (id, session_id, tool, input, result, is_error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.SessionID,
		rec.Tool,
		rec.Input,
		rec.Result,
		rec.IsError,
		rec.Started.UTC().Format(timeFormat),
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record invocation %s: %w", rec.ID, err)
	}
	return nil
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	SessionID string
	Tool      string
	// Limit defaults to 20.
	Limit int
}

// List returns the most recent invocations matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Tool != "" {
		where = append(where, "tool = ?")
		args = append(args, f.Tool)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT id, session_id, tool, input, result, is_error, started_at, duration_ms FROM invocations`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list invocations: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec        Record
			started    string
			durationMS int64
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Tool, &rec.Input, &rec.Result, &rec.IsError, &started, &durationMS); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		rec.Started, err = time.Parse(timeFormat, started)
		if err != nil {
			return nil, fmt.Errorf("invocation %s: bad start time %q: %w", rec.ID, started, err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}
