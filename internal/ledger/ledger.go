// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records the batch searches submitted from this machine in
// a local SQLite database, so they can be listed, re-polled and cleaned up
// later without asking the service.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/m1score/pkg/types"
)

// ErrNotFound is returned by Get for an id the ledger has never seen.
var ErrNotFound = errors.New("search not in ledger")

// Record is one tracked search.
type Record struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name,omitempty" yaml:"name,omitempty"`
	Targets     int        `json:"targets" yaml:"targets"`
	DetailLevel string     `json:"detail_level,omitempty" yaml:"detail_level,omitempty"`
	Priority    int        `json:"priority,omitempty" yaml:"priority,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty" yaml:"submitted_at,omitempty"`
	Queued      int        `json:"queued" yaml:"queued"`
	Running     int        `json:"running" yaml:"running"`
	Finished    bool       `json:"finished" yaml:"finished"`
	CheckedAt   *time.Time `json:"checked_at,omitempty" yaml:"checked_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
}

// Ledger manages the SQLite database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at cfg.Path, creating parent
// directories and the schema as needed.
func Open(cfg types.LedgerConfig) (*Ledger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS searches (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			targets INTEGER NOT NULL DEFAULT 0,
			detail_level TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 0,
			submitted_at TEXT,
			queued INTEGER NOT NULL DEFAULT 0,
			running INTEGER NOT NULL DEFAULT 0,
			finished INTEGER NOT NULL DEFAULT 0,
			checked_at TEXT,
			deleted_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_searches_submitted_at ON searches(submitted_at)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordSubmission stores a newly submitted search.
func (l *Ledger) RecordSubmission(ctx context.Context, id string, req types.SearchRequest, at time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO searches (id, name, targets, detail_level, priority, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, targets=excluded.targets,
			detail_level=excluded.detail_level, priority=excluded.priority,
			submitted_at=excluded.submitted_at`,
		id, req.Name, len(req.Targets), string(req.DetailLevel), int(req.Priority), formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("recording submission %s: %w", id, err)
	}
	return nil
}

// RecordStatus stores the latest observed status. Searches the ledger has
// not seen before are added with only their id.
func (l *Ledger) RecordStatus(ctx context.Context, id string, st types.Status, at time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO searches (id, queued, running, finished, checked_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			queued=excluded.queued, running=excluded.running,
			finished=excluded.finished, checked_at=excluded.checked_at`,
		id, st.Queued, st.Running, st.Finished(), formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("recording status %s: %w", id, err)
	}
	return nil
}

// MarkDeleted stamps the search as deleted. Unknown ids are added.
func (l *Ledger) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO searches (id, deleted_at) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET deleted_at=excluded.deleted_at`,
		id, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("marking %s deleted: %w", id, err)
	}
	return nil
}

// Get returns the record for id, or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, id string) (Record, error) {
	row := l.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return r, err
}

// List returns tracked searches, newest submission first. Deleted searches
// are skipped unless includeDeleted is set.
func (l *Ledger) List(ctx context.Context, includeDeleted bool) ([]Record, error) {
	q := selectColumns
	if !includeDeleted {
		q += ` WHERE deleted_at IS NULL`
	}
	q += ` ORDER BY submitted_at DESC, id`

	rows, err := l.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing searches: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

const selectColumns = `SELECT id, name, targets, detail_level, priority, submitted_at,
	queued, running, finished, checked_at, deleted_at FROM searches`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		r                           Record
		submitted, checked, deleted sql.NullString
	)
	err := s.Scan(&r.ID, &r.Name, &r.Targets, &r.DetailLevel, &r.Priority, &submitted,
		&r.Queued, &r.Running, &r.Finished, &checked, &deleted)
	if err != nil {
		return Record{}, err
	}
	r.SubmittedAt = parseTime(submitted)
	r.CheckedAt = parseTime(checked)
	r.DeletedAt = parseTime(deleted)
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
