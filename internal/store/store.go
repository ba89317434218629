// Package store exports run snapshots to SQLite.
//
// The engine itself keeps nothing between runs; this is an explicit,
// opt-in export of one run's output for later inspection.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abelbrown/pulse/internal/dashboard"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Run summarizes one exported snapshot.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Query      string
	Limit      int
	Entries    int
}

// Entry is one exported feed entry.
type Entry struct {
	Group        string
	Label        string
	Position     int
	Title        string
	Link         string
	PublishedRaw string
	Summary      string
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for file-based databases.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		query TEXT NOT NULL DEFAULT '',
		entry_limit INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		run_id TEXT NOT NULL REFERENCES runs(id),
		grp TEXT NOT NULL,
		label TEXT NOT NULL,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		link TEXT NOT NULL,
		published_raw TEXT,
		summary TEXT,
		PRIMARY KEY (run_id, label, position)
	);

	CREATE TABLE IF NOT EXISTS series_points (
		run_id TEXT NOT NULL REFERENCES runs(id),
		series TEXT NOT NULL,
		col TEXT NOT NULL,
		day DATE NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (run_id, series, col, day)
	);

	CREATE TABLE IF NOT EXISTS trends (
		run_id TEXT NOT NULL REFERENCES runs(id),
		rank INTEGER NOT NULL,
		name TEXT NOT NULL,
		shows TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS keywords (
		run_id TEXT NOT NULL REFERENCES runs(id),
		kind TEXT NOT NULL,
		rank INTEGER NOT NULL,
		keyword TEXT NOT NULL,
		count INTEGER NOT NULL,
		sources TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_entries_run ON entries(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveSnapshot writes a run and everything it produced in one transaction.
// Saving the same run twice is an error.
func (s *Store) SaveSnapshot(snap dashboard.Snapshot) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(
		`INSERT INTO runs (id, started_at, finished_at, query, entry_limit) VALUES (?, ?, ?, ?, ?)`,
		snap.RunID, snap.StartedAt.UTC(), snap.FinishedAt.UTC(), snap.Query, snap.Limit,
	); err != nil {
		return fmt.Errorf("insert run %s: %w", snap.RunID, err)
	}

	for _, g := range snap.Feeds {
		for _, src := range g.Sources {
			for i, e := range src.Entries {
				if _, err = tx.Exec(
					`INSERT INTO entries (run_id, grp, label, position, title, link, published_raw, summary)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					snap.RunID, g.Name, src.Label, i, e.Title, e.Link, e.PublishedRaw, e.Summary,
				); err != nil {
					return fmt.Errorf("insert entry %s/%d: %w", src.Label, i, err)
				}
			}
		}
	}

	for _, sr := range snap.Series {
		for _, row := range sr.Series.Rows {
			for _, col := range sr.Series.Columns {
				v, ok := row.Values[col]
				if !ok {
					continue
				}
				if _, err = tx.Exec(
					`INSERT INTO series_points (run_id, series, col, day, value) VALUES (?, ?, ?, ?, ?)`,
					snap.RunID, sr.Name, col, row.Date.Format("2006-01-02"), v,
				); err != nil {
					return fmt.Errorf("insert series point %s/%s: %w", sr.Name, col, err)
				}
			}
		}
	}

	for i, tr := range snap.Trending {
		if _, err = tx.Exec(
			`INSERT INTO trends (run_id, rank, name, shows) VALUES (?, ?, ?, ?)`,
			snap.RunID, i+1, tr.Name, strings.Join(tr.Shows, "\n"),
		); err != nil {
			return fmt.Errorf("insert trend: %w", err)
		}
	}

	for i, kw := range snap.Popular {
		if _, err = tx.Exec(
			`INSERT INTO keywords (run_id, kind, rank, keyword, count) VALUES (?, 'popular', ?, ?, ?)`,
			snap.RunID, i+1, kw.Keyword, kw.Count,
		); err != nil {
			return fmt.Errorf("insert keyword: %w", err)
		}
	}
	for i, tp := range snap.Emerging {
		if _, err = tx.Exec(
			`INSERT INTO keywords (run_id, kind, rank, keyword, count, sources) VALUES (?, 'emerging', ?, ?, ?, ?)`,
			snap.RunID, i+1, tp.Keyword, tp.Count, strings.Join(tp.Sources, "\n"),
		); err != nil {
			return fmt.Errorf("insert topic: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Runs returns the most recent exported runs, newest first.
func (s *Store) Runs(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT r.id, r.started_at, r.finished_at, r.query, r.entry_limit,
			(SELECT COUNT(*) FROM entries e WHERE e.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Query, &r.Limit, &r.Entries); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Entries returns the entries of a run in group, label and position order.
func (s *Store) Entries(runID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT grp, label, position, title, link, COALESCE(published_raw, ''), COALESCE(summary, '')
		FROM entries
		WHERE run_id = ?
		ORDER BY grp, label, position
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Group, &e.Label, &e.Position, &e.Title, &e.Link, &e.PublishedRaw, &e.Summary); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SeriesPoints returns how many series values a run stored.
func (s *Store) SeriesPoints(runID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM series_points WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// Trends returns the trending names of a run in rank order.
func (s *Store) Trends(runID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT name FROM trends WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
