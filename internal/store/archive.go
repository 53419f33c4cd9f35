// Package store persists finished classification runs to SQLite so past
// verdicts and their evidence can be listed and re-read. Persistence stays
// out of the research and classification loops; the pipeline archives once,
// after the final verdict.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"leadscout/internal/blackboard"
	"leadscout/internal/lead"
)

// Run is one archived lead classification: identity, final verdict and the
// run's budget usage.
type Run struct {
	ID         string     `json:"id"`
	Lead       lead.Lead  `json:"lead"`
	Label      lead.Label `json:"label"`
	Rationale  string     `json:"rationale"`
	Rounds     int        `json:"rounds"`
	Pages      int        `json:"pages"`
	Chars      int64      `json:"chars"`
	Outcome    string     `json:"outcome"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Archive is the SQLite-backed run store.
type Archive struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// Open initializes the archive database at the given path, creating the file
// and schema as needed.
func Open(path string) (*Archive, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	// Pragmas are best effort; failure falls back to SQLite defaults.
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		_, _ = db.Exec(pragma)
	}

	a := &Archive{db: db, path: path}
	if err := a.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		username TEXT,
		name TEXT,
		url TEXT NOT NULL,
		label TEXT NOT NULL,
		rationale TEXT,
		rounds INTEGER NOT NULL DEFAULT 0,
		pages INTEGER NOT NULL DEFAULT 0,
		chars INTEGER NOT NULL DEFAULT 0,
		outcome TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_label ON runs(label);
	CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);
	`

	findingsTable := `
	CREATE TABLE IF NOT EXISTS run_findings (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		summary TEXT NOT NULL,
		goal TEXT,
		links TEXT,
		fetched_at DATETIME,
		PRIMARY KEY (run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_run_findings_run ON run_findings(run_id);
	`

	for _, table := range []string{runsTable, findingsTable} {
		if _, err := a.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

// ArchiveRun writes a finished run and its findings in one transaction.
// A missing run ID gets a fresh uuid; the (possibly generated) ID is
// returned. Zero timestamps default to now.
func (a *Archive) ArchiveRun(run Run, findings []blackboard.PageFinding) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	tx, err := a.db.Begin()
	if err != nil {
		return "", fmt.Errorf("archive run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, username, name, url, label, rationale, rounds, pages, chars, outcome, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Lead.Username, run.Lead.Name, run.Lead.URL,
		string(run.Label), run.Rationale, run.Rounds, run.Pages, run.Chars,
		run.Outcome, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return "", fmt.Errorf("archive run %s: %w", run.ID, err)
	}

	for seq, f := range findings {
		linksJSON, err := json.Marshal(f.Links)
		if err != nil {
			return "", fmt.Errorf("archive run %s finding %d: %w", run.ID, seq, err)
		}
		_, err = tx.Exec(
			`INSERT INTO run_findings (run_id, seq, url, title, summary, goal, links, fetched_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, seq, f.URL, f.Title, f.Summary, f.Goal, string(linksJSON), f.FetchedAt,
		)
		if err != nil {
			return "", fmt.Errorf("archive run %s finding %d: %w", run.ID, seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("archive run %s: %w", run.ID, err)
	}
	return run.ID, nil
}

// RecentRuns lists archived runs, most recently finished first.
func (a *Archive) RecentRuns(limit int) ([]Run, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.Query(
		`SELECT id, username, name, url, label, rationale, rounds, pages, chars, outcome, started_at, finished_at
		 FROM runs ORDER BY finished_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var label string
		if err := rows.Scan(&r.ID, &r.Lead.Username, &r.Lead.Name, &r.Lead.URL,
			&label, &r.Rationale, &r.Rounds, &r.Pages, &r.Chars,
			&r.Outcome, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("recent runs: %w", err)
		}
		r.Label = lead.Label(label)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunFindings reads back one run's findings in recorded order.
func (a *Archive) RunFindings(runID string) ([]blackboard.PageFinding, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rows, err := a.db.Query(
		`SELECT url, title, summary, goal, links, fetched_at
		 FROM run_findings WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("run findings %s: %w", runID, err)
	}
	defer rows.Close()

	var findings []blackboard.PageFinding
	for rows.Next() {
		var f blackboard.PageFinding
		var linksJSON string
		if err := rows.Scan(&f.URL, &f.Title, &f.Summary, &f.Goal, &linksJSON, &f.FetchedAt); err != nil {
			return nil, fmt.Errorf("run findings %s: %w", runID, err)
		}
		if linksJSON != "" {
			if err := json.Unmarshal([]byte(linksJSON), &f.Links); err != nil {
				return nil, fmt.Errorf("run findings %s: %w", runID, err)
			}
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}
