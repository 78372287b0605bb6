// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records every operation run against a collection in a
// SQLite database kept inside the collection directory, so the history of
// an item survives across runs and machines that share the scans.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// StateDir holds the ledger and lock file inside a collection directory.
	StateDir = ".digitize"
	dbFile   = "ledger.db"
)

// Outcome is how an operation on an item ended.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Entry is one recorded operation.
type Entry struct {
	ID         int64     `json:"id" yaml:"id"`
	RunID      string    `json:"run_id" yaml:"run_id"`
	ItemID     string    `json:"item_identifier" yaml:"item_identifier"`
	Operation  string    `json:"operation" yaml:"operation"`
	Outcome    Outcome   `json:"outcome" yaml:"outcome"`
	Message    string    `json:"message" yaml:"message"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// Duration is the wall time the operation took.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Ledger appends entries for one run. Every entry recorded through the same
// Ledger shares its run ID.
type Ledger struct {
	db    *sql.DB
	runID string
}

// Path returns the ledger database path for a collection directory.
func Path(collectionDir string) string {
	return filepath.Join(collectionDir, StateDir, dbFile)
}

// Open opens or creates the ledger for collectionDir and starts a new run.
func Open(collectionDir string) (*Ledger, error) {
	dir := filepath.Join(collectionDir, StateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", Path(collectionDir)+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	l := &Ledger{db: db, runID: uuid.NewString()}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return l, nil
}

// RunID identifies the current run.
func (l *Ledger) RunID() string { return l.runID }

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS operations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			outcome TEXT NOT NULL,
			message TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_operations_item_id ON operations(item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_operations_run_id ON operations(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record appends e under the current run. ID and RunID are assigned here.
func (l *Ledger) Record(ctx context.Context, e Entry) (Entry, error) {
	e.RunID = l.runID
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO operations (run_id, item_id, operation, outcome, message, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.ItemID, e.Operation, string(e.Outcome), e.Message,
		e.StartedAt.UTC().Format(time.RFC3339Nano), e.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return e, fmt.Errorf("recording %s for %s: %w", e.Operation, e.ItemID, err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return e, fmt.Errorf("recording %s for %s: %w", e.Operation, e.ItemID, err)
	}
	return e, nil
}

// History returns the entries for itemID, oldest first. An empty itemID
// returns every entry.
func (l *Ledger) History(ctx context.Context, itemID string) ([]Entry, error) {
	query := `SELECT id, run_id, item_id, operation, outcome, message, started_at, finished_at FROM operations`
	var args []any
	if itemID != "" {
		query += ` WHERE item_id = ?`
		args = append(args, itemID)
	}
	query += ` ORDER BY id`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			outcome           string
			message           sql.NullString
			started, finished string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.ItemID, &e.Operation, &outcome, &message, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.Outcome = Outcome(outcome)
		e.Message = message.String
		if e.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parsing started_at of entry %d: %w", e.ID, err)
		}
		if e.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parsing finished_at of entry %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
