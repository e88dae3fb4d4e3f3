// ABOUTME: SQLite implementation of the Ledger interface using modernc.org/sqlite.
// ABOUTME: Durable review records with automatic schema creation and WAL mode.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteLedger implements the Ledger interface using SQLite. AUTOINCREMENT
// ids are strictly increasing and never reused, matching the in-memory
// ledger's allocation guarantee across restarts.
type SQLiteLedger struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteLedger creates a SQLite-backed ledger at the given path.
// The schema is automatically created if it doesn't exist. Parent
// directories are created if needed. Pass nil logger for default.
func NewSQLiteLedger(path string, logger *slog.Logger) (*SQLiteLedger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ledger")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection serializes writers in the pool instead of letting
	// them collide on SQLite's write lock and surface SQLITE_BUSY. Concurrent
	// transitions then resolve as one winner plus ErrAlreadyResolved, the same
	// contract the in-memory ledger gives.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	l := &SQLiteLedger{
		db:     db,
		logger: logger,
	}

	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite ledger initialized", "path", path)
	return l, nil
}

// createSchema creates the database tables if they don't exist
func (l *SQLiteLedger) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS review_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			requester_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL DEFAULT '',
			input_message TEXT NOT NULL,
			generated_response TEXT NOT NULL,
			confidence REAL NOT NULL,
			state TEXT NOT NULL DEFAULT 'pending',
			final_response TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			resolved_at DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_review_records_pending
			ON review_records(state, created_at);
	`

	_, err := l.db.Exec(schema)
	return err
}

const recordColumns = `id, requester_id, conversation_id, input_message, generated_response,
		       confidence, state, final_response, created_at, resolved_at`

// sqliteTimeFormat is RFC 3339 with fixed-width nanoseconds. RFC3339Nano
// trims trailing fractional zeros, and 'Z' sorts after '.', so a trimmed
// whole-second timestamp would order lexicographically after a fractional
// one in the same second. Fixed width keeps ORDER BY created_at correct.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Enqueue inserts a Pending record and returns its AUTOINCREMENT id.
func (l *SQLiteLedger) Enqueue(ctx context.Context, params EnqueueParams) (int64, error) {
	query := `
		INSERT INTO review_records (
			requester_id, conversation_id, input_message, generated_response,
			confidence, state, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := l.db.ExecContext(ctx, query,
		params.RequesterID,
		params.ConversationID,
		params.InputMessage,
		params.GeneratedResponse,
		params.Confidence,
		string(StatePending),
		time.Now().UTC().Format(sqliteTimeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting review record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}

	l.logger.Debug("review enqueued",
		"id", id,
		"requester_id", params.RequesterID,
		"confidence", params.Confidence)
	return id, nil
}

// Get returns the record with the given id.
func (l *SQLiteLedger) Get(ctx context.Context, id int64) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM review_records WHERE id = ?`

	rec, err := scanRecord(l.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying review record: %w", err)
	}
	return rec, nil
}

// ListPending returns pending records oldest-first, capped at limit.
func (l *SQLiteLedger) ListPending(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT ` + recordColumns + `
		FROM review_records
		WHERE state = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`

	rows, err := l.db.QueryContext(ctx, query, string(StatePending), limit)
	if err != nil {
		return nil, fmt.Errorf("querying pending records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning review record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Transition resolves a pending record. The conditional UPDATE on
// state='pending' is the single serialization point: under concurrent
// transitions exactly one caller sees a row change.
func (l *SQLiteLedger) Transition(ctx context.Context, id int64, approved bool, editedResponse string) (*Record, error) {
	state := StateRejected
	finalResponse := ""
	if approved {
		state = StateApproved
		finalResponse = editedResponse
	}

	query := `
		UPDATE review_records
		SET state = ?,
		    final_response = CASE
		        WHEN ? = 'approved' AND ? != '' THEN ?
		        WHEN ? = 'approved' THEN generated_response
		        ELSE ''
		    END,
		    resolved_at = ?
		WHERE id = ? AND state = 'pending'
	`

	res, err := l.db.ExecContext(ctx, query,
		string(state),
		string(state), finalResponse, finalResponse,
		string(state),
		time.Now().UTC().Format(sqliteTimeFormat),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating review record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		// Either the record doesn't exist or it was already resolved.
		if _, err := l.Get(ctx, id); errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		l.logger.Warn("conflicting review decision rejected", "id", id)
		return nil, ErrAlreadyResolved
	}

	rec, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	l.logger.Info("review resolved",
		"id", id,
		"state", rec.State,
		"edited", editedResponse != "")
	return rec, nil
}

// Close closes the underlying database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one review record row.
func scanRecord(row scanner) (*Record, error) {
	var (
		rec         Record
		state       string
		createdStr  string
		resolvedStr sql.NullString
	)

	err := row.Scan(
		&rec.ID,
		&rec.RequesterID,
		&rec.ConversationID,
		&rec.InputMessage,
		&rec.GeneratedResponse,
		&rec.Confidence,
		&state,
		&rec.FinalResponse,
		&createdStr,
		&resolvedStr,
	)
	if err != nil {
		return nil, err
	}

	rec.State = State(state)

	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	if resolvedStr.Valid {
		resolved, err := time.Parse(time.RFC3339Nano, resolvedStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing resolved_at: %w", err)
		}
		rec.ResolvedAt = &resolved
	}

	return &rec, nil
}
