// Package store persists run records in SQLite. Each record's step log is
// serialized as a JSON column; row-level consistency from SQLite gives the
// single-writer guarantee the workflow engine relies on.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/scribehq/scribe/internal/run"
)

// ErrNotFound is returned when no record exists for the requested ID.
var ErrNotFound = errors.New("run record not found")

const schema = `
CREATE TABLE IF NOT EXISTS run_records (
	id             TEXT PRIMARY KEY,
	workflow_name  TEXT NOT NULL,
	status         TEXT NOT NULL,
	input_payload  TEXT,
	output_payload TEXT,
	error_message  TEXT,
	started_at     TIMESTAMP,
	finished_at    TIMESTAMP,
	steps          TEXT NOT NULL DEFAULT '[]',
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_records_status ON run_records(status, created_at);
`

// Store handles persistence of run records
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing database handle (mainly for testing) and
// ensures the schema exists.
func NewWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new record. The record must satisfy the run invariants.
func (s *Store) Create(rec *run.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid run record: %w", err)
	}

	stepsJSON, err := marshalSteps(rec.Steps)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO run_records (
			id, workflow_name, status,
			input_payload, output_payload, error_message,
			started_at, finished_at, steps,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		rec.ID,
		rec.WorkflowName,
		rec.Status,
		nullableRaw(rec.InputPayload),
		nullableRaw(rec.OutputPayload),
		nullableString(rec.ErrorMessage),
		rec.StartedAt,
		rec.FinishedAt,
		stepsJSON,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID. Returns ErrNotFound when the ID is unknown.
func (s *Store) Get(id string) (*run.Record, error) {
	query := selectColumns + ` FROM run_records WHERE id = ?`
	rec, err := scanRecord(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run record: %w", err)
	}
	return rec, nil
}

// Save writes the record's current state back to the database. The run
// invariants are enforced here so an inconsistent record never reaches disk.
func (s *Store) Save(rec *run.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid run record: %w", err)
	}

	stepsJSON, err := marshalSteps(rec.Steps)
	if err != nil {
		return err
	}

	query := `
		UPDATE run_records
		SET workflow_name = ?,
		    status = ?,
		    input_payload = ?,
		    output_payload = ?,
		    error_message = ?,
		    started_at = ?,
		    finished_at = ?,
		    steps = ?,
		    updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query,
		rec.WorkflowName,
		rec.Status,
		nullableRaw(rec.InputPayload),
		nullableRaw(rec.OutputPayload),
		nullableString(rec.ErrorMessage),
		rec.StartedAt,
		rec.FinishedAt,
		stepsJSON,
		rec.UpdatedAt,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
	}
	return nil
}

// List returns records, newest first, optionally filtered by status.
func (s *Store) List(status *run.Status, limit int) ([]*run.Record, error) {
	var query string
	var args []interface{}

	if status != nil {
		query = selectColumns + ` FROM run_records WHERE status = ? ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{*status, limit}
	} else {
		query = selectColumns + ` FROM run_records ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list run records: %w", err)
	}
	defer rows.Close()

	var records []*run.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run records: %w", err)
	}
	return records, nil
}

// NextPending returns the oldest pending record, or nil when none is waiting.
// The caller owns the returned record exclusively for the duration of its
// run; the worker loop guarantees this by processing sequentially.
func (s *Store) NextPending() (*run.Record, error) {
	query := selectColumns + ` FROM run_records WHERE status = ? ORDER BY created_at ASC LIMIT 1`
	rec, err := scanRecord(s.db.QueryRow(query, run.StatusPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next pending record: %w", err)
	}
	return rec, nil
}

const selectColumns = `SELECT id, workflow_name, status,
	input_payload, output_payload, error_message,
	started_at, finished_at, steps, created_at, updated_at`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*run.Record, error) {
	var rec run.Record
	var input, output, errMsg sql.NullString
	var startedAt, finishedAt sql.NullTime
	var stepsJSON string

	err := row.Scan(
		&rec.ID,
		&rec.WorkflowName,
		&rec.Status,
		&input,
		&output,
		&errMsg,
		&startedAt,
		&finishedAt,
		&stepsJSON,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if input.Valid {
		rec.InputPayload = json.RawMessage(input.String)
	}
	if output.Valid {
		rec.OutputPayload = json.RawMessage(output.String)
	}
	if errMsg.Valid {
		rec.ErrorMessage = errMsg.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		rec.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(stepsJSON), &rec.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}
	return &rec, nil
}

func marshalSteps(steps []run.Step) (string, error) {
	if steps == nil {
		return "[]", nil
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("failed to marshal steps: %w", err)
	}
	return string(data), nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableRaw(raw json.RawMessage) sql.NullString {
	return sql.NullString{String: string(raw), Valid: len(raw) > 0}
}

// CleanupOld removes completed, failed and cancelled records older than the
// given duration. Returns the number of rows removed.
func (s *Store) CleanupOld(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	result, err := s.db.Exec(
		`DELETE FROM run_records WHERE status IN (?, ?, ?) AND updated_at < ?`,
		run.StatusCompleted, run.StatusFailed, run.StatusCancelled, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old records: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}
