// Package history records past runs in a local SQLite database, so results
// stay comparable across invocations.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/cmdspec/cmdspec/packages/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	passed     INTEGER NOT NULL,
	failed     INTEGER NOT NULL,
	skipped    INTEGER NOT NULL,
	errors     INTEGER NOT NULL,
	p50_us     INTEGER NOT NULL,
	p95_us     INTEGER NOT NULL,
	p99_us     INTEGER NOT NULL
);
`

// Record is one stored run.
type Record struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Passed    int
	Failed    int
	Skipped   int
	Errors    int
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
}

// Store persists run summaries.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Append stores one run summary and returns the generated run ID.
func (s *Store) Append(ctx context.Context, startedAt time.Time, summary metrics.Summary) (string, error) {
	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, duration_ms, passed, failed, skipped, errors, p50_us, p95_us, p99_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, startedAt, summary.Duration.Milliseconds(),
		summary.Passed, summary.Failed, summary.Skipped, summary.Errors,
		summary.P50.Microseconds(), summary.P95.Microseconds(), summary.P99.Microseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return id, nil
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, passed, failed, skipped, errors, p50_us, p95_us, p99_us
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var durationMs, p50, p95, p99 int64
		if err := rows.Scan(&r.ID, &r.StartedAt, &durationMs,
			&r.Passed, &r.Failed, &r.Skipped, &r.Errors, &p50, &p95, &p99); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.P50 = time.Duration(p50) * time.Microsecond
		r.P95 = time.Duration(p95) * time.Microsecond
		r.P99 = time.Duration(p99) * time.Microsecond
		records = append(records, r)
	}
	return records, rows.Err()
}
