// Package postgres provides the PostgreSQL-backed query log.
//
// The store holds a single [pgxpool.Pool] and writes one row per answered
// query to the query_log table. [Migrate] creates the table and its
// indexes, is idempotent, and is safe to run on every application start.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baristabuddy/baristabuddy/internal/history"
)

// Compile-time interface check.
var _ history.Store = (*Store)(nil)

// defaultRecentLimit bounds Recent queries that pass a limit below 1.
const defaultRecentLimit = 50

const ddlQueryLog = `
CREATE TABLE IF NOT EXISTS query_log (
    id          BIGSERIAL        PRIMARY KEY,
    session_id  TEXT             NOT NULL,
    query       TEXT             NOT NULL,
    normalized  TEXT             NOT NULL DEFAULT '',
    outcome     TEXT             NOT NULL,
    question    TEXT             NOT NULL DEFAULT '',
    score       DOUBLE PRECISION NOT NULL DEFAULT 0,
    answer      TEXT             NOT NULL DEFAULT '',
    latency_ns  BIGINT           NOT NULL DEFAULT 0,
    timestamp   TIMESTAMPTZ      NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_query_log_session_id
    ON query_log (session_id);

CREATE INDEX IF NOT EXISTS idx_query_log_timestamp
    ON query_log (timestamp);

CREATE INDEX IF NOT EXISTS idx_query_log_session_timestamp
    ON query_log (session_id, timestamp);
`

// Store is the PostgreSQL-backed implementation of [history.Store].
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New establishes a connection pool to the PostgreSQL database at dsn,
// verifies connectivity, and runs [Migrate] so the query_log table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates the query_log table and its indexes if they do not
// exist. It is idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlQueryLog); err != nil {
		return fmt.Errorf("history migrate: %w", err)
	}
	return nil
}

// Log implements [history.Store]. It appends rec to the query_log table.
// A zero Timestamp is replaced with the current time.
func (s *Store) Log(ctx context.Context, rec history.Record) error {
	const q = `
		INSERT INTO query_log
		    (session_id, query, normalized, outcome, question, score, answer, latency_ns, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.pool.Exec(ctx, q,
		rec.SessionID,
		rec.Query,
		rec.Normalized,
		rec.Outcome,
		rec.Question,
		rec.Score,
		rec.Answer,
		rec.Latency.Nanoseconds(),
		ts,
	)
	if err != nil {
		return fmt.Errorf("history store: log: %w", err)
	}
	return nil
}

// Recent implements [history.Store]. It returns up to limit records for
// sessionID, newest first. A limit below 1 falls back to a default of 50.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]history.Record, error) {
	if limit < 1 {
		limit = defaultRecentLimit
	}

	const q = `
		SELECT session_id, query, normalized, outcome, question, score, answer, latency_ns, timestamp
		FROM   query_log
		WHERE  session_id = $1
		ORDER  BY timestamp DESC, id DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("history store: recent: %w", err)
	}
	return collectRecords(rows)
}

// Ping verifies the database is reachable. The readiness endpoint calls
// this on every probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("history store: ping: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() { s.pool.Close() }

// collectRecords scans pgx rows into a slice of history records.
func collectRecords(rows pgx.Rows) ([]history.Record, error) {
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Record, error) {
		var (
			r         history.Record
			latencyNS int64
		)
		if err := row.Scan(
			&r.SessionID,
			&r.Query,
			&r.Normalized,
			&r.Outcome,
			&r.Question,
			&r.Score,
			&r.Answer,
			&latencyNS,
			&r.Timestamp,
		); err != nil {
			return history.Record{}, err
		}
		r.Latency = time.Duration(latencyNS)
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("history store: scan rows: %w", err)
	}
	if records == nil {
		records = []history.Record{}
	}
	return records, nil
}
