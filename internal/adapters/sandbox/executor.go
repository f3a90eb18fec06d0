package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLExecutor runs exercise queries against a Postgres database through
// database/sql and lib/pq (registered by the pq import in sandbox.go). Every query runs in its own read-only
// transaction which is always rolled back.
type SQLExecutor struct {
	db      *sql.DB
	timeout time.Duration
}

// OpenSQLExecutor opens (lazily) the exercise database at dsn.
func OpenSQLExecutor(dsn string, timeout time.Duration) (*SQLExecutor, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open exercise database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &SQLExecutor{db: db, timeout: timeout}, nil
}

// CountRows implements Executor.
func (e *SQLExecutor) CountRows(ctx context.Context, query string, limit int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck // read-only, nothing to keep

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for n < limit && rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return n, nil
}

// Ping checks the exercise database is reachable.
func (e *SQLExecutor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (e *SQLExecutor) Close() error {
	return e.db.Close()
}
