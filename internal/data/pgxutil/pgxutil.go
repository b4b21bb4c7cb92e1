// Package pgxutil holds small helpers shared by the pgx-backed repositories.
package pgxutil

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool the repositories use. pgxmock pools satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Acquirer hands out dedicated connections, needed for LISTEN.
type Acquirer interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

// TxConfig groups parameters for WithTx to keep parameter count ≤ 3.
type TxConfig struct {
	Opts pgx.TxOptions
	Fn   func(pgx.Tx) error
}

// WithTx runs cfg.Fn inside a transaction, committing on success and rolling back otherwise.
func WithTx(ctx context.Context, db DB, cfg TxConfig) error {
	tx, err := db.BeginTx(ctx, cfg.Opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// Rollback after a successful commit is a no-op returning ErrTxClosed.
	defer func() { _ = tx.Rollback(ctx) }()
	if fnErr := cfg.Fn(tx); fnErr != nil {
		return fnErr
	}
	if commitErr := tx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("commit tx: %w", commitErr)
	}
	return nil
}

// ReadCommitted is the isolation used by queue and dispatch writes.
var ReadCommitted = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// Notify sends a NOTIFY on channel inside tx so that it is delivered only if tx commits.
func Notify(ctx context.Context, tx pgx.Tx, channel, payload string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, channel, payload); err != nil {
		return fmt.Errorf("notify %s: %w", channel, err)
	}
	return nil
}

// WaitForNotification LISTENs on channel using a dedicated pooled connection
// and returns after the first notification or when ctx ends.
func WaitForNotification(ctx context.Context, pool Acquirer, channel string) (*pgconn.Notification, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	quoted := pgx.Identifier{channel}.Sanitize()
	if _, execErr := conn.Exec(ctx, "LISTEN "+quoted); execErr != nil {
		return nil, fmt.Errorf("listen %s: %w", channel, execErr)
	}
	// The connection returns to the pool; it must not keep listening.
	defer func() { _, _ = conn.Exec(context.Background(), "UNLISTEN "+quoted) }()

	n, err := conn.Conn().WaitForNotification(ctx)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Listen holds one pooled connection LISTENing on channel and calls fn for
// every notification until ctx ends or the connection fails. A non-nil ready
// runs once LISTEN has been acknowledged.
func Listen(ctx context.Context, pool Acquirer, channel string, ready func(), fn func(*pgconn.Notification)) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	quoted := pgx.Identifier{channel}.Sanitize()
	if _, execErr := conn.Exec(ctx, "LISTEN "+quoted); execErr != nil {
		conn.Release()
		return fmt.Errorf("listen %s: %w", channel, execErr)
	}
	defer func() {
		// A connection that was mid-wait when ctx ended is in an unknown
		// state, so drop it instead of handing it back to the pool.
		_ = conn.Conn().Close(context.Background())
		conn.Release()
	}()
	if ready != nil {
		ready()
	}

	for {
		n, waitErr := conn.Conn().WaitForNotification(ctx)
		if waitErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("wait on %s: %w", channel, waitErr)
		}
		fn(n)
	}
}
