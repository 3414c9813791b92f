// Package postgres stores the ledger in PostgreSQL. Transactions run at
// SERIALIZABLE isolation and are replayed, with backoff, when Postgres aborts
// them with a serialization failure or deadlock.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"memoledger/internal/ledger/ports"
	"memoledger/pkg/platform/sentinel"
)

// TxRunner implements ports.TxRunner over a *sql.DB.
type TxRunner struct {
	db      *sql.DB
	timeout time.Duration
	backoff ports.Backoff
	logger  *slog.Logger
}

// Option configures the TxRunner.
type Option func(*TxRunner)

// WithTimeout sets the per-transaction timeout used when the caller set no deadline.
func WithTimeout(d time.Duration) Option {
	return func(t *TxRunner) { t.timeout = d }
}

// WithBackoff spaces replays after serialization failures.
func WithBackoff(b ports.Backoff) Option {
	return func(t *TxRunner) { t.backoff = b }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *TxRunner) { t.logger = logger }
}

// NewTxRunner constructs a runner over db.
func NewTxRunner(db *sql.DB, opts ...Option) *TxRunner {
	t := &TxRunner{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RunInTx runs fn in a serializable transaction, replaying it on serialization
// failures until the transaction deadline.
func (t *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	ctx, cancel, err := ports.BeginTx(ctx, t.timeout)
	defer cancel()
	if err != nil {
		return err
	}

	return ports.Replay(ctx, t.backoff, t.logger, retryable, func() error {
		return t.attempt(ctx, fn)
	})
}

func (t *TxRunner) attempt(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op
	}()

	if err := fn(ctx, NewStores(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// NewStores binds every ledger store to tx.
func NewStores(tx *sql.Tx) ports.Stores {
	return ports.Stores{
		Global:      &GlobalStore{tx: tx},
		Accounts:    &AccountStore{tx: tx},
		Connections: &ConnectionStore{tx: tx},
		Tokens:      &TokenStore{tx: tx},
		Outbox:      &txOutbox{tx: tx},
	}
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// insertErr maps unique violations to sentinel.ErrConflict.
func insertErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	return fmt.Errorf("insert %s: %w", what, err)
}

func updateErr(res sql.Result, err error, what string) error {
	if err != nil {
		return fmt.Errorf("update %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", what, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func numeric(v uint64) string { return strconv.FormatUint(v, 10) }

// uintScanner reads a NUMERIC(20,0) column into a uint64.
type uintScanner struct {
	dst *uint64
}

func asUint(dst *uint64) uintScanner { return uintScanner{dst: dst} }

func (u uintScanner) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("negative numeric %d", v)
		}
		*u.dst = uint64(v)
		return nil
	default:
		return fmt.Errorf("unsupported numeric type %T", src)
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("parse numeric: %w", err)
	}
	*u.dst = n
	return nil
}
