// Package kv stores the ledger in an embedded Badger database. Badger runs
// serializable optimistic transactions: a commit that raced a conflicting
// writer fails with badger.ErrConflict and RunInTx replays fn from scratch,
// backing off between tries until the transaction deadline.
package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"memoledger/internal/ledger/ports"
)

// Config configures the embedded store.
type Config struct {
	Dir       string
	InMemory  bool
	Backoff   ports.Backoff
	TxTimeout time.Duration
	Logger    *slog.Logger
}

// DB is the Badger-backed ledger store. It implements ports.TxRunner.
type DB struct {
	db      *badger.DB
	seq     *badger.Sequence
	backoff ports.Backoff
	timeout time.Duration
	logger  *slog.Logger
}

// Open opens or creates the database at cfg.Dir, or an in-memory one.
func Open(cfg Config) (*DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, fmt.Errorf("badger data dir is required")
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithLogger(badgerLogger{logger: logger.With("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence([]byte(outboxSeqKey), 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("outbox sequence: %w", err)
	}

	return &DB{db: db, seq: seq, backoff: cfg.Backoff, timeout: cfg.TxTimeout, logger: logger}, nil
}

// Close releases the sequence lease and closes the database.
func (d *DB) Close() error {
	if err := d.seq.Release(); err != nil {
		d.logger.Warn("release outbox sequence", "error", err)
	}
	return d.db.Close()
}

// Check runs an empty read transaction.
func (d *DB) Check(_ context.Context) error {
	if d.db.IsClosed() {
		return errors.New("badger is closed")
	}
	return d.db.View(func(*badger.Txn) error { return nil })
}

// RunInTx runs fn in a read-write transaction and commits it. fn is replayed
// on commit conflicts until the transaction deadline; it must not have side
// effects outside the stores it is handed.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	ctx, cancel, err := ports.BeginTx(ctx, d.timeout)
	defer cancel()
	if err != nil {
		return err
	}

	return ports.Replay(ctx, d.backoff, d.logger, isConflict, func() error {
		return d.attempt(ctx, fn)
	})
}

func isConflict(err error) bool {
	return errors.Is(err, badger.ErrConflict)
}

func (d *DB) attempt(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	txn := d.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(ctx, d.stores(txn)); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return err
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (d *DB) stores(txn *badger.Txn) ports.Stores {
	return ports.Stores{
		Global:      &globalStore{txn: txn},
		Accounts:    &accountStore{txn: txn},
		Connections: &connectionStore{txn: txn},
		Tokens:      &tokenStore{txn: txn},
		Outbox:      &txOutbox{txn: txn, seq: d.seq},
	}
}

// badgerLogger routes badger's printf logging into slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(f string, args ...any)   { l.logger.Error(fmt.Sprintf(f, args...)) }
func (l badgerLogger) Warningf(f string, args ...any) { l.logger.Warn(fmt.Sprintf(f, args...)) }
func (l badgerLogger) Infof(f string, args ...any)    { l.logger.Debug(fmt.Sprintf(f, args...)) }
func (l badgerLogger) Debugf(f string, args ...any)   { l.logger.Debug(fmt.Sprintf(f, args...)) }
