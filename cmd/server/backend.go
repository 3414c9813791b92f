package main

import (
	"context"
	"fmt"
	"log/slog"

	"memoledger/internal/ledger/ports"
	"memoledger/internal/ledger/store/kv"
	"memoledger/internal/ledger/store/postgres"
	"memoledger/internal/platform/config"
	"memoledger/internal/platform/database"
	"memoledger/internal/platform/health"
	"memoledger/pkg/platform/outbox"
)

// backend is the storage the server runs on.
type backend struct {
	runner ports.TxRunner
	outbox outbox.Store
	check  health.CheckFunc
	close  func() error
}

func openBackend(ctx context.Context, cfg config.Storage, logger *slog.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.DatabaseURL
		pool, err := database.New(dbCfg)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool.DB(), logger); err != nil {
			_ = pool.Close()
			return nil, err
		}
		runner := postgres.NewTxRunner(pool.DB(),
			postgres.WithBackoff(ports.Backoff{MaxDelay: cfg.TxRetryMaxDelay}),
			postgres.WithTimeout(cfg.TxTimeout),
			postgres.WithLogger(logger),
		)
		return &backend{
			runner: runner,
			outbox: postgres.NewOutboxStore(pool.DB()),
			check:  pool.Check,
			close:  pool.Close,
		}, nil

	case config.BackendBadger:
		db, err := kv.Open(kv.Config{
			Dir:       cfg.BadgerDir,
			InMemory:  cfg.BadgerInMemory,
			Backoff:   ports.Backoff{MaxDelay: cfg.TxRetryMaxDelay},
			TxTimeout: cfg.TxTimeout,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		return &backend{
			runner: db,
			outbox: db.Outbox(),
			check:  db.Check,
			close:  db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
