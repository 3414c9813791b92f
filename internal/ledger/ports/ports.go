// Package ports declares the persistence boundary of the ledger engines.
// Every mutation runs inside TxRunner.RunInTx against transaction-bound stores:
// either all writes of fn commit or none do.
package ports

import (
	"context"
	"errors"
	"time"

	"memoledger/internal/identity"
	"memoledger/internal/ledger/models"
	"memoledger/internal/tokens"
	dErrors "memoledger/pkg/domain-errors"
	"memoledger/pkg/platform/outbox"
)

// ErrTxRetriesExhausted is returned when a transaction is still losing commit
// races when its deadline passes.
var ErrTxRetriesExhausted = errors.New("transaction retries exhausted")

// DefaultTxTimeout bounds a transaction when the caller set no deadline.
const DefaultTxTimeout = 5 * time.Second

// GlobalStore persists the ledger singleton. Get returns sentinel.ErrNotFound
// before initialization; Create returns sentinel.ErrConflict after it.
type GlobalStore interface {
	Get(ctx context.Context) (*models.GlobalState, error)
	Create(ctx context.Context, g *models.GlobalState) error
	Update(ctx context.Context, g *models.GlobalState) error
}

// AccountStore persists user accounts by derived key.
type AccountStore interface {
	Get(ctx context.Context, key identity.Key) (*models.UserAccount, error)
	Create(ctx context.Context, a *models.UserAccount) error
	Update(ctx context.Context, a *models.UserAccount) error
}

// ConnectionStore persists connections by derived key.
type ConnectionStore interface {
	Get(ctx context.Context, key identity.Key) (*models.Connection, error)
	Create(ctx context.Context, c *models.Connection) error
	Update(ctx context.Context, c *models.Connection) error
}

// Stores groups the stores bound to one transaction.
type Stores struct {
	Global      GlobalStore
	Accounts    AccountStore
	Connections ConnectionStore
	Tokens      tokens.Store
	Outbox      outbox.Appender
}

// TxRunner runs fn in a single storage transaction. A non-nil error from fn
// rolls back every write it made.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

// BeginTx rejects cancelled contexts and applies DefaultTxTimeout when ctx has
// no deadline. Backends call it before opening a transaction.
func BeginTx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}
