// Package tokens is the trusted token sub-ledger: mints, balances, and the
// atomic debit/credit/mint primitives the ledger engines build on. A Ledger is
// bound to one storage transaction; it never commits on its own.
package tokens

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"memoledger/internal/identity"
	"memoledger/pkg/platform/sentinel"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnknownMint         = errors.New("unknown mint")
	ErrMintExists          = errors.New("mint already exists")
	ErrUnauthorizedMint    = errors.New("grant does not authorize this mint")
	ErrZeroAmount          = errors.New("amount must be positive")
)

// Mint describes one token and the authority allowed to issue it.
type Mint struct {
	ID        identity.Key
	Authority identity.Key
	Decimals  uint8
	Supply    Amount
}

// Store is the persistence port. Implementations are pure I/O bound to a transaction.
// GetMint returns sentinel.ErrNotFound when absent; CreateMint returns sentinel.ErrConflict
// when the mint exists. GetBalance returns zero for unknown (owner, mint) pairs.
type Store interface {
	GetMint(ctx context.Context, id identity.Key) (*Mint, error)
	CreateMint(ctx context.Context, mint *Mint) error
	UpdateMint(ctx context.Context, mint *Mint) error
	GetBalance(ctx context.Context, owner, mint identity.Key) (Amount, error)
	SetBalance(ctx context.Context, owner, mint identity.Key, amount Amount) error
}

// Grant proves the holder may issue from one mint. The proof must derive,
// under the authority namespace, to the mint's recorded authority key.
type Grant interface {
	MintID() identity.Key
	Proof() [identity.KeySize]byte
}

// Ledger applies token rules over a Store.
type Ledger struct {
	store Store
}

// NewLedger binds the sub-ledger to a transaction-scoped store.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// CreateMint registers a mint with zero supply under authority.
func (l *Ledger) CreateMint(ctx context.Context, id, authority identity.Key) error {
	err := l.store.CreateMint(ctx, &Mint{ID: id, Authority: authority, Decimals: Decimals})
	if errors.Is(err, sentinel.ErrConflict) {
		return ErrMintExists
	}
	if err != nil {
		return fmt.Errorf("create mint: %w", err)
	}
	return nil
}

// Mint issues amount to owner. The grant must authorize the mint.
func (l *Ledger) Mint(ctx context.Context, grant Grant, owner identity.Key, amount Amount) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	mint, err := l.loadMint(ctx, grant.MintID())
	if err != nil {
		return err
	}
	proof := grant.Proof()
	derived := identity.DeriveRaw(identity.NamespaceAuthority, proof[:])
	if subtle.ConstantTimeCompare(derived[:], mint.Authority[:]) != 1 {
		return ErrUnauthorizedMint
	}

	supply, ok := mint.Supply.add(amount)
	if !ok {
		return ErrAmountOverflow
	}
	balance, err := l.store.GetBalance(ctx, owner, mint.ID)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	next, ok := balance.add(amount)
	if !ok {
		return ErrAmountOverflow
	}

	mint.Supply = supply
	if err := l.store.UpdateMint(ctx, mint); err != nil {
		return fmt.Errorf("update mint: %w", err)
	}
	if err := l.store.SetBalance(ctx, owner, mint.ID, next); err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return nil
}

// Transfer moves amount of mint from one owner to another.
func (l *Ledger) Transfer(ctx context.Context, mintID, from, to identity.Key, amount Amount) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if _, err := l.loadMint(ctx, mintID); err != nil {
		return err
	}
	fromBalance, err := l.store.GetBalance(ctx, from, mintID)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if fromBalance < amount {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := l.store.GetBalance(ctx, to, mintID)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	credited, ok := toBalance.add(amount)
	if !ok {
		return ErrAmountOverflow
	}

	if err := l.store.SetBalance(ctx, from, mintID, fromBalance-amount); err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	if err := l.store.SetBalance(ctx, to, mintID, credited); err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	return nil
}

// BalanceOf returns owner's balance of mint.
func (l *Ledger) BalanceOf(ctx context.Context, owner, mintID identity.Key) (Amount, error) {
	balance, err := l.store.GetBalance(ctx, owner, mintID)
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// MintInfo returns the mint record.
func (l *Ledger) MintInfo(ctx context.Context, mintID identity.Key) (*Mint, error) {
	return l.loadMint(ctx, mintID)
}

func (l *Ledger) loadMint(ctx context.Context, id identity.Key) (*Mint, error) {
	mint, err := l.store.GetMint(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, ErrUnknownMint
	}
	if err != nil {
		return nil, fmt.Errorf("read mint: %w", err)
	}
	return mint, nil
}
