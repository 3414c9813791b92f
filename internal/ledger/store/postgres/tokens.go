package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"memoledger/internal/identity"
	"memoledger/internal/tokens"
	"memoledger/pkg/platform/sentinel"
)

// TokenStore implements tokens.Store over token_mints and token_balances.
type TokenStore struct {
	tx *sql.Tx
}

func (s *TokenStore) GetMint(ctx context.Context, id identity.Key) (*tokens.Mint, error) {
	var (
		m      = tokens.Mint{ID: id}
		supply uint64
	)
	err := s.tx.QueryRowContext(ctx, `
		SELECT authority, decimals, supply FROM token_mints WHERE mint_key = $1 FOR UPDATE
	`, id.Bytes()).Scan(scanKey(&m.Authority), &m.Decimals, asUint(&supply))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mint: %w", err)
	}
	m.Supply = tokens.Amount(supply)
	return &m, nil
}

func (s *TokenStore) CreateMint(ctx context.Context, m *tokens.Mint) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO token_mints (mint_key, authority, decimals, supply) VALUES ($1, $2, $3, $4::numeric)
	`, m.ID.Bytes(), m.Authority.Bytes(), m.Decimals, numeric(uint64(m.Supply)))
	return insertErr(err, "mint")
}

func (s *TokenStore) UpdateMint(ctx context.Context, m *tokens.Mint) error {
	res, err := s.tx.ExecContext(ctx, `
		UPDATE token_mints SET supply = $2::numeric WHERE mint_key = $1
	`, m.ID.Bytes(), numeric(uint64(m.Supply)))
	return updateErr(res, err, "mint")
}

func (s *TokenStore) GetBalance(ctx context.Context, owner, mint identity.Key) (tokens.Amount, error) {
	var amount uint64
	err := s.tx.QueryRowContext(ctx, `
		SELECT amount FROM token_balances WHERE owner_key = $1 AND mint_key = $2 FOR UPDATE
	`, owner.Bytes(), mint.Bytes()).Scan(asUint(&amount))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return tokens.Amount(amount), nil
}

func (s *TokenStore) SetBalance(ctx context.Context, owner, mint identity.Key, amount tokens.Amount) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO token_balances (owner_key, mint_key, amount) VALUES ($1, $2, $3::numeric)
		ON CONFLICT (owner_key, mint_key) DO UPDATE SET amount = EXCLUDED.amount
	`, owner.Bytes(), mint.Bytes(), numeric(uint64(amount)))
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}
