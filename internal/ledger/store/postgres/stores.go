package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"memoledger/internal/identity"
	"memoledger/internal/ledger/models"
	"memoledger/pkg/platform/sentinel"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(dst *identity.Key) *keyScanner { return &keyScanner{dst: dst} }

type keyScanner struct {
	dst *identity.Key
}

func (k *keyScanner) Scan(src any) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("key column: unsupported type %T", src)
	}
	key, err := identity.KeyFromBytes(b)
	if err != nil {
		return err
	}
	*k.dst = key
	return nil
}

// GlobalStore persists the ledger singleton row.
type GlobalStore struct {
	tx *sql.Tx
}

func (s *GlobalStore) Get(ctx context.Context) (*models.GlobalState, error) {
	var g models.GlobalState
	err := s.tx.QueryRowContext(ctx, `
		SELECT reward_mint, escrow_account, admin, total_users, total_connections, created_at
		FROM ledger_global WHERE id = 1
		FOR UPDATE
	`).Scan(scanKey(&g.RewardMint), scanKey(&g.EscrowAccount), &g.Admin,
		asUint(&g.TotalUsers), asUint(&g.TotalConnections), &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get global state: %w", err)
	}
	g.CreatedAt = g.CreatedAt.UTC()
	return &g, nil
}

func (s *GlobalStore) Create(ctx context.Context, g *models.GlobalState) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO ledger_global (id, reward_mint, escrow_account, admin, total_users, total_connections, created_at)
		VALUES (1, $1, $2, $3, $4::numeric, $5::numeric, $6)
	`, g.RewardMint.Bytes(), g.EscrowAccount.Bytes(), g.Admin,
		numeric(g.TotalUsers), numeric(g.TotalConnections), g.CreatedAt)
	return insertErr(err, "global state")
}

func (s *GlobalStore) Update(ctx context.Context, g *models.GlobalState) error {
	res, err := s.tx.ExecContext(ctx, `
		UPDATE ledger_global
		SET total_users = $1::numeric, total_connections = $2::numeric
		WHERE id = 1
	`, numeric(g.TotalUsers), numeric(g.TotalConnections))
	return updateErr(res, err, "global state")
}

// AccountStore persists user accounts.
type AccountStore struct {
	tx *sql.Tx
}

const accountColumns = `external_id, account_key, personal_mint, last_mint_at, daily_minted,
	total_minted, total_locked, total_reward_earned, connections_count, created_at`

func scanAccount(row rowScanner) (*models.UserAccount, error) {
	var a models.UserAccount
	err := row.Scan(&a.ExternalID, scanKey(&a.Key), scanKey(&a.PersonalMint), &a.LastMintAt,
		asUint(&a.DailyMinted), asUint(&a.TotalMinted), asUint(&a.TotalLocked),
		asUint(&a.TotalRewardEarned), asUint(&a.ConnectionsCount), &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.LastMintAt = a.LastMintAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (s *AccountStore) Get(ctx context.Context, key identity.Key) (*models.UserAccount, error) {
	a, err := scanAccount(s.tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM user_accounts WHERE account_key = $1 FOR UPDATE`, key.Bytes()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) Create(ctx context.Context, a *models.UserAccount) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO user_accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10)
	`, a.ExternalID, a.Key.Bytes(), a.PersonalMint.Bytes(), a.LastMintAt,
		numeric(a.DailyMinted), numeric(a.TotalMinted), numeric(a.TotalLocked),
		numeric(a.TotalRewardEarned), numeric(a.ConnectionsCount), a.CreatedAt)
	return insertErr(err, "account")
}

func (s *AccountStore) Update(ctx context.Context, a *models.UserAccount) error {
	res, err := s.tx.ExecContext(ctx, `
		UPDATE user_accounts
		SET last_mint_at = $2, daily_minted = $3::numeric, total_minted = $4::numeric,
		    total_locked = $5::numeric, total_reward_earned = $6::numeric, connections_count = $7::numeric
		WHERE account_key = $1
	`, a.Key.Bytes(), a.LastMintAt, numeric(a.DailyMinted), numeric(a.TotalMinted),
		numeric(a.TotalLocked), numeric(a.TotalRewardEarned), numeric(a.ConnectionsCount))
	return updateErr(res, err, "account")
}

// ConnectionStore persists connections.
type ConnectionStore struct {
	tx *sql.Tx
}

const connectionColumns = `connection_id, connection_key, identity_a, identity_b, beneficiary,
	commit_a, commit_b, unlocked_a, unlocked_b, created_at, completed_at`

func (s *ConnectionStore) Get(ctx context.Context, key identity.Key) (*models.Connection, error) {
	var (
		c           models.Connection
		commitA     []byte
		commitB     []byte
		completedAt sql.NullTime
	)
	err := s.tx.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE connection_key = $1 FOR UPDATE`, key.Bytes(),
	).Scan(&c.ID, scanKey(&c.Key), &c.IdentityA, &c.IdentityB, &c.Beneficiary,
		&commitA, &commitB, &c.UnlockedA, &c.UnlockedB, &c.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	if len(commitA) != len(c.CommitA) || len(commitB) != len(c.CommitB) {
		return nil, fmt.Errorf("connection %s: malformed commitment", c.ID)
	}
	copy(c.CommitA[:], commitA)
	copy(c.CommitB[:], commitB)
	c.CreatedAt = c.CreatedAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		c.CompletedAt = &t
	}
	return &c, nil
}

func (s *ConnectionStore) Create(ctx context.Context, c *models.Connection) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO connections (`+connectionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.Key.Bytes(), c.IdentityA, c.IdentityB, c.Beneficiary,
		c.CommitA[:], c.CommitB[:], c.UnlockedA, c.UnlockedB, c.CreatedAt, nullTime(c.CompletedAt))
	return insertErr(err, "connection")
}

func (s *ConnectionStore) Update(ctx context.Context, c *models.Connection) error {
	res, err := s.tx.ExecContext(ctx, `
		UPDATE connections
		SET unlocked_a = $2, unlocked_b = $3, completed_at = $4
		WHERE connection_key = $1
	`, c.Key.Bytes(), c.UnlockedA, c.UnlockedB, nullTime(c.CompletedAt))
	return updateErr(res, err, "connection")
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
