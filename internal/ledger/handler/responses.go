package handler

import (
	"time"

	"memoledger/internal/identity"
	"memoledger/internal/ledger/models"
	"memoledger/internal/ledger/service"
)

type BalancesResponse struct {
	Personal string `json:"personal"`
	Reward   string `json:"reward"`
}

type AccountResponse struct {
	ExternalID        string            `json:"external_id"`
	AccountKey        string            `json:"account_key"`
	PersonalMint      string            `json:"personal_mint"`
	LastMintAt        time.Time         `json:"last_mint_at"`
	DailyMinted       uint64            `json:"daily_minted"`
	TotalMinted       uint64            `json:"total_minted"`
	TotalLocked       uint64            `json:"total_locked"`
	TotalRewardEarned uint64            `json:"total_reward_earned"`
	ConnectionsCount  uint64            `json:"connections_count"`
	CreatedAt         time.Time         `json:"created_at"`
	Balances          *BalancesResponse `json:"balances,omitempty"`
}

type MintDailyResponse struct {
	Minted uint64 `json:"minted"`
}

type ConnectionResponse struct {
	ConnectionID string     `json:"connection_id"`
	Key          string     `json:"key"`
	IdentityA    string     `json:"identity_a"`
	IdentityB    string     `json:"identity_b"`
	Beneficiary  string     `json:"beneficiary"`
	CommitA      string     `json:"commit_a"`
	CommitB      string     `json:"commit_b"`
	UnlockedA    bool       `json:"unlocked_a"`
	UnlockedB    bool       `json:"unlocked_b"`
	State        string     `json:"state"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type UnlockResponse struct {
	Side           string `json:"side"`
	CallerUnlocked bool   `json:"caller_unlocked"`
	BothComplete   bool   `json:"both_complete"`
}

type LedgerResponse struct {
	RewardMint       string    `json:"reward_mint"`
	EscrowAccount    string    `json:"escrow_account"`
	Admin            string    `json:"admin"`
	TotalUsers       uint64    `json:"total_users"`
	TotalConnections uint64    `json:"total_connections"`
	RewardSupply     string    `json:"reward_supply,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type KeyResponse struct {
	Namespace  string `json:"namespace"`
	ExternalID string `json:"external_id"`
	Key        string `json:"key"`
	Hex        string `json:"hex"`
}

func toAccountResponse(a *models.UserAccount, b *service.Balances) *AccountResponse {
	resp := &AccountResponse{
		ExternalID:        a.ExternalID,
		AccountKey:        a.Key.String(),
		PersonalMint:      a.PersonalMint.String(),
		LastMintAt:        a.LastMintAt,
		DailyMinted:       a.DailyMinted,
		TotalMinted:       a.TotalMinted,
		TotalLocked:       a.TotalLocked,
		TotalRewardEarned: a.TotalRewardEarned,
		ConnectionsCount:  a.ConnectionsCount,
		CreatedAt:         a.CreatedAt,
	}
	if b != nil {
		resp.Balances = &BalancesResponse{Personal: b.Personal.String(), Reward: b.Reward.String()}
	}
	return resp
}

func toConnectionResponse(c *models.Connection) *ConnectionResponse {
	return &ConnectionResponse{
		ConnectionID: c.ID,
		Key:          c.Key.String(),
		IdentityA:    c.IdentityA,
		IdentityB:    c.IdentityB,
		Beneficiary:  c.Beneficiary,
		CommitA:      c.CommitA.Hex(),
		CommitB:      c.CommitB.Hex(),
		UnlockedA:    c.UnlockedA,
		UnlockedB:    c.UnlockedB,
		State:        c.State(),
		CreatedAt:    c.CreatedAt,
		CompletedAt:  c.CompletedAt,
	}
}

func toLedgerResponse(g *models.GlobalState) *LedgerResponse {
	return &LedgerResponse{
		RewardMint:       g.RewardMint.String(),
		EscrowAccount:    g.EscrowAccount.String(),
		Admin:            g.Admin,
		TotalUsers:       g.TotalUsers,
		TotalConnections: g.TotalConnections,
		CreatedAt:        g.CreatedAt,
	}
}

func toKeyResponse(ns identity.Namespace, externalID string, k identity.Key) *KeyResponse {
	return &KeyResponse{Namespace: string(ns), ExternalID: externalID, Key: k.String(), Hex: k.Hex()}
}
