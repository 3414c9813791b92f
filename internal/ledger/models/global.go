package models

import (
	"time"

	"memoledger/internal/identity"
)

// GlobalState is the ledger singleton. Admin is fixed at creation; the
// counters only grow.
type GlobalState struct {
	RewardMint       identity.Key
	EscrowAccount    identity.Key
	Admin            string
	TotalUsers       uint64
	TotalConnections uint64
	CreatedAt        time.Time
}

// NewGlobalState builds the bootstrap record.
func NewGlobalState(admin string, rewardMint, escrow identity.Key, now time.Time) *GlobalState {
	return &GlobalState{
		RewardMint:    rewardMint,
		EscrowAccount: escrow,
		Admin:         admin,
		CreatedAt:     Timestamp(now),
	}
}

// RecordUser counts a registration.
func (g *GlobalState) RecordUser() error {
	n, err := addCounter(g.TotalUsers, 1)
	if err != nil {
		return err
	}
	g.TotalUsers = n
	return nil
}

// RecordConnection counts a created connection.
func (g *GlobalState) RecordConnection() error {
	n, err := addCounter(g.TotalConnections, 1)
	if err != nil {
		return err
	}
	g.TotalConnections = n
	return nil
}
