package models

import (
	"time"

	"memoledger/internal/identity"
	dErrors "memoledger/pkg/domain-errors"
)

// UserAccount tracks one identity's quota window and lifetime statistics.
// Quantities are whole token units.
//
// Registration starts DailyMinted at InitialGrant, which already exhausts the
// first day. A daily mint never takes DailyMinted past DailyLimit. The lifetime
// totals and ConnectionsCount never decrease.
type UserAccount struct {
	ExternalID        string
	Key               identity.Key
	PersonalMint      identity.Key
	LastMintAt        time.Time
	DailyMinted       uint64
	TotalMinted       uint64
	TotalLocked       uint64
	TotalRewardEarned uint64
	ConnectionsCount  uint64
	CreatedAt         time.Time
}

// NewUserAccount builds a freshly registered account holding the initial grant.
func NewUserAccount(externalID string, key, personalMint identity.Key, now time.Time) *UserAccount {
	ts := Timestamp(now)
	return &UserAccount{
		ExternalID:   externalID,
		Key:          key,
		PersonalMint: personalMint,
		LastMintAt:   ts,
		DailyMinted:  InitialGrant,
		TotalMinted:  InitialGrant,
		CreatedAt:    ts,
	}
}

// ResetWindowIfElapsed clears the daily counter when at least one whole day
// has passed since LastMintAt. The reset happens once no matter how many days
// elapsed: unused quota from idle days never accumulates.
func (a *UserAccount) ResetWindowIfElapsed(now time.Time) bool {
	elapsed := now.Unix() - a.LastMintAt.Unix()
	if elapsed/SecondsPerDay <= 0 {
		return false
	}
	a.DailyMinted = 0
	a.LastMintAt = Timestamp(now)
	return true
}

// DailyHeadroom is what a daily mint would issue now.
func (a *UserAccount) DailyHeadroom() (uint64, error) {
	if a.DailyMinted >= DailyLimit {
		return 0, Reject(ErrDailyLimitReached)
	}
	return DailyLimit - a.DailyMinted, nil
}

// RecordDailyMint applies an issued daily amount.
func (a *UserAccount) RecordDailyMint(units uint64) error {
	daily, err := addCounter(a.DailyMinted, units)
	if err != nil {
		return err
	}
	if daily > DailyLimit {
		return dErrors.New(dErrors.CodeInvariantViolation, "daily mint exceeds limit")
	}
	total, err := addCounter(a.TotalMinted, units)
	if err != nil {
		return err
	}
	a.DailyMinted = daily
	a.TotalMinted = total
	return nil
}

// RecordLock applies a lock-to-reward conversion of units.
func (a *UserAccount) RecordLock(units uint64) error {
	locked, err := addCounter(a.TotalLocked, units)
	if err != nil {
		return err
	}
	earned, err := addCounter(a.TotalRewardEarned, units)
	if err != nil {
		return err
	}
	a.TotalLocked = locked
	a.TotalRewardEarned = earned
	return nil
}

// RecordUnlockReward applies the reward for unlocking one connection side.
func (a *UserAccount) RecordUnlockReward(units uint64) error {
	earned, err := addCounter(a.TotalRewardEarned, units)
	if err != nil {
		return err
	}
	count, err := addCounter(a.ConnectionsCount, 1)
	if err != nil {
		return err
	}
	a.TotalRewardEarned = earned
	a.ConnectionsCount = count
	return nil
}
