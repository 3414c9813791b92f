package models

import "time"

// Business constants, in whole token units. Scaling to base units happens at
// the mint boundary (authority.Program.MintAs).
const (
	InitialGrant    uint64 = 48
	DailyLimit      uint64 = 24
	PerUnlockReward uint64 = 8
	ConnectionBonus uint64 = 8

	SecondsPerDay int64 = 86400

	// MaxSecretLength bounds revealed PINs.
	MaxSecretLength = 64
)

// EscrowIdentity names the shared escrow account holding locked personal tokens.
const EscrowIdentity = "me"

// RewardMintIdentity names the reward token mint.
const RewardMintIdentity = "memo"

// Timestamp normalizes t to whole seconds in UTC, the precision records persist.
func Timestamp(t time.Time) time.Time {
	return time.Unix(t.Unix(), 0).UTC()
}
