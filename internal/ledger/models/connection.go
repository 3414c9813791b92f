package models

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"memoledger/internal/identity"
)

// Commitment is the SHA-256 digest of a secret, published before the reveal.
type Commitment [sha256.Size]byte

// CommitmentOf hashes secret.
func CommitmentOf(secret []byte) Commitment {
	return sha256.Sum256(secret)
}

// ParseCommitment decodes a hex-encoded commitment.
func ParseCommitment(s string) (Commitment, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Commitment{}, fmt.Errorf("decode commitment: %w", err)
	}
	if len(raw) != sha256.Size {
		return Commitment{}, fmt.Errorf("commitment must be %d bytes, got %d", sha256.Size, len(raw))
	}
	var c Commitment
	copy(c[:], raw)
	return c, nil
}

// Hex renders the commitment.
func (c Commitment) Hex() string { return hex.EncodeToString(c[:]) }

// Matches compares secret's digest against c in constant time.
func (c Commitment) Matches(secret []byte) bool {
	digest := CommitmentOf(secret)
	return subtle.ConstantTimeCompare(digest[:], c[:]) == 1
}

// Side identifies a party to a connection.
type Side int

const (
	SideA Side = iota + 1
	SideB
)

func (s Side) String() string {
	switch s {
	case SideA:
		return "a"
	case SideB:
		return "b"
	}
	return "unknown"
}

// Connection is a two-party commit-reveal record.
//
// CommitA is the digest of A's secret: B proves A disclosed it by revealing it.
// CommitB is symmetric. Each unlock flag goes false to true once and never back.
// CompletedAt is set exactly when both flags are set.
type Connection struct {
	ID          string
	Key         identity.Key
	IdentityA   string
	IdentityB   string
	Beneficiary string
	CommitA     Commitment
	CommitB     Commitment
	UnlockedA   bool
	UnlockedB   bool
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// NewConnection builds a record in the Created state.
func NewConnection(id string, key identity.Key, a, b, beneficiary string, commitA, commitB Commitment, now time.Time) *Connection {
	return &Connection{
		ID:          id,
		Key:         key,
		IdentityA:   a,
		IdentityB:   b,
		Beneficiary: beneficiary,
		CommitA:     commitA,
		CommitB:     commitB,
		CreatedAt:   Timestamp(now),
	}
}

// Complete reports whether both parties have unlocked.
func (c *Connection) Complete() bool {
	return c.UnlockedA && c.UnlockedB
}

// State names the record's position in the unlock state machine.
func (c *Connection) State() string {
	switch {
	case c.Complete():
		return "both_unlocked"
	case c.UnlockedA:
		return "a_unlocked"
	case c.UnlockedB:
		return "b_unlocked"
	}
	return "created"
}

// SideOf resolves caller to a party.
func (c *Connection) SideOf(caller string) (Side, error) {
	switch caller {
	case c.IdentityA:
		return SideA, nil
	case c.IdentityB:
		return SideB, nil
	}
	return 0, Reject(ErrUnauthorizedCaller)
}

// UnlockResult reports the outcome of a successful unlock.
type UnlockResult struct {
	Side           Side
	CallerUnlocked bool
	BothComplete   bool
}

// Unlock sets caller's flag if secret opens the counterpart's commitment.
// Checks run in a fixed order: party, terminal state, secret, repeat unlock.
// On error the record is left unchanged.
func (c *Connection) Unlock(caller string, secret []byte, now time.Time) (UnlockResult, error) {
	side, err := c.SideOf(caller)
	if err != nil {
		return UnlockResult{}, err
	}
	if c.Complete() {
		return UnlockResult{}, Reject(ErrConnectionFullyUnlocked)
	}

	switch side {
	case SideA:
		if !c.CommitB.Matches(secret) {
			return UnlockResult{}, Reject(ErrInvalidSecret)
		}
		if c.UnlockedA {
			return UnlockResult{}, Reject(ErrAlreadyUnlocked)
		}
		c.UnlockedA = true
	case SideB:
		if !c.CommitA.Matches(secret) {
			return UnlockResult{}, Reject(ErrInvalidSecret)
		}
		if c.UnlockedB {
			return UnlockResult{}, Reject(ErrAlreadyUnlocked)
		}
		c.UnlockedB = true
	}

	if c.Complete() {
		ts := Timestamp(now)
		c.CompletedAt = &ts
	}
	return UnlockResult{Side: side, CallerUnlocked: true, BothComplete: c.Complete()}, nil
}
