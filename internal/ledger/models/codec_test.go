package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoledger/internal/identity"
)

func TestAccountCodec(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewUserAccount(strings.Repeat("z", 64),
		identity.DeriveRaw(identity.NamespaceUser, []byte("z")),
		identity.DeriveRaw(identity.NamespacePersonalMint, []byte("z")), now)
	a.TotalLocked = 7
	a.ConnectionsCount = 3

	raw, err := a.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, raw, AccountRecordSize)

	var got UserAccount
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.Equal(t, *a, got)
}

func TestConnectionCodec(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewConnection("c1", identity.DeriveRaw(identity.NamespaceConnection, []byte("c1")),
		"alice", "bob", "agent", CommitmentOf([]byte("1")), CommitmentOf([]byte("2")), now)

	raw, err := c.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, raw, ConnectionRecordSize)

	var got Connection
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.Equal(t, *c, got)

	_, err = c.Unlock("alice", []byte("2"), now)
	require.NoError(t, err)
	_, err = c.Unlock("bob", []byte("1"), now)
	require.NoError(t, err)

	raw, err = c.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.True(t, got.Complete())
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, now, *got.CompletedAt)
}

func TestGlobalCodec(t *testing.T) {
	g := NewGlobalState("admin", identity.Key{1}, identity.Key{2}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	g.TotalUsers = 10
	g.TotalConnections = 4

	raw, err := g.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, raw, GlobalRecordSize)

	var got GlobalState
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.Equal(t, *g, got)
}

func TestCodecRejectsCorruption(t *testing.T) {
	g := NewGlobalState("admin", identity.Key{1}, identity.Key{2}, time.Now())
	raw, err := g.MarshalBinary()
	require.NoError(t, err)

	var got GlobalState
	assert.ErrorIs(t, got.UnmarshalBinary(raw[:len(raw)-1]), ErrCorruptRecord)

	bad := append([]byte(nil), raw...)
	bad[0] = 9
	assert.ErrorIs(t, got.UnmarshalBinary(bad), ErrCorruptRecord)
}

func TestCodecRejectsOverlongIdentifier(t *testing.T) {
	a := &UserAccount{ExternalID: strings.Repeat("x", 65)}
	_, err := a.MarshalBinary()
	assert.Error(t, err)
}
