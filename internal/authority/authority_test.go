package authority

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoledger/internal/identity"
	"memoledger/internal/tokens"
)

var testSeed = []byte("authority-test-seed-0123456789")

func TestNewProgram_RejectsShortSeed(t *testing.T) {
	_, err := NewProgram([]byte("short"))
	assert.ErrorIs(t, err, ErrSeedTooShort)
}

func TestMintAs_ScalesAtBoundary(t *testing.T) {
	ctx := context.Background()
	p, err := NewProgram(testSeed)
	require.NoError(t, err)
	ledger := tokens.NewLedger(tokens.NewInMemoryStore())
	mint := identity.DeriveRaw(identity.NamespaceRewardMint, []byte("reward"))
	owner := identity.DeriveRaw(identity.NamespaceUser, []byte("alice"))

	require.NoError(t, p.CreateMint(ctx, ledger, mint))
	issued, err := p.MintAs(ctx, ledger, mint, owner, 8)
	require.NoError(t, err)

	assert.Equal(t, tokens.MustUnits(8), issued)
	bal, err := ledger.BalanceOf(ctx, owner, mint)
	require.NoError(t, err)
	assert.Equal(t, "8.000000000", bal.String())
}

func TestMintAs_OtherProgramCannotMint(t *testing.T) {
	ctx := context.Background()
	owner, err := NewProgram(testSeed)
	require.NoError(t, err)
	intruder, err := NewProgram([]byte("a-completely-different-seed"))
	require.NoError(t, err)

	ledger := tokens.NewLedger(tokens.NewInMemoryStore())
	mint := identity.DeriveRaw(identity.NamespacePersonalMint, []byte("alice"))
	to := identity.DeriveRaw(identity.NamespaceUser, []byte("mallory"))
	require.NoError(t, owner.CreateMint(ctx, ledger, mint))

	_, err = intruder.MintAs(ctx, ledger, mint, to, 1)
	assert.ErrorIs(t, err, tokens.ErrUnauthorizedMint)
}

func TestForgedProofDoesNotVerify(t *testing.T) {
	ctx := context.Background()
	p, err := NewProgram(testSeed)
	require.NoError(t, err)
	ledger := tokens.NewLedger(tokens.NewInMemoryStore())
	mint := identity.DeriveRaw(identity.NamespaceRewardMint, []byte("reward"))
	require.NoError(t, p.CreateMint(ctx, ledger, mint))

	forged := Capability{mint: mint}
	err = ledger.Mint(ctx, forged, identity.Key{}, tokens.MustUnits(1))
	assert.ErrorIs(t, err, tokens.ErrUnauthorizedMint)
}

func TestAuthorityKey_Deterministic(t *testing.T) {
	a, _ := NewProgram(testSeed)
	b, _ := NewProgram(testSeed)
	mint := identity.DeriveRaw(identity.NamespaceRewardMint, []byte("reward"))

	assert.Equal(t, a.AuthorityKey(mint), b.AuthorityKey(mint))
	assert.NotEqual(t, a.AuthorityKey(mint), a.AuthorityKey(identity.DeriveRaw(identity.NamespaceRewardMint, []byte("other"))))
}
