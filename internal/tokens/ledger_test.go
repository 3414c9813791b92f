package tokens

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"memoledger/internal/identity"
)

// staticGrant is a test Grant carrying a proof chosen by the test.
type staticGrant struct {
	mint  identity.Key
	proof [identity.KeySize]byte
}

func (g staticGrant) MintID() identity.Key          { return g.mint }
func (g staticGrant) Proof() [identity.KeySize]byte { return g.proof }

type LedgerSuite struct {
	suite.Suite
	ctx    context.Context
	store  *InMemoryStore
	ledger *Ledger
	mint   identity.Key
	grant  staticGrant
	alice  identity.Key
	bob    identity.Key
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.ledger = NewLedger(s.store)
	s.mint = identity.DeriveRaw(identity.NamespacePersonalMint, []byte("alice"))
	s.grant = staticGrant{mint: s.mint, proof: [identity.KeySize]byte{7}}
	s.alice = identity.DeriveRaw(identity.NamespaceUser, []byte("alice"))
	s.bob = identity.DeriveRaw(identity.NamespaceUser, []byte("bob"))

	authority := identity.DeriveRaw(identity.NamespaceAuthority, s.grant.proof[:])
	s.Require().NoError(s.ledger.CreateMint(s.ctx, s.mint, authority))
}

func (s *LedgerSuite) TestCreateMintTwice() {
	err := s.ledger.CreateMint(s.ctx, s.mint, identity.Key{})
	s.ErrorIs(err, ErrMintExists)
}

func (s *LedgerSuite) TestMint() {
	s.Run("credits owner and supply", func() {
		s.Require().NoError(s.ledger.Mint(s.ctx, s.grant, s.alice, MustUnits(48)))

		bal, err := s.ledger.BalanceOf(s.ctx, s.alice, s.mint)
		s.Require().NoError(err)
		s.Equal(MustUnits(48), bal)

		info, err := s.ledger.MintInfo(s.ctx, s.mint)
		s.Require().NoError(err)
		s.Equal(MustUnits(48), info.Supply)
		s.Equal(uint8(Decimals), info.Decimals)
	})

	s.Run("rejects wrong proof", func() {
		bad := staticGrant{mint: s.mint, proof: [identity.KeySize]byte{8}}
		s.ErrorIs(s.ledger.Mint(s.ctx, bad, s.alice, MustUnits(1)), ErrUnauthorizedMint)
	})

	s.Run("rejects unknown mint", func() {
		other := staticGrant{mint: identity.Key{1}, proof: s.grant.proof}
		s.ErrorIs(s.ledger.Mint(s.ctx, other, s.alice, MustUnits(1)), ErrUnknownMint)
	})

	s.Run("rejects zero", func() {
		s.ErrorIs(s.ledger.Mint(s.ctx, s.grant, s.alice, 0), ErrZeroAmount)
	})
}

func (s *LedgerSuite) TestTransfer() {
	s.Require().NoError(s.ledger.Mint(s.ctx, s.grant, s.alice, MustUnits(10)))

	s.Run("moves balance", func() {
		s.Require().NoError(s.ledger.Transfer(s.ctx, s.mint, s.alice, s.bob, MustUnits(4)))
		a, _ := s.ledger.BalanceOf(s.ctx, s.alice, s.mint)
		b, _ := s.ledger.BalanceOf(s.ctx, s.bob, s.mint)
		s.Equal(MustUnits(6), a)
		s.Equal(MustUnits(4), b)
	})

	s.Run("insufficient balance leaves both sides untouched", func() {
		err := s.ledger.Transfer(s.ctx, s.mint, s.alice, s.bob, MustUnits(7))
		s.ErrorIs(err, ErrInsufficientBalance)
		a, _ := s.ledger.BalanceOf(s.ctx, s.alice, s.mint)
		b, _ := s.ledger.BalanceOf(s.ctx, s.bob, s.mint)
		s.Equal(MustUnits(6), a)
		s.Equal(MustUnits(4), b)
	})

	s.Run("self transfer is a no-op", func() {
		s.Require().NoError(s.ledger.Transfer(s.ctx, s.mint, s.alice, s.alice, MustUnits(6)))
		a, _ := s.ledger.BalanceOf(s.ctx, s.alice, s.mint)
		s.Equal(MustUnits(6), a)
	})

	s.Run("unknown mint", func() {
		s.ErrorIs(s.ledger.Transfer(s.ctx, identity.Key{9}, s.alice, s.bob, 1), ErrUnknownMint)
	})
}
