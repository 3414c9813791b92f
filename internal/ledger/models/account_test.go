package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"memoledger/internal/identity"
	dErrors "memoledger/pkg/domain-errors"
)

type AccountSuite struct {
	suite.Suite
	t0      time.Time
	account *UserAccount
}

func TestAccountSuite(t *testing.T) {
	suite.Run(t, new(AccountSuite))
}

func (s *AccountSuite) SetupTest() {
	s.t0 = time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	key := identity.DeriveRaw(identity.NamespaceUser, []byte("alice"))
	mint := identity.DeriveRaw(identity.NamespacePersonalMint, []byte("alice"))
	s.account = NewUserAccount("alice", key, mint, s.t0)
}

func (s *AccountSuite) TestNewAccountHoldsInitialGrant() {
	s.Equal(InitialGrant, s.account.DailyMinted)
	s.Equal(InitialGrant, s.account.TotalMinted)
	s.Equal(s.t0, s.account.LastMintAt)
}

func (s *AccountSuite) TestResetWindow() {
	s.Run("same day keeps window", func() {
		s.False(s.account.ResetWindowIfElapsed(s.t0.Add(23 * time.Hour)))
		s.Equal(InitialGrant, s.account.DailyMinted)
	})

	s.Run("exactly one day resets", func() {
		a := *s.account
		s.True(a.ResetWindowIfElapsed(s.t0.Add(24 * time.Hour)))
		s.Zero(a.DailyMinted)
		s.Equal(s.t0.Add(24*time.Hour), a.LastMintAt)
	})

	s.Run("clock behind last mint never resets", func() {
		a := *s.account
		s.False(a.ResetWindowIfElapsed(s.t0.Add(-48 * time.Hour)))
	})

	s.Run("five idle days reset once", func() {
		a := *s.account
		a.DailyMinted = DailyLimit
		now := s.t0.Add(5*24*time.Hour + time.Second)
		s.True(a.ResetWindowIfElapsed(now))

		headroom, err := a.DailyHeadroom()
		s.Require().NoError(err)
		s.Equal(DailyLimit, headroom)
		s.Require().NoError(a.RecordDailyMint(headroom))
		s.Equal(DailyLimit, a.DailyMinted)
	})
}

func (s *AccountSuite) TestDailyHeadroom() {
	_, err := s.account.DailyHeadroom()
	s.Require().Error(err)
	s.True(errors.Is(err, ErrDailyLimitReached))
	s.True(dErrors.HasCode(err, dErrors.CodeLimitExceeded))

	s.account.DailyMinted = 10
	headroom, err := s.account.DailyHeadroom()
	s.Require().NoError(err)
	s.Equal(uint64(14), headroom)
}

func (s *AccountSuite) TestRecordDailyMintGuardsLimit() {
	s.account.DailyMinted = 20
	err := s.account.RecordDailyMint(5)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	s.Equal(uint64(20), s.account.DailyMinted, "rejected mint leaves counters untouched")
	s.Equal(InitialGrant, s.account.TotalMinted)
}

func (s *AccountSuite) TestLifetimeCounters() {
	s.Require().NoError(s.account.RecordLock(5))
	s.Require().NoError(s.account.RecordUnlockReward(PerUnlockReward))

	s.Equal(uint64(5), s.account.TotalLocked)
	s.Equal(uint64(5)+PerUnlockReward, s.account.TotalRewardEarned)
	s.Equal(uint64(1), s.account.ConnectionsCount)

	s.account.TotalRewardEarned = ^uint64(0)
	err := s.account.RecordLock(1)
	s.ErrorIs(err, ErrCounterOverflow)
	s.Equal(uint64(5), s.account.TotalLocked)
}
