package service_test

import (
	"context"
	"fmt"
	"time"

	"memoledger/internal/ledger/models"
	"memoledger/internal/tokens"
	"memoledger/pkg/testutil"
)

func (s *ServiceSuite) TestConcurrentMintDailyIssuesOnce() {
	s.register("alice")
	ctx := s.at(24 * time.Hour)

	result := testutil.RunConcurrentCtx(ctx, 16, func(ctx context.Context, _ int) error {
		_, err := s.svc.MintDaily(ctx, "alice")
		return err
	})

	s.Equal(int32(1), result.Successes)
	s.Equal(int32(15), result.Limited)
	s.Zero(result.Errors)

	account, err := s.svc.GetAccount(s.at(0), "alice")
	s.Require().NoError(err)
	s.Equal(models.DailyLimit, account.DailyMinted)
	s.Equal(uint64(72), account.TotalMinted)
	s.Equal(tokens.MustUnits(72), s.balances("alice").Personal)
}

func (s *ServiceSuite) TestConcurrentUnlocksPayBonusOnce() {
	s.register("alice", "bob")
	s.connect("c1")

	secrets := map[string][]byte{"alice": []byte("5678"), "bob": []byte("1234")}
	callers := []string{"alice", "bob"}
	result := testutil.RunConcurrent(len(callers), func(i int) error {
		_, err := s.svc.Unlock(s.at(time.Minute), "c1", callers[i], secrets[callers[i]])
		return err
	})
	s.Equal(int32(2), result.Successes)

	conn, err := s.svc.GetConnection(s.at(0), "c1")
	s.Require().NoError(err)
	s.True(conn.Complete())
	s.Equal(tokens.MustUnits(models.ConnectionBonus), s.balances("agent").Reward)

	supply, err := s.svc.RewardSupply(s.at(0))
	s.Require().NoError(err)
	s.Equal(tokens.MustUnits(2*models.PerUnlockReward+models.ConnectionBonus), supply)
}

func (s *ServiceSuite) TestConcurrentLocksAcrossLanes() {
	s.register("alice", "bob")
	s.connect("c1")

	// alice's lock runs on her account lane while her unlock runs on the
	// connection lane; both touch her reward balance.
	result := testutil.RunConcurrent(2, func(i int) error {
		if i == 0 {
			_, err := s.svc.LockForReward(s.at(0), "alice", 5)
			return err
		}
		_, err := s.svc.Unlock(s.at(0), "c1", "alice", []byte("5678"))
		return err
	})
	s.Equal(int32(2), result.Successes)

	s.Equal(tokens.MustUnits(5+models.PerUnlockReward), s.balances("alice").Reward)
	account, err := s.svc.GetAccount(s.at(0), "alice")
	s.Require().NoError(err)
	s.Equal(uint64(5)+models.PerUnlockReward, account.TotalRewardEarned)
	s.Equal(uint64(5), account.TotalLocked)
	s.Equal(uint64(1), account.ConnectionsCount)
}

func (s *ServiceSuite) TestConcurrentLocksDistinctAccounts() {
	const n = 64
	users := make([]string, n)
	var locked uint64
	for i := range users {
		users[i] = fmt.Sprintf("user-%d", i)
		s.register(users[i])
		locked += amountFor(i)
	}

	result := testutil.RunConcurrent(n, func(i int) error {
		_, err := s.svc.LockForReward(s.at(time.Minute), users[i], amountFor(i))
		return err
	})
	s.Equal(int32(n), result.Successes)
	s.Zero(result.Conflicts)
	s.Zero(result.Errors)

	supply, err := s.svc.RewardSupply(s.at(0))
	s.Require().NoError(err)
	s.Equal(tokens.MustUnits(locked), supply)

	var escrowed tokens.Amount
	for i, user := range users {
		held, err := s.svc.EscrowBalance(s.at(0), user)
		s.Require().NoError(err)
		s.Equal(tokens.MustUnits(amountFor(i)), held)
		escrowed += held
		s.Equal(tokens.MustUnits(amountFor(i)), s.balances(user).Reward)
	}
	s.Equal(tokens.MustUnits(locked), escrowed)
}

func (s *ServiceSuite) TestConcurrentUnlocksDistinctConnections() {
	const n = 64
	s.register("alice", "bob")
	for i := range n {
		s.connect(fmt.Sprintf("c-%d", i))
	}

	result := testutil.RunConcurrent(n, func(i int) error {
		_, err := s.svc.Unlock(s.at(time.Minute), fmt.Sprintf("c-%d", i), "alice", []byte("5678"))
		return err
	})
	s.Equal(int32(n), result.Successes)
	s.Zero(result.Conflicts)
	s.Zero(result.Errors)

	supply, err := s.svc.RewardSupply(s.at(0))
	s.Require().NoError(err)
	s.Equal(tokens.MustUnits(n*models.PerUnlockReward), supply)

	account, err := s.svc.GetAccount(s.at(0), "alice")
	s.Require().NoError(err)
	s.Equal(uint64(n), account.ConnectionsCount)
	s.Equal(uint64(n)*models.PerUnlockReward, account.TotalRewardEarned)
	s.Equal(tokens.MustUnits(n*models.PerUnlockReward), s.balances("alice").Reward)
}

func (s *ServiceSuite) TestConcurrentMixedOperations() {
	const n = 32
	s.register("alice", "bob")
	for i := range n {
		s.register(fmt.Sprintf("holder-%d", i))
		s.connect(fmt.Sprintf("c-%d", i))
	}

	// registrations rewrite the global record while locks and unlocks
	// on other lanes mint from the shared reward mint
	result := testutil.RunConcurrent(3*n, func(i int) error {
		ctx := s.at(time.Minute)
		switch i / n {
		case 0:
			_, err := s.svc.LockForReward(ctx, fmt.Sprintf("holder-%d", i), 1)
			return err
		case 1:
			_, err := s.svc.RegisterAndIssueInitial(ctx, fmt.Sprintf("newcomer-%d", i-n))
			return err
		default:
			_, err := s.svc.Unlock(ctx, fmt.Sprintf("c-%d", i-2*n), "alice", []byte("5678"))
			return err
		}
	})
	s.Equal(int32(3*n), result.Successes)
	s.Zero(result.Conflicts)
	s.Zero(result.Errors)

	g, err := s.svc.GetGlobalState(s.at(0))
	s.Require().NoError(err)
	s.Equal(uint64(2+2*n), g.TotalUsers)
	s.Equal(uint64(n), g.TotalConnections)

	supply, err := s.svc.RewardSupply(s.at(0))
	s.Require().NoError(err)
	s.Equal(tokens.MustUnits(n+n*models.PerUnlockReward), supply)
}

// amountFor spreads lock sizes between 1 and 5 tokens.
func amountFor(i int) uint64 {
	return uint64(i%5) + 1
}
