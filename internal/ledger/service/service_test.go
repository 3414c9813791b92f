package service_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"memoledger/internal/authority"
	"memoledger/internal/identity"
	"memoledger/internal/ledger/metrics"
	"memoledger/internal/ledger/models"
	"memoledger/internal/ledger/ports"
	"memoledger/internal/ledger/service"
	"memoledger/internal/ledger/store/kv"
	"memoledger/internal/tokens"
	dErrors "memoledger/pkg/domain-errors"
	"memoledger/pkg/platform/outbox"
	"memoledger/pkg/requestcontext"
)

var testSeed = []byte("memoledger-test-program-seed")

type ServiceSuite struct {
	suite.Suite
	db      *kv.DB
	svc     *service.Service
	metrics *metrics.Metrics
	logs    *bytes.Buffer
	t0      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	db, err := kv.Open(kv.Config{InMemory: true})
	s.Require().NoError(err)
	s.db = db

	program, err := authority.NewProgram(testSeed)
	s.Require().NoError(err)
	registry, err := identity.NewRegistry(128)
	s.Require().NoError(err)

	s.logs = &bytes.Buffer{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.svc = service.New(db, program,
		service.WithRegistry(registry),
		service.WithMetrics(s.metrics),
		service.WithLogger(slog.New(slog.NewJSONHandler(s.logs, nil))),
	)
	s.t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	_, err = s.svc.InitializeLedger(s.at(0), "admin")
	s.Require().NoError(err)
}

func (s *ServiceSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

// at returns a context pinned to t0 plus d.
func (s *ServiceSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.t0.Add(d))
}

func (s *ServiceSuite) register(ids ...string) {
	for _, id := range ids {
		_, err := s.svc.RegisterAndIssueInitial(s.at(0), id)
		s.Require().NoError(err)
	}
}

func (s *ServiceSuite) balances(id string) *service.Balances {
	b, err := s.svc.Balances(s.at(0), id)
	s.Require().NoError(err)
	return b
}

func (s *ServiceSuite) connect(id string) {
	_, err := s.svc.CreateConnection(s.at(0), service.NewConnection{
		ID:          id,
		IdentityA:   "alice",
		IdentityB:   "bob",
		Beneficiary: "agent",
		CommitA:     models.CommitmentOf([]byte("1234")),
		CommitB:     models.CommitmentOf([]byte("5678")),
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestInitializeLedger() {
	s.Run("second initialize conflicts", func() {
		_, err := s.svc.InitializeLedger(s.at(0), "someone")
		s.ErrorIs(err, models.ErrLedgerAlreadyInitialized)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("global state keeps the first admin", func() {
		g, err := s.svc.GetGlobalState(s.at(0))
		s.Require().NoError(err)
		s.Equal("admin", g.Admin)
		s.Equal(identity.DeriveRaw(identity.NamespaceEscrow, []byte(models.EscrowIdentity)), g.EscrowAccount)
		s.Zero(g.TotalUsers)
	})
}

func (s *ServiceSuite) TestRegisterBeforeInitialize() {
	db, err := kv.Open(kv.Config{InMemory: true})
	s.Require().NoError(err)
	defer db.Close()
	program, err := authority.NewProgram(testSeed)
	s.Require().NoError(err)

	_, err = service.New(db, program).RegisterAndIssueInitial(s.at(0), "alice")
	s.ErrorIs(err, models.ErrLedgerNotInitialized)
	s.True(dErrors.HasCode(err, dErrors.CodePolicyViolation))
}

func (s *ServiceSuite) TestDailyQuotaScenario() {
	account, err := s.svc.RegisterAndIssueInitial(s.at(0), "alice")
	s.Require().NoError(err)
	s.Equal(models.InitialGrant, account.DailyMinted)
	s.Equal(models.InitialGrant, account.TotalMinted)
	s.Equal(tokens.MustUnits(48), s.balances("alice").Personal)

	_, err = s.svc.MintDaily(s.at(time.Hour), "alice")
	s.ErrorIs(err, models.ErrDailyLimitReached)
	s.True(dErrors.HasCode(err, dErrors.CodeLimitExceeded))

	minted, err := s.svc.MintDaily(s.at(24*time.Hour), "alice")
	s.Require().NoError(err)
	s.Equal(models.DailyLimit, minted)

	account, err = s.svc.GetAccount(s.at(0), "alice")
	s.Require().NoError(err)
	s.Equal(uint64(72), account.TotalMinted)
	s.Equal(models.DailyLimit, account.DailyMinted)
	s.Equal(tokens.MustUnits(72), s.balances("alice").Personal)

	g, err := s.svc.GetGlobalState(s.at(0))
	s.Require().NoError(err)
	s.Equal(uint64(1), g.TotalUsers)
}

func (s *ServiceSuite) TestIdleDaysResetOnce() {
	s.register("alice")

	minted, err := s.svc.MintDaily(s.at(5*24*time.Hour+time.Minute), "alice")
	s.Require().NoError(err)
	s.Equal(models.DailyLimit, minted)

	account, err := s.svc.GetAccount(s.at(0), "alice")
	s.Require().NoError(err)
	s.Equal(models.DailyLimit, account.DailyMinted)

	_, err = s.svc.MintDaily(s.at(5*24*time.Hour+2*time.Minute), "alice")
	s.ErrorIs(err, models.ErrDailyLimitReached)
}

func (s *ServiceSuite) TestRegisterRejections() {
	s.register("alice")

	s.Run("duplicate never overwrites", func() {
		_, err := s.svc.MintDaily(s.at(24*time.Hour), "alice")
		s.Require().NoError(err)

		_, err = s.svc.RegisterAndIssueInitial(s.at(48*time.Hour), "alice")
		s.ErrorIs(err, models.ErrDuplicateRegistration)

		account, err := s.svc.GetAccount(s.at(0), "alice")
		s.Require().NoError(err)
		s.Equal(uint64(72), account.TotalMinted)
	})

	s.Run("over-length identifier", func() {
		long := string(bytes.Repeat([]byte("x"), identity.MaxIdentifierLength+1))
		_, err := s.svc.RegisterAndIssueInitial(s.at(0), long)
		s.ErrorIs(err, models.ErrIdentifierTooLong)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown account cannot mint", func() {
		_, err := s.svc.MintDaily(s.at(0), "nobody")
		s.ErrorIs(err, models.ErrAccountNotFound)
	})
}

func (s *ServiceSuite) TestLockForReward() {
	s.register("alice")

	account, err := s.svc.LockForReward(s.at(0), "alice", 10)
	s.Require().NoError(err)
	s.Equal(uint64(10), account.TotalLocked)
	s.Equal(uint64(10), account.TotalRewardEarned)

	b := s.balances("alice")
	s.Equal(tokens.MustUnits(38), b.Personal)
	s.Equal(tokens.MustUnits(10), b.Reward)

	escrowed, err := s.svc.EscrowBalance(s.at(0), "alice")
	s.Require().NoError(err)
	s.Equal(tokens.MustUnits(10), escrowed)

	s.Run("zero amount", func() {
		_, err := s.svc.LockForReward(s.at(0), "alice", 0)
		s.ErrorIs(err, models.ErrInvalidAmount)
	})

	s.Run("amount too large to scale", func() {
		_, err := s.svc.LockForReward(s.at(0), "alice", ^uint64(0))
		s.ErrorIs(err, models.ErrInvalidAmount)
	})

	s.Run("unknown account", func() {
		_, err := s.svc.LockForReward(s.at(0), "nobody", 1)
		s.ErrorIs(err, models.ErrAccountNotFound)
	})
}

func (s *ServiceSuite) TestFailedLockLeavesStateUntouched() {
	s.register("alice")

	_, err := s.svc.LockForReward(s.at(0), "alice", 49)
	s.ErrorIs(err, models.ErrInsufficientBalance)
	s.True(dErrors.HasCode(err, dErrors.CodePolicyViolation))

	b := s.balances("alice")
	s.Equal(tokens.MustUnits(48), b.Personal)
	s.Zero(b.Reward)
	account, err := s.svc.GetAccount(s.at(0), "alice")
	s.Require().NoError(err)
	s.Zero(account.TotalLocked)
	s.Zero(account.TotalRewardEarned)

	supply, err := s.svc.RewardSupply(s.at(0))
	s.Require().NoError(err)
	s.Zero(supply)
}

func (s *ServiceSuite) TestConnectionScenario() {
	s.register("alice", "bob")
	s.connect("c1")

	res, err := s.svc.Unlock(s.at(time.Minute), "c1", "alice", []byte("5678"))
	s.Require().NoError(err)
	s.True(res.CallerUnlocked)
	s.False(res.BothComplete)

	_, err = s.svc.Unlock(s.at(time.Minute), "c1", "alice", []byte("5678"))
	s.ErrorIs(err, models.ErrAlreadyUnlocked)

	_, err = s.svc.Unlock(s.at(time.Minute), "c1", "bob", []byte("wrong"))
	s.ErrorIs(err, models.ErrInvalidSecret)
	conn, err := s.svc.GetConnection(s.at(0), "c1")
	s.Require().NoError(err)
	s.False(conn.UnlockedB)

	res, err = s.svc.Unlock(s.at(2*time.Minute), "c1", "bob", []byte("1234"))
	s.Require().NoError(err)
	s.True(res.BothComplete)

	conn, err = s.svc.GetConnection(s.at(0), "c1")
	s.Require().NoError(err)
	s.True(conn.Complete())
	s.Require().NotNil(conn.CompletedAt)
	s.Equal(s.t0.Add(2*time.Minute), *conn.CompletedAt)

	s.Equal(tokens.MustUnits(models.PerUnlockReward), s.balances("alice").Reward)
	s.Equal(tokens.MustUnits(models.PerUnlockReward), s.balances("bob").Reward)
	s.Equal(tokens.MustUnits(models.ConnectionBonus), s.balances("agent").Reward)

	alice, err := s.svc.GetAccount(s.at(0), "alice")
	s.Require().NoError(err)
	s.Equal(uint64(1), alice.ConnectionsCount)
	s.Equal(models.PerUnlockReward, alice.TotalRewardEarned)

	_, err = s.svc.Unlock(s.at(0), "c1", "bob", []byte("1234"))
	s.ErrorIs(err, models.ErrConnectionFullyUnlocked)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Unlocks.WithLabelValues("true")))
}

func (s *ServiceSuite) TestUnlockRejections() {
	s.register("alice", "bob")
	s.connect("c1")

	s.Run("missing connection", func() {
		_, err := s.svc.Unlock(s.at(0), "nope", "alice", []byte("5678"))
		s.ErrorIs(err, models.ErrConnectionNotFound)
	})

	s.Run("connection is looked up before the caller", func() {
		long := string(bytes.Repeat([]byte("x"), identity.MaxIdentifierLength+1))
		for _, caller := range []string{"", long} {
			_, err := s.svc.Unlock(s.at(0), "nope", caller, []byte("5678"))
			s.ErrorIs(err, models.ErrConnectionNotFound)
			_, err = s.svc.Unlock(s.at(0), "c1", caller, []byte("5678"))
			s.ErrorIs(err, models.ErrUnauthorizedCaller)
		}
	})

	s.Run("outsider", func() {
		_, err := s.svc.Unlock(s.at(0), "c1", "mallory", []byte("5678"))
		s.ErrorIs(err, models.ErrUnauthorizedCaller)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("beneficiary is not a party", func() {
		_, err := s.svc.Unlock(s.at(0), "c1", "agent", []byte("1234"))
		s.ErrorIs(err, models.ErrUnauthorizedCaller)
	})

	s.Run("empty and over-long secrets", func() {
		_, err := s.svc.Unlock(s.at(0), "c1", "alice", nil)
		s.ErrorIs(err, models.ErrMalformedSecret)
		_, err = s.svc.Unlock(s.at(0), "c1", "alice", bytes.Repeat([]byte("1"), models.MaxSecretLength+1))
		s.ErrorIs(err, models.ErrMalformedSecret)
	})

	s.Zero(s.balances("alice").Reward)
}

func (s *ServiceSuite) TestCreateConnectionRejections() {
	s.register("alice", "bob")

	cases := []struct {
		name string
		req  service.NewConnection
		want error
	}{
		{"same user", service.NewConnection{ID: "c", IdentityA: "alice", IdentityB: "alice", Beneficiary: "agent"}, models.ErrSameUserConnection},
		{"beneficiary is a party", service.NewConnection{ID: "c", IdentityA: "alice", IdentityB: "bob", Beneficiary: "bob"}, models.ErrInvalidBeneficiary},
		{"unregistered party", service.NewConnection{ID: "c", IdentityA: "alice", IdentityB: "carol", Beneficiary: "agent"}, models.ErrAccountNotFound},
		{"over-length id", service.NewConnection{ID: string(bytes.Repeat([]byte("c"), 65)), IdentityA: "alice", IdentityB: "bob", Beneficiary: "agent"}, models.ErrIdentifierTooLong},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.CreateConnection(s.at(0), tc.req)
			s.ErrorIs(err, tc.want)
		})
	}

	g, err := s.svc.GetGlobalState(s.at(0))
	s.Require().NoError(err)
	s.Zero(g.TotalConnections)

	s.connect("c1")
	_, err = s.svc.CreateConnection(s.at(0), service.NewConnection{
		ID: "c1", IdentityA: "alice", IdentityB: "bob", Beneficiary: "other",
	})
	s.ErrorIs(err, models.ErrDuplicateConnection)

	g, err = s.svc.GetGlobalState(s.at(0))
	s.Require().NoError(err)
	s.Equal(uint64(1), g.TotalConnections)
}

func (s *ServiceSuite) TestEventsCommitWithTransitions() {
	s.register("alice", "bob")
	s.connect("c1")
	_, err := s.svc.Unlock(s.at(0), "c1", "alice", []byte("5678"))
	s.Require().NoError(err)
	_, err = s.svc.Unlock(s.at(0), "c1", "alice", []byte("5678"))
	s.Require().Error(err)

	entries, err := s.db.Outbox().FetchUnprocessed(context.Background(), 100)
	s.Require().NoError(err)
	var types []string
	for _, e := range entries {
		types = append(types, e.EventType)
	}
	s.Equal([]string{
		string(models.EventLedgerInitialized),
		string(models.EventAccountRegistered),
		string(models.EventAccountRegistered),
		string(models.EventConnectionCreated),
		string(models.EventConnectionUnlocked),
	}, types)
}

func (s *ServiceSuite) TestAuditLogCarriesRequestID() {
	ctx := requestcontext.WithRequestID(s.at(0), "req-42")
	_, err := s.svc.RegisterAndIssueInitial(ctx, "alice")
	s.Require().NoError(err)

	out := s.logs.String()
	s.Contains(out, `"log_type":"audit"`)
	s.Contains(out, `"event":"account_registered"`)
	s.Contains(out, `"request_id":"req-42"`)
}

// failingOutbox makes every transition fail at its last write.
type failingOutbox struct {
	ports.TxRunner
}

func (f failingOutbox) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	return f.TxRunner.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		stores.Outbox = rejectingAppender{}
		return fn(ctx, stores)
	})
}

type rejectingAppender struct{}

func (rejectingAppender) Append(context.Context, *outbox.Entry) error {
	return errors.New("outbox unavailable")
}

func (s *ServiceSuite) TestFailedEventRollsBackTransition() {
	program, err := authority.NewProgram(testSeed)
	s.Require().NoError(err)
	broken := service.New(failingOutbox{s.db}, program)

	_, err = broken.RegisterAndIssueInitial(s.at(0), "alice")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = s.svc.GetAccount(s.at(0), "alice")
	s.ErrorIs(err, models.ErrAccountNotFound)
	s.Zero(s.balances("alice").Personal)
	g, err := s.svc.GetGlobalState(s.at(0))
	s.Require().NoError(err)
	s.Zero(g.TotalUsers)
}
