// Package service runs the ledger engines: issuance, escrow, and connection
// unlock. Each operation takes the lanes for the records it writes, then
// applies every write inside one storage transaction.
//
// The reward lane guards the reward mint and the escrow balances, which every
// lock and unlock writes regardless of account or connection.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"memoledger/internal/authority"
	"memoledger/internal/identity"
	"memoledger/internal/ledger/metrics"
	"memoledger/internal/ledger/models"
	"memoledger/internal/ledger/ports"
	"memoledger/internal/tokens"
	dErrors "memoledger/pkg/domain-errors"
	"memoledger/pkg/platform/sentinel"
	lanes "memoledger/pkg/platform/sync"
	"memoledger/pkg/platform/tracer"
	"memoledger/pkg/requestcontext"
)

// Operation names used for metrics labels.
const (
	opInitialize       = "initialize"
	opRegister         = "register"
	opMintDaily        = "mint_daily"
	opLockForReward    = "lock_for_reward"
	opCreateConnection = "create_connection"
	opUnlock           = "unlock"
)

const (
	globalLane = "global"
	rewardLane = "reward"
)

// Service is the ledger's write and read API.
type Service struct {
	runner   ports.TxRunner
	program  *authority.Program
	registry *identity.Registry
	locker   lanes.KeyLocker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   tracer.Tracer

	rewardMint identity.Key
	escrow     identity.Key
	anchors    atomic.Pointer[ledgerAnchors]
}

// ledgerAnchors are the global records fixed at initialization.
type ledgerAnchors struct {
	rewardMint identity.Key
	escrow     identity.Key
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithLocker replaces the in-process lanes, e.g. with the Redis locker when
// several instances share one database.
func WithLocker(l lanes.KeyLocker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

// WithRegistry sets the identity registry used to derive keys.
func WithRegistry(r *identity.Registry) Option {
	return func(s *Service) {
		s.registry = r
	}
}

// New builds a Service over runner. program holds the issuing authority for
// every mint the ledger creates.
func New(runner ports.TxRunner, program *authority.Program, opts ...Option) *Service {
	s := &Service{
		runner:     runner,
		program:    program,
		rewardMint: identity.DeriveRaw(identity.NamespaceRewardMint, []byte(models.RewardMintIdentity)),
		escrow:     identity.DeriveRaw(identity.NamespaceEscrow, []byte(models.EscrowIdentity)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry, _ = identity.NewRegistry(0)
	}
	if s.locker == nil {
		s.locker = lanes.NewLocalLocker()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = tracer.NewNoop()
	}
	return s
}

// DeriveAccountKey exposes the identity registry.
func (s *Service) DeriveAccountKey(ns identity.Namespace, externalID string) (identity.Key, error) {
	return s.registry.DeriveAccountKey(ns, externalID)
}

func accountLane(key identity.Key) string    { return "account:" + key.Hex() }
func connectionLane(key identity.Key) string { return "connection:" + key.Hex() }

// execute holds lanes while fn runs in a transaction.
func (s *Service) execute(ctx context.Context, op string, lanes []string, fn func(ctx context.Context, stores ports.Stores) error) error {
	start := time.Now()
	err := s.executeLocked(ctx, lanes, fn)
	if s.metrics != nil {
		s.metrics.ObserveLatency(op, start)
		if err != nil {
			s.metrics.IncRejected(op, string(dErrors.CodeOf(err)))
		}
	}
	if err != nil && dErrors.CodeOf(err) == dErrors.CodeInternal {
		s.logger.ErrorContext(ctx, "ledger operation failed",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	return err
}

func (s *Service) executeLocked(ctx context.Context, lanes []string, fn func(ctx context.Context, stores ports.Stores) error) error {
	unlock, err := s.locker.LockAll(ctx, lanes...)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "lane unavailable")
	}
	defer unlock()
	return s.runner.RunInTx(ctx, fn)
}

// view runs a read-only transaction without taking a lane.
func (s *Service) view(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	return s.runner.RunInTx(ctx, fn)
}

func loadGlobal(ctx context.Context, stores ports.Stores) (*models.GlobalState, error) {
	g, err := stores.Global.Get(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, models.Reject(models.ErrLedgerNotInitialized)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ledger state")
	}
	return g, nil
}

// loadAnchors returns the reward mint and escrow. They are immutable once the
// ledger exists, so the first read is cached and later transactions skip the
// global record entirely.
func (s *Service) loadAnchors(ctx context.Context, stores ports.Stores) (ledgerAnchors, error) {
	if a := s.anchors.Load(); a != nil {
		return *a, nil
	}
	g, err := loadGlobal(ctx, stores)
	if err != nil {
		return ledgerAnchors{}, err
	}
	a := &ledgerAnchors{rewardMint: g.RewardMint, escrow: g.EscrowAccount}
	s.anchors.Store(a)
	return *a, nil
}

func loadAccount(ctx context.Context, stores ports.Stores, key identity.Key) (*models.UserAccount, error) {
	a, err := stores.Accounts.Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, models.Reject(models.ErrAccountNotFound)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return a, nil
}

func loadConnection(ctx context.Context, stores ports.Stores, key identity.Key) (*models.Connection, error) {
	c, err := stores.Connections.Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, models.Reject(models.ErrConnectionNotFound)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load connection")
	}
	return c, nil
}

func wrapStoreErr(err error, action string) error {
	if err == nil {
		return nil
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

// wrapTokenErr translates sub-ledger failures into ledger error kinds.
func wrapTokenErr(err error, action string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, tokens.ErrInsufficientBalance):
		return models.Reject(models.ErrInsufficientBalance)
	case errors.Is(err, tokens.ErrAmountOverflow):
		return models.Reject(models.ErrCounterOverflow)
	case errors.Is(err, tokens.ErrZeroAmount):
		return models.Reject(models.ErrInvalidAmount)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

// audit logs a committed transition. Call it only after the transaction commits.
func (s *Service) audit(ctx context.Context, event models.EventType, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	s.logger.InfoContext(ctx, string(event), args...)
}

func (s *Service) incMinted(kind string, units uint64) {
	if s.metrics != nil {
		s.metrics.IncMinted(kind, units)
	}
}
