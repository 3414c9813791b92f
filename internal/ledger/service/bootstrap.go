package service

import (
	"context"
	"errors"

	"memoledger/internal/identity"
	"memoledger/internal/ledger/models"
	"memoledger/internal/ledger/ports"
	"memoledger/internal/tokens"
	dErrors "memoledger/pkg/domain-errors"
	"memoledger/pkg/platform/sentinel"
	"memoledger/pkg/platform/tracer"
	"memoledger/pkg/requestcontext"
)

// InitializeLedger creates the global state and the reward mint. It runs once;
// later calls fail with ErrLedgerAlreadyInitialized.
func (s *Service) InitializeLedger(ctx context.Context, admin string) (_ *models.GlobalState, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanInitialize)
	defer func() { span.End(err) }()

	if err := identity.ValidateIdentifier(admin); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var global *models.GlobalState
	err = s.execute(ctx, opInitialize, []string{globalLane, rewardLane}, func(ctx context.Context, stores ports.Stores) error {
		_, err := stores.Global.Get(ctx)
		if err == nil {
			return models.Reject(models.ErrLedgerAlreadyInitialized)
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ledger state")
		}

		ledger := tokens.NewLedger(stores.Tokens)
		if err := s.program.CreateMint(ctx, ledger, s.rewardMint); err != nil {
			if errors.Is(err, tokens.ErrMintExists) {
				return models.Reject(models.ErrLedgerAlreadyInitialized)
			}
			return wrapTokenErr(err, "failed to create reward mint")
		}

		g := models.NewGlobalState(admin, s.rewardMint, s.escrow, now)
		if err := stores.Global.Create(ctx, g); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return models.Reject(models.ErrLedgerAlreadyInitialized)
			}
			return wrapStoreErr(err, "failed to create ledger state")
		}
		global = g
		return appendEvent(ctx, stores, models.AggregateLedger, g.RewardMint.String(), g.CreatedAt, models.Event{
			Type:     models.EventLedgerInitialized,
			Identity: admin,
		})
	})
	if err != nil {
		return nil, err
	}
	s.anchors.Store(&ledgerAnchors{rewardMint: global.RewardMint, escrow: global.EscrowAccount})

	s.audit(ctx, models.EventLedgerInitialized,
		"admin", admin,
		"reward_mint", global.RewardMint.String(),
		"escrow", global.EscrowAccount.String(),
	)
	return global, nil
}
