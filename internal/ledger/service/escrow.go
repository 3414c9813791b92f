package service

import (
	"context"

	"memoledger/internal/ledger/metrics"
	"memoledger/internal/ledger/models"
	"memoledger/internal/ledger/ports"
	"memoledger/internal/tokens"
	"memoledger/pkg/platform/tracer"
	"memoledger/pkg/requestcontext"
)

// LockForReward moves amount personal tokens into escrow and mints the same
// number of reward tokens to the caller. Escrowed tokens are never released.
func (s *Service) LockForReward(ctx context.Context, externalID string, amount uint64) (_ *models.UserAccount, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanLockForReward, tracer.Uint64(tracer.AttrAmount, amount))
	defer func() { span.End(err) }()

	if amount == 0 {
		return nil, models.Reject(models.ErrInvalidAmount)
	}
	scaled, err := tokens.Units(amount)
	if err != nil {
		return nil, models.Reject(models.ErrInvalidAmount)
	}
	key, err := s.registry.UserKey(externalID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrAccountKey, key.String()))
	now := requestcontext.Now(ctx)

	var account *models.UserAccount
	err = s.execute(ctx, opLockForReward, []string{accountLane(key), rewardLane}, func(ctx context.Context, stores ports.Stores) error {
		anchors, err := s.loadAnchors(ctx, stores)
		if err != nil {
			return err
		}
		a, err := loadAccount(ctx, stores, key)
		if err != nil {
			return err
		}

		ledger := tokens.NewLedger(stores.Tokens)
		if err := ledger.Transfer(ctx, a.PersonalMint, key, anchors.escrow, scaled); err != nil {
			return wrapTokenErr(err, "failed to move tokens to escrow")
		}
		if _, err := s.program.MintAs(ctx, ledger, anchors.rewardMint, key, amount); err != nil {
			return wrapTokenErr(err, "failed to mint reward")
		}
		if err := a.RecordLock(amount); err != nil {
			return err
		}
		if err := stores.Accounts.Update(ctx, a); err != nil {
			return wrapStoreErr(err, "failed to update account")
		}
		account = a
		return appendEvent(ctx, stores, models.AggregateAccount, key.String(), now, models.Event{
			Type:       models.EventTokensLocked,
			Identity:   externalID,
			AccountKey: key.String(),
			Amount:     amount,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncLocked(amount)
	}
	s.incMinted(metrics.MintLock, amount)
	s.audit(ctx, models.EventTokensLocked,
		"identity", externalID,
		"amount", amount,
	)
	return account, nil
}
