package service

import (
	"context"
	"errors"

	"memoledger/internal/identity"
	"memoledger/internal/ledger/metrics"
	"memoledger/internal/ledger/models"
	"memoledger/internal/ledger/ports"
	"memoledger/internal/tokens"
	dErrors "memoledger/pkg/domain-errors"
	"memoledger/pkg/platform/sentinel"
	"memoledger/pkg/platform/tracer"
	"memoledger/pkg/requestcontext"
)

// RegisterAndIssueInitial creates the account for externalID, installs its
// personal mint, and issues the initial grant.
func (s *Service) RegisterAndIssueInitial(ctx context.Context, externalID string) (_ *models.UserAccount, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRegister)
	defer func() { span.End(err) }()

	key, err := s.registry.UserKey(externalID)
	if err != nil {
		return nil, err
	}
	personalMint, err := s.registry.DeriveAccountKey(identity.NamespacePersonalMint, externalID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrAccountKey, key.String()))
	now := requestcontext.Now(ctx)

	var account *models.UserAccount
	err = s.execute(ctx, opRegister, []string{globalLane}, func(ctx context.Context, stores ports.Stores) error {
		g, err := loadGlobal(ctx, stores)
		if err != nil {
			return err
		}
		if _, err := stores.Accounts.Get(ctx, key); err == nil {
			return models.Reject(models.ErrDuplicateRegistration)
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
		}

		a := models.NewUserAccount(externalID, key, personalMint, now)
		if err := stores.Accounts.Create(ctx, a); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return models.Reject(models.ErrDuplicateRegistration)
			}
			return wrapStoreErr(err, "failed to create account")
		}

		ledger := tokens.NewLedger(stores.Tokens)
		if err := s.program.CreateMint(ctx, ledger, personalMint); err != nil {
			if errors.Is(err, tokens.ErrMintExists) {
				return models.Reject(models.ErrDuplicateRegistration)
			}
			return wrapTokenErr(err, "failed to create personal mint")
		}
		if _, err := s.program.MintAs(ctx, ledger, personalMint, key, models.InitialGrant); err != nil {
			return wrapTokenErr(err, "failed to issue initial grant")
		}

		if err := g.RecordUser(); err != nil {
			return err
		}
		if err := stores.Global.Update(ctx, g); err != nil {
			return wrapStoreErr(err, "failed to update ledger state")
		}
		account = a
		return appendEvent(ctx, stores, models.AggregateAccount, key.String(), now, models.Event{
			Type:       models.EventAccountRegistered,
			Identity:   externalID,
			AccountKey: key.String(),
			Amount:     models.InitialGrant,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncRegistered()
	}
	s.incMinted(metrics.MintInitial, models.InitialGrant)
	s.audit(ctx, models.EventAccountRegistered,
		"identity", externalID,
		"account_key", key.String(),
		"amount", models.InitialGrant,
	)
	return account, nil
}

// MintDaily issues the caller's remaining daily headroom. A window that has
// elapsed resets once before the headroom is computed.
func (s *Service) MintDaily(ctx context.Context, externalID string) (_ uint64, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanMintDaily)
	defer func() { span.End(err) }()

	key, err := s.registry.UserKey(externalID)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(tracer.String(tracer.AttrAccountKey, key.String()))
	now := requestcontext.Now(ctx)

	var minted uint64
	var reset bool
	err = s.execute(ctx, opMintDaily, []string{accountLane(key)}, func(ctx context.Context, stores ports.Stores) error {
		a, err := loadAccount(ctx, stores, key)
		if err != nil {
			return err
		}
		reset = a.ResetWindowIfElapsed(now)
		headroom, err := a.DailyHeadroom()
		if err != nil {
			return err
		}

		ledger := tokens.NewLedger(stores.Tokens)
		if _, err := s.program.MintAs(ctx, ledger, a.PersonalMint, key, headroom); err != nil {
			return wrapTokenErr(err, "failed to mint daily tokens")
		}
		if err := a.RecordDailyMint(headroom); err != nil {
			return err
		}
		if err := stores.Accounts.Update(ctx, a); err != nil {
			return wrapStoreErr(err, "failed to update account")
		}
		minted = headroom
		return appendEvent(ctx, stores, models.AggregateAccount, key.String(), now, models.Event{
			Type:       models.EventDailyMinted,
			Identity:   externalID,
			AccountKey: key.String(),
			Amount:     headroom,
		})
	})
	if err != nil {
		return 0, err
	}

	span.SetAttributes(tracer.Uint64(tracer.AttrAmount, minted))
	s.incMinted(metrics.MintDaily, minted)
	s.audit(ctx, models.EventDailyMinted,
		"identity", externalID,
		"amount", minted,
		"window_reset", reset,
	)
	return minted, nil
}
