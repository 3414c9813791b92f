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

// NewConnection describes a connection to create. CommitA is the digest of
// A's secret, which B reveals to unlock; CommitB is symmetric.
type NewConnection struct {
	ID          string
	IdentityA   string
	IdentityB   string
	Beneficiary string
	CommitA     models.Commitment
	CommitB     models.Commitment
}

func (n NewConnection) validate() error {
	for _, id := range []string{n.ID, n.IdentityA, n.IdentityB, n.Beneficiary} {
		if err := identity.ValidateIdentifier(id); err != nil {
			return err
		}
	}
	if n.IdentityA == n.IdentityB {
		return models.Reject(models.ErrSameUserConnection)
	}
	if n.Beneficiary == n.IdentityA || n.Beneficiary == n.IdentityB {
		return models.Reject(models.ErrInvalidBeneficiary)
	}
	return nil
}

// CreateConnection records a connection between two registered identities.
func (s *Service) CreateConnection(ctx context.Context, req NewConnection) (_ *models.Connection, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCreateConnection)
	defer func() { span.End(err) }()

	if err := req.validate(); err != nil {
		return nil, err
	}
	key, err := s.registry.DeriveAccountKey(identity.NamespaceConnection, req.ID)
	if err != nil {
		return nil, err
	}
	keyA, err := s.registry.UserKey(req.IdentityA)
	if err != nil {
		return nil, err
	}
	keyB, err := s.registry.UserKey(req.IdentityB)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrConnectionID, req.ID))
	now := requestcontext.Now(ctx)

	var conn *models.Connection
	err = s.execute(ctx, opCreateConnection, []string{globalLane}, func(ctx context.Context, stores ports.Stores) error {
		g, err := loadGlobal(ctx, stores)
		if err != nil {
			return err
		}
		if _, err := stores.Connections.Get(ctx, key); err == nil {
			return models.Reject(models.ErrDuplicateConnection)
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load connection")
		}
		for _, k := range []identity.Key{keyA, keyB} {
			if _, err := loadAccount(ctx, stores, k); err != nil {
				return err
			}
		}

		c := models.NewConnection(req.ID, key, req.IdentityA, req.IdentityB, req.Beneficiary, req.CommitA, req.CommitB, now)
		if err := stores.Connections.Create(ctx, c); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return models.Reject(models.ErrDuplicateConnection)
			}
			return wrapStoreErr(err, "failed to create connection")
		}
		if err := g.RecordConnection(); err != nil {
			return err
		}
		if err := stores.Global.Update(ctx, g); err != nil {
			return wrapStoreErr(err, "failed to update ledger state")
		}
		conn = c
		return appendEvent(ctx, stores, models.AggregateConnection, req.ID, now, models.Event{
			Type:         models.EventConnectionCreated,
			ConnectionID: req.ID,
			Beneficiary:  req.Beneficiary,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncConnectionCreated()
	}
	s.audit(ctx, models.EventConnectionCreated,
		"connection_id", req.ID,
		"identity_a", req.IdentityA,
		"identity_b", req.IdentityB,
		"beneficiary", req.Beneficiary,
	)
	return conn, nil
}

// Unlock reveals the counterpart's secret on behalf of caller. A correct
// reveal sets the caller's flag and pays the unlock reward; the unlock that
// completes the connection also pays the beneficiary's bonus.
func (s *Service) Unlock(ctx context.Context, connectionID, caller string, secret []byte) (_ models.UnlockResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanUnlock, tracer.String(tracer.AttrConnectionID, connectionID))
	defer func() { span.End(err) }()

	if len(secret) == 0 || len(secret) > models.MaxSecretLength {
		return models.UnlockResult{}, models.Reject(models.ErrMalformedSecret)
	}
	key, err := s.registry.DeriveAccountKey(identity.NamespaceConnection, connectionID)
	if err != nil {
		return models.UnlockResult{}, err
	}
	now := requestcontext.Now(ctx)

	var result models.UnlockResult
	var beneficiary string
	err = s.execute(ctx, opUnlock, []string{connectionLane(key), rewardLane}, func(ctx context.Context, stores ports.Stores) error {
		c, err := loadConnection(ctx, stores, key)
		if err != nil {
			return err
		}
		res, err := c.Unlock(caller, secret, now)
		if err != nil {
			return err
		}
		callerKey, err := s.registry.UserKey(caller)
		if err != nil {
			return err
		}
		anchors, err := s.loadAnchors(ctx, stores)
		if err != nil {
			return err
		}
		a, err := loadAccount(ctx, stores, callerKey)
		if err != nil {
			return err
		}

		ledger := tokens.NewLedger(stores.Tokens)
		if _, err := s.program.MintAs(ctx, ledger, anchors.rewardMint, callerKey, models.PerUnlockReward); err != nil {
			return wrapTokenErr(err, "failed to mint unlock reward")
		}
		if err := a.RecordUnlockReward(models.PerUnlockReward); err != nil {
			return err
		}
		if err := stores.Accounts.Update(ctx, a); err != nil {
			return wrapStoreErr(err, "failed to update account")
		}

		if res.BothComplete {
			beneficiaryKey, err := s.registry.UserKey(c.Beneficiary)
			if err != nil {
				return err
			}
			if _, err := s.program.MintAs(ctx, ledger, anchors.rewardMint, beneficiaryKey, models.ConnectionBonus); err != nil {
				return wrapTokenErr(err, "failed to mint connection bonus")
			}
		}
		if err := stores.Connections.Update(ctx, c); err != nil {
			return wrapStoreErr(err, "failed to update connection")
		}

		if err := appendEvent(ctx, stores, models.AggregateConnection, connectionID, now, models.Event{
			Type:         models.EventConnectionUnlocked,
			ConnectionID: connectionID,
			Identity:     caller,
			Side:         res.Side.String(),
			Amount:       models.PerUnlockReward,
		}); err != nil {
			return err
		}
		if res.BothComplete {
			if err := appendEvent(ctx, stores, models.AggregateConnection, connectionID, now, models.Event{
				Type:         models.EventConnectionCompleted,
				ConnectionID: connectionID,
				Beneficiary:  c.Beneficiary,
				Amount:       models.ConnectionBonus,
			}); err != nil {
				return err
			}
		}
		result = res
		beneficiary = c.Beneficiary
		return nil
	})
	if err != nil {
		return models.UnlockResult{}, err
	}

	span.SetAttributes(
		tracer.String(tracer.AttrSide, result.Side.String()),
		tracer.Bool(tracer.AttrCompleted, result.BothComplete),
	)
	if s.metrics != nil {
		s.metrics.IncUnlock(result.BothComplete)
	}
	s.incMinted(metrics.MintUnlock, models.PerUnlockReward)
	s.audit(ctx, models.EventConnectionUnlocked,
		"connection_id", connectionID,
		"identity", caller,
		"side", result.Side.String(),
	)
	if result.BothComplete {
		s.incMinted(metrics.MintBonus, models.ConnectionBonus)
		s.audit(ctx, models.EventConnectionCompleted,
			"connection_id", connectionID,
			"beneficiary", beneficiary,
			"amount", models.ConnectionBonus,
		)
	}
	return result, nil
}
