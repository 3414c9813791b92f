package service

import (
	"context"

	"memoledger/internal/identity"
	"memoledger/internal/ledger/models"
	"memoledger/internal/ledger/ports"
	"memoledger/internal/tokens"
)

// Balances are an account's holdings in base units.
type Balances struct {
	Personal tokens.Amount
	Reward   tokens.Amount
}

// GetGlobalState returns the ledger singleton.
func (s *Service) GetGlobalState(ctx context.Context) (*models.GlobalState, error) {
	var g *models.GlobalState
	err := s.view(ctx, func(ctx context.Context, stores ports.Stores) error {
		var err error
		g, err = loadGlobal(ctx, stores)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetAccount returns the account registered for externalID.
func (s *Service) GetAccount(ctx context.Context, externalID string) (*models.UserAccount, error) {
	key, err := s.registry.UserKey(externalID)
	if err != nil {
		return nil, err
	}
	var a *models.UserAccount
	err = s.view(ctx, func(ctx context.Context, stores ports.Stores) error {
		a, err = loadAccount(ctx, stores, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetConnection returns the connection recorded under connectionID.
func (s *Service) GetConnection(ctx context.Context, connectionID string) (*models.Connection, error) {
	key, err := s.registry.DeriveAccountKey(identity.NamespaceConnection, connectionID)
	if err != nil {
		return nil, err
	}
	var c *models.Connection
	err = s.view(ctx, func(ctx context.Context, stores ports.Stores) error {
		c, err = loadConnection(ctx, stores, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Balances returns externalID's personal and reward token balances. Unknown
// identities have zero balances; the ledger must be initialized.
func (s *Service) Balances(ctx context.Context, externalID string) (*Balances, error) {
	key, err := s.registry.UserKey(externalID)
	if err != nil {
		return nil, err
	}
	personalMint, err := s.registry.DeriveAccountKey(identity.NamespacePersonalMint, externalID)
	if err != nil {
		return nil, err
	}
	var out Balances
	err = s.view(ctx, func(ctx context.Context, stores ports.Stores) error {
		g, err := loadGlobal(ctx, stores)
		if err != nil {
			return err
		}
		ledger := tokens.NewLedger(stores.Tokens)
		if out.Personal, err = ledger.BalanceOf(ctx, key, personalMint); err != nil {
			return wrapStoreErr(err, "failed to read personal balance")
		}
		if out.Reward, err = ledger.BalanceOf(ctx, key, g.RewardMint); err != nil {
			return wrapStoreErr(err, "failed to read reward balance")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// EscrowBalance returns the personal tokens of externalID held in escrow.
func (s *Service) EscrowBalance(ctx context.Context, externalID string) (tokens.Amount, error) {
	personalMint, err := s.registry.DeriveAccountKey(identity.NamespacePersonalMint, externalID)
	if err != nil {
		return 0, err
	}
	var out tokens.Amount
	err = s.view(ctx, func(ctx context.Context, stores ports.Stores) error {
		g, err := loadGlobal(ctx, stores)
		if err != nil {
			return err
		}
		out, err = tokens.NewLedger(stores.Tokens).BalanceOf(ctx, g.EscrowAccount, personalMint)
		return wrapStoreErr(err, "failed to read escrow balance")
	})
	return out, err
}

// RewardSupply returns the total reward tokens issued.
func (s *Service) RewardSupply(ctx context.Context) (tokens.Amount, error) {
	var out tokens.Amount
	err := s.view(ctx, func(ctx context.Context, stores ports.Stores) error {
		g, err := loadGlobal(ctx, stores)
		if err != nil {
			return err
		}
		mint, err := tokens.NewLedger(stores.Tokens).MintInfo(ctx, g.RewardMint)
		if err != nil {
			return wrapStoreErr(err, "failed to read reward mint")
		}
		out = mint.Supply
		return nil
	})
	return out, err
}
