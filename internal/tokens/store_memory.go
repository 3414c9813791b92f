package tokens

import (
	"context"
	"sync"

	"memoledger/internal/identity"
	"memoledger/pkg/platform/sentinel"
)

type balanceKey struct {
	owner identity.Key
	mint  identity.Key
}

// InMemoryStore is a map-backed Store for tests and tooling. It is not
// transactional; callers needing rollback use a storage backend.
type InMemoryStore struct {
	mu       sync.RWMutex
	mints    map[identity.Key]Mint
	balances map[balanceKey]Amount
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		mints:    make(map[identity.Key]Mint),
		balances: make(map[balanceKey]Amount),
	}
}

func (s *InMemoryStore) GetMint(_ context.Context, id identity.Key) (*Mint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mints[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &m, nil
}

func (s *InMemoryStore) CreateMint(_ context.Context, mint *Mint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mints[mint.ID]; ok {
		return sentinel.ErrConflict
	}
	s.mints[mint.ID] = *mint
	return nil
}

func (s *InMemoryStore) UpdateMint(_ context.Context, mint *Mint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mints[mint.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.mints[mint.ID] = *mint
	return nil
}

func (s *InMemoryStore) GetBalance(_ context.Context, owner, mint identity.Key) (Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[balanceKey{owner: owner, mint: mint}], nil
}

func (s *InMemoryStore) SetBalance(_ context.Context, owner, mint identity.Key, amount Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[balanceKey{owner: owner, mint: mint}] = amount
	return nil
}
