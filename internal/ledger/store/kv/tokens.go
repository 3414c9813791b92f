package kv

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"memoledger/internal/identity"
	"memoledger/internal/tokens"
	"memoledger/pkg/platform/sentinel"
)

// mint record: authority(32) | decimals(1) | supply(8)
const mintRecordSize = identity.KeySize + 1 + 8

type tokenStore struct {
	txn *badger.Txn
}

func (s *tokenStore) GetMint(_ context.Context, id identity.Key) (*tokens.Mint, error) {
	item, err := s.txn.Get(keyed(mintPrefix, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	if len(raw) != mintRecordSize {
		return nil, fmt.Errorf("mint %s: record length %d", id, len(raw))
	}
	m := &tokens.Mint{ID: id, Decimals: raw[identity.KeySize]}
	copy(m.Authority[:], raw[:identity.KeySize])
	m.Supply = tokens.Amount(binary.BigEndian.Uint64(raw[identity.KeySize+1:]))
	return m, nil
}

func (s *tokenStore) CreateMint(_ context.Context, m *tokens.Mint) error {
	key := keyed(mintPrefix, m.ID)
	found, err := exists(s.txn, key)
	if err != nil {
		return err
	}
	if found {
		return sentinel.ErrConflict
	}
	return s.txn.Set(key, encodeMint(m))
}

func (s *tokenStore) UpdateMint(_ context.Context, m *tokens.Mint) error {
	key := keyed(mintPrefix, m.ID)
	found, err := exists(s.txn, key)
	if err != nil {
		return err
	}
	if !found {
		return sentinel.ErrNotFound
	}
	return s.txn.Set(key, encodeMint(m))
}

func (s *tokenStore) GetBalance(_ context.Context, owner, mint identity.Key) (tokens.Amount, error) {
	item, err := s.txn.Get(keyed(balancePrefix, owner, mint))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var amount tokens.Amount
	err = item.Value(func(v []byte) error {
		if len(v) != 8 {
			return fmt.Errorf("balance record length %d", len(v))
		}
		amount = tokens.Amount(binary.BigEndian.Uint64(v))
		return nil
	})
	return amount, err
}

func (s *tokenStore) SetBalance(_ context.Context, owner, mint identity.Key, amount tokens.Amount) error {
	return s.txn.Set(keyed(balancePrefix, owner, mint), binary.BigEndian.AppendUint64(nil, uint64(amount)))
}

func encodeMint(m *tokens.Mint) []byte {
	out := make([]byte, 0, mintRecordSize)
	out = append(out, m.Authority[:]...)
	out = append(out, m.Decimals)
	return binary.BigEndian.AppendUint64(out, uint64(m.Supply))
}
