package kv

import (
	"context"
	"encoding"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"memoledger/internal/identity"
	"memoledger/internal/ledger/models"
	"memoledger/pkg/platform/sentinel"
)

const (
	globalKey        = "ledger/global"
	accountPrefix    = "ledger/account/"
	connectionPrefix = "ledger/connection/"
	mintPrefix       = "tokens/mint/"
	balancePrefix    = "tokens/balance/"
	outboxSeqKey     = "outbox/seq"
	outboxPending    = "outbox/pending/"
	outboxIndex      = "outbox/id/"
	outboxDone       = "outbox/done/"
)

func keyed(prefix string, parts ...identity.Key) []byte {
	out := make([]byte, 0, len(prefix)+len(parts)*identity.KeySize)
	out = append(out, prefix...)
	for _, p := range parts {
		out = append(out, p[:]...)
	}
	return out
}

func load(txn *badger.Txn, key []byte, into encoding.BinaryUnmarshaler) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(into.UnmarshalBinary)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func put(txn *badger.Txn, key []byte, v encoding.BinaryMarshaler, mustExist bool) error {
	found, err := exists(txn, key)
	if err != nil {
		return err
	}
	switch {
	case mustExist && !found:
		return sentinel.ErrNotFound
	case !mustExist && found:
		return sentinel.ErrConflict
	}
	raw, err := v.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return txn.Set(key, raw)
}

type globalStore struct {
	txn *badger.Txn
}

func (s *globalStore) Get(_ context.Context) (*models.GlobalState, error) {
	var g models.GlobalState
	if err := load(s.txn, []byte(globalKey), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *globalStore) Create(_ context.Context, g *models.GlobalState) error {
	return put(s.txn, []byte(globalKey), g, false)
}

func (s *globalStore) Update(_ context.Context, g *models.GlobalState) error {
	return put(s.txn, []byte(globalKey), g, true)
}

type accountStore struct {
	txn *badger.Txn
}

func (s *accountStore) Get(_ context.Context, key identity.Key) (*models.UserAccount, error) {
	var a models.UserAccount
	if err := load(s.txn, keyed(accountPrefix, key), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *accountStore) Create(_ context.Context, a *models.UserAccount) error {
	return put(s.txn, keyed(accountPrefix, a.Key), a, false)
}

func (s *accountStore) Update(_ context.Context, a *models.UserAccount) error {
	return put(s.txn, keyed(accountPrefix, a.Key), a, true)
}

type connectionStore struct {
	txn *badger.Txn
}

func (s *connectionStore) Get(_ context.Context, key identity.Key) (*models.Connection, error) {
	var c models.Connection
	if err := load(s.txn, keyed(connectionPrefix, key), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *connectionStore) Create(_ context.Context, c *models.Connection) error {
	return put(s.txn, keyed(connectionPrefix, c.Key), c, false)
}

func (s *connectionStore) Update(_ context.Context, c *models.Connection) error {
	return put(s.txn, keyed(connectionPrefix, c.Key), c, true)
}
