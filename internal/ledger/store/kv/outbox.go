package kv

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"memoledger/pkg/platform/outbox"
	"memoledger/pkg/platform/sentinel"
)

// Outbox keys:
//
//	outbox/pending/<seq:8><id:16>            -> entry
//	outbox/id/<id:16>                        -> pending key
//	outbox/done/<processed_unix_nano:8><id:16> -> entry
//
// Pending keys sort in append order, so prefix iteration yields commit order per aggregate.

type entryRecord struct {
	ID            uuid.UUID  `json:"id"`
	AggregateType string     `json:"aggregate_type"`
	AggregateID   string     `json:"aggregate_id"`
	EventType     string     `json:"event_type"`
	Payload       []byte     `json:"payload"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

func toRecord(e *outbox.Entry) entryRecord {
	return entryRecord(*e)
}

func (r entryRecord) entry() *outbox.Entry {
	e := outbox.Entry(r)
	return &e
}

type txOutbox struct {
	txn *badger.Txn
	seq *badger.Sequence
}

// Append writes entry into the enclosing transaction.
func (o *txOutbox) Append(_ context.Context, entry *outbox.Entry) error {
	n, err := o.seq.Next()
	if err != nil {
		return fmt.Errorf("outbox sequence: %w", err)
	}
	raw, err := json.Marshal(toRecord(entry))
	if err != nil {
		return fmt.Errorf("encode outbox entry: %w", err)
	}
	pending := make([]byte, 0, len(outboxPending)+8+16)
	pending = append(pending, outboxPending...)
	pending = binary.BigEndian.AppendUint64(pending, n)
	pending = append(pending, entry.ID[:]...)

	if err := o.txn.Set(pending, raw); err != nil {
		return err
	}
	return o.txn.Set(indexKey(entry.ID), pending)
}

func indexKey(id uuid.UUID) []byte {
	return append([]byte(outboxIndex), id[:]...)
}

func doneKey(processedAt time.Time, id uuid.UUID) []byte {
	out := make([]byte, 0, len(outboxDone)+8+16)
	out = append(out, outboxDone...)
	out = binary.BigEndian.AppendUint64(out, uint64(processedAt.UnixNano()))
	return append(out, id[:]...)
}

// OutboxStore is the publisher-side view of the outbox. It implements outbox.Store.
type OutboxStore struct {
	db *DB
}

// Outbox returns the publisher-side outbox store.
func (d *DB) Outbox() *OutboxStore {
	return &OutboxStore{db: d}
}

// Append writes a standalone entry in its own transaction.
func (s *OutboxStore) Append(ctx context.Context, entry *outbox.Entry) error {
	return s.db.db.Update(func(txn *badger.Txn) error {
		return (&txOutbox{txn: txn, seq: s.db.seq}).Append(ctx, entry)
	})
}

// FetchUnprocessed returns up to limit pending entries in append order.
func (s *OutboxStore) FetchUnprocessed(_ context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	var out []*outbox.Entry
	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(outboxPending)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(out) < limit; it.Next() {
			var rec entryRecord
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
				return fmt.Errorf("decode outbox entry: %w", err)
			}
			out = append(out, rec.entry())
		}
		return nil
	})
	return out, err
}

// MarkProcessed moves a pending entry to the processed keyspace.
func (s *OutboxStore) MarkProcessed(_ context.Context, id uuid.UUID, processedAt time.Time) error {
	return s.db.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("outbox entry %s: %w", id, sentinel.ErrNotFound)
		}
		if err != nil {
			return err
		}
		pending, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		entryItem, err := txn.Get(pending)
		if err != nil {
			return fmt.Errorf("outbox entry %s: %w", id, err)
		}
		var rec entryRecord
		if err := entryItem.Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
			return err
		}
		at := processedAt.UTC()
		rec.ProcessedAt = &at
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := txn.Delete(pending); err != nil {
			return err
		}
		if err := txn.Delete(indexKey(id)); err != nil {
			return err
		}
		return txn.Set(doneKey(at, id), raw)
	})
}

// CountPending counts pending entries.
func (s *OutboxStore) CountPending(_ context.Context) (int64, error) {
	var n int64
	err := s.db.db.View(func(txn *badger.Txn) error {
		n = countPrefix(txn, []byte(outboxPending))
		return nil
	})
	return n, err
}

// DeleteProcessedBefore removes processed entries stamped before the cutoff.
func (s *OutboxStore) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	var keys [][]byte
	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(outboxDone)
		it := txn.NewIterator(opts)
		defer it.Close()

		cutoff := uint64(before.UnixNano())
		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().KeyCopy(nil)
			if binary.BigEndian.Uint64(k[len(outboxDone):]) >= cutoff {
				break
			}
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	wb := s.db.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

func countPrefix(txn *badger.Txn, prefix []byte) int64 {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var n int64
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n
}
