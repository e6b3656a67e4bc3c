// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package audit

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// decisionPrefix namespaces decision keys in the badger keyspace.
const decisionPrefix = "decision:"

// BadgerStore implements Store on an embedded badger database. Keys are
// prefixed with a zero-padded nanosecond timestamp so time-range scans are
// prefix iterations; entries carry a TTL matching the retention window.
type BadgerStore struct {
	db        *badger.DB
	retention time.Duration
}

// NewBadgerStore opens (or creates) the store at path. A zero retention
// disables the write-time TTL; retention cleanup still works via
// DeleteBefore.
func NewBadgerStore(path string, retention time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	return &BadgerStore{db: db, retention: retention}, nil
}

func decisionKey(d *Decision) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", decisionPrefix, d.Timestamp.UnixNano(), d.ID))
}

// Save persists one decision.
func (s *BadgerStore) Save(_ context.Context, d *Decision) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(decisionKey(d), data)
		if s.retention > 0 {
			entry = entry.WithTTL(s.retention)
		}
		return txn.SetEntry(entry)
	})
}

// Query returns matching decisions, newest first.
func (s *BadgerStore) Query(ctx context.Context, filter QueryFilter) ([]Decision, error) {
	matched := make([]Decision, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(decisionPrefix)
		// Reverse iteration walks newest keys first (timestamp-prefixed).
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// With Reverse set, seek past the end of the prefix range.
		seek := append([]byte(decisionPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix([]byte(decisionPrefix)); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			var d Decision
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			})
			if err != nil {
				return err
			}

			if !filter.matches(&d) {
				continue
			}
			matched = append(matched, d)
			if filter.Limit > 0 && len(matched) >= filter.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matched, nil
}

// Count returns the number of matching decisions.
func (s *BadgerStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	noLimit := filter
	noLimit.Limit = 0
	matched, err := s.Query(ctx, noLimit)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// DeleteBefore removes decisions older than the cutoff.
func (s *BadgerStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	end := []byte(fmt.Sprintf("%s%020d", decisionPrefix, cutoff.UnixNano()))

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(decisionPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix([]byte(decisionPrefix)); it.Next() {
			key := it.Item().KeyCopy(nil)
			if string(key) >= string(end) {
				break
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
