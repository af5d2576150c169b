// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Store persists exact-tier entries across restarts. Persistence is
// best-effort: a failing store degrades the cache to memory-only, it
// never fails a request.
type Store interface {
	// Load returns all persisted entries.
	Load() ([]Entry, error)

	// Save writes one entry.
	Save(entry Entry) error

	// Delete removes an evicted entry.
	Delete(key string) error

	// Close releases the store.
	Close() error
}

// BadgerStore persists entries in a local badger database.
//
// Thread Safety: Safe for concurrent use.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the database at dir. Badger's own
// logging is silenced; the cache reports store failures itself.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache store at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// Load implements Store. Undecodable records are skipped, not fatal: a
// format change should cost stale entries, not startup.
func (s *BadgerStore) Load() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return nil
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load cache store: %w", err)
	}
	return entries, nil
}

// Save implements Store.
func (s *BadgerStore) Save(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(entry.Key), data)
	})
}

// Delete implements Store.
func (s *BadgerStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
