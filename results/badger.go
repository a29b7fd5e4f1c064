// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package results

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/absmach/brokerperf/perf"
	"github.com/dgraph-io/badger/v4"
)

const runPrefix = "run/"

// BadgerStore keeps runs in BadgerDB keyed by start time and run ID, so
// iteration order is chronological.
type BadgerStore struct {
	db     *badger.DB
	mu     sync.Mutex
	closed bool
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens (or creates) the database in dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	return openBadger(badger.DefaultOptions(dir))
}

// NewInMemoryBadgerStore opens a database that lives only in memory.
func NewInMemoryBadgerStore() (*BadgerStore, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true))
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	opts.Logger = nil
	opts.NumVersionsToKeep = 1

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Append stores res.
func (s *BadgerStore) Append(res perf.RunResult) error {
	if s.isClosed() {
		return ErrClosed
	}

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(res), data)
	})
}

// List returns runs oldest first.
func (s *BadgerStore) List(limit int) ([]perf.RunResult, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	var runs []perf.RunResult
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var r perf.RunResult
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", it.Item().Key(), err)
			}
			runs = append(runs, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tail(runs, limit), nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *BadgerStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func runKey(res perf.RunResult) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", runPrefix, res.Start.UnixNano(), res.ID))
}
