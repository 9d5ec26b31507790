// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/gigwatch/gigwatch/internal/models"
)

// BadgerStore implements EventStore on BadgerDB. Run mutations are staged
// in memory and flushed by CommitBatch through a single WriteBatch.
type BadgerStore struct {
	db *badger.DB

	mu      sync.Mutex
	pending map[string]*models.EventRecord
}

// Open opens (or creates) a BadgerDB event store at the given path.
func Open(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return NewBadgerStore(db), nil
}

// NewBadgerStore wraps an already-open BadgerDB handle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{
		db:      db,
		pending: make(map[string]*models.EventRecord),
	}
}

// Close closes the underlying database. Staged, uncommitted mutations are
// discarded.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Lookup returns the record for the key, or ErrNotFound. Staged mutations
// from the current run shadow committed state.
func (s *BadgerStore) Lookup(ctx context.Context, eventID string, kind models.EntityKind) (*models.EventRecord, error) {
	key := recordKey(eventID, kind)

	s.mu.Lock()
	if rec, ok := s.pending[key]; ok {
		out := *rec
		s.mu.Unlock()
		return &out, nil
	}
	s.mu.Unlock()

	var record models.EventRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get event record: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Insert stages a new record, failing with ErrDuplicateKey if the key
// exists staged or committed.
func (s *BadgerStore) Insert(ctx context.Context, eventID string, kind models.EntityKind, ticketsAvailable bool) error {
	if _, err := s.Lookup(ctx, eventID, kind); err == nil {
		return ErrDuplicateKey
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[recordKey(eventID, kind)] = &models.EventRecord{
		EventID:          eventID,
		Type:             kind,
		TicketsAvailable: ticketsAvailable,
	}
	return nil
}

// Update stages a change to an existing record, failing with ErrNotFound
// if the key is absent.
func (s *BadgerStore) Update(ctx context.Context, eventID string, kind models.EntityKind, ticketsAvailable bool) error {
	rec, err := s.Lookup(ctx, eventID, kind)
	if err != nil {
		return err
	}
	rec.TicketsAvailable = ticketsAvailable

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[recordKey(eventID, kind)] = rec
	return nil
}

// CommitBatch flushes all staged mutations through one WriteBatch. On
// success the staging area is cleared; on failure it is retained so the
// caller can decide whether to retry.
func (s *BadgerStore) CommitBatch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for key, rec := range s.pending {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal event record %s: %w", key, err)
		}
		if err := wb.Set([]byte(key), data); err != nil {
			return fmt.Errorf("batch set %s: %w", key, err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush event record batch: %w", err)
	}

	s.pending = make(map[string]*models.EventRecord)
	return nil
}

// PendingCount returns the number of staged, uncommitted mutations.
func (s *BadgerStore) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
