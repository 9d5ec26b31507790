// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

package store

import (
	"context"
	"sync"

	"github.com/gigwatch/gigwatch/internal/models"
)

// MemoryStore implements EventStore entirely in memory. It mirrors the
// staged/committed split of BadgerStore so tests can exercise commit
// atomicity without touching disk.
type MemoryStore struct {
	mu        sync.Mutex
	committed map[string]models.EventRecord
	pending   map[string]models.EventRecord
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		committed: make(map[string]models.EventRecord),
		pending:   make(map[string]models.EventRecord),
	}
}

// Lookup returns the record for the key, or ErrNotFound.
func (s *MemoryStore) Lookup(ctx context.Context, eventID string, kind models.EntityKind) (*models.EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(eventID, kind)
	if rec, ok := s.pending[key]; ok {
		out := rec
		return &out, nil
	}
	if rec, ok := s.committed[key]; ok {
		out := rec
		return &out, nil
	}
	return nil, ErrNotFound
}

// Insert stages a new record, failing with ErrDuplicateKey on an existing
// key.
func (s *MemoryStore) Insert(ctx context.Context, eventID string, kind models.EntityKind, ticketsAvailable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(eventID, kind)
	if _, ok := s.pending[key]; ok {
		return ErrDuplicateKey
	}
	if _, ok := s.committed[key]; ok {
		return ErrDuplicateKey
	}
	s.pending[key] = models.EventRecord{
		EventID:          eventID,
		Type:             kind,
		TicketsAvailable: ticketsAvailable,
	}
	return nil
}

// Update stages a change to an existing record, failing with ErrNotFound
// on an absent key.
func (s *MemoryStore) Update(ctx context.Context, eventID string, kind models.EntityKind, ticketsAvailable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(eventID, kind)
	rec, ok := s.pending[key]
	if !ok {
		rec, ok = s.committed[key]
	}
	if !ok {
		return ErrNotFound
	}
	rec.TicketsAvailable = ticketsAvailable
	s.pending[key] = rec
	return nil
}

// CommitBatch moves all staged mutations into committed state.
func (s *MemoryStore) CommitBatch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, rec := range s.pending {
		s.committed[key] = rec
	}
	s.pending = make(map[string]models.EventRecord)
	return nil
}

// CommittedCount returns the number of durably committed records.
func (s *MemoryStore) CommittedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.committed)
}

// PendingCount returns the number of staged, uncommitted mutations.
func (s *MemoryStore) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
