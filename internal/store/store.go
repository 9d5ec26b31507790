// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

// Package store provides the durable event record store backing event
// deduplication. The store is a key-value map from (event_id, event_type)
// to a tickets_available flag.
//
// Mutations made during a run are staged in memory and become durable only
// when CommitBatch flushes them, so a crashed run leaves the previous
// run's state intact and the next run re-discovers the same events rather
// than seeing torn state.
//
// The reconciler is the store's single writer; implementations still
// guard internal state with a mutex so misuse fails safe instead of
// corrupting records.
package store

import (
	"context"
	"errors"

	"github.com/gigwatch/gigwatch/internal/models"
)

var (
	// ErrDuplicateKey is returned by Insert when a record already exists
	// for the (event_id, event_type) key. Callers are expected to Lookup
	// first; hitting this indicates a logic bug upstream.
	ErrDuplicateKey = errors.New("store: duplicate event key")

	// ErrNotFound is returned by Lookup when no record exists for the
	// key, and by Update when asked to mutate an absent record.
	ErrNotFound = errors.New("store: event record not found")
)

// EventStore is the persistence contract for event dedup records.
type EventStore interface {
	// Lookup returns the record for the key, or ErrNotFound.
	// Records staged by Insert/Update in the current run are visible.
	Lookup(ctx context.Context, eventID string, kind models.EntityKind) (*models.EventRecord, error)

	// Insert stages a new record. Returns ErrDuplicateKey if the key
	// already exists, staged or committed.
	Insert(ctx context.Context, eventID string, kind models.EntityKind, ticketsAvailable bool) error

	// Update stages a change to an existing record. Returns ErrNotFound
	// if the key does not exist, staged or committed.
	Update(ctx context.Context, eventID string, kind models.EntityKind, ticketsAvailable bool) error

	// CommitBatch durably persists all staged mutations atomically with
	// respect to the next run. Called once at the end of a run.
	CommitBatch(ctx context.Context) error
}

// recordKey builds the storage key for an (event_id, event_type) pair.
// The kind comes first so records of one type are contiguous under
// prefix iteration.
func recordKey(eventID string, kind models.EntityKind) string {
	return "event:" + string(kind) + ":" + eventID
}
