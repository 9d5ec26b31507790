// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/gigwatch/gigwatch/internal/models"
)

// openTestBadger opens a throwaway BadgerStore under t.TempDir.
func openTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

// stores returns both implementations so the contract tests run against
// each.
func stores(t *testing.T) map[string]EventStore {
	t.Helper()
	return map[string]EventStore{
		"memory": NewMemoryStore(),
		"badger": openTestBadger(t),
	}
}

func TestEventStore_InsertLookup(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Lookup(ctx, "ev001", models.KindVenue); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Lookup on empty store: got %v, want ErrNotFound", err)
			}

			if err := s.Insert(ctx, "ev001", models.KindVenue, false); err != nil {
				t.Fatalf("Insert: %v", err)
			}

			rec, err := s.Lookup(ctx, "ev001", models.KindVenue)
			if err != nil {
				t.Fatalf("Lookup after Insert: %v", err)
			}
			if rec.EventID != "ev001" || rec.Type != models.KindVenue || rec.TicketsAvailable {
				t.Errorf("Lookup = %+v, want {ev001 venue false}", rec)
			}

			// Same event_id under a different type is a distinct key.
			if _, err := s.Lookup(ctx, "ev001", models.KindArtist); !errors.Is(err, ErrNotFound) {
				t.Errorf("Lookup other type: got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestEventStore_InsertDuplicate(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Insert(ctx, "ev002", models.KindArtist, true); err != nil {
				t.Fatalf("Insert: %v", err)
			}
			if err := s.Insert(ctx, "ev002", models.KindArtist, false); !errors.Is(err, ErrDuplicateKey) {
				t.Errorf("duplicate Insert: got %v, want ErrDuplicateKey", err)
			}

			// Duplicate after commit as well.
			if err := s.CommitBatch(ctx); err != nil {
				t.Fatalf("CommitBatch: %v", err)
			}
			if err := s.Insert(ctx, "ev002", models.KindArtist, false); !errors.Is(err, ErrDuplicateKey) {
				t.Errorf("duplicate Insert after commit: got %v, want ErrDuplicateKey", err)
			}
		})
	}
}

func TestEventStore_UpdateMissing(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Update(ctx, "nope", models.KindPromoter, true); !errors.Is(err, ErrNotFound) {
				t.Errorf("Update missing: got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestEventStore_UpdateVisibleBeforeCommit(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Insert(ctx, "ev003", models.KindVenue, false); err != nil {
				t.Fatalf("Insert: %v", err)
			}
			if err := s.Update(ctx, "ev003", models.KindVenue, true); err != nil {
				t.Fatalf("Update: %v", err)
			}

			rec, err := s.Lookup(ctx, "ev003", models.KindVenue)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if !rec.TicketsAvailable {
				t.Error("staged update not visible through Lookup")
			}
		})
	}
}

func TestBadgerStore_CommitSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Insert(ctx, "ev010", models.KindVenue, false); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(ctx, "ev011", models.KindArtist, true); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.CommitBatch(ctx); err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() {
		if err := reopened.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}()

	rec, err := reopened.Lookup(ctx, "ev010", models.KindVenue)
	if err != nil {
		t.Fatalf("Lookup after reopen: %v", err)
	}
	if rec.TicketsAvailable {
		t.Error("ev010 tickets_available = true, want false")
	}
	rec, err = reopened.Lookup(ctx, "ev011", models.KindArtist)
	if err != nil {
		t.Fatalf("Lookup after reopen: %v", err)
	}
	if !rec.TicketsAvailable {
		t.Error("ev011 tickets_available = false, want true")
	}
}

func TestBadgerStore_UncommittedNotDurable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Insert(ctx, "ev020", models.KindVenue, true); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := s.PendingCount(); got != 1 {
		t.Fatalf("PendingCount = %d, want 1", got)
	}
	// Close without committing; next run must not see the record.
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() {
		if err := reopened.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}()

	if _, err := reopened.Lookup(ctx, "ev020", models.KindVenue); !errors.Is(err, ErrNotFound) {
		t.Errorf("uncommitted record survived reopen: %v", err)
	}
}
