// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

// Package reconcile decides, per raw event, whether the event is new,
// resurfaced, or already notified, and keeps the event record store in
// step with that decision.
//
// The reconciler is the single writer over the store: all Lookup -> decide
// -> Insert/Update sequences happen on one goroutine, so two concurrently
// fetched duplicates of the same event can never both observe "absent"
// and both insert.
//
// For a given (event_id, event_type) key the classification sequence over
// the key's lifetime is at most: NEW once, then RESURFACED at most once
// (only if the event had no tickets when first seen), then SUPPRESSED
// forever. tickets_available is monotonic: it moves false -> true and
// never back.
package reconcile

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/gigwatch/gigwatch/internal/fetch"
	"github.com/gigwatch/gigwatch/internal/models"
	"github.com/gigwatch/gigwatch/internal/store"
)

// ErrMissingEventID marks a raw event without a dedup key. The source
// occasionally yields malformed list items; they are dropped and logged,
// never stored.
var ErrMissingEventID = errors.New("reconcile: raw event has no event id")

// Result is the reconciler's verdict for one raw event. Tickets is
// populated only for notify-worthy classifications; ticket quotes are
// fetched lazily because most events on a listings page are already
// known.
type Result struct {
	Event   models.RawEvent
	Class   models.Classification
	Tickets []models.TicketQuote
}

// Reconciler classifies raw events against the event record store.
type Reconciler struct {
	store   store.EventStore
	fetcher fetch.Fetcher
	logger  zerolog.Logger
}

// New creates a reconciler. The fetcher is used only for lazy ticket
// lookups on events that may need a notification.
func New(s store.EventStore, f fetch.Fetcher, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:   s,
		fetcher: f,
		logger:  logger.With().Str("component", "reconciler").Logger(),
	}
}

// Reconcile classifies one raw event and records the outcome in the
// store. Must be called from a single goroutine.
//
// Store invariant violations (duplicate insert, update of a missing key)
// are returned as errors wrapping store.ErrDuplicateKey or
// store.ErrNotFound; the caller skips the event and continues, since a
// violation indicates a logic bug rather than recoverable state.
func (r *Reconciler) Reconcile(ctx context.Context, ev models.RawEvent) (Result, error) {
	if ev.EventID == "" {
		return Result{}, ErrMissingEventID
	}

	record, err := r.store.Lookup(ctx, ev.EventID, ev.Type)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// First sighting: always notify-worthy, even without tickets,
		// to carry lineup and date information promptly.
		tickets := r.loadTickets(ctx, ev)
		if err := r.store.Insert(ctx, ev.EventID, ev.Type, len(tickets) > 0); err != nil {
			return Result{}, err
		}
		r.logger.Info().
			Str("event_id", ev.EventID).
			Str("event_type", string(ev.Type)).
			Str("name", ev.Name).
			Bool("tickets", len(tickets) > 0).
			Msg("new event recorded")
		return Result{Event: ev, Class: models.ClassNew, Tickets: tickets}, nil

	case err != nil:
		return Result{}, err

	case record.TicketsAvailable:
		// Already fully notified in a prior run.
		return Result{Event: ev, Class: models.ClassSuppressed}, nil

	default:
		// Seen before without tickets: resurface exactly once when
		// tickets first appear.
		tickets := r.loadTickets(ctx, ev)
		if len(tickets) == 0 {
			return Result{Event: ev, Class: models.ClassSuppressed}, nil
		}
		if err := r.store.Update(ctx, ev.EventID, ev.Type, true); err != nil {
			return Result{}, err
		}
		r.logger.Info().
			Str("event_id", ev.EventID).
			Str("event_type", string(ev.Type)).
			Str("name", ev.Name).
			Msg("tickets now available, resurfacing event")
		return Result{Event: ev, Class: models.ClassResurfaced, Tickets: tickets}, nil
	}
}

// loadTickets fetches ticket quotes for an event. A ticket fetch failure
// is logged and treated as "no tickets on sale".
func (r *Reconciler) loadTickets(ctx context.Context, ev models.RawEvent) []models.TicketQuote {
	if r.fetcher == nil || ev.EventURL == "" {
		return nil
	}
	tickets, err := r.fetcher.FetchTickets(ctx, ev.EventURL)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("event_id", ev.EventID).
			Str("event_url", ev.EventURL).
			Msg("ticket fetch failed, treating as no tickets")
		return nil
	}
	return tickets
}
