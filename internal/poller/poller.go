// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

// Package poller runs one poll cycle end to end: fetch listings for
// every tracked entity, reconcile each raw event against the record
// store, aggregate matches into per-user digests, commit the store, and
// dispatch the digests.
//
// Fetches fan out across a bounded worker pool; everything that touches
// the store or the aggregator runs on the single reconciliation
// goroutine. Cancellation stops new fetches and sends, but the store
// commit still runs so that notifications already decided in this run
// are never re-sent by the next one.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gigwatch/gigwatch/internal/digest"
	"github.com/gigwatch/gigwatch/internal/fetch"
	"github.com/gigwatch/gigwatch/internal/match"
	"github.com/gigwatch/gigwatch/internal/metrics"
	"github.com/gigwatch/gigwatch/internal/models"
	"github.com/gigwatch/gigwatch/internal/notify"
	"github.com/gigwatch/gigwatch/internal/reconcile"
	"github.com/gigwatch/gigwatch/internal/store"
)

// ErrCommitFailed wraps a store commit failure. It is the one error that
// must make the process exit non-zero: digests may already be out, and
// without the commit the next run would send them again.
var ErrCommitFailed = errors.New("poller: store commit failed")

// Poller wires one run's collaborators together.
type Poller struct {
	fetcher    fetch.Fetcher
	reconciler *reconcile.Reconciler
	store      store.EventStore
	dispatcher *notify.Dispatcher
	metrics    *metrics.RunMetrics
	workers    int
	logger     zerolog.Logger
}

// New creates a poller. workers bounds concurrent entity fetches; values
// below one fall back to one.
func New(
	fetcher fetch.Fetcher,
	reconciler *reconcile.Reconciler,
	st store.EventStore,
	dispatcher *notify.Dispatcher,
	m *metrics.RunMetrics,
	workers int,
	logger zerolog.Logger,
) *Poller {
	if workers < 1 {
		workers = 1
	}
	return &Poller{
		fetcher:    fetcher,
		reconciler: reconciler,
		store:      st,
		dispatcher: dispatcher,
		metrics:    m,
		workers:    workers,
		logger:     logger.With().Str("component", "poller").Logger(),
	}
}

// Run executes one poll cycle for the given users and tracked entities.
// The returned report covers dispatch only; per-stage counts live in the
// run metrics. A non-nil error means the run must not be considered
// clean; errors wrapping ErrCommitFailed additionally mean the dedup
// state on disk is behind the notifications that went out.
func (p *Poller) Run(ctx context.Context, users []models.User, entities []models.Entity) (notify.Report, error) {
	p.logger.Info().
		Int("users", len(users)).
		Int("entities", len(entities)).
		Int("workers", p.workers).
		Msg("poll run starting")

	events := p.fetchAll(ctx, entities)
	aggregator := p.reconcileAll(ctx, users, events)

	// The commit must survive cancellation: classifications already made
	// this run have to be durable before the next run can be trusted.
	if err := p.store.CommitBatch(context.WithoutCancel(ctx)); err != nil {
		return notify.Report{}, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}

	digests, err := aggregator.Digests()
	if err != nil {
		return notify.Report{}, fmt.Errorf("finalize digests: %w", err)
	}
	if len(digests) == 0 {
		p.logger.Info().Msg("no matches this run, nothing to dispatch")
		return notify.Report{}, ctx.Err()
	}
	if ctx.Err() != nil {
		p.logger.Warn().
			Int("digests", len(digests)).
			Msg("run canceled before dispatch, digests not sent")
		return notify.Report{}, ctx.Err()
	}

	report := p.dispatcher.Dispatch(ctx, digests)
	p.metrics.DigestsSent.Add(float64(report.Sent))
	p.metrics.DigestsFailed.Add(float64(report.Failed))
	return report, nil
}

// fetchAll fans entity list fetches out over the worker pool and returns
// the channel of raw events, closed once every worker is done.
func (p *Poller) fetchAll(ctx context.Context, entities []models.Entity) <-chan models.RawEvent {
	jobs := make(chan models.Entity, len(entities))
	for _, entity := range entities {
		jobs <- entity
	}
	close(jobs)

	events := make(chan models.RawEvent, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entity := range jobs {
				if ctx.Err() != nil {
					return
				}
				p.logger.Debug().
					Str("kind", string(entity.Kind)).
					Str("name", entity.Name).
					Msg("checking entity listings")
				raw, err := p.fetcher.FetchEvents(ctx, entity)
				if err != nil {
					p.metrics.FetchErrors.Inc()
					p.logger.Error().
						Err(err).
						Str("kind", string(entity.Kind)).
						Str("tag", entity.Tag).
						Int("partial_events", len(raw)).
						Msg("entity fetch failed")
				}
				// Events extracted before a mid-page failure still count.
				for _, ev := range raw {
					events <- ev
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(events)
	}()
	return events
}

// reconcileAll drains the event channel on the calling goroutine,
// classifying each event and appending notify-worthy matches to the
// per-user digests. This is the single-writer section: store mutations
// and aggregator writes happen only here.
func (p *Poller) reconcileAll(ctx context.Context, users []models.User, events <-chan models.RawEvent) *digest.Aggregator {
	aggregator := digest.NewAggregator()

	for ev := range events {
		p.metrics.EventsSeen.Inc()

		result, err := p.reconciler.Reconcile(ctx, ev)
		switch {
		case errors.Is(err, reconcile.ErrMissingEventID):
			p.metrics.EventsDropped.Inc()
			p.logger.Warn().
				Str("name", ev.Name).
				Str("event_url", ev.EventURL).
				Msg("dropping event without id")
			continue
		case err != nil:
			p.metrics.ReconcileErrors.Inc()
			p.logger.Error().
				Err(err).
				Str("event_id", ev.EventID).
				Str("event_type", string(ev.Type)).
				Msg("reconcile failed, skipping event")
			continue
		}

		switch result.Class {
		case models.ClassNew:
			p.metrics.EventsNew.Inc()
		case models.ClassResurfaced:
			p.metrics.EventsResurfaced.Inc()
		case models.ClassSuppressed:
			p.metrics.EventsSuppressed.Inc()
		}
		if !result.Class.NotifyWorthy() {
			continue
		}

		for _, user := range match.Users(result.Event, users) {
			if err := aggregator.Add(user, result.Event, result.Tickets); err != nil {
				p.logger.Error().
					Err(err).
					Str("recipient", user.Email).
					Str("event_id", result.Event.EventID).
					Msg("digest render failed, skipping match")
			}
		}
	}
	return aggregator
}
