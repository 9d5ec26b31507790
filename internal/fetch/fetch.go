// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

// Package fetch retrieves candidate events and ticket quotes from the
// listings source.
//
// The package exposes the Fetcher interface consumed by the poller and a
// production HTTP implementation (Client) that scrapes listings pages.
// Client applies a shared rate limit across all workers, a circuit
// breaker around page retrieval, and bounded retry with exponential
// backoff for entity-level failures.
package fetch

import (
	"context"
	"fmt"

	"github.com/gigwatch/gigwatch/internal/models"
)

// Fetcher supplies candidate events for tracked entities.
type Fetcher interface {
	// FetchEvents returns the candidate event list for an entity.
	// On mid-list failure it returns the events extracted so far together
	// with a *FetchError; callers should process the partial results.
	FetchEvents(ctx context.Context, entity models.Entity) ([]models.RawEvent, error)

	// FetchTickets returns the ticket quotes currently on sale for an
	// event page. A failure here must never abort the run: callers log
	// the error and treat the quote list as empty.
	FetchTickets(ctx context.Context, eventURL string) ([]models.TicketQuote, error)
}

// FetchError is an entity-level retrieval failure: the listings page for
// the entity could not be fetched or decoded.
type FetchError struct {
	Entity models.Entity
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch events for %s %q: %v", e.Entity.Kind, e.Entity.Name, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is a per-snippet extraction failure: one list item on an
// otherwise readable page is malformed (missing id or title). The rest of
// the page is still processed.
type ParseError struct {
	Entity models.Entity
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse event for %s %q: %s", e.Entity.Kind, e.Entity.Name, e.Detail)
}
