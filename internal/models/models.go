// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

// Package models defines the core domain types shared across Gigwatch:
// tracked entities, raw events produced by the listings fetcher, persisted
// event records, ticket quotes, and user subscriptions.
package models

// EntityKind identifies what a tracked entity is on the listings source.
// It doubles as the event type half of the (event_id, event_type) dedup
// key, so its string values are part of the on-disk format.
type EntityKind string

const (
	// KindVenue is a club or concert venue page.
	KindVenue EntityKind = "venue"

	// KindArtist is an artist or DJ page.
	KindArtist EntityKind = "artist"

	// KindPromoter is a promoter page.
	KindPromoter EntityKind = "promoter"
)

// ValidEntityKinds lists all supported entity kinds.
var ValidEntityKinds = []EntityKind{
	KindVenue,
	KindArtist,
	KindPromoter,
}

// IsValid reports whether the kind is one of the supported values.
func (k EntityKind) IsValid() bool {
	switch k {
	case KindVenue, KindArtist, KindPromoter:
		return true
	default:
		return false
	}
}

// Entity is a tracked venue, artist, or promoter whose listings page is
// polled each run. Entities are loaded before a run starts and are
// immutable for its duration.
type Entity struct {
	// Name is the human-readable name, e.g. "Tresor".
	Name string `json:"name"`

	// Tag is the source-side identifier appended to the listings URL.
	// It is opaque; nothing may assume it is numeric or fixed-width.
	Tag string `json:"tag"`

	// Kind selects the listings URL scheme and the matching rule.
	Kind EntityKind `json:"kind"`
}

// RawEvent is one event extracted from an entity's listings page.
// Fields that do not apply to the originating entity kind are empty:
// a venue event has Lineup but no Artist, an artist event has Venue but
// no Lineup, a promoter event has both Venue and Lineup.
type RawEvent struct {
	Name     string
	Date     string
	EventURL string

	// EventID is the dedup key component extracted from the event URL.
	// Opaque string; empty means the list item was malformed.
	EventID string

	// Type mirrors the kind of the entity whose page produced the event.
	Type EntityKind

	Venue    string
	Lineup   string
	Artist   string
	Promoter string
}

// TicketQuote is one ticket tier currently on sale for an event.
// Price is kept as the source renders it (currency symbol included).
type TicketQuote struct {
	Label string `json:"label"`
	Price string `json:"price"`
}

// EventRecord is the persisted dedup record for one (event_id, event_type)
// key. TicketsAvailable is monotonic: it may go false -> true when tickets
// first appear, never back. Records are never deleted.
type EventRecord struct {
	EventID          string     `json:"event_id"`
	Type             EntityKind `json:"event_type"`
	TicketsAvailable bool       `json:"tickets_available"`
}

// Classification is the reconciler's verdict for one raw event.
type Classification string

const (
	// ClassNew marks a first sighting; always notify-worthy.
	ClassNew Classification = "new"

	// ClassResurfaced marks a previously ticketless event whose tickets
	// just became available; notify-worthy exactly once.
	ClassResurfaced Classification = "resurfaced"

	// ClassSuppressed marks an event already fully notified, or one with
	// no state change; never notify-worthy.
	ClassSuppressed Classification = "suppressed"
)

// NotifyWorthy reports whether the classification qualifies the event for
// user notification.
func (c Classification) NotifyWorthy() bool {
	return c == ClassNew || c == ClassResurfaced
}

// Interest is one subscribed venue, artist, or promoter inside a user's
// preference lists. Tag carries the source-side identifier so an interest
// can be promoted to a tracked Entity.
type Interest struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

// User is one notification recipient with subscription filters.
// Loaded once per run and read-only to the pipeline.
type User struct {
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`

	// Locations restricts artist-event notifications: when non-empty, an
	// artist event matches only if some location is a substring of the
	// event's venue string. Empty means worldwide.
	Locations []string `json:"locations"`

	Venues    []Interest `json:"venues"`
	Artists   []Interest `json:"artists"`
	Promoters []Interest `json:"promoters"`
}
