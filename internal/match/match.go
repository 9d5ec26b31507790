// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

// Package match determines which subscribed users should be notified
// about a qualifying event. Matching is a pure function of the event and
// the subscription lists; it has no side effects and is evaluated only
// for notify-worthy classifications.
package match

import (
	"strings"

	"github.com/gigwatch/gigwatch/internal/models"
)

// Users returns the subset of users whose subscriptions match the event.
// Each user appears at most once regardless of how many of their
// locations independently satisfy the artist-location rule.
//
// Rules by event type:
//   - venue: the user subscribes to a venue with the event's venue name.
//   - artist: the user subscribes to the event's artist, and either has
//     no location preference (worldwide) or some location is a
//     case-sensitive substring of the event's venue string.
//   - promoter: the user subscribes to the event's promoter.
func Users(event models.RawEvent, users []models.User) []models.User {
	var matched []models.User
	for _, user := range users {
		if Matches(event, user) {
			matched = append(matched, user)
		}
	}
	return matched
}

// Matches reports whether a single user's subscriptions match the event.
func Matches(event models.RawEvent, user models.User) bool {
	switch event.Type {
	case models.KindVenue:
		return hasInterest(user.Venues, event.Venue)
	case models.KindArtist:
		return hasInterest(user.Artists, event.Artist) && locationMatches(user.Locations, event.Venue)
	case models.KindPromoter:
		return hasInterest(user.Promoters, event.Promoter)
	default:
		return false
	}
}

// hasInterest reports whether any interest in the list has the given
// name. Comparison is exact: interest names come from the same source as
// event fields, so no normalization is applied.
func hasInterest(interests []models.Interest, name string) bool {
	if name == "" {
		return false
	}
	for _, interest := range interests {
		if interest.Name == name {
			return true
		}
	}
	return false
}

// locationMatches reports whether the user's location preference admits
// the event venue. An empty preference means worldwide. The venue string
// carries the city as rendered by the source ("Berlin, Tresor"), so a
// case-sensitive substring test against each location suffices.
func locationMatches(locations []string, venue string) bool {
	if len(locations) == 0 {
		return true
	}
	for _, location := range locations {
		if strings.Contains(venue, location) {
			return true
		}
	}
	return false
}
