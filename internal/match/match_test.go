// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

package match

import (
	"testing"

	"github.com/gigwatch/gigwatch/internal/models"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name  string
		event models.RawEvent
		user  models.User
		want  bool
	}{
		{
			name:  "venue subscription matches",
			event: models.RawEvent{Type: models.KindVenue, Venue: "Tresor"},
			user:  models.User{Venues: []models.Interest{{Name: "Tresor", Tag: "tresor"}}},
			want:  true,
		},
		{
			name:  "venue subscription is exact",
			event: models.RawEvent{Type: models.KindVenue, Venue: "Tresor West"},
			user:  models.User{Venues: []models.Interest{{Name: "Tresor", Tag: "tresor"}}},
			want:  false,
		},
		{
			name:  "artist with worldwide preference",
			event: models.RawEvent{Type: models.KindArtist, Artist: "Rrose", Venue: "Tokyo, Womb"},
			user:  models.User{Artists: []models.Interest{{Name: "Rrose", Tag: "rrose"}}},
			want:  true,
		},
		{
			name:  "artist with matching location",
			event: models.RawEvent{Type: models.KindArtist, Artist: "Rrose", Venue: "Berlin, Tresor"},
			user: models.User{
				Locations: []string{"Berlin"},
				Artists:   []models.Interest{{Name: "Rrose", Tag: "rrose"}},
			},
			want: true,
		},
		{
			name:  "artist outside preferred locations",
			event: models.RawEvent{Type: models.KindArtist, Artist: "Rrose", Venue: "Paris, Rex"},
			user: models.User{
				Locations: []string{"Berlin", "Hamburg"},
				Artists:   []models.Interest{{Name: "Rrose", Tag: "rrose"}},
			},
			want: false,
		},
		{
			name:  "location comparison is case sensitive",
			event: models.RawEvent{Type: models.KindArtist, Artist: "Rrose", Venue: "berlin, Tresor"},
			user: models.User{
				Locations: []string{"Berlin"},
				Artists:   []models.Interest{{Name: "Rrose", Tag: "rrose"}},
			},
			want: false,
		},
		{
			name:  "location alone does not match",
			event: models.RawEvent{Type: models.KindArtist, Artist: "DVS1", Venue: "Berlin, Tresor"},
			user: models.User{
				Locations: []string{"Berlin"},
				Artists:   []models.Interest{{Name: "Rrose", Tag: "rrose"}},
			},
			want: false,
		},
		{
			name:  "promoter subscription matches regardless of location",
			event: models.RawEvent{Type: models.KindPromoter, Promoter: "Ostgut", Venue: "Paris, Rex"},
			user: models.User{
				Locations: []string{"Berlin"},
				Promoters: []models.Interest{{Name: "Ostgut", Tag: "ostgut"}},
			},
			want: true,
		},
		{
			name:  "empty venue never matches",
			event: models.RawEvent{Type: models.KindVenue},
			user:  models.User{Venues: []models.Interest{{Name: "", Tag: ""}}},
			want:  false,
		},
		{
			name:  "unknown event type never matches",
			event: models.RawEvent{Type: "label", Venue: "Tresor"},
			user:  models.User{Venues: []models.Interest{{Name: "Tresor", Tag: "tresor"}}},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.event, tt.user); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

// A user with several locations satisfied by the same venue string must
// still match only once.
func TestUsers_OneMatchPerUser(t *testing.T) {
	event := models.RawEvent{Type: models.KindArtist, Artist: "Rrose", Venue: "Berlin, Tresor"}
	user := models.User{
		Email:     "ada@example.com",
		Locations: []string{"Berlin", "Tresor"},
		Artists:   []models.Interest{{Name: "Rrose", Tag: "rrose"}},
	}

	matched := Users(event, []models.User{user})
	if len(matched) != 1 {
		t.Fatalf("matched users = %d, want exactly 1", len(matched))
	}
}

func TestUsers_FiltersAndPreservesOrder(t *testing.T) {
	event := models.RawEvent{Type: models.KindVenue, Venue: "Tresor"}
	users := []models.User{
		{Email: "a@example.com", Venues: []models.Interest{{Name: "Tresor", Tag: "tresor"}}},
		{Email: "b@example.com", Venues: []models.Interest{{Name: "Berghain", Tag: "berghain"}}},
		{Email: "c@example.com", Venues: []models.Interest{{Name: "Tresor", Tag: "tresor"}}},
	}

	matched := Users(event, users)
	if len(matched) != 2 {
		t.Fatalf("matched users = %d, want 2", len(matched))
	}
	if matched[0].Email != "a@example.com" || matched[1].Email != "c@example.com" {
		t.Errorf("matched order = [%s %s], want [a@example.com c@example.com]", matched[0].Email, matched[1].Email)
	}
}
