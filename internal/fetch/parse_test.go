// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

package fetch

import (
	"strings"
	"testing"

	"github.com/gigwatch/gigwatch/internal/models"
)

const venuePage = `<html><body>
<article class="event-item">
  <a href="/events/1893271"><span class="title">Klubnacht</span></a>
  <div class="bbox"><h1>Sat, 12 Sep</h1></div>
  <div class="event-lineup">Rrose, DVS1</div>
</article>
<article class="event-item">
  <a href="/events/1893400?utm=feed"><span class="title">Open Air</span></a>
  <div class="bbox"><h1>Sun, 13 Sep</h1></div>
</article>
<article class="event-item">
  <span class="title">No Link Here</span>
</article>
</body></html>`

const artistPage = `<html><body>
<article class="event-item">
  <a href="https://example.com/events/2200134/"><span class="title">Rrose Live</span></a>
  <div class="bbox"><h1>Fri, 2 Oct</h1></div>
  <div class="venue"><a>Berlin</a> <a>Tresor</a></div>
</article>
</body></html>`

func TestParseEventList_VenuePage(t *testing.T) {
	entity := models.Entity{Name: "Berghain", Tag: "berghain", Kind: models.KindVenue}

	events, parseErrs, err := parseEventList(strings.NewReader(venuePage), entity)
	if err != nil {
		t.Fatalf("parseEventList() error = %v", err)
	}
	if len(parseErrs) != 1 {
		t.Fatalf("parse errors = %d, want 1 (the link-less item)", len(parseErrs))
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}

	first := events[0]
	if first.EventID != "1893271" {
		t.Errorf("EventID = %q, want %q", first.EventID, "1893271")
	}
	if first.Name != "Klubnacht" {
		t.Errorf("Name = %q, want %q", first.Name, "Klubnacht")
	}
	if first.Date != "Sat, 12 Sep" {
		t.Errorf("Date = %q, want %q", first.Date, "Sat, 12 Sep")
	}
	if first.Type != models.KindVenue {
		t.Errorf("Type = %q, want %q", first.Type, models.KindVenue)
	}
	if first.Venue != "Berghain" {
		t.Errorf("Venue = %q, want entity name %q", first.Venue, "Berghain")
	}
	if first.Lineup != "Rrose, DVS1" {
		t.Errorf("Lineup = %q, want %q", first.Lineup, "Rrose, DVS1")
	}

	// Query string must not leak into the id.
	if events[1].EventID != "1893400" {
		t.Errorf("EventID = %q, want %q", events[1].EventID, "1893400")
	}
}

func TestParseEventList_ArtistPage(t *testing.T) {
	entity := models.Entity{Name: "Rrose", Tag: "rrose", Kind: models.KindArtist}

	events, parseErrs, err := parseEventList(strings.NewReader(artistPage), entity)
	if err != nil {
		t.Fatalf("parseEventList() error = %v", err)
	}
	if len(parseErrs) != 0 {
		t.Fatalf("parse errors = %v, want none", parseErrs)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}

	ev := events[0]
	if ev.EventID != "2200134" {
		t.Errorf("EventID = %q, want %q (trailing slash stripped)", ev.EventID, "2200134")
	}
	if ev.Artist != "Rrose" {
		t.Errorf("Artist = %q, want %q", ev.Artist, "Rrose")
	}
	if ev.Venue != "Berlin, Tresor" {
		t.Errorf("Venue = %q, want %q", ev.Venue, "Berlin, Tresor")
	}
}

func TestParseEventList_Empty(t *testing.T) {
	entity := models.Entity{Name: "Quiet", Tag: "quiet", Kind: models.KindPromoter}

	events, parseErrs, err := parseEventList(strings.NewReader("<html><body></body></html>"), entity)
	if err != nil {
		t.Fatalf("parseEventList() error = %v", err)
	}
	if len(events) != 0 || len(parseErrs) != 0 {
		t.Errorf("events = %d, parse errors = %d, want 0 and 0", len(events), len(parseErrs))
	}
}

func TestParseTickets(t *testing.T) {
	page := `<html><body><ul>
	<li class="onsale"><p>2nd Release <span>€25.00</span></p></li>
	<li class="onsale"><p>3rd Release <span>€30.00</span></p></li>
	<li class="closed"><p>1st Release <span>€20.00</span></p></li>
	<li class="onsale"><p><span>€99.00</span></p></li>
	</ul></body></html>`

	quotes, err := parseTickets(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parseTickets() error = %v", err)
	}

	want := []models.TicketQuote{
		{Label: "2nd Release", Price: "€25.00"},
		{Label: "3rd Release", Price: "€30.00"},
	}
	if len(quotes) != len(want) {
		t.Fatalf("quotes = %v, want %v", quotes, want)
	}
	for i := range want {
		if quotes[i] != want[i] {
			t.Errorf("quote[%d] = %v, want %v", i, quotes[i], want[i])
		}
	}
}

func TestEventIDFromHref(t *testing.T) {
	tests := []struct {
		name string
		href string
		want string
	}{
		{"plain", "/events/123456", "123456"},
		{"absolute", "https://example.com/events/123456", "123456"},
		{"trailing slash", "/events/123456/", "123456"},
		{"query string", "/events/123456?ref=home", "123456"},
		{"fragment", "/events/123456#tickets", "123456"},
		{"non numeric id", "/events/abc-def", "abc-def"},
		{"empty", "", ""},
		{"no path", "/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventIDFromHref(tt.href); got != tt.want {
				t.Errorf("eventIDFromHref(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}
