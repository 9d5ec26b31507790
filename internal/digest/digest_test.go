// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

package digest

import (
	"strings"
	"testing"

	"github.com/gigwatch/gigwatch/internal/models"
)

func testUser() models.User {
	return models.User{
		Name:      "Ada",
		Email:     "ada@example.com",
		Locations: []string{"Berlin"},
		Venues:    []models.Interest{{Name: "Tresor", Tag: "tresor"}},
		Artists:   []models.Interest{{Name: "Rrose", Tag: "rrose"}},
		Promoters: []models.Interest{{Name: "Ostgut", Tag: "ostgut"}},
	}
}

func venueEvent() models.RawEvent {
	return models.RawEvent{
		Name:     "Klubnacht",
		Date:     "Sat, 12 Sep",
		EventURL: "/events/1",
		EventID:  "1",
		Type:     models.KindVenue,
		Venue:    "Tresor",
		Lineup:   "Rrose, DVS1",
	}
}

func TestAggregator_NoMatchesNoDigests(t *testing.T) {
	digests, err := NewAggregator().Digests()
	if err != nil {
		t.Fatalf("Digests() error = %v", err)
	}
	if len(digests) != 0 {
		t.Fatalf("digests = %d, want 0 when nobody matched", len(digests))
	}
}

func TestAggregator_SingleDigestPerUser(t *testing.T) {
	a := NewAggregator()
	user := testUser()

	if err := a.Add(user, venueEvent(), nil); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	second := venueEvent()
	second.EventID = "2"
	second.Name = "Open Air"
	if err := a.Add(user, second, nil); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	digests, err := a.Digests()
	if err != nil {
		t.Fatalf("Digests() error = %v", err)
	}
	if len(digests) != 1 {
		t.Fatalf("digests = %d, want 1 per user per run", len(digests))
	}
	if digests[0].EventCount != 2 {
		t.Errorf("EventCount = %d, want 2", digests[0].EventCount)
	}

	body := digests[0].Body()
	if !strings.HasPrefix(body, "Hi <b>Ada</b>,") {
		t.Errorf("body does not start with the greeting: %q", body[:min(len(body), 40)])
	}
	if strings.Count(body, "Hi <b>Ada</b>") != 1 {
		t.Error("greeting appears more than once")
	}
	if !strings.Contains(body, "Klubnacht") || !strings.Contains(body, "Open Air") {
		t.Error("body is missing one of the matched events")
	}
}

func TestAggregator_BodyBlocks(t *testing.T) {
	a := NewAggregator()
	user := testUser()
	tickets := []models.TicketQuote{{Label: "2nd Release", Price: "€25.00"}}

	if err := a.Add(user, venueEvent(), tickets); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	digests, err := a.Digests()
	if err != nil {
		t.Fatalf("Digests() error = %v", err)
	}
	body := digests[0].Body()

	for _, want := range []string{
		"New event at <b>Tresor</b>",
		"lineup of <b>Rrose, DVS1</b>",
		"Tickets currently on sale:",
		"<u>2nd Release</u>: €25.00",
		"Your venues: <br><b>Tresor</b>",
		"Your promoters: <br><b>Ostgut</b>",
		"Your artists: <br><b>Rrose</b>",
		"Your new artist events locations: <br><b>Berlin</b>",
		"Thanks for supporting this tech.",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestAggregator_TicketBlockOmittedWhenNoQuotes(t *testing.T) {
	a := NewAggregator()
	if err := a.Add(testUser(), venueEvent(), nil); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	digests, err := a.Digests()
	if err != nil {
		t.Fatalf("Digests() error = %v", err)
	}
	if strings.Contains(digests[0].Body(), "Tickets currently on sale") {
		t.Error("ticket block rendered for an event without quotes")
	}
}

func TestAggregator_WorldwideSummary(t *testing.T) {
	a := NewAggregator()
	user := testUser()
	user.Locations = nil

	if err := a.Add(user, venueEvent(), nil); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	digests, err := a.Digests()
	if err != nil {
		t.Fatalf("Digests() error = %v", err)
	}
	if !strings.Contains(digests[0].Body(), "locations: <br><b>Worldwide</b>") {
		t.Error("summary missing the Worldwide fallback for empty locations")
	}
}

func TestAggregator_ArtistAndPromoterBlocks(t *testing.T) {
	a := NewAggregator()
	user := testUser()

	artistEvent := models.RawEvent{
		Name:     "Rrose Live",
		Date:     "Fri, 2 Oct",
		EventURL: "/events/3",
		EventID:  "3",
		Type:     models.KindArtist,
		Artist:   "Rrose",
		Venue:    "Berlin, Tresor",
	}
	promoterEvent := models.RawEvent{
		Name:     "Ostgut Nacht",
		Date:     "Sat, 3 Oct",
		EventURL: "/events/4",
		EventID:  "4",
		Type:     models.KindPromoter,
		Promoter: "Ostgut",
		Venue:    "Berlin, Berghain",
		Lineup:   "DVS1",
	}
	if err := a.Add(user, artistEvent, nil); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := a.Add(user, promoterEvent, nil); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	digests, err := a.Digests()
	if err != nil {
		t.Fatalf("Digests() error = %v", err)
	}
	body := digests[0].Body()
	if !strings.Contains(body, "<b>Rrose</b> is playing at <b>Berlin, Tresor</b>") {
		t.Error("artist block missing or malformed")
	}
	if !strings.Contains(body, "New promoter <b>Ostgut</b> event at <b>Berlin, Berghain</b>") {
		t.Error("promoter block missing or malformed")
	}
}

func TestAggregator_UnknownEventType(t *testing.T) {
	a := NewAggregator()
	ev := venueEvent()
	ev.Type = "label"

	if err := a.Add(testUser(), ev, nil); err == nil {
		t.Fatal("Add() error = nil, want unknown-type error")
	}

	// The failed Add must not have materialized a digest: a greeting with
	// zero event blocks would otherwise go out as an empty notification.
	digests, err := a.Digests()
	if err != nil {
		t.Fatalf("Digests() error = %v", err)
	}
	if len(digests) != 0 {
		t.Fatalf("digests = %d after a failed Add, want 0", len(digests))
	}
}

func TestAggregator_EscapesScrapedMarkup(t *testing.T) {
	a := NewAggregator()
	ev := venueEvent()
	ev.Name = `<script>alert("x")</script>`

	if err := a.Add(testUser(), ev, nil); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	digests, err := a.Digests()
	if err != nil {
		t.Fatalf("Digests() error = %v", err)
	}
	if strings.Contains(digests[0].Body(), "<script>") {
		t.Error("scraped markup reached the body unescaped")
	}
}

func TestAggregator_FirstMatchOrder(t *testing.T) {
	a := NewAggregator()
	bob := models.User{Name: "Bob", Email: "bob@example.com"}
	ada := testUser()

	if err := a.Add(bob, venueEvent(), nil); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := a.Add(ada, venueEvent(), nil); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	digests, err := a.Digests()
	if err != nil {
		t.Fatalf("Digests() error = %v", err)
	}
	if len(digests) != 2 {
		t.Fatalf("digests = %d, want 2", len(digests))
	}
	if digests[0].User.Email != "bob@example.com" || digests[1].User.Email != "ada@example.com" {
		t.Errorf("digest order = [%s %s], want first-match order", digests[0].User.Email, digests[1].User.Email)
	}
}
