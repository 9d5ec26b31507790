// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

// Package digest accumulates matched events into one notification body
// per user and renders the HTML blocks that make up that body.
//
// A user's digest does not exist until their first match: the greeting is
// prepended lazily, each match appends one event block (plus a ticket
// sub-block when quotes are on sale), and finalization appends a closing
// summary of the user's subscriptions. A user with zero matches never
// gets a digest, so an empty-body email can never be dispatched.
package digest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gigwatch/gigwatch/internal/models"
)

// heart closes the summary block, as the original hand-written emails
// did.
const heart = "❤"

// Digest is the accumulated notification body for one user in one run.
type Digest struct {
	User models.User

	// EventCount is the number of matched events appended so far.
	EventCount int

	body strings.Builder
}

// Body returns the rendered HTML body.
func (d *Digest) Body() string {
	return d.body.String()
}

// Aggregator owns the per-user digests for a run. It is not safe for
// concurrent use; the reconciliation loop is its single writer.
type Aggregator struct {
	digests map[string]*Digest

	// order preserves first-match order so dispatch is deterministic.
	order []string
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{digests: make(map[string]*Digest)}
}

// Add appends one matched event to the user's digest, creating the digest
// with a greeting on the user's first match. The event block is rendered
// before the digest is materialized so a render failure cannot leave the
// user with an event-less digest that would still be dispatched.
func (a *Aggregator) Add(user models.User, event models.RawEvent, tickets []models.TicketQuote) error {
	block, err := renderEventBlock(event, tickets)
	if err != nil {
		return err
	}

	d, ok := a.digests[user.Email]
	if !ok {
		greeting, err := render("greeting", struct{ Name string }{user.Name})
		if err != nil {
			return err
		}
		d = &Digest{User: user}
		d.body.WriteString(greeting)
		a.digests[user.Email] = d
		a.order = append(a.order, user.Email)
	}

	d.body.WriteString(block)
	d.EventCount++
	return nil
}

// Digests finalizes and returns all non-empty digests in first-match
// order, appending each user's closing summary. Users without matches do
// not appear.
func (a *Aggregator) Digests() ([]*Digest, error) {
	out := make([]*Digest, 0, len(a.order))
	for _, email := range a.order {
		d := a.digests[email]
		summary, err := renderSummary(d.User)
		if err != nil {
			return nil, err
		}
		d.body.WriteString(summary)
		out = append(out, d)
	}
	return out, nil
}

// renderEventBlock renders the per-event block for the event's type,
// followed by the ticket sub-block.
func renderEventBlock(event models.RawEvent, tickets []models.TicketQuote) (string, error) {
	var name string
	switch event.Type {
	case models.KindVenue:
		name = "venue"
	case models.KindArtist:
		name = "artist"
	case models.KindPromoter:
		name = "promoter"
	default:
		return "", fmt.Errorf("digest: unknown event type %q", event.Type)
	}

	block, err := render(name, struct{ Event models.RawEvent }{event})
	if err != nil {
		return "", err
	}
	ticketBlock, err := render("tickets", struct{ Tickets []models.TicketQuote }{tickets})
	if err != nil {
		return "", err
	}
	return block + ticketBlock, nil
}

// renderSummary renders the closing summary of a user's subscriptions.
// An empty location list renders as "Worldwide".
func renderSummary(user models.User) (string, error) {
	locations := "Worldwide"
	if len(user.Locations) > 0 {
		locations = strings.Join(user.Locations, ", ")
	}
	return render("summary", struct {
		Venues    string
		Promoters string
		Artists   string
		Locations string
		Heart     string
	}{
		Venues:    interestNames(user.Venues),
		Promoters: interestNames(user.Promoters),
		Artists:   interestNames(user.Artists),
		Locations: locations,
		Heart:     heart,
	})
}

func interestNames(interests []models.Interest) string {
	names := make([]string, 0, len(interests))
	for _, interest := range interests {
		names = append(names, interest.Name)
	}
	return strings.Join(names, ", ")
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := blockTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s block: %w", name, err)
	}
	return buf.String(), nil
}
