// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

package fetch

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/gigwatch/gigwatch/internal/models"
)

// Markup contract for listings pages. Each event is an
// <article class="event-item"> holding:
//
//	<a href=".../events/{id}">          event link, id = last path segment
//	<span class="title">                event name
//	<div class="event-lineup">          lineup (venue and promoter pages)
//	<div class="bbox"><h1>              date line
//	<div class="venue"><a>...           venue name parts (artist and
//	                                    promoter pages), joined with ", "
//
// Ticket quotes on event pages are <li class="onsale"> items with a <p>
// whose direct text is the tier label and whose <span> is the price.
const (
	classEventItem = "event-item"
	classTitle     = "title"
	classLineup    = "event-lineup"
	classDateBox   = "bbox"
	classVenue     = "venue"
	classOnSale    = "onsale"
)

// parseEventList extracts raw events from a listings page. Malformed
// items yield *ParseError entries and are skipped; the remaining items
// are still returned.
func parseEventList(r io.Reader, entity models.Entity) ([]models.RawEvent, []error, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parse listings html: %w", err)
	}

	var (
		events    []models.RawEvent
		parseErrs []error
	)
	for _, item := range findAll(doc, "article", classEventItem) {
		ev, err := parseEventItem(item, entity)
		if err != nil {
			parseErrs = append(parseErrs, err)
			continue
		}
		events = append(events, ev)
	}
	return events, parseErrs, nil
}

// parseEventItem extracts one raw event from an event-item article.
func parseEventItem(item *html.Node, entity models.Entity) (models.RawEvent, error) {
	link := findFirst(item, "a", "")
	if link == nil {
		return models.RawEvent{}, &ParseError{Entity: entity, Detail: "event item has no link"}
	}
	href := attr(link, "href")
	id := eventIDFromHref(href)
	if id == "" {
		return models.RawEvent{}, &ParseError{Entity: entity, Detail: fmt.Sprintf("no event id in href %q", href)}
	}

	title := findFirst(item, "span", classTitle)
	if title == nil {
		return models.RawEvent{}, &ParseError{Entity: entity, Detail: "event item has no title"}
	}

	ev := models.RawEvent{
		Name:     strings.TrimSpace(textContent(title)),
		EventID:  id,
		EventURL: href,
		Type:     entity.Kind,
	}
	if dateBox := findFirst(item, "div", classDateBox); dateBox != nil {
		if h1 := findFirst(dateBox, "h1", ""); h1 != nil {
			ev.Date = strings.TrimSpace(textContent(h1))
		}
	}

	switch entity.Kind {
	case models.KindVenue:
		ev.Venue = entity.Name
		ev.Lineup = lineupText(item)
	case models.KindArtist:
		ev.Artist = entity.Name
		ev.Venue = venueText(item)
	case models.KindPromoter:
		ev.Promoter = entity.Name
		ev.Venue = venueText(item)
		ev.Lineup = lineupText(item)
	}
	return ev, nil
}

// parseTickets extracts the on-sale ticket quotes from an event page.
// Quotes missing a label or price are skipped.
func parseTickets(r io.Reader) ([]models.TicketQuote, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse event page html: %w", err)
	}

	var quotes []models.TicketQuote
	for _, li := range findAll(doc, "li", classOnSale) {
		p := findFirst(li, "p", "")
		if p == nil {
			continue
		}
		priceNode := findFirst(p, "span", "")
		if priceNode == nil {
			continue
		}
		label := strings.TrimSpace(directText(p))
		price := strings.TrimSpace(textContent(priceNode))
		if label == "" || price == "" {
			continue
		}
		quotes = append(quotes, models.TicketQuote{Label: label, Price: price})
	}
	return quotes, nil
}

func lineupText(item *html.Node) string {
	if n := findFirst(item, "div", classLineup); n != nil {
		return strings.TrimSpace(textContent(n))
	}
	return ""
}

// venueText joins the venue link texts with ", ", matching how the source
// splits a venue into name and city parts.
func venueText(item *html.Node) string {
	box := findFirst(item, "div", classVenue)
	if box == nil {
		return ""
	}
	var parts []string
	for _, a := range findAll(box, "a", "") {
		if s := strings.TrimSpace(textContent(a)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// eventIDFromHref extracts the trailing path segment of an event link.
// The id is treated as an opaque string.
func eventIDFromHref(href string) string {
	if href == "" {
		return ""
	}
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimRight(href, "/")
	if i := strings.LastIndex(href, "/"); i >= 0 {
		href = href[i+1:]
	}
	return href
}

// findAll returns all descendant elements with the given tag, and class
// when class is non-empty.
func findAll(n *html.Node, tag, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag && (class == "" || hasClass(node, class)) {
			out = append(out, node)
			// Do not descend into a match: nested items would be
			// reported twice by their parents.
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// findFirst returns the first descendant element with the given tag, and
// class when class is non-empty.
func findFirst(n *html.Node, tag, class string) *html.Node {
	matches := findAll(n, tag, class)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent returns the concatenated text of a node and its
// descendants.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// directText returns only the immediate text children of a node, skipping
// nested elements.
func directText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
