// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/gigwatch/gigwatch/internal/models"
)

// maxPageBytes caps how much of a listings page is read. Pages are a few
// hundred KB; anything larger is a misbehaving response.
const maxPageBytes = 4 << 20

// ClientConfig configures the HTTP listings client.
type ClientConfig struct {
	// VenueURLPrefix, ArtistURLPrefix, PromoterURLPrefix are the listing
	// page URL prefixes; the entity tag is appended.
	VenueURLPrefix    string
	ArtistURLPrefix   string
	PromoterURLPrefix string

	// UserAgent is sent on every request.
	UserAgent string

	// RequestTimeout bounds a single HTTP request.
	RequestTimeout time.Duration

	// RequestsPerSecond throttles all requests across all workers. The
	// source publishes no formal rate limit; stay polite.
	RequestsPerSecond float64

	// RetryAttempts is the number of tries for an entity list fetch.
	RetryAttempts int

	// RetryBaseDelay is the first retry delay; it doubles per attempt.
	RetryBaseDelay time.Duration

	// BreakerFailureThreshold is the consecutive-failure count that opens
	// the circuit breaker.
	BreakerFailureThreshold uint32

	// BreakerCooldown is how long the breaker stays open before probing.
	BreakerCooldown time.Duration
}

// DefaultClientConfig returns conservative client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		UserAgent:               "gigwatch/1.0",
		RequestTimeout:          30 * time.Second,
		RequestsPerSecond:       2,
		RetryAttempts:           3,
		RetryBaseDelay:          2 * time.Second,
		BreakerFailureThreshold: 5,
		BreakerCooldown:         time.Minute,
	}
}

// Client is the production Fetcher: it retrieves listings pages over HTTP
// and extracts events and ticket quotes from their markup.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     zerolog.Logger
}

// NewClient creates a listings client. Zero config fields fall back to
// DefaultClientConfig values.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	def := DefaultClientConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = def.BreakerFailureThreshold
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = def.BreakerCooldown
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "listings-source",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker:    breaker,
		logger:     logger.With().Str("component", "fetch").Logger(),
	}
}

// FetchEvents retrieves and extracts the candidate event list for an
// entity, retrying transient page failures with exponential backoff.
// Malformed list items are logged and skipped; the remaining events are
// returned.
func (c *Client) FetchEvents(ctx context.Context, entity models.Entity) ([]models.RawEvent, error) {
	url, err := c.listingsURL(entity)
	if err != nil {
		return nil, &FetchError{Entity: entity, Err: err}
	}

	var (
		body    []byte
		lastErr error
	)
	for attempt := 0; attempt < c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBaseDelay << (attempt - 1)
			c.logger.Debug().
				Str("entity", entity.Name).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying listings fetch")
			select {
			case <-ctx.Done():
				return nil, &FetchError{Entity: entity, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		body, lastErr = c.breaker.Execute(func() ([]byte, error) {
			return c.getPage(ctx, url)
		})
		if lastErr == nil {
			break
		}
		if errors.Is(lastErr, gobreaker.ErrOpenState) || ctx.Err() != nil {
			// The breaker is counting failures for everyone; per-entity
			// retries will not help until the cooldown elapses.
			return nil, &FetchError{Entity: entity, Err: lastErr}
		}
	}
	if lastErr != nil {
		return nil, &FetchError{Entity: entity, Err: lastErr}
	}

	events, parseErrs, err := parseEventList(bytes.NewReader(body), entity)
	if err != nil {
		return nil, &FetchError{Entity: entity, Err: err}
	}
	for _, perr := range parseErrs {
		c.logger.Warn().Err(perr).Str("entity", entity.Name).Msg("skipping malformed event item")
	}
	return events, nil
}

// FetchTickets retrieves the ticket quotes for an event page. Errors are
// returned for the caller to log; they never abort the run. Ticket pages
// bypass the circuit breaker so a broken single event page cannot starve
// list fetches.
func (c *Client) FetchTickets(ctx context.Context, eventURL string) ([]models.TicketQuote, error) {
	body, err := c.getPage(ctx, eventURL)
	if err != nil {
		return nil, err
	}
	return parseTickets(bytes.NewReader(body))
}

// listingsURL builds the listings page URL for an entity. The switch is
// exhaustive over entity kinds; an unknown kind is a programming error.
func (c *Client) listingsURL(entity models.Entity) (string, error) {
	switch entity.Kind {
	case models.KindVenue:
		return c.cfg.VenueURLPrefix + entity.Tag, nil
	case models.KindArtist:
		return c.cfg.ArtistURLPrefix + entity.Tag, nil
	case models.KindPromoter:
		return c.cfg.PromoterURLPrefix + entity.Tag, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", entity.Kind)
	}
}

// getPage performs one rate-limited GET and returns the response body.
func (c *Client) getPage(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // Best effort cleanup

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}
