// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gigwatch/gigwatch/internal/digest"
)

// DispatcherConfig configures digest dispatch.
type DispatcherConfig struct {
	// Subject is the subject line applied to every digest.
	Subject string

	// MaxAttempts is the total number of tries per digest for transient
	// failures.
	MaxAttempts int

	// BaseDelay is the first retry delay; it doubles per attempt up to
	// MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Parallelism is the maximum number of concurrent sends. Digests are
	// independent, so dispatch parallelizes freely across users.
	Parallelism int

	// DryRun renders and logs but skips submission.
	DryRun bool
}

// DefaultDispatcherConfig returns the default dispatch configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Subject:     "New events on your radar",
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Parallelism: 5,
	}
}

// SendOutcome records the fate of one digest.
type SendOutcome struct {
	// DeliveryID uniquely identifies this dispatch attempt group.
	DeliveryID string

	Recipient  string
	EventCount int
	Success    bool
	Attempts   int
	ErrorCode  string
	Err        error
}

// Report aggregates a dispatch pass.
type Report struct {
	Sent     int
	Failed   int
	Outcomes []SendOutcome
}

// Dispatcher sends rendered digests through a Mailer with bounded
// exponential backoff for transient failures. Permanent failures are
// logged and skipped; they never block the remaining users and never
// affect store commits made earlier in the run.
type Dispatcher struct {
	mailer Mailer
	cfg    DispatcherConfig
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher. Zero config fields fall back to
// DefaultDispatcherConfig values.
func NewDispatcher(mailer Mailer, cfg DispatcherConfig, logger zerolog.Logger) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.Subject == "" {
		cfg.Subject = def.Subject
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = def.Parallelism
	}
	return &Dispatcher{
		mailer: mailer,
		cfg:    cfg,
		logger: logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch sends every digest. The digests passed in are non-empty by
// construction (the aggregator only materializes a digest on a user's
// first match).
func (d *Dispatcher) Dispatch(ctx context.Context, digests []*digest.Digest) Report {
	if len(digests) == 0 {
		return Report{}
	}

	jobs := make(chan *digest.Digest, len(digests))
	outcomes := make(chan SendOutcome, len(digests))

	workers := d.cfg.Parallelism
	if workers > len(digests) {
		workers = len(digests)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dg := range jobs {
				outcomes <- d.send(ctx, dg)
			}
		}()
	}

	for _, dg := range digests {
		jobs <- dg
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	var report Report
	for outcome := range outcomes {
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Success {
			report.Sent++
		} else {
			report.Failed++
		}
	}
	return report
}

// send delivers one digest, retrying transient failures.
func (d *Dispatcher) send(ctx context.Context, dg *digest.Digest) SendOutcome {
	outcome := SendOutcome{
		DeliveryID: uuid.NewString(),
		Recipient:  dg.User.Email,
		EventCount: dg.EventCount,
	}

	if d.cfg.DryRun {
		d.logger.Info().
			Str("delivery_id", outcome.DeliveryID).
			Str("recipient", outcome.Recipient).
			Int("events", outcome.EventCount).
			Msg("dry run, skipping send")
		outcome.Success = true
		return outcome
	}

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := d.backoff(attempt)
			d.logger.Debug().
				Str("delivery_id", outcome.DeliveryID).
				Str("recipient", outcome.Recipient).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying digest delivery")
			select {
			case <-ctx.Done():
				outcome.Attempts = attempt - 1
				outcome.ErrorCode = ErrorCodeCanceled
				outcome.Err = ctx.Err()
				return outcome
			case <-time.After(delay):
			}
		}
		outcome.Attempts = attempt

		err := d.mailer.Send(ctx, dg.User.Email, d.cfg.Subject, dg.Body())
		if err == nil {
			d.logger.Info().
				Str("delivery_id", outcome.DeliveryID).
				Str("recipient", outcome.Recipient).
				Int("events", outcome.EventCount).
				Int("attempt", attempt).
				Msg("digest delivered")
			outcome.Success = true
			return outcome
		}

		var mailErr *MailError
		if !errors.As(err, &mailErr) {
			mailErr = &MailError{Code: ErrorCodeUnknown, Err: err}
		}
		outcome.ErrorCode = mailErr.Code
		outcome.Err = mailErr

		if !mailErr.Transient {
			d.logger.Warn().
				Err(mailErr).
				Str("delivery_id", outcome.DeliveryID).
				Str("recipient", outcome.Recipient).
				Str("error_code", mailErr.Code).
				Msg("permanent delivery error, skipping user")
			return outcome
		}
		d.logger.Debug().
			Err(mailErr).
			Str("delivery_id", outcome.DeliveryID).
			Str("recipient", outcome.Recipient).
			Int("attempt", attempt).
			Msg("transient delivery error")
	}

	d.logger.Error().
		Err(outcome.Err).
		Str("delivery_id", outcome.DeliveryID).
		Str("recipient", outcome.Recipient).
		Int("attempts", outcome.Attempts).
		Msg("digest delivery failed after retries")
	return outcome
}

// backoff doubles the base delay per attempt, capped at MaxDelay.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BaseDelay << (attempt - 2)
	if delay > d.cfg.MaxDelay || delay <= 0 {
		return d.cfg.MaxDelay
	}
	return delay
}
