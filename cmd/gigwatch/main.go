// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

// Command gigwatch runs one poll cycle: it loads the interests file,
// fetches the listings page of every tracked venue, artist and promoter,
// reconciles the events against the dedup store, and emails each user at
// most one digest of their new matches.
//
// The process is batch-shaped and exits when the run completes. Exit
// code 0 means the dedup state was committed; a non-zero exit means the
// commit failed and the run must be investigated before the next one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gigwatch/gigwatch/internal/config"
	"github.com/gigwatch/gigwatch/internal/fetch"
	"github.com/gigwatch/gigwatch/internal/interests"
	"github.com/gigwatch/gigwatch/internal/logging"
	"github.com/gigwatch/gigwatch/internal/metrics"
	"github.com/gigwatch/gigwatch/internal/notify"
	"github.com/gigwatch/gigwatch/internal/poller"
	"github.com/gigwatch/gigwatch/internal/reconcile"
	"github.com/gigwatch/gigwatch/internal/store"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML config file")
	dryRun := flag.Bool("dry-run", false, "render and log digests without sending")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("gigwatch", version)
		return 0
	}

	cfg, err := config.Load(*configPath, *dryRun)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gigwatch:", err)
		return 1
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger().With().Str("version", version).Logger()
	logger.Info().
		Str("interests", cfg.Interests.Path).
		Str("store", cfg.Store.Path).
		Bool("dry_run", cfg.SMTP.DryRun).
		Msg("gigwatch starting")

	users, entities, err := interests.Load(cfg.Interests.Path)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load interests")
		return 1
	}

	eventStore, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.Store.Path).Msg("failed to open event store")
		return 1
	}
	defer func() {
		if err := eventStore.Close(); err != nil {
			logger.Warn().Err(err).Msg("event store close failed")
		}
	}()

	client := fetch.NewClient(fetch.ClientConfig{
		VenueURLPrefix:          cfg.Source.VenueURLPrefix,
		ArtistURLPrefix:         cfg.Source.ArtistURLPrefix,
		PromoterURLPrefix:       cfg.Source.PromoterURLPrefix,
		UserAgent:               cfg.Source.UserAgent,
		RequestTimeout:          cfg.Source.RequestTimeout,
		RequestsPerSecond:       cfg.Source.RequestsPerSecond,
		RetryAttempts:           cfg.Source.RetryAttempts,
		RetryBaseDelay:          cfg.Source.RetryBaseDelay,
		BreakerFailureThreshold: cfg.Source.BreakerThreshold,
		BreakerCooldown:         cfg.Source.BreakerCooldown,
	}, logger)

	var mailer notify.Mailer
	if !cfg.SMTP.DryRun {
		mailer, err = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			UseTLS:   cfg.SMTP.UseTLS,
		})
		if err != nil {
			logger.Error().Err(err).Msg("invalid SMTP configuration")
			return 1
		}
	}
	dispatcher := notify.NewDispatcher(mailer, notify.DispatcherConfig{
		Subject:     cfg.SMTP.Subject,
		MaxAttempts: cfg.SMTP.MaxAttempts,
		BaseDelay:   cfg.SMTP.BaseDelay,
		MaxDelay:    cfg.SMTP.MaxDelay,
		Parallelism: cfg.SMTP.Parallelism,
		DryRun:      cfg.SMTP.DryRun,
	}, logger)

	runMetrics := metrics.NewRunMetrics()
	reconciler := reconcile.New(eventStore, client, logger)
	p := poller.New(client, reconciler, eventStore, dispatcher, runMetrics, cfg.Poll.Workers, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Poll.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Poll.Timeout)
		defer cancel()
	}

	report, err := p.Run(ctx, users, entities)

	summary := logger.Info()
	for name, value := range runMetrics.Snapshot() {
		summary = summary.Float64(name, value)
	}
	summary.
		Int("digests_dispatched", report.Sent).
		Int("digests_failed", report.Failed).
		Msg("run summary")

	switch {
	case errors.Is(err, poller.ErrCommitFailed):
		logger.Error().Err(err).Msg("dedup state not committed")
		return 1
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// State was committed before the interruption; the next run picks
		// up cleanly, so a canceled run is not a failure.
		logger.Warn().Err(err).Msg("run interrupted after commit")
		return 0
	case err != nil:
		logger.Error().Err(err).Msg("run failed")
		return 1
	}
	return 0
}
