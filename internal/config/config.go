// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

// Package config defines Gigwatch's runtime configuration and loads it
// from layered sources via Koanf v2 (defaults, then an optional YAML
// file, then environment variables).
//
// There is no ambient configuration state: main constructs one *Config
// and passes it into the poller and dispatcher explicitly.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete runtime configuration.
type Config struct {
	Source    SourceConfig    `koanf:"source"`
	Store     StoreConfig     `koanf:"store"`
	Poll      PollConfig      `koanf:"poll"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	Interests InterestsConfig `koanf:"interests"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// SourceConfig configures the listings source client.
type SourceConfig struct {
	// VenueURLPrefix, ArtistURLPrefix, PromoterURLPrefix are the listings
	// page URL prefixes; the entity tag is appended to build a page URL.
	VenueURLPrefix    string `koanf:"venue_url_prefix" validate:"required,url"`
	ArtistURLPrefix   string `koanf:"artist_url_prefix" validate:"required,url"`
	PromoterURLPrefix string `koanf:"promoter_url_prefix" validate:"required,url"`

	UserAgent         string        `koanf:"user_agent"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	RetryAttempts     int           `koanf:"retry_attempts" validate:"min=1,max=10"`
	RetryBaseDelay    time.Duration `koanf:"retry_base_delay"`
	BreakerThreshold  uint32        `koanf:"breaker_threshold"`
	BreakerCooldown   time.Duration `koanf:"breaker_cooldown"`
}

// StoreConfig configures the event record store.
type StoreConfig struct {
	// Path is the BadgerDB directory holding event dedup records.
	Path string `koanf:"path" validate:"required"`
}

// PollConfig configures the run pipeline.
type PollConfig struct {
	// Workers bounds concurrent entity fetches. Keep small; the source
	// has informal rate limits.
	Workers int `koanf:"workers" validate:"min=1,max=16"`

	// Timeout bounds the whole run. Zero means no deadline.
	Timeout time.Duration `koanf:"timeout"`
}

// SMTPConfig configures digest delivery.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" validate:"min=0,max=65535"`
	From     string `koanf:"from"`
	FromName string `koanf:"from_name"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	UseTLS   bool   `koanf:"use_tls"`

	Subject     string        `koanf:"subject"`
	MaxAttempts int           `koanf:"max_attempts" validate:"min=1,max=10"`
	BaseDelay   time.Duration `koanf:"base_delay"`
	MaxDelay    time.Duration `koanf:"max_delay"`
	Parallelism int           `koanf:"parallelism" validate:"min=1,max=32"`

	// DryRun renders and logs digests without submitting them.
	DryRun bool `koanf:"dry_run"`
}

// InterestsConfig locates the user subscription file.
type InterestsConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, overridden by the config
// file and environment.
func defaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			UserAgent:         "gigwatch/1.0",
			RequestTimeout:    30 * time.Second,
			RequestsPerSecond: 2,
			RetryAttempts:     3,
			RetryBaseDelay:    2 * time.Second,
			BreakerThreshold:  5,
			BreakerCooldown:   time.Minute,
		},
		Store: StoreConfig{
			Path: "/data/gigwatch/events",
		},
		Poll: PollConfig{
			Workers: 4,
			Timeout: 15 * time.Minute,
		},
		SMTP: SMTPConfig{
			Port:        587,
			FromName:    "Gigwatch",
			UseTLS:      true,
			Subject:     "New events on your radar",
			MaxAttempts: 4,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Parallelism: 5,
		},
		Interests: InterestsConfig{
			Path: "interests.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// SMTP settings are only required when digests are actually sent.
	if !c.SMTP.DryRun {
		if c.SMTP.Host == "" {
			return fmt.Errorf("smtp.host is required unless smtp.dry_run is set")
		}
		if c.SMTP.From == "" {
			return fmt.Errorf("smtp.from is required unless smtp.dry_run is set")
		}
	}
	return nil
}
