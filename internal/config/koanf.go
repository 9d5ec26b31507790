// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces Gigwatch's environment variables.
const envPrefix = "GIGWATCH_"

// envKeyMap maps environment variable suffixes to config paths. Only
// mapped variables are honored; everything else under the prefix is
// ignored rather than guessed at.
var envKeyMap = map[string]string{
	"VENUE_URL_PREFIX":    "source.venue_url_prefix",
	"ARTIST_URL_PREFIX":   "source.artist_url_prefix",
	"PROMOTER_URL_PREFIX": "source.promoter_url_prefix",
	"USER_AGENT":          "source.user_agent",
	"REQUESTS_PER_SECOND": "source.requests_per_second",

	"STORE_PATH":     "store.path",
	"INTERESTS_PATH": "interests.path",

	"POLL_WORKERS": "poll.workers",
	"POLL_TIMEOUT": "poll.timeout",

	"SMTP_HOST":     "smtp.host",
	"SMTP_PORT":     "smtp.port",
	"SMTP_FROM":     "smtp.from",
	"SMTP_USERNAME": "smtp.username",
	"SMTP_PASSWORD": "smtp.password",
	"SMTP_USE_TLS":  "smtp.use_tls",
	"DRY_RUN":       "smtp.dry_run",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
}

// Load builds the configuration from three layers in ascending
// precedence: built-in defaults, an optional YAML file, and environment
// variables. dryRun forces dry-run mode regardless of file and
// environment; it must be applied here so validation never demands SMTP
// settings for a run that will not send.
func Load(configPath string, dryRun bool) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := resolveConfigFile(configPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if dryRun {
		cfg.SMTP.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envTransform maps a prefixed environment variable name to its config
// path, or drops it when unmapped.
func envTransform(name string) string {
	suffix := strings.TrimPrefix(name, envPrefix)
	if path, ok := envKeyMap[suffix]; ok {
		return path
	}
	return ""
}

// resolveConfigFile picks the config file to load. An explicit path
// (flag or GIGWATCH_CONFIG) must exist; the conventional fallbacks are
// optional.
func resolveConfigFile(explicit string) string {
	if explicit == "" {
		explicit = os.Getenv(envPrefix + "CONFIG")
	}
	if explicit != "" {
		return explicit
	}
	for _, candidate := range []string{"gigwatch.yaml", "/etc/gigwatch/gigwatch.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
