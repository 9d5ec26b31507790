// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

// Package metrics collects Prometheus counters for one poll run.
//
// Gigwatch is a run-to-completion batch process, so there is no scrape
// endpoint; the counters are gathered at the end of the run and logged as
// the run summary. Using the Prometheus client keeps the metric names and
// types ready for a push gateway should one ever be wired in.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics holds the counters for one run.
type RunMetrics struct {
	registry *prometheus.Registry

	EventsSeen       prometheus.Counter
	EventsNew        prometheus.Counter
	EventsResurfaced prometheus.Counter
	EventsSuppressed prometheus.Counter
	EventsDropped    prometheus.Counter

	FetchErrors     prometheus.Counter
	ReconcileErrors prometheus.Counter

	DigestsSent   prometheus.Counter
	DigestsFailed prometheus.Counter
}

// NewRunMetrics creates a fresh registry and counter set for one run.
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{registry: prometheus.NewRegistry()}

	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gigwatch",
			Name:      name,
			Help:      help,
		})
		m.registry.MustRegister(c)
		return c
	}

	m.EventsSeen = counter("events_seen_total", "Raw events pulled from listings pages.")
	m.EventsNew = counter("events_new_total", "Events recorded for the first time.")
	m.EventsResurfaced = counter("events_resurfaced_total", "Known events whose tickets just became available.")
	m.EventsSuppressed = counter("events_suppressed_total", "Events suppressed by deduplication.")
	m.EventsDropped = counter("events_dropped_total", "Malformed events dropped before reconciliation.")
	m.FetchErrors = counter("fetch_errors_total", "Entity list fetches that failed after retries.")
	m.ReconcileErrors = counter("reconcile_errors_total", "Events skipped due to store invariant violations.")
	m.DigestsSent = counter("digests_sent_total", "User digests delivered.")
	m.DigestsFailed = counter("digests_failed_total", "User digests that failed delivery.")

	return m
}

// Snapshot returns the current counter values by metric name.
func (m *RunMetrics) Snapshot() map[string]float64 {
	out := make(map[string]float64)
	families, err := m.registry.Gather()
	if err != nil {
		return out
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if metric.GetCounter() != nil {
				out[family.GetName()] = metric.GetCounter().GetValue()
			}
		}
	}
	return out
}
