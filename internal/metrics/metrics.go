// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

// Package metrics defines the Prometheus collectors for the pricing engine:
// calculation latency and outcomes, rule snapshot refresh health, audit
// buffer pressure, and HTTP API throughput.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Engine metrics
	CalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_calculations_total",
			Help: "Total price calculations by outcome",
		},
		[]string{"status"}, // "ok", "invalid", "panic"
	)

	CalculationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricing_calculation_duration_seconds",
			Help:    "Duration of single-product price calculations",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	RulesApplied = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricing_rules_applied",
			Help:    "Number of rules applied per calculation",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 12},
		},
	)

	RuleEvalErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_rule_eval_errors_total",
			Help: "Total per-rule evaluation faults (rule skipped, pricing continued)",
		},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricing_batch_size",
			Help:    "Number of products per batch request",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 250},
		},
	)

	// Rule snapshot metrics
	SnapshotRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_snapshot_refresh_total",
			Help: "Total rule snapshot refresh attempts by outcome",
		},
		[]string{"status"}, // "ok", "error"
	)

	SnapshotRules = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricing_snapshot_rules",
			Help: "Number of active rules in the current snapshot",
		},
	)

	SnapshotLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricing_snapshot_last_success_timestamp",
			Help: "Unix timestamp of the last successful rule refresh",
		},
	)

	// Audit metrics
	AuditEventsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_audit_events_written_total",
			Help: "Total audit events persisted",
		},
	)

	AuditEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_audit_events_dropped_total",
			Help: "Total audit events dropped because the buffer was full",
		},
	)

	// HTTP API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// ObserveAPIRequest records one completed HTTP request.
func ObserveAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
