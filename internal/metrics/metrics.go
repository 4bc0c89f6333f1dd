// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for pipeline runs. The process is a batch job, so
// collectors are exported once per run through WriteTextfile rather than
// scraped.

var (
	// Stage Metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lexsegment_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600},
		},
		[]string{"stage"}, // "ingest", "tiering", "value", "cohort", "merge", "export"
	)

	StageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexsegment_stage_errors_total",
			Help: "Total number of failed pipeline stages",
		},
		[]string{"stage"},
	)

	LastSuccessTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lexsegment_last_success_timestamp",
			Help: "Unix timestamp of the last successful run",
		},
	)

	// Segmentation Metrics
	UsersTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lexsegment_users_total",
			Help: "Number of tiered users by tier",
		},
		[]string{"tier"}, // "senior", "middle", "primary"
	)

	PriorityUsers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lexsegment_priority_users",
			Help: "Number of users by priority tag",
		},
		[]string{"priority"}, // "1", "2", "3"
	)

	// Cohort Metrics
	ClustersTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lexsegment_clusters_total",
			Help: "Number of clusters found per cohort",
		},
		[]string{"cohort"},
	)

	NeighborEdgesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexsegment_neighbor_edges_total",
			Help: "Total number of neighbor edges written per cohort",
		},
		[]string{"cohort"},
	)

	// Recommendation Metrics
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexsegment_recommendations_total",
			Help: "Total number of final recommendation rows by kind",
		},
		[]string{"kind"}, // "personalized", "padded"
	)

	PaddingShortfallUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lexsegment_padding_shortfall_users",
			Help: "Users left with fewer than N recommendations after padding",
		},
	)

	// Geocoding Metrics
	GeocodeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexsegment_geocode_requests_total",
			Help: "Total number of reverse geocoding batch requests",
		},
		[]string{"result"}, // "success", "failure", "rejected"
	)

	GeocodeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexsegment_geocode_cache_hits_total",
			Help: "Total number of coordinates resolved from the local cache",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lexsegment_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexsegment_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Warehouse Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lexsegment_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB export statements in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexsegment_duckdb_query_errors_total",
			Help: "Total number of failed DuckDB export statements",
		},
		[]string{"operation", "table"},
	)
)

// ObserveStage records the duration of a stage and counts it as failed when err is non-nil.
func ObserveStage(stage string, duration time.Duration, err error) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if err != nil {
		StageErrors.WithLabelValues(stage).Inc()
	}
}

// RecordTiers replaces the per-tier user gauges.
func RecordTiers(counts map[string]int) {
	UsersTotal.Reset()
	for tier, n := range counts {
		UsersTotal.WithLabelValues(tier).Set(float64(n))
	}
}

// RecordPriorities replaces the per-priority user gauges.
func RecordPriorities(counts map[int]int) {
	PriorityUsers.Reset()
	for p, n := range counts {
		PriorityUsers.WithLabelValues(strconv.Itoa(p)).Set(float64(n))
	}
}

// RecordCohort records the clusters and neighbor edges of one cohort.
func RecordCohort(tag, clusters, edges int) {
	label := strconv.Itoa(tag)
	ClustersTotal.WithLabelValues(label).Set(float64(clusters))
	NeighborEdgesTotal.WithLabelValues(label).Add(float64(edges))
}

// RecordMerge records the final table composition.
func RecordMerge(personalized, padded, shortUsers int) {
	RecommendationsTotal.WithLabelValues("personalized").Add(float64(personalized))
	RecommendationsTotal.WithLabelValues("padded").Add(float64(padded))
	PaddingShortfallUsers.Set(float64(shortUsers))
}

// RecordRunSuccess stamps the completion time of a successful run.
func RecordRunSuccess(at time.Time) {
	LastSuccessTimestamp.Set(float64(at.Unix()))
}

// RecordDBQuery records one export statement.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// WriteTextfile writes every registered collector to path in the text
// exposition format, for the node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
