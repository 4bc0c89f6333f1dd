// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

/*
Package metrics provides Prometheus instrumentation for pipeline runs.

Collectors are registered on the default registry with promauto. A run does
not serve /metrics; when metrics.textfile_path is set the pipeline calls
WriteTextfile after the final stage so the node exporter textfile collector
can pick the values up.

# Available Metrics

Stage Metrics:
  - lexsegment_stage_duration_seconds: Stage duration (histogram)
    Labels: stage
  - lexsegment_stage_errors_total: Failed stages (counter)
    Labels: stage
  - lexsegment_last_success_timestamp: Unix time of the last successful run (gauge)

Segmentation Metrics:
  - lexsegment_users_total: Users per tier (gauge)
    Labels: tier (senior, middle, primary)
  - lexsegment_priority_users: Users per priority tag (gauge)
    Labels: priority (1, 2, 3)

Cohort Metrics:
  - lexsegment_clusters_total: Clusters per cohort (gauge)
  - lexsegment_neighbor_edges_total: Neighbor edges per cohort (counter)

Recommendation Metrics:
  - lexsegment_recommendations_total: Final rows (counter)
    Labels: kind (personalized, padded)
  - lexsegment_padding_shortfall_users: Users below N after padding (gauge)

Geocoding Metrics:
  - lexsegment_geocode_requests_total: Batch requests (counter)
    Labels: result (success, failure, rejected)
  - lexsegment_geocode_cache_hits_total: Cached coordinates (counter)
  - lexsegment_circuit_breaker_state: Breaker state (gauge)
  - lexsegment_circuit_breaker_transitions_total: Breaker transitions (counter)

Warehouse Metrics:
  - lexsegment_duckdb_query_duration_seconds: Export statement time (histogram)
  - lexsegment_duckdb_query_errors_total: Failed export statements (counter)

# Usage

	start := time.Now()
	err := runStage(ctx)
	metrics.ObserveStage("tiering", time.Since(start), err)

	if err := metrics.WriteTextfile("/var/lib/node_exporter/lexsegment.prom"); err != nil {
		logging.Warn().Err(err).Msg("Metrics textfile not written")
	}
*/
package metrics
