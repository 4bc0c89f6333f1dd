// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

/*
Package config provides layered configuration for the LexSegment pipeline.

# Configuration Sources

Values are resolved with koanf in three layers (later layers win):

  - Built-in defaults (defaultConfig)
  - An optional YAML file (-config flag, LEXSEG_CONFIG, or DefaultConfigPaths)
  - Environment variables listed in envMappings

# Configuration Structure

  - InputConfig: log file paths, timestamp layout and column names
  - OutputConfig: work directory and final result path
  - SegmentConfig: tiering windows
  - ValueConfig: lifetime value forecast horizon and fit bounds
  - CohortConfig: per-cohort priority tag and affinity weights
  - ClusterConfig: affinity propagation parameters
  - RecommendConfig: preference weights, K, N, block size and workers
  - MergeConfig: padding behavior
  - ExportConfig, MetricsConfig: optional DuckDB export and Prometheus textfile
  - GeocodeConfig: AMap reverse geocoding for the geocode command
  - LoggingConfig: zerolog level and format

Cohorts can only be set from the YAML file:

	cohorts:
	  - tag: 1
	    industry_weight: 0.7
	    position_weight: 0.3
	    preference: 1
	  - tag: 2
	    industry_weight: 0.3
	    position_weight: 0.7
	    preference: 1

# Validation

Validate applies validator/v10 struct tags through the validation package
and then cross-field rules: each cohort's weights must sum to 1 and the
short tiering window may not exceed the long one.
*/
package config
