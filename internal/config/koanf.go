// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"lexsegment.yaml",
	"lexsegment.yml",
	"/etc/lexsegment/config.yaml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "LEXSEG_CONFIG"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			LoginPath:       "data/login.csv",
			ViewPath:        "data/view.csv",
			DownloadPath:    "data/download.csv",
			TimestampLayout: "2006/01/02 15:04:05",
			Columns: ColumnConfig{
				LoginUser:      "telphone",
				LoginTime:      "createtime",
				LoginProvince:  "province",
				LoginCity:      "city",
				LoginLongitude: "longitude",
				LoginLatitude:  "latitude",
				LoginCounty:    "county",
				ViewUser:       "username",
				ViewItem:       "lawId",
				ViewName:       "nameCN",
				ViewDocNum:     "documentNum",
				ViewIndustry:   "industry",
				DownloadUser:   "username",
				DownloadItem:   "lawId",
			},
		},
		Output: OutputConfig{
			WorkDir:    "out",
			ResultPath: "out/recommendations.csv",
		},
		Segment: SegmentConfig{
			LongWindow:  180 * 24 * time.Hour,
			ShortWindow: 30 * 24 * time.Hour,
		},
		Value: ValueConfig{
			Periods:       12,
			PeriodDays:    30,
			DiscountRate:  0,
			Penalizer:     0,
			MaxIterations: 10000,
		},
		// Cohort 1 clusters on industry first, cohort 2 on region first.
		Cohorts: []CohortConfig{
			{Tag: 1, IndustryWeight: 0.7, PositionWeight: 0.3, Preference: 1},
			{Tag: 2, IndustryWeight: 0.3, PositionWeight: 0.7, Preference: 1},
		},
		Cluster: ClusterConfig{
			Damping:               0.5,
			MaxIterations:         200,
			ConvergenceIterations: 15,
			Seed:                  0,
			MaxCohortSize:         0,
		},
		Recommend: RecommendConfig{
			ViewWeight:     0.5,
			DownloadWeight: 0.5,
			Neighbors:      50,
			Count:          10,
			BlockSize:      2000,
			Workers:        1,
			MinDifference:  1,
		},
		Merge: MergeConfig{
			ExcludeRecommended: false,
		},
		Geocode: GeocodeConfig{
			Endpoint:          "https://restapi.amap.com/v3/geocode/regeo",
			BatchSize:         20,
			RequestsPerSecond: 3,
			Timeout:           10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Default returns the default configuration.
func Default() *Config {
	return defaultConfig()
}

// LoadWithKoanf loads configuration using Koanf with layered sources.
//
// Priority (highest wins):
//  1. Environment variables
//  2. Config file (path argument, LEXSEG_CONFIG, or DefaultConfigPaths)
//  3. Built-in defaults
func LoadWithKoanf(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// LOG_LEVEL -> logging.level, WORK_DIR -> output.work_dir
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile resolves the config file to load. An explicit path must
// exist; the environment override and default paths are optional.
func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

var envMappings = map[string]string{
	"login_path":    "input.login_path",
	"view_path":     "input.view_path",
	"download_path": "input.download_path",

	"work_dir":    "output.work_dir",
	"result_path": "output.result_path",

	"segment_long_window":  "segment.long_window",
	"segment_short_window": "segment.short_window",

	"clv_periods":       "value.periods",
	"clv_period_days":   "value.period_days",
	"clv_discount_rate": "value.discount_rate",
	"clv_penalizer":     "value.penalizer",

	"cluster_damping":         "cluster.damping",
	"cluster_max_iterations":  "cluster.max_iterations",
	"cluster_seed":            "cluster.seed",
	"cluster_max_cohort_size": "cluster.max_cohort_size",

	"recommend_view_weight":     "recommend.view_weight",
	"recommend_download_weight": "recommend.download_weight",
	"recommend_neighbors":       "recommend.neighbors",
	"recommend_count":           "recommend.count",
	"recommend_block_size":      "recommend.block_size",
	"recommend_workers":         "recommend.workers",

	"merge_exclude_recommended": "merge.exclude_recommended",

	"duckdb_path":           "export.duckdb_path",
	"metrics_textfile_path": "metrics.textfile_path",

	"amap_endpoint":      "geocode.endpoint",
	"amap_key":           "geocode.api_key",
	"geocode_batch_size": "geocode.batch_size",
	"geocode_rate":       "geocode.requests_per_second",
	"geocode_timeout":    "geocode.timeout",
	"geocode_cache_path": "geocode.cache_path",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps known environment variables to koanf paths.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
