// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package config

import (
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/lexsegment/internal/validation"
)

// weightTolerance bounds the rounding error accepted when weights must sum to 1.
const weightTolerance = 1e-9

// Config holds the complete pipeline configuration.
type Config struct {
	Input     InputConfig     `koanf:"input"`
	Output    OutputConfig    `koanf:"output"`
	Segment   SegmentConfig   `koanf:"segment"`
	Value     ValueConfig     `koanf:"value"`
	Cohorts   []CohortConfig  `koanf:"cohorts" validate:"min=1,unique=Tag,dive"`
	Cluster   ClusterConfig   `koanf:"cluster"`
	Recommend RecommendConfig `koanf:"recommend"`
	Merge     MergeConfig     `koanf:"merge"`
	Export    ExportConfig    `koanf:"export"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Geocode   GeocodeConfig   `koanf:"geocode"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// InputConfig locates the raw interaction logs.
type InputConfig struct {
	LoginPath    string `koanf:"login_path" validate:"required"`
	ViewPath     string `koanf:"view_path" validate:"required"`
	DownloadPath string `koanf:"download_path" validate:"required"`

	// TimestampLayout is the Go layout of the login createtime column.
	// Default: 2006/01/02 15:04:05.
	TimestampLayout string `koanf:"timestamp_layout" validate:"required"`

	Columns ColumnConfig `koanf:"columns"`
}

// ColumnConfig names the header columns read from each input file.
type ColumnConfig struct {
	LoginUser      string `koanf:"login_user" validate:"required"`
	LoginTime      string `koanf:"login_time" validate:"required"`
	LoginProvince  string `koanf:"login_province" validate:"required"`
	LoginCity      string `koanf:"login_city" validate:"required"`
	LoginLongitude string `koanf:"login_longitude" validate:"required"`
	LoginLatitude  string `koanf:"login_latitude" validate:"required"`
	LoginCounty    string `koanf:"login_county" validate:"required"`
	ViewUser       string `koanf:"view_user" validate:"required"`
	ViewItem       string `koanf:"view_item" validate:"required"`
	ViewName       string `koanf:"view_name" validate:"required"`
	ViewDocNum     string `koanf:"view_doc_num" validate:"required"`
	ViewIndustry   string `koanf:"view_industry" validate:"required"`
	DownloadUser   string `koanf:"download_user" validate:"required"`
	DownloadItem   string `koanf:"download_item" validate:"required"`
}

// OutputConfig controls where artifact tables are written.
type OutputConfig struct {
	// WorkDir receives the segment table and the per-cohort intermediate tables.
	// Default: out.
	WorkDir string `koanf:"work_dir" validate:"required"`

	// ResultPath is the final merged recommendation table.
	// Default: out/recommendations.csv.
	ResultPath string `koanf:"result_path" validate:"required"`
}

// SegmentConfig configures behavioral tiering.
type SegmentConfig struct {
	// LongWindow bounds the location-diversity and CLV observation window.
	// Default: 4320h (180 days).
	LongWindow time.Duration `koanf:"long_window" validate:"gt=0"`

	// ShortWindow bounds the recent-login count.
	// Default: 720h (30 days).
	ShortWindow time.Duration `koanf:"short_window" validate:"gt=0"`
}

// ValueConfig configures the lifetime value oracle.
type ValueConfig struct {
	// Periods is the number of forecast periods summed into the value.
	// Default: 12.
	Periods int `koanf:"periods" validate:"gte=1"`

	// PeriodDays is the length of one forecast period in days.
	// Default: 30.
	PeriodDays int `koanf:"period_days" validate:"gte=1"`

	// DiscountRate is the per-period discount applied to future value.
	// Default: 0.
	DiscountRate float64 `koanf:"discount_rate" validate:"gte=0"`

	// Penalizer is the L2 penalty on fitted log-parameters.
	// Default: 0.
	Penalizer float64 `koanf:"penalizer" validate:"gte=0"`

	// MaxIterations bounds each Nelder-Mead fit.
	// Default: 10000.
	MaxIterations int `koanf:"max_iterations" validate:"gte=1"`
}

// CohortConfig selects one personalized cohort and its affinity weights.
type CohortConfig struct {
	// Tag is the priority tag of the users in the cohort.
	Tag int `koanf:"tag" validate:"oneof=1 2 3"`

	// IndustryWeight is added when two users share a dominant industry.
	IndustryWeight float64 `koanf:"industry_weight" validate:"gte=0,lte=1"`

	// PositionWeight is added when two users share a region.
	PositionWeight float64 `koanf:"position_weight" validate:"gte=0,lte=1"`

	// Preference is the self-similarity placed on the matrix diagonal.
	// Default: 1.
	Preference float64 `koanf:"preference"`
}

// ClusterConfig configures affinity propagation.
type ClusterConfig struct {
	// Damping factor in [0.5, 1).
	// Default: 0.5.
	Damping float64 `koanf:"damping" validate:"gte=0.5,lt=1"`

	// MaxIterations bounds the message-passing loop.
	// Default: 200.
	MaxIterations int `koanf:"max_iterations" validate:"gte=1"`

	// ConvergenceIterations is the number of stable iterations that ends the loop.
	// Default: 15.
	ConvergenceIterations int `koanf:"convergence_iterations" validate:"gte=1"`

	// Seed drives the tiny noise added to break similarity ties.
	// Default: 0.
	Seed int64 `koanf:"seed"`

	// MaxCohortSize bounds the dense affinity matrix. 0 means unbounded.
	// Default: 0.
	MaxCohortSize int `koanf:"max_cohort_size" validate:"gte=0"`
}

// RecommendConfig configures preference building, neighbor search and scoring.
type RecommendConfig struct {
	// ViewWeight is the preference added per view event.
	// Default: 0.5.
	ViewWeight float64 `koanf:"view_weight" validate:"gte=0"`

	// DownloadWeight is the preference added per download event.
	// Default: 0.5.
	DownloadWeight float64 `koanf:"download_weight" validate:"gte=0"`

	// Neighbors is K, the maximum neighbors kept per user.
	// Default: 50.
	Neighbors int `koanf:"neighbors" validate:"gte=1"`

	// Count is N, the number of recommendations per user.
	// Default: 10.
	Count int `koanf:"count" validate:"gte=1"`

	// BlockSize is the number of rows scored per similarity block.
	// Default: 2000.
	BlockSize int `koanf:"block_size" validate:"gte=1"`

	// Workers splits each block across goroutines.
	// Default: 1.
	Workers int `koanf:"workers" validate:"gte=1,lte=256"`

	// MinDifference is the preference gap a neighbor must exceed on an item.
	// Default: 1.
	MinDifference float64 `koanf:"min_difference" validate:"gte=0"`
}

// MergeConfig configures the final merge and padding.
type MergeConfig struct {
	// ExcludeRecommended skips popular items a user was already recommended.
	// Default: false.
	ExcludeRecommended bool `koanf:"exclude_recommended"`
}

// ExportConfig configures the optional DuckDB export of final tables.
type ExportConfig struct {
	// DuckDBPath enables the export when non-empty.
	DuckDBPath string `koanf:"duckdb_path"`
}

// MetricsConfig configures the Prometheus textfile written after a run.
type MetricsConfig struct {
	// TextfilePath enables the textfile when non-empty.
	TextfilePath string `koanf:"textfile_path"`
}

// GeocodeConfig configures reverse geocoding of login coordinates.
type GeocodeConfig struct {
	Endpoint string `koanf:"endpoint" validate:"required,url"`
	APIKey   string `koanf:"api_key"`

	// BatchSize is the number of coordinates per request.
	// Default: 20.
	BatchSize int `koanf:"batch_size" validate:"gte=1,lte=20"`

	// RequestsPerSecond limits outbound requests.
	// Default: 3.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`

	// Timeout bounds each request.
	// Default: 10s.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// CachePath is the BadgerDB directory of resolved coordinates. Empty disables the cache.
	CachePath string `koanf:"cache_path"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	for i, cohort := range c.Cohorts {
		if sum := cohort.IndustryWeight + cohort.PositionWeight; math.Abs(sum-1) > weightTolerance {
			return fmt.Errorf("cohorts[%d]: industry_weight + position_weight must equal 1, got %f", i, sum)
		}
	}
	if c.Segment.ShortWindow > c.Segment.LongWindow {
		return fmt.Errorf("segment.short_window (%s) must not exceed segment.long_window (%s)",
			c.Segment.ShortWindow, c.Segment.LongWindow)
	}
	return nil
}
