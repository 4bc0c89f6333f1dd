// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	if cfg.Segment.LongWindow != 4320*time.Hour {
		t.Errorf("Segment.LongWindow = %v, want 4320h", cfg.Segment.LongWindow)
	}
	if cfg.Segment.ShortWindow != 720*time.Hour {
		t.Errorf("Segment.ShortWindow = %v, want 720h", cfg.Segment.ShortWindow)
	}
	if cfg.Recommend.Neighbors != 50 {
		t.Errorf("Recommend.Neighbors = %d, want 50", cfg.Recommend.Neighbors)
	}
	if cfg.Recommend.Count != 10 {
		t.Errorf("Recommend.Count = %d, want 10", cfg.Recommend.Count)
	}
	if cfg.Recommend.BlockSize != 2000 {
		t.Errorf("Recommend.BlockSize = %d, want 2000", cfg.Recommend.BlockSize)
	}
	if cfg.Merge.ExcludeRecommended {
		t.Error("Merge.ExcludeRecommended should be false by default")
	}
	if len(cfg.Cohorts) != 2 {
		t.Fatalf("expected 2 default cohorts, got %d", len(cfg.Cohorts))
	}
	if cfg.Cohorts[0].IndustryWeight != 0.7 || cfg.Cohorts[1].IndustryWeight != 0.3 {
		t.Errorf("unexpected cohort weights: %+v", cfg.Cohorts)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name: "weights do not sum to 1",
			mutate: func(c *Config) {
				c.Cohorts[0].PositionWeight = 0.5
			},
			wantErr: "cohorts[0]: industry_weight + position_weight must equal 1",
		},
		{
			name: "duplicate cohort tag",
			mutate: func(c *Config) {
				c.Cohorts[1].Tag = 1
			},
			wantErr: "cohorts",
		},
		{
			name: "cohort tag outside priority range",
			mutate: func(c *Config) {
				c.Cohorts[1].Tag = 4
			},
			wantErr: "cohorts[1].tag must be one of: 1 2 3",
		},
		{
			name: "no cohorts",
			mutate: func(c *Config) {
				c.Cohorts = nil
			},
			wantErr: "cohorts",
		},
		{
			name: "zero neighbors",
			mutate: func(c *Config) {
				c.Recommend.Neighbors = 0
			},
			wantErr: "recommend.neighbors must be greater than or equal to 1",
		},
		{
			name: "damping below range",
			mutate: func(c *Config) {
				c.Cluster.Damping = 0.2
			},
			wantErr: "cluster.damping",
		},
		{
			name: "short window longer than long window",
			mutate: func(c *Config) {
				c.Segment.ShortWindow = 200 * 24 * time.Hour
			},
			wantErr: "segment.short_window",
		},
		{
			name: "missing login path",
			mutate: func(c *Config) {
				c.Input.LoginPath = ""
			},
			wantErr: "input.login_path is required",
		},
		{
			name: "unknown log format",
			mutate: func(c *Config) {
				c.Logging.Format = "xml"
			},
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
