// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package affinity

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/lexsegment/internal/ingest"
)

var industryFirst = Weights{Industry: 0.7, Position: 0.3}

func TestResolveProfiles(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	views := []ingest.ViewEvent{
		{User: "u1", Industry: "金融,保险"},
		{User: "u1", Industry: "保险"},
		{User: "u1", Industry: "金融，证券"},
		{User: "u1", Industry: "保险"},
		{User: "u1", Industry: AllIndustries},
		{User: "u2", Industry: "能源"},
		{User: "u2", Industry: "制造"},
		{User: "u3", Industry: AllIndustries},
		{User: "u3", Industry: ""},
		{User: "other", Industry: "能源"},
	}
	logins := []ingest.LoginEvent{
		{User: "u1", Province: "广东", Time: base.Add(3 * time.Hour)},
		{User: "u1", Province: "北京", Time: base.Add(1 * time.Hour)},
		{User: "u1", Province: "", Time: base.Add(5 * time.Hour)},
		{User: "u2", Province: "上海", Time: base},
	}

	got := ResolveProfiles([]string{"u1", "u2", "u3", "u4"}, views, logins)

	want := []Profile{
		// 金融 and 保险 both count 2; 金融 was seen first.
		{User: "u1", Industry: "金融", Region: "广东"},
		{User: "u2", Industry: "能源", Region: "上海"},
		{User: "u3", Industry: AllIndustries, Region: ""},
		{User: "u4", Industry: AllIndustries, Region: ""},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d profiles, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("profile %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPrimaryIndustry(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"金融,保险":   "金融",
		"金融，保险":   "金融",
		" 能源 ":    "能源",
		"":        "",
		",保险":     "",
		"所有行业,金融": AllIndustries,
	}
	for in, want := range tests {
		if got := primaryIndustry(in); got != want {
			t.Errorf("primaryIndustry(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Profile
		want float64
	}{
		{"industry only", Profile{Industry: "X", Region: "P"}, Profile{Industry: "X", Region: "Q"}, 0.7},
		{"region only", Profile{Industry: "X", Region: "P"}, Profile{Industry: "Y", Region: "P"}, 0.3},
		{"both", Profile{Industry: "X", Region: "P"}, Profile{Industry: "X", Region: "P"}, 1.0},
		{"neither", Profile{Industry: "X", Region: "P"}, Profile{Industry: "Y", Region: "Q"}, 0},
		{"sentinel industry matches itself", Profile{Industry: AllIndustries}, Profile{Industry: AllIndustries}, 0.7},
		{"empty region never matches", Profile{Industry: "X"}, Profile{Industry: "Y"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Score(tt.a, tt.b, industryFirst); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func sampleProfiles() []Profile {
	return []Profile{
		{User: "A", Industry: "X", Region: "P"},
		{User: "B", Industry: "X", Region: "Q"},
		{User: "C", Industry: "Y", Region: "P"},
		{User: "D", Industry: AllIndustries, Region: ""},
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	m, err := Build(sampleProfiles(), industryFirst, 0)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if m.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", m.Len())
	}

	for i := 0; i < m.Len(); i++ {
		for j := 0; j < m.Len(); j++ {
			if m.At(i, j) != m.At(j, i) {
				t.Errorf("matrix not symmetric at (%d,%d)", i, j)
			}
			if v := m.At(i, j); v < 0 || v > 1+1e-12 {
				t.Errorf("cell (%d,%d) = %v outside [0,1]", i, j, v)
			}
		}
	}
	if math.Abs(m.At(0, 1)-0.7) > 1e-12 || math.Abs(m.At(0, 2)-0.3) > 1e-12 || m.At(0, 3) != 0 {
		t.Errorf("unexpected row 0: %v %v %v", m.At(0, 1), m.At(0, 2), m.At(0, 3))
	}
	if m.Users[2] != "C" {
		t.Errorf("users should keep profile order, got %v", m.Users)
	}
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	if _, err := Build(sampleProfiles(), industryFirst, 3); !errors.Is(err, ErrCohortTooLarge) {
		t.Errorf("expected ErrCohortTooLarge, got %v", err)
	}
	if _, err := Build(sampleProfiles(), Weights{Industry: 0.7, Position: 0.7}, 0); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("expected ErrInvalidWeights, got %v", err)
	}

	m, err := Build(nil, industryFirst, 0)
	if err != nil || m.Len() != 0 {
		t.Errorf("empty cohort: len=%d err=%v", m.Len(), err)
	}
}

func TestRows(t *testing.T) {
	t.Parallel()

	profiles := sampleProfiles()
	m, err := Build(profiles, industryFirst, 0)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var rows int
	err = Rows(profiles, industryFirst, func(i int, row []float64) error {
		rows++
		for j, v := range row {
			if want := Score(profiles[i], profiles[j], industryFirst); v != want {
				t.Errorf("row %d col %d = %v, want %v", i, j, v, want)
			}
			if v != m.At(i, j) {
				t.Errorf("row %d col %d = %v, Build has %v", i, j, v, m.At(i, j))
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	if rows != len(profiles) {
		t.Errorf("streamed %d rows, want %d", rows, len(profiles))
	}

	stop := errors.New("stop")
	if err := Rows(profiles, industryFirst, func(int, []float64) error { return stop }); !errors.Is(err, stop) {
		t.Errorf("expected callback error to propagate, got %v", err)
	}
}
