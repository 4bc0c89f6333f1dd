// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package segment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/lexsegment/internal/clv"
	"github.com/tomtom215/lexsegment/internal/ingest"
)

type stubEstimator struct {
	values map[string]float64
	err    error
	seen   []clv.Customer
}

func (s *stubEstimator) Estimate(_ context.Context, customers []clv.Customer) (map[string]float64, error) {
	s.seen = customers
	return s.values, s.err
}

func TestPriorityOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tier Tier
		tag  ValueTag
		want Priority
	}{
		{Senior, High, 1},
		{Senior, Low, 2},
		{Middle, High, 2},
		{Middle, Low, 3},
		{Primary, High, 2},
		{Primary, Low, 3},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier)+"_"+string(tt.tag), func(t *testing.T) {
			t.Parallel()
			got, err := PriorityOf(tt.tier, tt.tag)
			if err != nil {
				t.Fatalf("PriorityOf() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("PriorityOf(%s, %s) = %d, want %d", tt.tier, tt.tag, got, tt.want)
			}
		})
	}

	if _, err := PriorityOf("expert", High); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("expected ErrUnknownTier, got %v", err)
	}
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	for _, tag := range []int{1, 2, 3} {
		if p, err := ParsePriority(tag); err != nil || int(p) != tag {
			t.Errorf("ParsePriority(%d) = %d, %v", tag, p, err)
		}
	}
	for _, tag := range []int{0, 4, -1} {
		if _, err := ParsePriority(tag); !errors.Is(err, ErrInvalidPriority) {
			t.Errorf("ParsePriority(%d) expected ErrInvalidPriority, got %v", tag, err)
		}
	}
}

func threeUserTiering() (Tiering, []ingest.LoginEvent) {
	events := []ingest.LoginEvent{
		login("A", "北京市", time.Hour),
		login("B", "北京市", 2*time.Hour),
		login("C", "北京市", 3*time.Hour),
	}
	return Tiering{
		Latest: anchor,
		Users: []Assignment{
			{User: "A", Tier: Senior, Stats: Stats{DistinctLocations: 4, RecentLogins: 15}},
			{User: "B", Tier: Middle, Stats: Stats{DistinctLocations: 1, RecentLogins: 7}},
			{User: "C", Tier: Primary, Stats: Stats{DistinctLocations: 2, RecentLogins: 2}},
		},
	}, events
}

func TestTagValues(t *testing.T) {
	t.Parallel()

	tiering, events := threeUserTiering()
	est := &stubEstimator{values: map[string]float64{"A": 100, "B": 40, "C": 5}}

	users, err := TagValues(context.Background(), tiering, events, 180*24*time.Hour, est)
	if err != nil {
		t.Fatalf("TagValues() error = %v", err)
	}
	if len(est.seen) != 3 {
		t.Errorf("estimator should receive a summary per user, got %d", len(est.seen))
	}

	want := map[string]struct {
		tag      ValueTag
		priority Priority
	}{
		"A": {High, 1},
		"B": {Low, 3},
		"C": {Low, 3},
	}
	for _, u := range users {
		w := want[u.ID]
		if u.ValueTag != w.tag || u.Priority != w.priority {
			t.Errorf("user %s: tag=%s priority=%d, want tag=%s priority=%d", u.ID, u.ValueTag, u.Priority, w.tag, w.priority)
		}
	}

	if c := Cohort(users, 1); len(c) != 1 || c[0].ID != "A" {
		t.Errorf("cohort 1 = %+v, want [A]", c)
	}
	if c := Cohort(users, 3); len(c) != 2 || c[0].ID != "B" || c[1].ID != "C" {
		t.Errorf("cohort 3 = %+v, want [B C]", c)
	}
	if c := Cohort(users, 2); len(c) != 0 {
		t.Errorf("cohort 2 should be empty, got %+v", c)
	}
}

func TestTagValues_EqualValuesAreLow(t *testing.T) {
	t.Parallel()

	tiering, events := threeUserTiering()
	est := &stubEstimator{values: map[string]float64{"A": 7, "B": 7, "C": 7}}

	users, err := TagValues(context.Background(), tiering, events, 180*24*time.Hour, est)
	if err != nil {
		t.Fatalf("TagValues() error = %v", err)
	}
	for _, u := range users {
		if u.ValueTag != Low {
			t.Errorf("user %s should be low when equal to the mean", u.ID)
		}
	}
}

func TestTagValues_MeanIsOrderIndependent(t *testing.T) {
	t.Parallel()

	// Summing 1e16 and 1 before -1e16 loses the 1, which moves the mean
	// across D's value. Only a fixed summation order keeps D's tag stable.
	events := []ingest.LoginEvent{
		login("A", "北京市", time.Hour),
		login("B", "北京市", 2*time.Hour),
		login("C", "北京市", 3*time.Hour),
		login("D", "北京市", 4*time.Hour),
	}
	tiering := Tiering{
		Latest: anchor,
		Users: []Assignment{
			{User: "A", Tier: Primary},
			{User: "B", Tier: Primary},
			{User: "C", Tier: Primary},
			{User: "D", Tier: Primary},
		},
	}
	est := &stubEstimator{values: map[string]float64{"A": 1e16, "B": -1e16, "C": 3, "D": 1}}

	for i := 0; i < 50; i++ {
		users, err := TagValues(context.Background(), tiering, events, 180*24*time.Hour, est)
		if err != nil {
			t.Fatalf("TagValues() error = %v", err)
		}
		if users[3].ID != "D" || users[3].ValueTag != Low {
			t.Fatalf("run %d: user %s tag = %s, want D low", i, users[3].ID, users[3].ValueTag)
		}
	}
}

func TestTagValues_Errors(t *testing.T) {
	t.Parallel()

	tiering, events := threeUserTiering()
	boom := errors.New("fit failed")

	tests := []struct {
		name    string
		est     *stubEstimator
		wantErr error
	}{
		{"oracle failure", &stubEstimator{err: boom}, boom},
		{"missing user", &stubEstimator{values: map[string]float64{"A": 1, "B": 2}}, ErrMissingEstimate},
		{"no estimates", &stubEstimator{values: map[string]float64{}}, ErrMissingEstimate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := TagValues(context.Background(), tiering, events, 180*24*time.Hour, tt.est)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
