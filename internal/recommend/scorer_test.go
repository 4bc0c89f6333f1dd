// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package recommend

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/tomtom215/lexsegment/internal/ingest"
)

type recBuffer struct {
	recs []Recommendation
}

func (b *recBuffer) WriteRecommendation(r Recommendation) error {
	b.recs = append(b.recs, r)
	return nil
}

// scoringMatrix builds:
//
//	   x  y  z  q
//	a  1  0  0  0
//	b  1  3  2  0
//	c  1  0  3  1.5
func scoringMatrix(t *testing.T) *PreferenceMatrix {
	t.Helper()

	views := []ingest.ViewEvent{
		{User: "a", Item: "x"}, {User: "b", Item: "x"}, {User: "c", Item: "x"},
		{User: "b", Item: "y"}, {User: "b", Item: "y"}, {User: "b", Item: "y"},
		{User: "b", Item: "z"}, {User: "b", Item: "z"},
		{User: "c", Item: "z"}, {User: "c", Item: "z"}, {User: "c", Item: "z"},
	}
	downloads := []ingest.DownloadEvent{{User: "c", Item: "q"}}
	m := BuildPreferenceMatrix([]string{"a", "b", "c"}, views, downloads, Weights{View: 1, Download: 1.5})
	if !slices.Equal(m.Items, []string{"x", "y", "z", "q"}) {
		t.Fatalf("unexpected item order %v", m.Items)
	}
	return m
}

func TestScore(t *testing.T) {
	t.Parallel()

	m := scoringMatrix(t)
	tests := []struct {
		name string
		n    int
		want []Recommendation
	}{
		{
			name: "top two",
			n:    2,
			want: []Recommendation{
				{User: "a", Item: "z", Score: 1.75},
				{User: "a", Item: "y", Score: 1.5},
			},
		},
		{
			name: "all scored documents",
			n:    10,
			want: []Recommendation{
				{User: "a", Item: "z", Score: 1.75},
				{User: "a", Item: "y", Score: 1.5},
				{User: "a", Item: "q", Score: 0.375},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// b's group scores nothing; a's group is last and must be flushed.
			edges := &edgeBuffer{edges: []Edge{
				{User: "b", Neighbor: "a", Similarity: 0.5},
				{User: "a", Neighbor: "b", Similarity: 0.5},
				{User: "a", Neighbor: "c", Similarity: 0.25},
			}}
			var out recBuffer
			n, err := Score(context.Background(), m, edges, ScoreConfig{N: tt.n, MinDifference: 1}, &out)
			if err != nil {
				t.Fatalf("Score() error = %v", err)
			}
			if n != len(tt.want) {
				t.Errorf("Score() wrote %d, want %d", n, len(tt.want))
			}
			if !slices.Equal(out.recs, tt.want) {
				t.Errorf("Score() = %v, want %v", out.recs, tt.want)
			}
		})
	}
}

func TestScoreMinDifference(t *testing.T) {
	t.Parallel()

	m := scoringMatrix(t)
	edges := &edgeBuffer{edges: []Edge{{User: "a", Neighbor: "b", Similarity: 1}}}

	var out recBuffer
	// Only y clears a gap of 2.5.
	if _, err := Score(context.Background(), m, edges, ScoreConfig{N: 10, MinDifference: 2.5}, &out); err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	want := []Recommendation{{User: "a", Item: "y", Score: 3}}
	if !slices.Equal(out.recs, want) {
		t.Errorf("Score() = %v, want %v", out.recs, want)
	}
}

func TestScoreTieBreaksByItemID(t *testing.T) {
	t.Parallel()

	m := newTestMatrix([]string{"u", "v"}, []string{"m", "k", "p"}, []float64{
		0, 0, 0,
		2, 2, 2,
	})
	edges := &edgeBuffer{edges: []Edge{{User: "u", Neighbor: "v", Similarity: 0.5}}}

	var out recBuffer
	if _, err := Score(context.Background(), m, edges, ScoreConfig{N: 2, MinDifference: 1}, &out); err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	got := []string{out.recs[0].Item, out.recs[1].Item}
	if !slices.Equal(got, []string{"k", "m"}) {
		t.Errorf("tied documents = %v, want [k m]", got)
	}
}

func TestScoreNoEdges(t *testing.T) {
	t.Parallel()

	var out recBuffer
	n, err := Score(context.Background(), scoringMatrix(t), &edgeBuffer{}, DefaultScoreConfig(), &out)
	if err != nil || n != 0 || len(out.recs) != 0 {
		t.Errorf("Score(no edges) = %d, %v, %v", n, err, out.recs)
	}
}

func TestScoreUnknownUser(t *testing.T) {
	t.Parallel()

	edges := &edgeBuffer{edges: []Edge{{User: "a", Neighbor: "ghost", Similarity: 0.9}}}
	_, err := Score(context.Background(), scoringMatrix(t), edges, DefaultScoreConfig(), &recBuffer{})
	if !errors.Is(err, ErrUnknownUser) {
		t.Errorf("expected ErrUnknownUser, got %v", err)
	}
}

func TestScoreInvalidCount(t *testing.T) {
	t.Parallel()

	_, err := Score(context.Background(), scoringMatrix(t), &edgeBuffer{}, ScoreConfig{N: 0}, &recBuffer{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestOrthogonalUsersArePadded(t *testing.T) {
	t.Parallel()

	views := []ingest.ViewEvent{
		{User: "a", Item: "i1"}, {User: "a", Item: "i1"}, {User: "a", Item: "i1"},
		{User: "b", Item: "i2"}, {User: "b", Item: "i2"}, {User: "b", Item: "i2"},
	}
	downloads := []ingest.DownloadEvent{{User: "a", Item: "i3"}}
	m := BuildPreferenceMatrix([]string{"a", "b"}, views, downloads, Weights{View: 1, Download: 0})

	var edges edgeBuffer
	if _, err := SearchNeighbors(context.Background(), m, DefaultNeighborConfig(), &edges); err != nil {
		t.Fatalf("SearchNeighbors() error = %v", err)
	}
	merger := NewMerger(MergeConfig{N: 2}, NewCatalog(views))
	if _, err := Score(context.Background(), m, &edges, ScoreConfig{N: 2, MinDifference: 1}, merger); err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	pop := Popular(views, downloads, 2)
	stats := merger.Pad([]string{"a", "b"}, pop)
	if stats.Personalized != 0 || stats.Padded != 4 {
		t.Errorf("stats = %+v, want 0 personalized and 4 padded", stats)
	}
	for _, row := range merger.Rows() {
		if !row.Padded || row.Score != 0 {
			t.Errorf("row %+v should be a zero-score pad", row)
		}
	}
}
