// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package recommend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// edgeBuffer is an in-memory EdgeSink and EdgeSource.
type edgeBuffer struct {
	edges []Edge
	pos   int
}

func (b *edgeBuffer) WriteEdge(e Edge) error {
	b.edges = append(b.edges, e)
	return nil
}

func (b *edgeBuffer) NextEdge() (Edge, error) {
	if b.pos >= len(b.edges) {
		return Edge{}, io.EOF
	}
	e := b.edges[b.pos]
	b.pos++
	return e, nil
}

// newTestMatrix builds a matrix with user and item indices in slice order.
func newTestMatrix(users, items []string, data []float64) *PreferenceMatrix {
	m := &PreferenceMatrix{
		Users:     users,
		Items:     items,
		Data:      mat.NewDense(len(users), len(items), data),
		userIndex: make(map[string]int),
		itemIndex: make(map[string]int),
	}
	for i, u := range users {
		m.userIndex[u] = i
	}
	for j, it := range items {
		m.itemIndex[it] = j
	}
	return m
}

func TestSearchNeighborsOrthogonal(t *testing.T) {
	t.Parallel()

	m := newTestMatrix([]string{"a", "b"}, []string{"i1", "i2", "i3"}, []float64{
		3, 0, 0,
		0, 3, 0,
	})

	var buf edgeBuffer
	n, err := SearchNeighbors(context.Background(), m, DefaultNeighborConfig(), &buf)
	if err != nil {
		t.Fatalf("SearchNeighbors() error = %v", err)
	}
	if n != 0 || len(buf.edges) != 0 {
		t.Errorf("expected no edges between orthogonal users, got %v", buf.edges)
	}
}

func TestSearchNeighborsTiesAndZeroRows(t *testing.T) {
	t.Parallel()

	m := newTestMatrix([]string{"a", "b", "c", "d"}, []string{"x", "y"}, []float64{
		1, 0,
		1, 1,
		0, 1,
		0, 0,
	})

	var buf edgeBuffer
	cfg := NeighborConfig{K: 1, BlockSize: 3, Workers: 1}
	if _, err := SearchNeighbors(context.Background(), m, cfg, &buf); err != nil {
		t.Fatalf("SearchNeighbors() error = %v", err)
	}

	want := []struct{ user, neighbor string }{
		{"a", "b"},
		// a and c tie for b; the lower column wins.
		{"b", "a"},
		{"c", "b"},
	}
	if len(buf.edges) != len(want) {
		t.Fatalf("expected %d edges, got %v", len(want), buf.edges)
	}
	for i, w := range want {
		e := buf.edges[i]
		if e.User != w.user || e.Neighbor != w.neighbor {
			t.Errorf("edge %d = %s->%s, want %s->%s", i, e.User, e.Neighbor, w.user, w.neighbor)
		}
		if math.Abs(e.Similarity-1/math.Sqrt2) > 1e-12 {
			t.Errorf("edge %d similarity = %v, want 1/sqrt(2)", i, e.Similarity)
		}
	}
}

// syntheticMatrix returns a deterministic sparse-ish preference matrix.
func syntheticMatrix(users, items int) *PreferenceMatrix {
	u := make([]string, users)
	for i := range u {
		u[i] = fmt.Sprintf("u%02d", i)
	}
	it := make([]string, items)
	for j := range it {
		it[j] = fmt.Sprintf("d%02d", j)
	}
	data := make([]float64, users*items)
	for i := range users {
		for j := range items {
			if v := (i*7 + j*3) % 5; v > 2 {
				data[i*items+j] = float64(v) * 0.5
			}
		}
	}
	return newTestMatrix(u, it, data)
}

func TestSearchNeighborsProperties(t *testing.T) {
	t.Parallel()

	m := syntheticMatrix(23, 11)
	const k = 4

	var buf edgeBuffer
	if _, err := SearchNeighbors(context.Background(), m, NeighborConfig{K: k, BlockSize: 5, Workers: 1}, &buf); err != nil {
		t.Fatalf("SearchNeighbors() error = %v", err)
	}
	if len(buf.edges) == 0 {
		t.Fatal("expected some edges")
	}

	perUser := make(map[string][]Edge)
	var order []string
	for _, e := range buf.edges {
		if _, ok := perUser[e.User]; !ok {
			order = append(order, e.User)
		}
		perUser[e.User] = append(perUser[e.User], e)
	}

	if !slices.IsSorted(order) {
		t.Errorf("edges not grouped in row order: %v", order)
	}
	for user, edges := range perUser {
		if len(edges) > k {
			t.Errorf("user %s has %d neighbors, want <= %d", user, len(edges), k)
		}
		for i, e := range edges {
			if e.Neighbor == user {
				t.Errorf("user %s lists itself", user)
			}
			if e.Similarity <= 0 || e.Similarity > 1+1e-12 {
				t.Errorf("user %s similarity %v out of (0, 1]", user, e.Similarity)
			}
			if i > 0 && e.Similarity > edges[i-1].Similarity {
				t.Errorf("user %s neighbors not sorted by similarity", user)
			}
		}
	}
}

func TestSearchNeighborsWorkersDeterministic(t *testing.T) {
	t.Parallel()

	m := syntheticMatrix(37, 13)

	var serial edgeBuffer
	if _, err := SearchNeighbors(context.Background(), m, NeighborConfig{K: 6, BlockSize: 100, Workers: 1}, &serial); err != nil {
		t.Fatalf("serial search error = %v", err)
	}

	configs := []NeighborConfig{
		{K: 6, BlockSize: 7, Workers: 1},
		{K: 6, BlockSize: 7, Workers: 3},
		{K: 6, BlockSize: 37, Workers: 8},
		{K: 6, BlockSize: 1, Workers: 4},
	}
	for _, cfg := range configs {
		t.Run(fmt.Sprintf("block%d_workers%d", cfg.BlockSize, cfg.Workers), func(t *testing.T) {
			t.Parallel()

			var buf edgeBuffer
			if _, err := SearchNeighbors(context.Background(), m, cfg, &buf); err != nil {
				t.Fatalf("SearchNeighbors() error = %v", err)
			}
			if len(buf.edges) != len(serial.edges) {
				t.Fatalf("got %d edges, want %d", len(buf.edges), len(serial.edges))
			}
			for i := range buf.edges {
				a, b := buf.edges[i], serial.edges[i]
				if a.User != b.User || a.Neighbor != b.Neighbor || math.Abs(a.Similarity-b.Similarity) > 1e-12 {
					t.Fatalf("edge %d = %+v, want %+v", i, a, b)
				}
			}
		})
	}
}

func TestSearchNeighborsSelfSimilarity(t *testing.T) {
	t.Parallel()

	// Identical rows have cosine 1.
	m := newTestMatrix([]string{"a", "b"}, []string{"x", "y"}, []float64{
		2, 1,
		4, 2,
	})
	var buf edgeBuffer
	if _, err := SearchNeighbors(context.Background(), m, DefaultNeighborConfig(), &buf); err != nil {
		t.Fatalf("SearchNeighbors() error = %v", err)
	}
	if len(buf.edges) != 2 {
		t.Fatalf("expected 2 edges, got %v", buf.edges)
	}
	for _, e := range buf.edges {
		if math.Abs(e.Similarity-1) > 1e-12 {
			t.Errorf("similarity %v, want 1", e.Similarity)
		}
	}
}

func TestSearchNeighborsInvalidConfig(t *testing.T) {
	t.Parallel()

	m := syntheticMatrix(3, 3)
	tests := []struct {
		name string
		cfg  NeighborConfig
	}{
		{"zero k", NeighborConfig{K: 0, BlockSize: 10, Workers: 1}},
		{"zero block", NeighborConfig{K: 1, BlockSize: 0, Workers: 1}},
		{"zero workers", NeighborConfig{K: 1, BlockSize: 10, Workers: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := SearchNeighbors(context.Background(), m, tt.cfg, &edgeBuffer{})
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSearchNeighborsCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SearchNeighbors(ctx, syntheticMatrix(5, 5), DefaultNeighborConfig(), &edgeBuffer{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSearchNeighborsEmpty(t *testing.T) {
	t.Parallel()

	n, err := SearchNeighbors(context.Background(), &PreferenceMatrix{}, DefaultNeighborConfig(), &edgeBuffer{})
	if err != nil || n != 0 {
		t.Errorf("SearchNeighbors(empty) = %d, %v", n, err)
	}
}
