// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package recommend

import (
	"cmp"
	"context"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// normFloor replaces zero row norms so empty rows get similarity 0.
const normFloor = 1e-20

// NeighborConfig configures SearchNeighbors.
type NeighborConfig struct {
	// K is the maximum number of neighbors kept per user.
	K int

	// BlockSize is the number of rows whose similarities are held at once.
	BlockSize int

	// Workers splits each block into sub-blocks computed concurrently.
	Workers int
}

// DefaultNeighborConfig returns K=50, BlockSize=2000 and a single worker.
func DefaultNeighborConfig() NeighborConfig {
	return NeighborConfig{K: 50, BlockSize: 2000, Workers: 1}
}

func (c NeighborConfig) validate() error {
	switch {
	case c.K < 1:
		return invalidConfig("neighbors must be >= 1, got %d", c.K)
	case c.BlockSize < 1:
		return invalidConfig("block size must be >= 1, got %d", c.BlockSize)
	case c.Workers < 1:
		return invalidConfig("workers must be >= 1, got %d", c.Workers)
	}
	return nil
}

type candidate struct {
	col int
	sim float64
}

// byRank orders candidates by similarity descending, then column ascending.
func byRank(a, b candidate) int {
	if c := cmp.Compare(b.sim, a.sim); c != 0 {
		return c
	}
	return cmp.Compare(a.col, b.col)
}

// SearchNeighbors finds, for every user of m, at most cfg.K other users with
// positive cosine similarity and writes them to sink, grouped by user in row
// order and sorted by similarity descending within a user. It returns the
// number of edges written.
func SearchNeighbors(ctx context.Context, m *PreferenceMatrix, cfg NeighborConfig, sink EdgeSink) (int, error) {
	if err := cfg.validate(); err != nil {
		return 0, err
	}
	n := m.Len()
	if n == 0 {
		return 0, nil
	}

	norms := make([]float64, n)
	for i := range norms {
		norms[i] = math.Max(floats.Norm(m.Row(i), 2), normFloor)
	}

	written := 0
	for lo := 0; lo < n; lo += cfg.BlockSize {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		hi := min(lo+cfg.BlockSize, n)

		neighbors, err := searchBlock(ctx, m, norms, lo, hi, cfg)
		if err != nil {
			return written, err
		}
		for i, row := range neighbors {
			user := m.Users[lo+i]
			for _, c := range row {
				if err := sink.WriteEdge(Edge{User: user, Neighbor: m.Users[c.col], Similarity: c.sim}); err != nil {
					return written, err
				}
				written++
			}
		}
	}
	return written, nil
}

// searchBlock ranks the neighbors of rows [lo, hi). Sub-blocks write to
// disjoint rows of the result so output order does not depend on scheduling.
func searchBlock(ctx context.Context, m *PreferenceMatrix, norms []float64, lo, hi int, cfg NeighborConfig) ([][]candidate, error) {
	n := m.Len()
	cols := len(m.Items)
	result := make([][]candidate, hi-lo)

	step := (hi - lo + cfg.Workers - 1) / cfg.Workers
	g, gctx := errgroup.WithContext(ctx)
	for a := lo; a < hi; a += step {
		b := min(a+step, hi)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sims := mat.NewDense(b-a, n, nil)
			sims.Mul(m.Data.Slice(a, b, 0, cols), m.Data.T())
			for r := range b - a {
				result[a-lo+r] = topNeighbors(sims.RawRowView(r), a+r, norms, cfg.K)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// topNeighbors converts one row of dot products to cosine similarities and
// keeps the k best positive entries other than self.
//
// Positive entries form the prefix of the fully ranked row, so filtering
// before ranking selects the same neighbors as ranking the whole row and
// stopping at the first non-positive value.
func topNeighbors(dots []float64, self int, norms []float64, k int) []candidate {
	var kept []candidate
	for j, dot := range dots {
		if j == self {
			continue
		}
		sim := dot / norms[self] / norms[j]
		if !(sim > 0) {
			continue
		}
		kept = append(kept, candidate{col: j, sim: sim})
		if len(kept) >= 4*k {
			slices.SortFunc(kept, byRank)
			kept = kept[:k]
		}
	}
	slices.SortFunc(kept, byRank)
	if len(kept) > k {
		kept = kept[:k]
	}
	return kept
}
