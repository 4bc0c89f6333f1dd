// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package cluster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotConverged is returned when message passing does not stabilize
	// within the iteration limit.
	ErrNotConverged = errors.New("cluster: affinity propagation did not converge")

	// ErrNoExemplars is returned when no point qualifies as an exemplar.
	ErrNoExemplars = errors.New("cluster: no exemplars found")
)

const (
	epsilon = 2.220446049250313e-16
	tiny    = 0x1p-1022
)

// PropagationConfig controls affinity propagation.
type PropagationConfig struct {
	// Damping in [0.5, 1). Default: 0.5.
	Damping float64
	// MaxIterations bounds message passing. Default: 200.
	MaxIterations int
	// ConvergenceIterations is the number of iterations the exemplar set must
	// stay unchanged. Default: 15.
	ConvergenceIterations int
	// Seed drives the degeneracy-removal noise. Default: 0.
	Seed int64
}

// DefaultPropagationConfig returns the standard parameters.
func DefaultPropagationConfig() PropagationConfig {
	return PropagationConfig{
		Damping:               0.5,
		MaxIterations:         200,
		ConvergenceIterations: 15,
		Seed:                  0,
	}
}

// AffinityPropagation clusters a precomputed similarity matrix whose
// diagonal holds the preferences.
type AffinityPropagation struct {
	cfg PropagationConfig
}

// NewAffinityPropagation creates the oracle.
func NewAffinityPropagation(cfg PropagationConfig) *AffinityPropagation {
	return &AffinityPropagation{cfg: cfg}
}

var _ Oracle = (*AffinityPropagation)(nil)

// Cluster runs affinity propagation on s. s is not modified.
func (ap *AffinityPropagation) Cluster(ctx context.Context, s *mat.Dense) (Result, error) {
	n, c := s.Dims()
	if n != c {
		return Result{}, fmt.Errorf("cluster: similarity matrix must be square, got %dx%d", n, c)
	}
	if n == 0 {
		return Result{}, nil
	}

	if n == 1 || equalSimilaritiesAndPreferences(s) {
		// Degenerate input: every point is its own exemplar when the
		// preference beats the shared similarity, otherwise one cluster.
		if s.At(0, 0) > s.At(0, n-1) || n == 1 {
			ex := make([]int, n)
			for i := range ex {
				ex[i] = i
			}
			return Result{Exemplars: ex, Labels: append([]int(nil), ex...)}, nil
		}
		return Result{Exemplars: []int{0}, Labels: make([]int, n)}, nil
	}

	S := make([]float64, n*n)
	rng := rand.New(rand.NewPCG(uint64(ap.cfg.Seed), 0))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := s.At(i, j)
			S[i*n+j] = v + (epsilon*v+tiny*100)*rng.NormFloat64()
		}
	}

	A := make([]float64, n*n)
	R := make([]float64, n*n)
	tmp := make([]float64, n*n)
	colSum := make([]float64, n)
	exemplar := make([]bool, n)
	convIter := ap.cfg.ConvergenceIterations
	history := make([]bool, n*convIter)
	damping := ap.cfg.Damping

	converged := false
	iterations := 0
	for it := 0; it < ap.cfg.MaxIterations; it++ {
		if it%16 == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		iterations = it + 1

		// Responsibilities.
		for i := 0; i < n; i++ {
			row := i * n
			best, second := math.Inf(-1), math.Inf(-1)
			bestJ := 0
			for j := 0; j < n; j++ {
				v := A[row+j] + S[row+j]
				if v > best {
					second = best
					best, bestJ = v, j
				} else if v > second {
					second = v
				}
			}
			for j := 0; j < n; j++ {
				rNew := S[row+j] - best
				if j == bestJ {
					rNew = S[row+j] - second
				}
				R[row+j] = damping*R[row+j] + (1-damping)*rNew
			}
		}

		// Availabilities.
		for k := 0; k < n; k++ {
			colSum[k] = 0
		}
		for i := 0; i < n; i++ {
			row := i * n
			for k := 0; k < n; k++ {
				v := R[row+k]
				if i != k && v < 0 {
					v = 0
				}
				tmp[row+k] = v
				colSum[k] += v
			}
		}
		for i := 0; i < n; i++ {
			row := i * n
			for k := 0; k < n; k++ {
				aNew := colSum[k] - tmp[row+k]
				if i != k && aNew > 0 {
					aNew = 0
				}
				A[row+k] = damping*A[row+k] + (1-damping)*aNew
			}
		}

		// Convergence.
		count := 0
		slot := it % convIter
		for i := 0; i < n; i++ {
			exemplar[i] = A[i*n+i]+R[i*n+i] > 0
			history[i*convIter+slot] = exemplar[i]
			if exemplar[i] {
				count++
			}
		}
		if it >= convIter && count > 0 && stable(history, n, convIter) {
			converged = true
			break
		}
	}

	var exemplars []int
	for i, e := range exemplar {
		if e {
			exemplars = append(exemplars, i)
		}
	}
	if len(exemplars) == 0 {
		return Result{Iterations: iterations}, ErrNoExemplars
	}
	if !converged {
		return Result{Iterations: iterations}, fmt.Errorf("%w after %d iterations", ErrNotConverged, iterations)
	}

	exemplars, labels := refine(S, n, exemplars)
	return Result{Exemplars: exemplars, Labels: labels, Iterations: iterations}, nil
}

// stable reports whether every point kept the same exemplar status over the
// whole history window.
func stable(history []bool, n, window int) bool {
	for i := 0; i < n; i++ {
		first := history[i*window]
		for k := 1; k < window; k++ {
			if history[i*window+k] != first {
				return false
			}
		}
	}
	return true
}

// equalSimilaritiesAndPreferences reports whether all diagonal entries are
// equal and all off-diagonal entries are equal.
func equalSimilaritiesAndPreferences(s *mat.Dense) bool {
	n, _ := s.Dims()
	pref := s.At(0, 0)
	off := s.At(0, 1)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := s.At(i, j)
			if (i == j && v != pref) || (i != j && v != off) {
				return false
			}
		}
	}
	return true
}

// assign maps every point to the index of its most similar exemplar;
// exemplars are assigned to themselves.
func assign(S []float64, n int, exemplars []int) []int {
	c := make([]int, n)
	for i := 0; i < n; i++ {
		best := math.Inf(-1)
		for k, e := range exemplars {
			if v := S[i*n+e]; v > best {
				best, c[i] = v, k
			}
		}
	}
	for k, e := range exemplars {
		c[e] = k
	}
	return c
}

// refine moves each exemplar to the member that maximizes total similarity
// within its cluster, reassigns points, and returns sorted exemplar indices
// with gapless labels.
func refine(S []float64, n int, exemplars []int) ([]int, []int) {
	c := assign(S, n, exemplars)
	refined := make([]int, len(exemplars))
	for k := range exemplars {
		var members []int
		for i, l := range c {
			if l == k {
				members = append(members, i)
			}
		}
		best, bestJ := math.Inf(-1), members[0]
		for _, j := range members {
			var sum float64
			for _, i := range members {
				sum += S[i*n+j]
			}
			if sum > best {
				best, bestJ = sum, j
			}
		}
		refined[k] = bestJ
	}

	c = assign(S, n, refined)
	points := make([]int, n)
	for i := range c {
		points[i] = refined[c[i]]
	}

	centers := append([]int(nil), refined...)
	sort.Ints(centers)
	centers = dedupe(centers)
	labels := make([]int, n)
	for i, p := range points {
		labels[i] = sort.SearchInts(centers, p)
	}
	return centers, labels
}

func dedupe(sorted []int) []int {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}
