// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

// Package cluster partitions a cohort from its affinity matrix.
//
// The partitioning itself is delegated to an Oracle that accepts a square
// similarity matrix with preferences on the diagonal and returns exemplar
// indices and per-point labels. AffinityPropagation is the default Oracle.
// Partition wraps the oracle: it places the preference on the diagonal,
// validates the labels it gets back, and reports each cluster's cohesion.
package cluster

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/lexsegment/internal/affinity"
)

// Result is the raw output of an Oracle.
type Result struct {
	// Exemplars are the point indices chosen as cluster centers.
	Exemplars []int
	// Labels[i] indexes Exemplars for point i.
	Labels []int
	// Iterations is the number of message passing rounds performed.
	Iterations int
}

// Oracle clusters a square similarity matrix.
type Oracle interface {
	Cluster(ctx context.Context, s *mat.Dense) (Result, error)
}

// Cluster is one group of cohort users.
type Cluster struct {
	// Pivot is the exemplar user.
	Pivot string
	// Members are in cohort order and include the pivot.
	Members []string
	// Indices are the members' positions in the affinity matrix.
	Indices []int
	// Cohesion is the mean pairwise affinity of the members.
	Cohesion float64
}

// Partition clusters the cohort described by m using preference as every
// point's self-similarity. Clusters are ordered by pivot position.
func Partition(ctx context.Context, m *affinity.Matrix, preference float64, oracle Oracle) ([]Cluster, error) {
	n := m.Len()
	if n == 0 {
		return nil, nil
	}

	s := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			s.Set(i, j, m.At(i, j))
		}
		s.Set(i, i, preference)
	}

	res, err := oracle.Cluster(ctx, s)
	if err != nil {
		return nil, err
	}
	if err := validate(res, n); err != nil {
		return nil, err
	}

	order := make([]int, len(res.Exemplars))
	for k := range order {
		order[k] = k
	}
	sort.Slice(order, func(a, b int) bool {
		return res.Exemplars[order[a]] < res.Exemplars[order[b]]
	})
	position := make([]int, len(order))
	clusters := make([]Cluster, len(order))
	for pos, k := range order {
		position[k] = pos
		clusters[pos].Pivot = m.Users[res.Exemplars[k]]
	}
	for i, label := range res.Labels {
		c := &clusters[position[label]]
		c.Members = append(c.Members, m.Users[i])
		c.Indices = append(c.Indices, i)
	}
	for i := range clusters {
		clusters[i].Cohesion = Cohesion(m, clusters[i].Indices)
	}
	return clusters, nil
}

func validate(res Result, n int) error {
	if len(res.Labels) != n {
		return fmt.Errorf("cluster: oracle labeled %d of %d points", len(res.Labels), n)
	}
	if len(res.Exemplars) == 0 {
		return ErrNoExemplars
	}
	seen := make(map[int]struct{}, len(res.Exemplars))
	for _, e := range res.Exemplars {
		if e < 0 || e >= n {
			return fmt.Errorf("cluster: exemplar index %d out of range", e)
		}
		if _, dup := seen[e]; dup {
			return fmt.Errorf("cluster: duplicate exemplar %d", e)
		}
		seen[e] = struct{}{}
	}
	for i, l := range res.Labels {
		if l < 0 || l >= len(res.Exemplars) {
			return fmt.Errorf("cluster: point %d has invalid label %d", i, l)
		}
	}
	return nil
}

// Cohesion is the mean affinity over member pairs i < j. It is 0 for
// singletons and for clusters whose pair affinities are all 0.
func Cohesion(m *affinity.Matrix, indices []int) float64 {
	var sum float64
	pairs := 0
	for a := 0; a < len(indices); a++ {
		for b := a + 1; b < len(indices); b++ {
			sum += m.At(indices[a], indices[b])
			pairs++
		}
	}
	if pairs == 0 || sum == 0 {
		return 0
	}
	return sum / float64(pairs)
}
