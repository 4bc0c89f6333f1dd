// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package recommend

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
)

// cancelCheckInterval is the number of edges consumed between context checks.
const cancelCheckInterval = 1024

// ScoreConfig configures Score.
type ScoreConfig struct {
	// N is the maximum number of documents emitted per user.
	N int

	// MinDifference is the preference gap by which a neighbor must exceed
	// the user on a document for it to be scored.
	MinDifference float64
}

// DefaultScoreConfig returns N=10 and MinDifference=1.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{N: 10, MinDifference: 1}
}

// accumulator collects document scores for one source user.
type accumulator struct {
	scores  []float64
	touched []int
	seen    []bool
}

func newAccumulator(items int) *accumulator {
	return &accumulator{
		scores: make([]float64, items),
		seen:   make([]bool, items),
	}
}

func (a *accumulator) add(j int, v float64) {
	if !a.seen[j] {
		a.seen[j] = true
		a.touched = append(a.touched, j)
	}
	a.scores[j] += v
}

func (a *accumulator) reset() {
	for _, j := range a.touched {
		a.scores[j] = 0
		a.seen[j] = false
	}
	a.touched = a.touched[:0]
}

// top returns the n best documents, score descending then item id ascending.
func (a *accumulator) top(items []string, n int) []int {
	ranked := slices.Clone(a.touched)
	slices.SortFunc(ranked, func(x, y int) int {
		if c := cmp.Compare(a.scores[y], a.scores[x]); c != 0 {
			return c
		}
		return cmp.Compare(items[x], items[y])
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Score turns a neighbor edge stream into recommendations.
//
// For every edge (u, v, sim) each document j with P[v][j] - P[u][j] greater
// than cfg.MinDifference gains P[v][j] * sim. Edges must be grouped by u;
// when the source user changes, and once more at the end of the stream, the
// top cfg.N documents of the finished group are written to sink. Users
// without edges produce nothing. Score returns the number of
// recommendations written.
func Score(ctx context.Context, m *PreferenceMatrix, edges EdgeSource, cfg ScoreConfig, sink RecommendationSink) (int, error) {
	if cfg.N < 1 {
		return 0, invalidConfig("recommendation count must be >= 1, got %d", cfg.N)
	}
	if m.Len() == 0 {
		return 0, nil
	}

	acc := newAccumulator(len(m.Items))
	written := 0
	current := -1

	flush := func() error {
		if current < 0 {
			return nil
		}
		user := m.Users[current]
		for _, j := range acc.top(m.Items, cfg.N) {
			if err := sink.WriteRecommendation(Recommendation{User: user, Item: m.Items[j], Score: acc.scores[j]}); err != nil {
				return err
			}
			written++
		}
		acc.reset()
		return nil
	}

	for consumed := 0; ; consumed++ {
		if consumed%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return written, err
			}
		}

		e, err := edges.NextEdge()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, fmt.Errorf("read edge: %w", err)
		}

		u, ok := m.UserIndex(e.User)
		if !ok {
			return written, fmt.Errorf("%w: %s", ErrUnknownUser, e.User)
		}
		v, ok := m.UserIndex(e.Neighbor)
		if !ok {
			return written, fmt.Errorf("%w: %s", ErrUnknownUser, e.Neighbor)
		}

		if u != current {
			if err := flush(); err != nil {
				return written, err
			}
			current = u
		}

		pu, pv := m.Row(u), m.Row(v)
		for j, pref := range pv {
			if pref-pu[j] > cfg.MinDifference {
				acc.add(j, pref*e.Similarity)
			}
		}
	}

	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}
