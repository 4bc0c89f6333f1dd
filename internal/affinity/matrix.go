// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package affinity

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrCohortTooLarge is returned when a dense matrix would exceed the configured bound.
	ErrCohortTooLarge = errors.New("affinity: cohort exceeds maximum size")

	// ErrInvalidWeights is returned when weights are negative or do not sum to 1.
	ErrInvalidWeights = errors.New("affinity: weights must be non-negative and sum to 1")
)

const weightTolerance = 1e-9

// Weights are the per-attribute contributions to affinity.
type Weights struct {
	Industry float64
	Position float64
}

// Validate checks that both weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	if w.Industry < 0 || w.Position < 0 || math.Abs(w.Industry+w.Position-1) > weightTolerance {
		return fmt.Errorf("%w: industry=%f position=%f", ErrInvalidWeights, w.Industry, w.Position)
	}
	return nil
}

// Score returns the affinity between two profiles.
func Score(a, b Profile, w Weights) float64 {
	var s float64
	if a.Industry != "" && a.Industry == b.Industry {
		s += w.Industry
	}
	if a.Region != "" && a.Region == b.Region {
		s += w.Position
	}
	return s
}

// Matrix is a symmetric cohort affinity matrix indexed in profile order.
type Matrix struct {
	Users []string
	Data  *mat.SymDense
}

// Len returns the cohort size.
func (m *Matrix) Len() int {
	return len(m.Users)
}

// At returns the affinity of users i and j.
func (m *Matrix) At(i, j int) float64 {
	return m.Data.At(i, j)
}

// Build computes the full matrix from the rows streamed by Rows. maxSize
// bounds the cohort; 0 disables the bound.
func Build(profiles []Profile, w Weights, maxSize int) (*Matrix, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	n := len(profiles)
	if maxSize > 0 && n > maxSize {
		return nil, fmt.Errorf("%w: %d users, limit %d", ErrCohortTooLarge, n, maxSize)
	}
	if n == 0 {
		return &Matrix{}, nil
	}

	data := mat.NewSymDense(n, nil)
	users := make([]string, n)
	err := Rows(profiles, w, func(i int, row []float64) error {
		users[i] = profiles[i].User
		for j := i; j < n; j++ {
			data.SetSym(i, j, row[j])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Matrix{Users: users, Data: data}, nil
}

// Rows streams the matrix one row at a time. The row slice is reused between
// calls and must not be retained by fn.
func Rows(profiles []Profile, w Weights, fn func(i int, row []float64) error) error {
	if err := w.Validate(); err != nil {
		return err
	}
	row := make([]float64, len(profiles))
	for i := range profiles {
		for j := range profiles {
			row[j] = Score(profiles[i], profiles[j], w)
		}
		if err := fn(i, row); err != nil {
			return err
		}
	}
	return nil
}
