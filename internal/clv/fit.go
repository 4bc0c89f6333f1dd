// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package clv

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

var (
	// ErrNotConverged is returned when a likelihood fit hits its iteration limit.
	ErrNotConverged = errors.New("clv: fit did not converge")

	// ErrNoRepeatCustomers is returned when no customer has a repeat day,
	// leaving the Gamma-Gamma model nothing to fit.
	ErrNoRepeatCustomers = errors.New("clv: no repeat customers to fit monetary model")

	// ErrNumerical is returned when a fitted model produces a non-finite value.
	ErrNumerical = errors.New("clv: non-finite model output")
)

// minimizeLog minimizes nll over log-parameters and returns exp of the optimum.
// penalizer adds an L2 term on the parameters themselves.
func minimizeLog(nll func(params []float64) float64, dim int, penalizer float64, maxIter int) ([]float64, error) {
	params := make([]float64, dim)
	objective := func(logParams []float64) float64 {
		var penalty float64
		for i, lp := range logParams {
			params[i] = math.Exp(lp)
			penalty += params[i] * params[i]
		}
		v := nll(params) + penalizer*penalty
		if math.IsNaN(v) {
			return math.Inf(1)
		}
		return v
	}

	settings := &optimize.Settings{
		MajorIterations: maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 100,
		},
	}
	result, err := optimize.Minimize(optimize.Problem{Func: objective}, make([]float64, dim), settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("nelder-mead: %w", err)
	}
	switch result.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit:
		return nil, fmt.Errorf("%w: %s after %d iterations", ErrNotConverged, result.Status, result.Stats.MajorIterations)
	}
	if math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		return nil, fmt.Errorf("%w: objective %v", ErrNumerical, result.F)
	}

	out := make([]float64, dim)
	for i, lp := range result.X {
		out[i] = math.Exp(lp)
	}
	return out, nil
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
