// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package clv

import (
	"fmt"
	"math"
)

// BGNBD holds fitted beta-geometric/negative-binomial parameters.
type BGNBD struct {
	R, Alpha, A, B float64
}

// bgnbdLogLikelihood is the log-likelihood of one customer.
func bgnbdLogLikelihood(p BGNBD, c Customer) float64 {
	x := c.Frequency
	a1 := lgamma(p.R+x) - lgamma(p.R) + p.R*math.Log(p.Alpha)
	a2 := lgamma(p.A+p.B) + lgamma(p.B+x) - lgamma(p.B) - lgamma(p.A+p.B+x)
	a3 := -(p.R + x) * math.Log(p.Alpha+c.T)
	if x <= 0 {
		return a1 + a2 + a3
	}
	a4 := math.Log(p.A) - math.Log(p.B+x-1) - (p.R+x)*math.Log(c.Recency+p.Alpha)
	hi := math.Max(a3, a4)
	return a1 + a2 + hi + math.Log(math.Exp(a3-hi)+math.Exp(a4-hi))
}

// FitBGNBD fits the model to customers by minimizing the mean negative
// log-likelihood.
func FitBGNBD(customers []Customer, penalizer float64, maxIter int) (BGNBD, error) {
	if len(customers) == 0 {
		return BGNBD{}, fmt.Errorf("bg/nbd: no customers")
	}
	nll := func(params []float64) float64 {
		p := BGNBD{R: params[0], Alpha: params[1], A: params[2], B: params[3]}
		var ll float64
		for _, c := range customers {
			ll += bgnbdLogLikelihood(p, c)
		}
		return -ll / float64(len(customers))
	}
	params, err := minimizeLog(nll, 4, penalizer, maxIter)
	if err != nil {
		return BGNBD{}, fmt.Errorf("bg/nbd: %w", err)
	}
	return BGNBD{R: params[0], Alpha: params[1], A: params[2], B: params[3]}, nil
}

// ExpectedPurchases returns the expected number of transactions of c in the
// next t days conditional on its history.
func (p BGNBD) ExpectedPurchases(t float64, c Customer) float64 {
	if t <= 0 {
		return 0
	}
	x := c.Frequency
	ha := p.R + x
	hb := p.B + x
	hc := p.A + p.B + x - 1
	z := t / (p.Alpha + c.T + t)

	lnHyp := math.Log(hyp2f1(ha, hb, hc, z))
	if math.IsInf(lnHyp, 0) || math.IsNaN(lnHyp) {
		lnHyp = math.Log(hyp2f1(hc-ha, hc-hb, hc, z)) + (hc-ha-hb)*math.Log(1-z)
	}

	first := (p.A + p.B + x - 1) / (p.A - 1)
	second := 1 - math.Exp(lnHyp+(p.R+x)*math.Log((p.Alpha+c.T)/(p.Alpha+t+c.T)))
	denominator := 1.0
	if x > 0 {
		denominator += (p.A / (p.B + x - 1)) * math.Pow((p.Alpha+c.T)/(p.Alpha+c.Recency), p.R+x)
	}
	return first * second / denominator
}
