// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package clv

import (
	"fmt"
	"math"
)

// GammaGamma holds fitted Gamma-Gamma spend parameters.
type GammaGamma struct {
	P, Q, V float64
}

func gammaGammaLogLikelihood(p GammaGamma, c Customer) float64 {
	px := p.P * c.Frequency
	return lgamma(px+p.Q) - lgamma(px) - lgamma(p.Q) + p.Q*math.Log(p.V) +
		(px-1)*math.Log(c.Monetary) + px*math.Log(c.Frequency) -
		(px+p.Q)*math.Log(c.Frequency*c.Monetary+p.V)
}

// FitGammaGamma fits the spend model on customers with at least one repeat day.
func FitGammaGamma(customers []Customer, penalizer float64, maxIter int) (GammaGamma, error) {
	repeat := make([]Customer, 0, len(customers))
	for _, c := range customers {
		if c.Frequency > 0 && c.Monetary > 0 {
			repeat = append(repeat, c)
		}
	}
	if len(repeat) == 0 {
		return GammaGamma{}, ErrNoRepeatCustomers
	}

	nll := func(params []float64) float64 {
		p := GammaGamma{P: params[0], Q: params[1], V: params[2]}
		var ll float64
		for _, c := range repeat {
			ll += gammaGammaLogLikelihood(p, c)
		}
		return -ll / float64(len(repeat))
	}
	params, err := minimizeLog(nll, 3, penalizer, maxIter)
	if err != nil {
		return GammaGamma{}, fmt.Errorf("gamma-gamma: %w", err)
	}
	gg := GammaGamma{P: params[0], Q: params[1], V: params[2]}
	if gg.Q <= 1 {
		return GammaGamma{}, fmt.Errorf("gamma-gamma: %w: q=%f leaves population mean undefined", ErrNumerical, gg.Q)
	}
	return gg, nil
}

// ExpectedAverageProfit shrinks a customer's observed mean spend toward the
// population mean in proportion to its number of repeat days.
func (p GammaGamma) ExpectedAverageProfit(c Customer) float64 {
	px := p.P * c.Frequency
	weight := px / (px + p.Q - 1)
	populationMean := p.V * p.P / (p.Q - 1)
	return (1-weight)*populationMean + weight*c.Monetary
}
