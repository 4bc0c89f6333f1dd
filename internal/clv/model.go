// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package clv

import (
	"context"
	"fmt"
	"math"
)

// Config controls the lifetime value forecast.
type Config struct {
	// Periods is the number of forecast periods summed.
	// Default: 12.
	Periods int

	// PeriodDays is the length of a period in days.
	// Default: 30.
	PeriodDays float64

	// DiscountRate is applied per period.
	// Default: 0.
	DiscountRate float64

	// Penalizer is the L2 coefficient on fitted parameters.
	// Default: 0.
	Penalizer float64

	// MaxIterations bounds each Nelder-Mead fit.
	// Default: 10000.
	MaxIterations int
}

// DefaultConfig returns the twelve-month, undiscounted forecast.
func DefaultConfig() Config {
	return Config{
		Periods:       12,
		PeriodDays:    30,
		DiscountRate:  0,
		Penalizer:     0,
		MaxIterations: 10000,
	}
}

// Model fits BG/NBD and Gamma-Gamma on a population and forecasts its value.
type Model struct {
	cfg Config
}

// NewModel creates a Model.
func NewModel(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// Fitted is a pair of fitted models.
type Fitted struct {
	Transactions BGNBD
	Spend        GammaGamma
}

// Fit fits both models on customers.
func (m *Model) Fit(ctx context.Context, customers []Customer) (Fitted, error) {
	if err := ctx.Err(); err != nil {
		return Fitted{}, err
	}
	bg, err := FitBGNBD(customers, m.cfg.Penalizer, m.cfg.MaxIterations)
	if err != nil {
		return Fitted{}, err
	}
	if err := ctx.Err(); err != nil {
		return Fitted{}, err
	}
	gg, err := FitGammaGamma(customers, m.cfg.Penalizer, m.cfg.MaxIterations)
	if err != nil {
		return Fitted{}, err
	}
	return Fitted{Transactions: bg, Spend: gg}, nil
}

// LifetimeValue forecasts the discounted value of c over the horizon.
func (m *Model) LifetimeValue(f Fitted, c Customer) float64 {
	profit := f.Spend.ExpectedAverageProfit(c)
	var value float64
	for i := 1; i <= m.cfg.Periods; i++ {
		t := float64(i) * m.cfg.PeriodDays
		expected := f.Transactions.ExpectedPurchases(t, c) - f.Transactions.ExpectedPurchases(t-m.cfg.PeriodDays, c)
		value += profit * expected / math.Pow(1+m.cfg.DiscountRate, float64(i))
	}
	return value
}

// Estimate fits the models on customers and returns each customer's value.
func (m *Model) Estimate(ctx context.Context, customers []Customer) (map[string]float64, error) {
	out := make(map[string]float64, len(customers))
	if len(customers) == 0 {
		return out, nil
	}
	fitted, err := m.Fit(ctx, customers)
	if err != nil {
		return nil, err
	}
	for _, c := range customers {
		v := m.LifetimeValue(fitted, c)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: customer %s", ErrNumerical, c.ID)
		}
		out[c.ID] = v
	}
	return out, nil
}
