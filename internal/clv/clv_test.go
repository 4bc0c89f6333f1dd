// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package clv

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/lexsegment/internal/ingest"
)

func at(day, hour int) time.Time {
	return time.Date(2024, time.January, day, hour, 0, 0, 0, time.UTC)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	events := []ingest.LoginEvent{
		{User: "u1", Time: at(1, 9)},
		{User: "u1", Time: at(1, 18)},
		{User: "u2", Time: at(5, 9)},
		{User: "u1", Time: at(4, 9)},
		{User: "u1", Time: at(4, 10)},
		{User: "u1", Time: at(4, 11)},
		{User: "u1", Time: at(10, 9)},
	}

	got := Summarize(events, at(10, 9), 180*24*time.Hour)
	if len(got) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(got))
	}

	u1 := got[0]
	if u1.ID != "u1" {
		t.Fatalf("expected first-seen order, got %s first", u1.ID)
	}
	if u1.Frequency != 2 {
		t.Errorf("u1.Frequency = %v, want 2", u1.Frequency)
	}
	if u1.Recency != 9 {
		t.Errorf("u1.Recency = %v, want 9", u1.Recency)
	}
	if u1.T != 9 {
		t.Errorf("u1.T = %v, want 9", u1.T)
	}
	// Repeat days are Jan 4 (3 logins) and Jan 10 (1 login).
	if u1.Monetary != 2 {
		t.Errorf("u1.Monetary = %v, want 2", u1.Monetary)
	}

	u2 := got[1]
	if u2.Frequency != 0 || u2.Recency != 0 || u2.Monetary != 0 {
		t.Errorf("single-day customer should have zero frequency, recency and monetary: %+v", u2)
	}
	if u2.T != 5 {
		t.Errorf("u2.T = %v, want 5", u2.T)
	}
}

func TestSummarize_Window(t *testing.T) {
	t.Parallel()

	latest := time.Date(2024, time.July, 1, 12, 0, 0, 0, time.UTC)
	events := []ingest.LoginEvent{
		{User: "old", Time: latest.AddDate(0, 0, -200)},
		{User: "edge", Time: time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC).Add(-10 * 24 * time.Hour)},
		{User: "in", Time: latest.Add(-time.Hour)},
	}

	got := Summarize(events, latest, 10*24*time.Hour)
	if len(got) != 1 || got[0].ID != "in" {
		t.Errorf("expected only the in-window customer, got %+v", got)
	}
}

func TestHyp2F1(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		a, b, c, z float64
		want       float64
	}{
		{"log identity", 1, 1, 2, 0.5, -math.Log(1-0.5) / 0.5},
		{"binomial identity", 1.5, 3, 3, 0.3, math.Pow(1-0.3, -1.5)},
		{"zero argument", 2, 3, 4, 0, 1},
		{"terminating series", -2, 1, 1, 0.5, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := hyp2f1(tt.a, tt.b, tt.c, tt.z)
			if math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("hyp2f1(%v, %v, %v, %v) = %v, want %v", tt.a, tt.b, tt.c, tt.z, got, tt.want)
			}
		})
	}

	if !math.IsNaN(hyp2f1(1, 1, 2, 1.5)) {
		t.Error("expected NaN outside the unit interval")
	}
}

func TestBGNBD_ExpectedPurchases(t *testing.T) {
	t.Parallel()

	p := BGNBD{R: 0.5, Alpha: 5, A: 2, B: 3}
	newcomer := Customer{ID: "n", T: 30}

	if got := p.ExpectedPurchases(0, newcomer); got != 0 {
		t.Errorf("ExpectedPurchases(0) = %v, want 0", got)
	}

	prev := 0.0
	for _, horizon := range []float64{30, 60, 120, 360} {
		got := p.ExpectedPurchases(horizon, newcomer)
		if math.IsNaN(got) || got <= prev {
			t.Fatalf("expected increasing forecast, got %v after %v at t=%v", got, prev, horizon)
		}
		prev = got
	}

	active := Customer{ID: "a", Frequency: 10, Recency: 88, T: 90}
	lapsed := Customer{ID: "l", Frequency: 10, Recency: 10, T: 90}
	if p.ExpectedPurchases(30, active) <= p.ExpectedPurchases(30, lapsed) {
		t.Error("recently active customer should be forecast more purchases than a lapsed one")
	}
}

func TestGammaGamma_ExpectedAverageProfit(t *testing.T) {
	t.Parallel()

	p := GammaGamma{P: 6, Q: 4, V: 15}
	population := p.V * p.P / (p.Q - 1)

	if got := p.ExpectedAverageProfit(Customer{Frequency: 0}); math.Abs(got-population) > 1e-12 {
		t.Errorf("zero-frequency profit = %v, want population mean %v", got, population)
	}

	heavy := Customer{Frequency: 1000, Monetary: 2}
	if got := p.ExpectedAverageProfit(heavy); math.Abs(got-2) > 0.1 {
		t.Errorf("high-frequency profit = %v, want close to observed 2", got)
	}
}

// population returns a deterministic mix of dormant and repeat customers.
func population() []Customer {
	var out []Customer
	for i := 0; i < 60; i++ {
		T := float64(60 + (i*7)%120)
		c := Customer{ID: fmt.Sprintf("c%02d", i), T: T}
		switch i % 4 {
		case 0:
			// one-time visitor
		case 1:
			c.Frequency = float64(1 + i%3)
			c.Recency = T / 3
			c.Monetary = 1 + float64(i%2)
		case 2:
			c.Frequency = float64(5 + i%7)
			c.Recency = T - float64(i%5)
			c.Monetary = 1.5 + float64(i%3)*0.5
		case 3:
			c.Frequency = float64(2 + i%4)
			c.Recency = T * 0.7
			c.Monetary = 1 + float64(i%4)*0.25
		}
		out = append(out, c)
	}
	return out
}

func TestFitBGNBD(t *testing.T) {
	t.Parallel()

	customers := population()
	fitted, err := FitBGNBD(customers, 0, 10000)
	if err != nil {
		t.Fatalf("FitBGNBD() error = %v", err)
	}
	for name, v := range map[string]float64{"r": fitted.R, "alpha": fitted.Alpha, "a": fitted.A, "b": fitted.B} {
		if !(v > 0) || math.IsInf(v, 0) {
			t.Errorf("parameter %s = %v, want positive finite", name, v)
		}
	}

	meanLL := func(p BGNBD) float64 {
		var ll float64
		for _, c := range customers {
			ll += bgnbdLogLikelihood(p, c)
		}
		return ll / float64(len(customers))
	}
	if meanLL(fitted) < meanLL(BGNBD{R: 1, Alpha: 1, A: 1, B: 1}) {
		t.Error("fitted parameters should not be worse than the starting point")
	}
}

func TestFitGammaGamma_NoRepeatCustomers(t *testing.T) {
	t.Parallel()

	customers := []Customer{{ID: "a", T: 10}, {ID: "b", T: 20}}
	if _, err := FitGammaGamma(customers, 0, 1000); !errors.Is(err, ErrNoRepeatCustomers) {
		t.Errorf("expected ErrNoRepeatCustomers, got %v", err)
	}
}

func TestModel_LifetimeValue(t *testing.T) {
	t.Parallel()

	fitted := Fitted{
		Transactions: BGNBD{R: 0.5, Alpha: 5, A: 2, B: 3},
		Spend:        GammaGamma{P: 6, Q: 4, V: 15},
	}
	c := Customer{ID: "x", Frequency: 3, Recency: 40, T: 60, Monetary: 2}

	one := NewModel(Config{Periods: 1, PeriodDays: 30})
	want := fitted.Spend.ExpectedAverageProfit(c) * fitted.Transactions.ExpectedPurchases(30, c)
	if got := one.LifetimeValue(fitted, c); math.Abs(got-want) > 1e-12 {
		t.Errorf("single period value = %v, want %v", got, want)
	}

	undiscounted := NewModel(Config{Periods: 12, PeriodDays: 30})
	discounted := NewModel(Config{Periods: 12, PeriodDays: 30, DiscountRate: 0.05})
	if discounted.LifetimeValue(fitted, c) >= undiscounted.LifetimeValue(fitted, c) {
		t.Error("discounting should reduce lifetime value")
	}
}

func TestModel_Estimate(t *testing.T) {
	t.Parallel()

	customers := append(population(),
		Customer{ID: "heavy", Frequency: 40, Recency: 175, T: 178, Monetary: 3},
		Customer{ID: "dormant", T: 178},
	)

	values, err := NewModel(DefaultConfig()).Estimate(context.Background(), customers)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if len(values) != len(customers) {
		t.Fatalf("expected %d values, got %d", len(customers), len(values))
	}
	for id, v := range values {
		if v < 0 || math.IsNaN(v) {
			t.Errorf("value[%s] = %v, want non-negative", id, v)
		}
	}
	if values["heavy"] <= values["dormant"] {
		t.Errorf("heavy user value %v should exceed dormant user value %v", values["heavy"], values["dormant"])
	}
}

func TestModel_EstimateEmptyAndCanceled(t *testing.T) {
	t.Parallel()

	m := NewModel(DefaultConfig())
	values, err := m.Estimate(context.Background(), nil)
	if err != nil || len(values) != 0 {
		t.Errorf("empty population: values=%v err=%v", values, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Estimate(ctx, population()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
