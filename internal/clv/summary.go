// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package clv

import (
	"time"

	"github.com/tomtom215/lexsegment/internal/ingest"
)

// Customer is the per-user RFM summary consumed by the models.
// Recency and T are measured in days.
type Customer struct {
	ID        string
	Frequency float64
	Recency   float64
	T         float64
	Monetary  float64
}

const day = 24 * time.Hour

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Summarize aggregates login events into daily transactions and returns one
// Customer per user in first-seen order.
//
// The observation period ends on the calendar date of latest and starts
// window before that date; only events strictly after the start count.
// Frequency is the number of active days minus one, Recency the days between
// the first and last active day, T the days between the first active day and
// the end of observation. Monetary is the mean number of logins over the
// repeat days, or 0 without a repeat day.
func Summarize(events []ingest.LoginEvent, latest time.Time, window time.Duration) []Customer {
	end := dateOf(latest)
	start := end.Add(-window)

	type userDays struct {
		counts map[time.Time]int
		first  time.Time
		last   time.Time
	}
	var order []string
	users := make(map[string]*userDays)

	for _, e := range events {
		if !e.Time.After(start) || e.Time.After(latest) {
			continue
		}
		d := dateOf(e.Time)
		u, ok := users[e.User]
		if !ok {
			u = &userDays{counts: make(map[time.Time]int), first: d, last: d}
			users[e.User] = u
			order = append(order, e.User)
		}
		u.counts[d]++
		if d.Before(u.first) {
			u.first = d
		}
		if d.After(u.last) {
			u.last = d
		}
	}

	out := make([]Customer, 0, len(order))
	for _, id := range order {
		u := users[id]
		c := Customer{
			ID:        id,
			Frequency: float64(len(u.counts) - 1),
			Recency:   float64(u.last.Sub(u.first) / day),
			T:         float64(end.Sub(u.first) / day),
		}
		if c.Frequency > 0 {
			var total int
			for d, n := range u.counts {
				if !d.Equal(u.first) {
					total += n
				}
			}
			c.Monetary = float64(total) / c.Frequency
		}
		out = append(out, c)
	}
	return out
}
