// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

// Package segment classifies users into behavioral tiers and priority tags.
//
// Tiering looks at two windows anchored at the latest login: the number of
// distinct cities a user logged in from over the long window, and the number
// of located logins over the short window. The tier is then combined with a
// high/low lifetime value tag into a priority tag in {1, 2, 3} that selects
// the cohort a user is clustered in.
package segment

import (
	"sort"
	"time"

	"github.com/tomtom215/lexsegment/internal/ingest"
)

// Tier is a behavioral tier.
type Tier string

const (
	Senior  Tier = "senior"
	Middle  Tier = "middle"
	Primary Tier = "primary"
)

const (
	seniorMinLocations = 3
	seniorMinLogins    = 10
	middleMinLogins    = 5
)

// Windows holds the tiering observation windows.
type Windows struct {
	// Long bounds the location diversity count. Default: 180 days.
	Long time.Duration
	// Short bounds the recent login count. Default: 30 days.
	Short time.Duration
}

// DefaultWindows returns the 180/30 day windows.
func DefaultWindows() Windows {
	return Windows{Long: 180 * 24 * time.Hour, Short: 30 * 24 * time.Hour}
}

// Stats are the per-user tiering inputs.
type Stats struct {
	DistinctLocations int
	RecentLogins      int
}

// Assignment is the tier of one user.
type Assignment struct {
	User  string
	Tier  Tier
	Stats Stats
}

// Tiering is the result of classifying a login log.
type Tiering struct {
	// Latest is the anchor timestamp of both windows.
	Latest time.Time
	// Users are in first-seen order of the chronologically sorted log.
	Users []Assignment
}

// Classify maps tiering stats to a tier.
func Classify(distinct, recent int) Tier {
	switch {
	case distinct >= seniorMinLocations && recent > seniorMinLogins:
		return Senior
	case distinct >= seniorMinLocations && recent <= seniorMinLogins,
		distinct < seniorMinLocations && recent > middleMinLogins:
		return Middle
	default:
		return Primary
	}
}

// ClassifyUsers computes tiering stats for every user with a login inside
// the long window. An event is inside a window when its timestamp is
// strictly after latest minus the window. Logins without a city count
// toward the population but not toward either statistic.
func ClassifyUsers(events []ingest.LoginEvent, w Windows) Tiering {
	if len(events) == 0 {
		return Tiering{}
	}

	sorted := make([]ingest.LoginEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	latest := sorted[len(sorted)-1].Time
	longStart := latest.Add(-w.Long)
	shortStart := latest.Add(-w.Short)

	type acc struct {
		cities map[string]struct{}
		recent int
	}
	var order []string
	users := make(map[string]*acc)

	for _, e := range sorted {
		if !e.Time.After(longStart) {
			continue
		}
		a, ok := users[e.User]
		if !ok {
			a = &acc{cities: make(map[string]struct{})}
			users[e.User] = a
			order = append(order, e.User)
		}
		if e.City == "" {
			continue
		}
		a.cities[e.City] = struct{}{}
		if e.Time.After(shortStart) {
			a.recent++
		}
	}

	out := Tiering{Latest: latest, Users: make([]Assignment, 0, len(order))}
	for _, id := range order {
		a := users[id]
		stats := Stats{DistinctLocations: len(a.cities), RecentLogins: a.recent}
		out.Users = append(out.Users, Assignment{
			User:  id,
			Tier:  Classify(stats.DistinctLocations, stats.RecentLogins),
			Stats: stats,
		})
	}
	return out
}

// Count returns the number of users per tier.
func (t Tiering) Count() map[Tier]int {
	counts := map[Tier]int{Senior: 0, Middle: 0, Primary: 0}
	for _, a := range t.Users {
		counts[a.Tier]++
	}
	return counts
}
