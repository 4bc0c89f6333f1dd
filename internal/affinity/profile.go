// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

// Package affinity builds the weighted attribute-overlap matrix of a cohort.
//
// Every user is reduced to a Profile of two categorical attributes: the
// dominant industry of the documents they viewed and the province they last
// logged in from. Two users gain IndustryWeight when their industries match
// and PositionWeight when their regions match.
package affinity

import (
	"sort"
	"strings"

	"github.com/tomtom215/lexsegment/internal/ingest"
)

// AllIndustries is the industry label of documents that apply to every
// industry, and the dominant industry of users with no specific one.
const AllIndustries = "所有行业"

// Profile holds the clustering attributes of one user.
type Profile struct {
	User     string
	Industry string
	Region   string
}

// primaryIndustry returns the first element of a comma separated industry
// field. Both ASCII and full-width commas separate values.
func primaryIndustry(field string) string {
	if i := strings.IndexAny(field, ",，"); i >= 0 {
		field = field[:i]
	}
	return strings.TrimSpace(field)
}

// ResolveProfiles computes the profile of each user, in the order given.
//
// The dominant industry is the most frequent primary industry across the
// user's views, ignoring empty values and AllIndustries; ties go to the
// value seen first, and users without one get AllIndustries. The region is
// the last non-empty province in chronological login order.
func ResolveProfiles(users []string, views []ingest.ViewEvent, logins []ingest.LoginEvent) []Profile {
	wanted := make(map[string]struct{}, len(users))
	for _, u := range users {
		wanted[u] = struct{}{}
	}

	type tally struct {
		counts map[string]int
		order  []string
	}
	industries := make(map[string]*tally)
	for _, v := range views {
		if _, ok := wanted[v.User]; !ok {
			continue
		}
		ind := primaryIndustry(v.Industry)
		if ind == "" || ind == AllIndustries {
			continue
		}
		t, ok := industries[v.User]
		if !ok {
			t = &tally{counts: make(map[string]int)}
			industries[v.User] = t
		}
		if t.counts[ind] == 0 {
			t.order = append(t.order, ind)
		}
		t.counts[ind]++
	}

	sorted := make([]ingest.LoginEvent, 0, len(logins))
	for _, e := range logins {
		if _, ok := wanted[e.User]; ok && e.Province != "" {
			sorted = append(sorted, e)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	regions := make(map[string]string, len(users))
	for _, e := range sorted {
		regions[e.User] = e.Province
	}

	out := make([]Profile, len(users))
	for i, u := range users {
		industry := AllIndustries
		if t, ok := industries[u]; ok {
			best := 0
			for _, ind := range t.order {
				if t.counts[ind] > best {
					best = t.counts[ind]
					industry = ind
				}
			}
		}
		out[i] = Profile{User: u, Industry: industry, Region: regions[u]}
	}
	return out
}
