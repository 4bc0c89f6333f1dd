// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package segment

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/tomtom215/lexsegment/internal/clv"
	"github.com/tomtom215/lexsegment/internal/ingest"
)

// ValueTag marks a user's lifetime value relative to the population mean.
type ValueTag string

const (
	High ValueTag = "high"
	Low  ValueTag = "low"
)

// Priority is a cohort tag in {1, 2, 3}.
type Priority int

var (
	// ErrInvalidPriority is returned for a priority outside {1, 2, 3}.
	ErrInvalidPriority = errors.New("segment: invalid priority tag")

	// ErrUnknownTier is returned when a tier has no priority mapping.
	ErrUnknownTier = errors.New("segment: unknown tier")

	// ErrMissingEstimate is returned when the value oracle omits a user.
	ErrMissingEstimate = errors.New("segment: value estimate missing")
)

// Estimator is a lifetime value oracle.
type Estimator interface {
	Estimate(ctx context.Context, customers []clv.Customer) (map[string]float64, error)
}

// User is a tiered and value-tagged user.
type User struct {
	ID       string
	Tier     Tier
	Stats    Stats
	Value    float64
	ValueTag ValueTag
	Priority Priority
}

var priorities = map[Tier]map[ValueTag]Priority{
	Senior:  {High: 1, Low: 2},
	Middle:  {High: 2, Low: 3},
	Primary: {High: 2, Low: 3},
}

// PriorityOf maps a tier and value tag to a priority.
func PriorityOf(tier Tier, tag ValueTag) (Priority, error) {
	byTag, ok := priorities[tier]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	p, ok := byTag[tag]
	if !ok {
		return 0, fmt.Errorf("segment: unknown value tag %q", tag)
	}
	return p, nil
}

// ParsePriority validates a configured cohort tag.
func ParsePriority(tag int) (Priority, error) {
	if tag < 1 || tag > 3 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPriority, tag)
	}
	return Priority(tag), nil
}

// TagValues estimates every tiered user's lifetime value from events and
// assigns value tags and priorities. A user is high value when its estimate
// is strictly greater than the mean of all returned estimates.
func TagValues(ctx context.Context, tiering Tiering, events []ingest.LoginEvent, window time.Duration, est Estimator) ([]User, error) {
	if len(tiering.Users) == 0 {
		return nil, nil
	}

	customers := clv.Summarize(events, tiering.Latest, window)
	estimates, err := est.Estimate(ctx, customers)
	if err != nil {
		return nil, fmt.Errorf("estimate lifetime value: %w", err)
	}
	if len(estimates) == 0 {
		return nil, fmt.Errorf("%w: oracle returned no estimates", ErrMissingEstimate)
	}

	// Summed in sorted id order; map order must not change the mean.
	var sum float64
	for _, id := range slices.Sorted(maps.Keys(estimates)) {
		v := estimates[id]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("estimate for %s is not finite: %v", id, v)
		}
		sum += v
	}
	mean := sum / float64(len(estimates))

	users := make([]User, 0, len(tiering.Users))
	for _, a := range tiering.Users {
		v, ok := estimates[a.User]
		if !ok {
			return nil, fmt.Errorf("%w: user %s", ErrMissingEstimate, a.User)
		}
		tag := Low
		if v > mean {
			tag = High
		}
		p, err := PriorityOf(a.Tier, tag)
		if err != nil {
			return nil, err
		}
		users = append(users, User{
			ID:       a.User,
			Tier:     a.Tier,
			Stats:    a.Stats,
			Value:    v,
			ValueTag: tag,
			Priority: p,
		})
	}
	return users, nil
}

// Cohort returns the users with priority p, preserving order.
func Cohort(users []User, p Priority) []User {
	var out []User
	for _, u := range users {
		if u.Priority == p {
			out = append(out, u)
		}
	}
	return out
}
