// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	// runIDKey is the context key for the pipeline run identifier.
	runIDKey contextKey = "run_id"

	// cohortKey is the context key for the cohort currently being processed.
	cohortKey contextKey = "cohort"
)

// GenerateRunID creates a new run identifier.
// Returns the first 8 characters of a UUID for readability.
func GenerateRunID() string {
	return uuid.New().String()[:8]
}

// ContextWithRunID returns a new context carrying the given run ID.
//
//	ctx = logging.ContextWithRunID(ctx, logging.GenerateRunID())
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext retrieves the run ID from context.
// Returns empty string if not present.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithCohort returns a new context tagged with a cohort priority.
func ContextWithCohort(ctx context.Context, tag int) context.Context {
	return context.WithValue(ctx, cohortKey, tag)
}

// CohortFromContext retrieves the cohort tag from context.
// The second return value is false when no cohort is set.
func CohortFromContext(ctx context.Context) (int, bool) {
	tag, ok := ctx.Value(cohortKey).(int)
	return tag, ok
}

// Ctx returns the global logger with context values (run_id, cohort) added.
//
//	logging.Ctx(ctx).Info().Int("clusters", n).Msg("Cohort clustered")
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := Logger().With()
	if id := RunIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("run_id", id)
	}
	if tag, ok := CohortFromContext(ctx); ok {
		logCtx = logCtx.Int("cohort", tag)
	}
	l := logCtx.Logger()
	return &l
}

// WithComponent creates a child logger with a component field.
//
//	geoLogger := logging.WithComponent("geocode")
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
