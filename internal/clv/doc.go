// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

// Package clv estimates customer lifetime value from login activity.
//
// Logins are treated as transactions of monetary value 1 aggregated per day.
// A BG/NBD model forecasts the number of future active days per user and a
// Gamma-Gamma model forecasts the value of each active day; the lifetime
// value is the sum of their product over a horizon of forecast periods.
//
// Both models are fitted by maximum likelihood with gonum's Nelder-Mead
// optimizer over log-parameters, starting from all parameters equal to 1.
//
// # Usage
//
//	customers := clv.Summarize(events, latest, 180*24*time.Hour)
//	model := clv.NewModel(clv.DefaultConfig())
//	values, err := model.Estimate(ctx, customers)
package clv
