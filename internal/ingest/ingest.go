// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

// Package ingest reads the raw login, view and download logs into typed rows.
//
// Each file is validated once when it is opened: a missing required header
// column is a fatal *MissingColumnError. Individual rows that cannot be used
// (no user, unparseable timestamp) are dropped and counted, never fatal.
// Location sentinels written by upstream exporters are normalized to the
// empty string so aggregations can skip them uniformly.
package ingest

import (
	"fmt"
	"strings"
	"time"
)

// UndefinedItem is the item id exporters write when a document id was lost.
const UndefinedItem = "undefined"

// LoginEvent is one login log row.
type LoginEvent struct {
	User     string
	Time     time.Time
	Province string
	City     string
}

// ViewEvent is one document view row.
type ViewEvent struct {
	User     string
	Item     string
	Name     string
	DocNum   string
	Industry string
}

// DownloadEvent is one document download row.
type DownloadEvent struct {
	User string
	Item string
}

// LoginColumns names the login log header columns.
type LoginColumns struct {
	User     string
	Time     string
	Province string
	City     string
}

// ViewColumns names the view log header columns.
type ViewColumns struct {
	User     string
	Item     string
	Name     string
	DocNum   string
	Industry string
}

// DownloadColumns names the download log header columns.
type DownloadColumns struct {
	User string
	Item string
}

// MissingColumnError reports a required header column absent from an input file.
type MissingColumnError struct {
	Source string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing required column %q", e.Source, e.Column)
}

// missingLocations are the labels exporters emit for an unknown location.
var missingLocations = map[string]struct{}{
	"":    {},
	"[]":  {},
	"[]市": {},
	"异常":  {},
}

// NormalizeLocation trims a province or city label and maps missing-value
// sentinels to "".
func NormalizeLocation(s string) string {
	s = strings.TrimSpace(s)
	if _, ok := missingLocations[s]; ok {
		return ""
	}
	return s
}

// ValidItem reports whether an item id identifies a real document.
func ValidItem(id string) bool {
	return id != "" && id != UndefinedItem
}

// fallbackLayouts are tried after the configured timestamp layout.
var fallbackLayouts = []string{
	"2006/1/2 15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseTime parses a login timestamp with the given layout, falling back to
// common export formats. Times are interpreted in UTC.
func ParseTime(value, layout string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
		return t, true
	}
	for _, l := range fallbackLayouts {
		if t, err := time.ParseInLocation(l, value, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
