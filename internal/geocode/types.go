// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

// Package geocode fills missing login locations by reverse geocoding the
// login coordinates through the AMap regeo batch API.
//
// Requests are rate limited and run behind a circuit breaker; resolved
// coordinates can be cached in BadgerDB so reruns over the same log spend no
// API quota. A batch the API cannot answer marks its rows with the "[]"
// sentinel, which the pipeline reads as a missing location.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unresolved is written for every location field of a failed lookup.
const Unresolved = "[]"

// Sentinel errors.
var (
	// ErrBatchMismatch is returned when the API answers with a different
	// number of addresses than coordinates sent.
	ErrBatchMismatch = errors.New("geocode: response size does not match batch")

	// ErrAPI is returned when the API reports a non-success status.
	ErrAPI = errors.New("geocode: api error")

	// ErrInvalidCoordinate is returned for unparseable or out-of-range coordinates.
	ErrInvalidCoordinate = errors.New("geocode: invalid coordinate")
)

// Coordinate is a WGS-84 longitude/latitude pair rounded to 6 decimals.
type Coordinate struct {
	Lon float64
	Lat float64
}

// ParseCoordinate parses longitude and latitude strings.
func ParseCoordinate(lon, lat string) (Coordinate, error) {
	x, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: longitude %q", ErrInvalidCoordinate, lon)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: latitude %q", ErrInvalidCoordinate, lat)
	}
	if math.Abs(x) > 180 || math.Abs(y) > 90 {
		return Coordinate{}, fmt.Errorf("%w: %s,%s out of range", ErrInvalidCoordinate, lon, lat)
	}
	return Coordinate{Lon: round6(x), Lat: round6(y)}, nil
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// String renders the coordinate as the API expects it, "lon,lat".
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lat, 'f', -1, 64)
}

// Address is the administrative location of a coordinate.
type Address struct {
	Province string `json:"province"`
	City     string `json:"city"`
	District string `json:"district"`
}

// unresolvedAddress marks a failed lookup.
var unresolvedAddress = Address{Province: Unresolved, City: Unresolved, District: Unresolved}

// Geocoder reverse geocodes a batch of coordinates. The result holds one
// address per coordinate in input order.
type Geocoder interface {
	ReverseBatch(ctx context.Context, coords []Coordinate) ([]Address, error)
}
