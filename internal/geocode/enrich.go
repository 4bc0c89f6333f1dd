// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tomtom215/lexsegment/internal/artifact"
	"github.com/tomtom215/lexsegment/internal/ingest"
	"github.com/tomtom215/lexsegment/internal/logging"
)

// invalidProvince is the exporter's marker for a failed upstream lookup.
const invalidProvince = "异常"

// flushBatches is the number of full batches buffered before resolving.
const flushBatches = 50

// Columns names the login log columns read and written by Enrich.
type Columns struct {
	Longitude string
	Latitude  string
	Province  string
	City      string
	County    string
}

// RecordWriter receives enriched CSV records.
type RecordWriter interface {
	Write(record ...string) error
}

// needsLookup reports whether a row's province is missing.
func needsLookup(province string) bool {
	p := strings.TrimSpace(province)
	return p == "" || p == invalidProvince
}

type pendingRow struct {
	row   int
	coord Coordinate
}

// enricher buffers rows so coordinates can be resolved in full batches
// while output keeps input order.
type enricher struct {
	resolver *Resolver
	w        RecordWriter
	pos      []int // longitude, latitude, province, city, county
	width    int

	rows    [][]string
	pending []pendingRow
	stats   Stats
}

// Enrich copies the records of t to w, filling province, city and county
// for rows whose province is empty or marked invalid. The header is not
// written; callers emit t.Header() first.
func Enrich(ctx context.Context, t *ingest.Table, w RecordWriter, cols Columns, r *Resolver) (Stats, error) {
	pos, err := t.Require(cols.Longitude, cols.Latitude, cols.Province, cols.City, cols.County)
	if err != nil {
		return Stats{}, err
	}
	e := &enricher{resolver: r, w: w, pos: pos, width: len(t.Header())}

	threshold := r.batchSize * flushBatches
	for {
		rec, err := t.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return e.stats, err
		}
		e.stats.Rows++
		e.add(rec)

		if len(e.pending) >= threshold {
			if err := e.flush(ctx); err != nil {
				return e.stats, err
			}
		}
	}
	if err := e.flush(ctx); err != nil {
		return e.stats, err
	}
	return e.stats, nil
}

func (e *enricher) add(rec []string) {
	row := make([]string, max(len(rec), e.width))
	copy(row, rec)
	e.rows = append(e.rows, row)

	if !needsLookup(row[e.pos[2]]) {
		return
	}
	coord, err := ParseCoordinate(row[e.pos[0]], row[e.pos[1]])
	if err != nil {
		fill(row, e.pos, unresolvedAddress)
		e.stats.Failed++
		return
	}
	e.pending = append(e.pending, pendingRow{row: len(e.rows) - 1, coord: coord})
}

func (e *enricher) flush(ctx context.Context) error {
	if len(e.pending) > 0 {
		coords := make([]Coordinate, len(e.pending))
		for i, p := range e.pending {
			coords[i] = p.coord
		}
		addrs, stats, err := e.resolver.Resolve(ctx, coords)
		e.stats.add(stats)
		if err != nil {
			return err
		}
		for i, p := range e.pending {
			fill(e.rows[p.row], e.pos, addrs[i])
		}
	}

	for _, row := range e.rows {
		if err := e.w.Write(row...); err != nil {
			return err
		}
	}
	e.rows = e.rows[:0]
	e.pending = e.pending[:0]
	return nil
}

func fill(row []string, pos []int, a Address) {
	row[pos[2]] = a.Province
	row[pos[3]] = a.City
	row[pos[4]] = a.District
}

// EnrichFile enriches the login log at in and commits the result to out.
//
//nolint:gosec // G304: paths come from command line flags
func EnrichFile(ctx context.Context, in, out string, cols Columns, r *Resolver) (Stats, error) {
	f, err := os.Open(in)
	if err != nil {
		return Stats{}, fmt.Errorf("open %s: %w", in, err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	t, err := ingest.NewTable(f, in)
	if err != nil {
		return Stats{}, err
	}
	dst, err := artifact.Create(out, t.Header()...)
	if err != nil {
		return Stats{}, err
	}
	defer dst.Abort() //nolint:errcheck // No-op after Commit

	stats, err := Enrich(ctx, t, dst, cols, r)
	if err != nil {
		return stats, err
	}
	if err := dst.Commit(); err != nil {
		return stats, err
	}

	log := logging.WithComponent("geocode")
	log.Info().
		Str("input", in).
		Str("output", out).
		Int("rows", stats.Rows).
		Int("pending", stats.Pending).
		Int("cache_hits", stats.CacheHits).
		Int("requests", stats.Requests).
		Int("failed", stats.Failed).
		Msg("Login log enriched")
	return stats, nil
}
