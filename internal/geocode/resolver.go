// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package geocode

import (
	"context"

	"github.com/tomtom215/lexsegment/internal/logging"
	"github.com/tomtom215/lexsegment/internal/metrics"
)

// MaxBatchSize is the largest batch the regeo API accepts.
const MaxBatchSize = 20

// Stats summarizes a resolution or enrichment pass.
type Stats struct {
	// Rows is the number of data rows read. Enrichment only.
	Rows int
	// Pending is the number of coordinates that needed an address.
	Pending   int
	CacheHits int
	Requests  int
	Resolved  int
	// Failed counts coordinates filled with Unresolved.
	Failed int
}

func (s *Stats) add(o Stats) {
	s.Rows += o.Rows
	s.Pending += o.Pending
	s.CacheHits += o.CacheHits
	s.Requests += o.Requests
	s.Resolved += o.Resolved
	s.Failed += o.Failed
}

// Resolver batches coordinates through a Geocoder with an optional cache.
type Resolver struct {
	geocoder  Geocoder
	cache     *Cache
	batchSize int
}

// NewResolver creates a resolver. cache may be nil. batchSize is clamped
// to [1, MaxBatchSize].
func NewResolver(g Geocoder, cache *Cache, batchSize int) *Resolver {
	batchSize = min(max(batchSize, 1), MaxBatchSize)
	return &Resolver{geocoder: g, cache: cache, batchSize: batchSize}
}

// Resolve returns one address per coordinate in input order. A batch the
// geocoder rejects resolves to Unresolved; only cancellation is an error.
func (r *Resolver) Resolve(ctx context.Context, coords []Coordinate) ([]Address, Stats, error) {
	log := logging.WithComponent("geocode")
	stats := Stats{Pending: len(coords)}
	addrs := make([]Address, len(coords))

	var misses []int
	for i, co := range coords {
		if r.cache != nil {
			addr, ok, err := r.cache.Get(co)
			if err != nil {
				log.Warn().Err(err).Str("coordinate", co.String()).Msg("Geocode cache read failed")
			} else if ok {
				addrs[i] = addr
				stats.CacheHits++
				metrics.GeocodeCacheHits.Inc()
				continue
			}
		}
		misses = append(misses, i)
	}

	for lo := 0; lo < len(misses); lo += r.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		idx := misses[lo:min(lo+r.batchSize, len(misses))]
		batch := make([]Coordinate, len(idx))
		for k, i := range idx {
			batch[k] = coords[i]
		}

		stats.Requests++
		resolved, err := r.geocoder.ReverseBatch(ctx, batch)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, stats, ctxErr
			}
			log.Warn().Err(err).Int("batch", len(batch)).Msg("Reverse geocoding batch failed")
			for _, i := range idx {
				addrs[i] = unresolvedAddress
			}
			stats.Failed += len(idx)
			continue
		}

		for k, i := range idx {
			addrs[i] = resolved[k]
		}
		stats.Resolved += len(idx)

		if r.cache != nil {
			if err := r.cache.Put(batch, resolved); err != nil {
				log.Warn().Err(err).Msg("Geocode cache write failed")
			}
		}
	}
	return addrs, stats, nil
}
