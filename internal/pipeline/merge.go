// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package pipeline

import (
	"context"
	"path/filepath"

	"github.com/tomtom215/lexsegment/internal/artifact"
	"github.com/tomtom215/lexsegment/internal/logging"
	"github.com/tomtom215/lexsegment/internal/metrics"
	"github.com/tomtom215/lexsegment/internal/recommend"
	"github.com/tomtom215/lexsegment/internal/segment"
)

// merge reads the committed cohort tables back in cohort order, pads every
// segmented user and commits the final table.
//
//nolint:gocritic // hugeParam: inputs are passed by value, slices are shared
func (r *Runner) merge(ctx context.Context, cohorts []CohortResult, users []segment.User, in inputs,
	catalog *recommend.Catalog) ([]recommend.Row, recommend.MergeStats, error) {
	log := logging.Ctx(ctx)
	mcfg := recommend.MergeConfig{N: r.cfg.Recommend.Count, ExcludeRecommended: r.cfg.Merge.ExcludeRecommended}
	merger := recommend.NewMerger(mcfg, catalog)

	for _, c := range cohorts {
		if c.Users == 0 {
			continue
		}
		path := filepath.Join(artifact.CohortDir(r.cfg.Output.WorkDir, c.Tag), artifact.RecommendationsFile)
		recs, err := artifact.ReadRecommendations(path)
		if err != nil {
			return nil, recommend.MergeStats{}, err
		}
		merger.Add(recs...)
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	pop := recommend.Popular(in.views, in.downloads, mcfg.PadDepth())
	stats := merger.Pad(ids, pop)

	if stats.ShortUsers > 0 {
		log.Warn().
			Int("short_users", stats.ShortUsers).
			Int("popular_items", pop.Len()).
			Int("count", mcfg.N).
			Msg("Popularity ranking too short to pad every user")
	}
	metrics.RecordMerge(stats.Personalized, stats.Padded, stats.ShortUsers)

	rows := merger.Rows()
	if err := artifact.WriteFinal(r.cfg.Output.ResultPath, rows); err != nil {
		return nil, stats, err
	}
	log.Info().
		Int("personalized", stats.Personalized).
		Int("padded", stats.Padded).
		Int("rows", len(rows)).
		Str("path", r.cfg.Output.ResultPath).
		Msg("Final recommendations written")
	return rows, stats, nil
}
