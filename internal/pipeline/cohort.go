// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/tomtom215/lexsegment/internal/affinity"
	"github.com/tomtom215/lexsegment/internal/artifact"
	"github.com/tomtom215/lexsegment/internal/cluster"
	"github.com/tomtom215/lexsegment/internal/config"
	"github.com/tomtom215/lexsegment/internal/ingest"
	"github.com/tomtom215/lexsegment/internal/logging"
	"github.com/tomtom215/lexsegment/internal/metrics"
	"github.com/tomtom215/lexsegment/internal/recommend"
	"github.com/tomtom215/lexsegment/internal/segment"
)

// cohortTables are the open per-cohort tables.
type cohortTables struct {
	edges *artifact.EdgeTable
	recs  *artifact.RecommendationTable
}

func openCohortTables(dir string, catalog *recommend.Catalog) (*cohortTables, error) {
	edges, err := artifact.CreateEdgeTable(filepath.Join(dir, artifact.EdgesFile))
	if err != nil {
		return nil, err
	}
	recs, err := artifact.CreateRecommendationTable(filepath.Join(dir, artifact.RecommendationsFile), catalog)
	if err != nil {
		_ = edges.Abort()
		return nil, err
	}
	return &cohortTables{edges: edges, recs: recs}, nil
}

func (t *cohortTables) commit() error {
	if err := t.edges.Commit(); err != nil {
		return err
	}
	return t.recs.Commit()
}

func (t *cohortTables) abort() {
	_ = t.edges.Abort()
	_ = t.recs.Abort()
}

// runCohort clusters one cohort and writes its edge and recommendation
// tables. An empty cohort is skipped without writing tables.
//
//nolint:gocritic // hugeParam: inputs are passed by value, slices are shared
func (r *Runner) runCohort(ctx context.Context, cc config.CohortConfig, users []segment.User, in inputs,
	catalog *recommend.Catalog) (CohortResult, []cluster.Cluster, error) {
	tag, err := segment.ParsePriority(cc.Tag)
	if err != nil {
		return CohortResult{}, nil, err
	}
	ctx = logging.ContextWithCohort(ctx, int(tag))
	log := logging.Ctx(ctx)
	res := CohortResult{Tag: tag}

	members := segment.Cohort(users, tag)
	res.Users = len(members)
	if len(members) == 0 {
		log.Warn().Msg("Cohort is empty, skipping")
		metrics.RecordCohort(int(tag), 0, 0)
		return res, nil, nil
	}

	ids := make([]string, len(members))
	for i, u := range members {
		ids[i] = u.ID
	}
	set := memberSet(ids)
	views := filterViews(in.views, set)
	downloads := filterDownloads(in.downloads, set)

	profiles := affinity.ResolveProfiles(ids, views, filterLogins(in.logins, set))
	m, err := affinity.Build(profiles, affinity.Weights{
		Industry: cc.IndustryWeight,
		Position: cc.PositionWeight,
	}, r.cfg.Cluster.MaxCohortSize)
	if err != nil {
		return res, nil, fmt.Errorf("affinity cohort %d: %w", tag, err)
	}
	clusters, err := cluster.Partition(ctx, m, cc.Preference, r.oracle)
	if err != nil {
		return res, nil, fmt.Errorf("cluster cohort %d: %w", tag, err)
	}
	res.Clusters = len(clusters)

	dir := artifact.CohortDir(r.cfg.Output.WorkDir, tag)
	if err := artifact.WriteClusters(filepath.Join(dir, artifact.ClustersFile), clusters); err != nil {
		return res, nil, err
	}

	tables, err := openCohortTables(dir, catalog)
	if err != nil {
		return res, nil, err
	}
	defer tables.abort()

	rc := r.cfg.Recommend
	weights := recommend.Weights{View: rc.ViewWeight, Download: rc.DownloadWeight}
	ncfg := recommend.NeighborConfig{K: rc.Neighbors, BlockSize: rc.BlockSize, Workers: rc.Workers}
	scfg := recommend.ScoreConfig{N: rc.Count, MinDifference: rc.MinDifference}

	for i, c := range clusters {
		if len(c.Members) < 2 {
			res.Singletons++
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, nil, err
		}

		pm := recommend.BuildPreferenceMatrix(c.Members, views, downloads, weights)
		from, err := tables.edges.Offset()
		if err != nil {
			return res, nil, err
		}
		edges, err := recommend.SearchNeighbors(ctx, pm, ncfg, tables.edges)
		if err != nil {
			return res, nil, fmt.Errorf("neighbors cohort %d cluster %d: %w", tag, i, err)
		}
		src, err := tables.edges.Segment(from)
		if err != nil {
			return res, nil, err
		}
		recs, err := recommend.Score(ctx, pm, src, scfg, tables.recs)
		if err != nil {
			return res, nil, fmt.Errorf("score cohort %d cluster %d: %w", tag, i, err)
		}
		res.Edges += edges
		res.Recommendations += recs

		log.Debug().
			Str("pivot", c.Pivot).
			Int("members", len(c.Members)).
			Int("items", len(pm.Items)).
			Int("edges", edges).
			Int("recommendations", recs).
			Msg("Cluster scored")
	}

	if err := tables.commit(); err != nil {
		return res, nil, err
	}
	metrics.RecordCohort(int(tag), res.Clusters, res.Edges)

	log.Info().
		Int("users", res.Users).
		Int("clusters", res.Clusters).
		Int("singletons", res.Singletons).
		Int("edges", res.Edges).
		Int("recommendations", res.Recommendations).
		Msg("Cohort completed")
	return res, clusters, nil
}

func memberSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func filterLogins(events []ingest.LoginEvent, set map[string]struct{}) []ingest.LoginEvent {
	var out []ingest.LoginEvent
	for _, e := range events {
		if _, ok := set[e.User]; ok {
			out = append(out, e)
		}
	}
	return out
}

func filterViews(events []ingest.ViewEvent, set map[string]struct{}) []ingest.ViewEvent {
	var out []ingest.ViewEvent
	for _, e := range events {
		if _, ok := set[e.User]; ok {
			out = append(out, e)
		}
	}
	return out
}

func filterDownloads(events []ingest.DownloadEvent, set map[string]struct{}) []ingest.DownloadEvent {
	var out []ingest.DownloadEvent
	for _, e := range events {
		if _, ok := set[e.User]; ok {
			out = append(out, e)
		}
	}
	return out
}
