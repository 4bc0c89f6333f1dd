// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

// Package pipeline runs the segmentation and recommendation stages in order.
//
// # Stages
//
//  1. load: read the login, view and download logs
//  2. tier: classify users by location diversity and login frequency
//  3. value: estimate lifetime value and assign priority tags
//  4. cohort: per configured cohort, cluster by affinity, search neighbors
//     inside each cluster and score documents
//  5. merge: concatenate cohort tables and pad every user with popular documents
//  6. export: optionally load the run into DuckDB
//
// Stages run sequentially, as do cohorts and clusters. Every table is
// committed atomically, so a failed stage leaves the committed tables of
// earlier stages and nothing of its own.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/tomtom215/lexsegment/internal/artifact"
	"github.com/tomtom215/lexsegment/internal/cluster"
	"github.com/tomtom215/lexsegment/internal/clv"
	"github.com/tomtom215/lexsegment/internal/config"
	"github.com/tomtom215/lexsegment/internal/ingest"
	"github.com/tomtom215/lexsegment/internal/logging"
	"github.com/tomtom215/lexsegment/internal/metrics"
	"github.com/tomtom215/lexsegment/internal/recommend"
	"github.com/tomtom215/lexsegment/internal/segment"
	"github.com/tomtom215/lexsegment/internal/store"
)

// Stage names used in logs and metrics.
const (
	StageLoad   = "load"
	StageTier   = "tier"
	StageValue  = "value"
	StageCohort = "cohort"
	StageMerge  = "merge"
	StageExport = "export"
)

// Options overrides the oracles a Runner uses. Zero fields select the
// built-in implementations configured from the run configuration.
type Options struct {
	Estimator segment.Estimator
	Oracle    cluster.Oracle

	// Now stamps the success metric. Default: time.Now.
	Now func() time.Time
}

// Runner executes the pipeline for one configuration.
type Runner struct {
	cfg       *config.Config
	estimator segment.Estimator
	oracle    cluster.Oracle
	now       func() time.Time
}

// CohortResult summarizes one personalized cohort.
type CohortResult struct {
	Tag             segment.Priority
	Users           int
	Clusters        int
	Singletons      int
	Edges           int
	Recommendations int
}

// Result summarizes a completed run.
type Result struct {
	RunID    string
	Users    int
	Tiers    map[segment.Tier]int
	Cohorts  []CohortResult
	Merge    recommend.MergeStats
	Rows     int
	Duration time.Duration
}

// inputs are the typed rows of the three logs.
type inputs struct {
	logins    []ingest.LoginEvent
	views     []ingest.ViewEvent
	downloads []ingest.DownloadEvent
}

// New creates a Runner. cfg must already be validated.
func New(cfg *config.Config, opts Options) *Runner {
	r := &Runner{
		cfg:       cfg,
		estimator: opts.Estimator,
		oracle:    opts.Oracle,
		now:       opts.Now,
	}
	if r.estimator == nil {
		r.estimator = clv.NewModel(clv.Config{
			Periods:       cfg.Value.Periods,
			PeriodDays:    float64(cfg.Value.PeriodDays),
			DiscountRate:  cfg.Value.DiscountRate,
			Penalizer:     cfg.Value.Penalizer,
			MaxIterations: cfg.Value.MaxIterations,
		})
	}
	if r.oracle == nil {
		r.oracle = cluster.NewAffinityPropagation(cluster.PropagationConfig{
			Damping:               cfg.Cluster.Damping,
			MaxIterations:         cfg.Cluster.MaxIterations,
			ConvergenceIterations: cfg.Cluster.ConvergenceIterations,
			Seed:                  cfg.Cluster.Seed,
		})
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Run executes every stage. The run id is taken from ctx when present.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	runID := logging.RunIDFromContext(ctx)
	if runID == "" {
		runID = logging.GenerateRunID()
		ctx = logging.ContextWithRunID(ctx, runID)
	}
	log := logging.Ctx(ctx)
	start := time.Now()
	res := &Result{RunID: runID}

	log.Info().
		Str("work_dir", r.cfg.Output.WorkDir).
		Int("cohorts", len(r.cfg.Cohorts)).
		Msg("Pipeline started")

	var in inputs
	if err := r.stage(ctx, StageLoad, func(context.Context) error {
		var err error
		in, err = r.load()
		return err
	}); err != nil {
		return nil, err
	}

	var tiering segment.Tiering
	if err := r.stage(ctx, StageTier, func(context.Context) error {
		tiering = segment.ClassifyUsers(in.logins, segment.Windows{
			Long:  r.cfg.Segment.LongWindow,
			Short: r.cfg.Segment.ShortWindow,
		})
		res.Tiers = tiering.Count()
		recordTiers(res.Tiers)
		return nil
	}); err != nil {
		return nil, err
	}

	var users []segment.User
	if err := r.stage(ctx, StageValue, func(ctx context.Context) error {
		var err error
		users, err = segment.TagValues(ctx, tiering, in.logins, r.cfg.Segment.LongWindow, r.estimator)
		if err != nil {
			return err
		}
		recordPriorities(users)
		return artifact.WriteSegments(filepath.Join(r.cfg.Output.WorkDir, artifact.SegmentsFile), users)
	}); err != nil {
		return nil, err
	}
	res.Users = len(users)

	catalog := recommend.NewCatalog(in.views)
	var cohorts []store.CohortClusters
	if err := r.stage(ctx, StageCohort, func(ctx context.Context) error {
		for _, cc := range r.cfg.Cohorts {
			if err := ctx.Err(); err != nil {
				return err
			}
			cr, clusters, err := r.runCohort(ctx, cc, users, in, catalog)
			if err != nil {
				return err
			}
			res.Cohorts = append(res.Cohorts, cr)
			cohorts = append(cohorts, store.CohortClusters{Cohort: cr.Tag, Clusters: clusters})
		}
		return nil
	}); err != nil {
		return nil, err
	}

	var rows []recommend.Row
	if err := r.stage(ctx, StageMerge, func(ctx context.Context) error {
		var err error
		rows, res.Merge, err = r.merge(ctx, res.Cohorts, users, in, catalog)
		return err
	}); err != nil {
		return nil, err
	}
	res.Rows = len(rows)

	if path := r.cfg.Export.DuckDBPath; path != "" {
		if err := r.stage(ctx, StageExport, func(ctx context.Context) error {
			return export(ctx, path, runID, store.Snapshot{
				Segments:        users,
				Clusters:        cohorts,
				Recommendations: rows,
			})
		}); err != nil {
			return nil, err
		}
	}

	metrics.RecordRunSuccess(r.now())
	if path := r.cfg.Metrics.TextfilePath; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to write metrics textfile")
		}
	}

	res.Duration = time.Since(start)
	log.Info().
		Int("users", res.Users).
		Int("rows", res.Rows).
		Int("padded", res.Merge.Padded).
		Dur("duration", res.Duration).
		Msg("Pipeline completed")
	return res, nil
}

// stage runs fn with stage timing, logging and error accounting.
func (r *Runner) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	log := logging.Ctx(ctx).With().Str("stage", name).Logger()
	log.Debug().Msg("Stage started")

	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)
	metrics.ObserveStage(name, d, err)

	if err != nil {
		log.Error().Err(err).Dur("duration", d).Msg("Stage failed")
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Info().Dur("duration", d).Msg("Stage completed")
	return nil
}

func (r *Runner) load() (inputs, error) {
	in := r.cfg.Input
	cols := in.Columns

	logins, err := ingest.OpenLogins(in.LoginPath, ingest.LoginColumns{
		User:     cols.LoginUser,
		Time:     cols.LoginTime,
		Province: cols.LoginProvince,
		City:     cols.LoginCity,
	}, in.TimestampLayout)
	if err != nil {
		return inputs{}, err
	}
	views, err := ingest.OpenViews(in.ViewPath, ingest.ViewColumns{
		User:     cols.ViewUser,
		Item:     cols.ViewItem,
		Name:     cols.ViewName,
		DocNum:   cols.ViewDocNum,
		Industry: cols.ViewIndustry,
	})
	if err != nil {
		return inputs{}, err
	}
	downloads, err := ingest.OpenDownloads(in.DownloadPath, ingest.DownloadColumns{
		User: cols.DownloadUser,
		Item: cols.DownloadItem,
	})
	if err != nil {
		return inputs{}, err
	}

	logging.Info().
		Int("logins", len(logins)).
		Int("views", len(views)).
		Int("downloads", len(downloads)).
		Msg("Interaction logs loaded")
	return inputs{logins: logins, views: views, downloads: downloads}, nil
}

func recordTiers(counts map[segment.Tier]int) {
	out := make(map[string]int, len(counts))
	for tier, n := range counts {
		out[string(tier)] = n
	}
	metrics.RecordTiers(out)
}

func recordPriorities(users []segment.User) {
	counts := map[int]int{1: 0, 2: 0, 3: 0}
	for _, u := range users {
		counts[int(u.Priority)]++
	}
	metrics.RecordPriorities(counts)
}

func export(ctx context.Context, path, runID string, snap store.Snapshot) (err error) {
	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return s.Export(ctx, runID, snap)
}
