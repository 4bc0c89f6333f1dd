// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

// Package main is the entry point of the LexSegment batch pipeline.
//
// # Commands
//
//	lexsegment run [-config file]
//	    Tier users, tag lifetime value, cluster each configured cohort and
//	    write the merged recommendation table.
//
//	lexsegment geocode [-config file] [-in login.csv] -out enriched.csv
//	    Fill missing login provinces by reverse geocoding coordinates.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (LOG_LEVEL, WORK_DIR, AMAP_KEY, ...)
//   - Config file (-config, LEXSEG_CONFIG, or lexsegment.yaml)
//   - Built-in defaults
//
// # Exit Codes
//
//	0  success
//	1  the run failed
//	2  usage or configuration error
//
// SIGINT and SIGTERM cancel the run between rows, blocks and clusters; no
// partially written table is committed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/lexsegment/internal/config"
	"github.com/tomtom215/lexsegment/internal/geocode"
	"github.com/tomtom215/lexsegment/internal/logging"
	"github.com/tomtom215/lexsegment/internal/pipeline"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// errUsage marks errors caused by the command line or configuration.
var errUsage = errors.New("usage error")

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case "run":
		err = runPipeline(ctx, args[1:], stderr)
	case "geocode":
		err = runGeocode(ctx, args[1:], stderr)
	case "help", "-h", "-help", "--help":
		printUsage(stderr)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		return exitUsage
	default:
		logging.Error().Err(err).Msg("Command failed")
		return exitFailure
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage:
  lexsegment run [-config file]
  lexsegment geocode [-config file] [-in login.csv] -out enriched.csv
`)
}

// loadConfig loads and validates configuration, then initializes logging.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadWithKoanf(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	return cfg, nil
}

func runPipeline(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx = logging.ContextWithRunID(ctx, logging.GenerateRunID())
	res, err := pipeline.New(cfg, pipeline.Options{}).Run(ctx)
	if err != nil {
		return err
	}

	logging.Ctx(ctx).Info().
		Str("result_path", cfg.Output.ResultPath).
		Int("users", res.Users).
		Int("rows", res.Rows).
		Int("short_users", res.Merge.ShortUsers).
		Msg("Run finished")
	return nil
}

func runGeocode(ctx context.Context, args []string, stderr io.Writer) (err error) {
	fs := flag.NewFlagSet("geocode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	in := fs.String("in", "", "login log to enrich (default: input.login_path)")
	out := fs.String("out", "", "enriched login log to write")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if *out == "" {
		return fmt.Errorf("%w: -out is required", errUsage)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *in == "" {
		*in = cfg.Input.LoginPath
	}
	if cfg.Geocode.APIKey == "" {
		return fmt.Errorf("%w: geocode.api_key (AMAP_KEY) is required", errUsage)
	}

	gc := cfg.Geocode
	client := geocode.NewClient(geocode.ClientConfig{
		Endpoint:          gc.Endpoint,
		APIKey:            gc.APIKey,
		RequestsPerSecond: gc.RequestsPerSecond,
		Timeout:           gc.Timeout,
	})

	var cache *geocode.Cache
	if gc.CachePath != "" {
		cache, err = geocode.OpenCache(gc.CachePath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := cache.Close(); closeErr != nil {
				logging.Error().Err(closeErr).Msg("Error closing geocode cache")
			}
		}()
	}

	cols := cfg.Input.Columns
	_, err = geocode.EnrichFile(ctx, *in, *out, geocode.Columns{
		Longitude: cols.LoginLongitude,
		Latitude:  cols.LoginLatitude,
		Province:  cols.LoginProvince,
		City:      cols.LoginCity,
		County:    cols.LoginCounty,
	}, geocode.NewResolver(client, cache, gc.BatchSize))
	return err
}
