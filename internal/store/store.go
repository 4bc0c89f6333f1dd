// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

// Package store exports the final tables of a run into a DuckDB database
// file for ad hoc analysis.
//
// Each export replaces the segments, clusters and recommendations tables
// inside one transaction and stamps every row with the run id, so the
// database always holds exactly one complete run.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/lexsegment/internal/cluster"
	"github.com/tomtom215/lexsegment/internal/logging"
	"github.com/tomtom215/lexsegment/internal/metrics"
	"github.com/tomtom215/lexsegment/internal/recommend"
	"github.com/tomtom215/lexsegment/internal/segment"
)

// memoryPath opens a private in-memory database.
const memoryPath = ":memory:"

// ErrUnknownTable is returned by Count for a table the store does not manage.
var ErrUnknownTable = errors.New("store: unknown table")

// Table names.
const (
	TableSegments        = "segments"
	TableClusters        = "clusters"
	TableRecommendations = "recommendations"
)

var schema = map[string]string{
	TableSegments: `CREATE OR REPLACE TABLE segments (
		run_id      VARCHAR NOT NULL,
		user_id     VARCHAR NOT NULL,
		tier        VARCHAR NOT NULL,
		value_tag   VARCHAR NOT NULL,
		priority    INTEGER NOT NULL,
		clv         DOUBLE NOT NULL,
		exported_at TIMESTAMP NOT NULL
	)`,
	TableClusters: `CREATE OR REPLACE TABLE clusters (
		run_id     VARCHAR NOT NULL,
		cohort     INTEGER NOT NULL,
		pivot_user VARCHAR NOT NULL,
		cohesion   DOUBLE NOT NULL,
		size       INTEGER NOT NULL,
		members    VARCHAR NOT NULL
	)`,
	TableRecommendations: `CREATE OR REPLACE TABLE recommendations (
		run_id       VARCHAR NOT NULL,
		seq          INTEGER NOT NULL,
		user_id      VARCHAR NOT NULL,
		item_name    VARCHAR NOT NULL,
		item_id      VARCHAR NOT NULL,
		document_num VARCHAR NOT NULL,
		score        DOUBLE NOT NULL,
		padded       BOOLEAN NOT NULL
	)`,
}

// tableOrder fixes the order tables are created and filled in.
var tableOrder = []string{TableSegments, TableClusters, TableRecommendations}

// CohortClusters are the clusters found in one cohort.
type CohortClusters struct {
	Cohort   segment.Priority
	Clusters []cluster.Cluster
}

// Snapshot is everything a run exports.
type Snapshot struct {
	Segments        []segment.User
	Clusters        []CohortClusters
	Recommendations []recommend.Row
}

// Store is a DuckDB export target.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens or creates the DuckDB database at path. The path ":memory:"
// opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != memoryPath {
		// Use 0750 permissions per gosec G301
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	// Disable auto-install/auto-load; the export needs no extensions.
	connStr := path + "?autoinstall_known_extensions=false&autoload_known_extensions=false"
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}
	return &Store{conn: conn, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Export replaces the managed tables with snap in one transaction.
func (s *Store) Export(ctx context.Context, runID string, snap Snapshot) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Ensure transaction is finalized
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().
					Err(rbErr).
					AnErr("original_error", err).
					Msg("Transaction rollback failed")
			}
		}
	}()

	for _, table := range tableOrder {
		start := time.Now()
		_, err = tx.ExecContext(ctx, schema[table])
		metrics.RecordDBQuery("create", table, time.Since(start), err)
		if err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
	}

	exportedAt := time.Now().UTC()
	if err = s.insertSegments(ctx, tx, runID, exportedAt, snap.Segments); err != nil {
		return err
	}
	if err = s.insertClusters(ctx, tx, runID, snap.Clusters); err != nil {
		return err
	}
	if err = s.insertRecommendations(ctx, tx, runID, snap.Recommendations); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("path", s.path).
		Int("segments", len(snap.Segments)).
		Int("recommendations", len(snap.Recommendations)).
		Msg("Warehouse export committed")
	return nil
}

func (s *Store) insertSegments(ctx context.Context, tx *sql.Tx, runID string, exportedAt time.Time, users []segment.User) error {
	return insertRows(ctx, tx, TableSegments,
		`INSERT INTO segments (run_id, user_id, tier, value_tag, priority, clv, exported_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		len(users), func(stmt *sql.Stmt, i int) error {
			u := users[i]
			_, err := stmt.ExecContext(ctx, runID, u.ID, string(u.Tier), string(u.ValueTag), int(u.Priority), u.Value, exportedAt)
			return err
		})
}

func (s *Store) insertClusters(ctx context.Context, tx *sql.Tx, runID string, cohorts []CohortClusters) error {
	type row struct {
		cohort int
		c      cluster.Cluster
	}
	var rows []row
	for _, cc := range cohorts {
		for _, c := range cc.Clusters {
			rows = append(rows, row{cohort: int(cc.Cohort), c: c})
		}
	}
	return insertRows(ctx, tx, TableClusters,
		`INSERT INTO clusters (run_id, cohort, pivot_user, cohesion, size, members) VALUES (?, ?, ?, ?, ?, ?)`,
		len(rows), func(stmt *sql.Stmt, i int) error {
			r := rows[i]
			_, err := stmt.ExecContext(ctx, runID, r.cohort, r.c.Pivot, r.c.Cohesion, len(r.c.Members), strings.Join(r.c.Members, ";"))
			return err
		})
}

func (s *Store) insertRecommendations(ctx context.Context, tx *sql.Tx, runID string, recs []recommend.Row) error {
	return insertRows(ctx, tx, TableRecommendations,
		`INSERT INTO recommendations (run_id, seq, user_id, item_name, item_id, document_num, score, padded) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		len(recs), func(stmt *sql.Stmt, i int) error {
			r := recs[i]
			_, err := stmt.ExecContext(ctx, runID, r.Seq, r.User, r.Document.Name, r.Document.ID, r.Document.DocNum, r.Score, r.Padded)
			return err
		})
}

// insertRows runs exec for each of n rows through one prepared statement.
func insertRows(ctx context.Context, tx *sql.Tx, table, query string, n int, exec func(*sql.Stmt, int) error) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQuery("insert", table, time.Since(start), err)
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer closeQuietly(stmt)

	for i := range n {
		if err = exec(stmt, i); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

// Count returns the number of rows in a managed table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if _, ok := schema[table]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	var n int
	//nolint:gosec // G202: table is one of the managed table names
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// RunIDs returns the distinct run ids stored in table.
func (s *Store) RunIDs(ctx context.Context, table string) ([]string, error) {
	if _, ok := schema[table]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	//nolint:gosec // G202: table is one of the managed table names
	rows, err := s.conn.QueryContext(ctx, "SELECT DISTINCT run_id FROM "+table+" ORDER BY run_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query run ids of %s: %w", table, err)
	}
	defer closeQuietly(rows)

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// closeQuietly closes a resource and explicitly ignores any error.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}
