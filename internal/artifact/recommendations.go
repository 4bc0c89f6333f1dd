// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tomtom215/lexsegment/internal/ingest"
	"github.com/tomtom215/lexsegment/internal/recommend"
)

// RecommendationTable is the personalized recommendation table of one cohort.
type RecommendationTable struct {
	*File
	catalog *recommend.Catalog
	count   int
}

var _ recommend.RecommendationSink = (*RecommendationTable)(nil)

// CreateRecommendationTable opens an uncommitted cohort recommendation
// table. Document names and numbers are resolved through catalog.
func CreateRecommendationTable(path string, catalog *recommend.Catalog) (*RecommendationTable, error) {
	f, err := Create(path, recommendationHeader...)
	if err != nil {
		return nil, err
	}
	return &RecommendationTable{File: f, catalog: catalog}, nil
}

// WriteRecommendation appends one row.
func (t *RecommendationTable) WriteRecommendation(r recommend.Recommendation) error {
	d := t.catalog.Lookup(r.Item)
	if err := t.Write(r.User, d.Name, d.ID, d.DocNum, FormatScore(r.Score)); err != nil {
		return err
	}
	t.count++
	return nil
}

// Count returns the number of rows written.
func (t *RecommendationTable) Count() int {
	return t.count
}

// ReadRecommendations reads a committed cohort recommendation table.
// Rows with an invalid item id are skipped.
//
//nolint:gosec // G304: artifact paths come from pipeline configuration
func ReadRecommendations(path string) ([]recommend.Recommendation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	t, err := ingest.NewTable(f, path)
	if err != nil {
		return nil, err
	}
	pos, err := t.Require("user", "item_id", "score")
	if err != nil {
		return nil, err
	}

	var recs []recommend.Recommendation
	for {
		rec, err := t.Next()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return nil, err
		}
		item := field(rec, pos[1])
		if !ingest.ValidItem(item) {
			continue
		}
		score, err := parseFloat(path, "score", field(rec, pos[2]))
		if err != nil {
			return nil, err
		}
		recs = append(recs, recommend.Recommendation{User: field(rec, pos[0]), Item: item, Score: score})
	}
}
