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
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tomtom215/lexsegment/internal/cluster"
	"github.com/tomtom215/lexsegment/internal/ingest"
	"github.com/tomtom215/lexsegment/internal/recommend"
	"github.com/tomtom215/lexsegment/internal/segment"
)

// Table file names.
const (
	SegmentsFile        = "segments.csv"
	ClustersFile        = "clusters.csv"
	EdgesFile           = "edges.csv"
	RecommendationsFile = "recommendations.csv"
)

// memberSeparator joins cluster members in one field.
const memberSeparator = ";"

var (
	segmentsHeader       = []string{"user", "tier", "value_tag", "priority", "clv"}
	clustersHeader       = []string{"pivot", "cohesion", "size", "members"}
	edgesHeader          = []string{"user", "neighbor", "similarity"}
	recommendationHeader = []string{"user", "item_name", "item_id", "document_num", "score"}
	finalHeader          = []string{"seq", "user", "item_name", "item_id", "document_num", "score"}
)

// CohortDir returns the directory holding the tables of cohort tag.
func CohortDir(workDir string, tag segment.Priority) string {
	return filepath.Join(workDir, fmt.Sprintf("cohort%d", tag))
}

// WriteSegments commits the tiered and value-tagged users.
func WriteSegments(path string, users []segment.User) error {
	t, err := Create(path, segmentsHeader...)
	if err != nil {
		return err
	}
	defer t.Abort() //nolint:errcheck // No-op after Commit

	for _, u := range users {
		if err := t.Write(
			u.ID,
			string(u.Tier),
			string(u.ValueTag),
			strconv.Itoa(int(u.Priority)),
			strconv.FormatFloat(u.Value, 'f', -1, 64),
		); err != nil {
			return err
		}
	}
	return t.Commit()
}

// ReadSegments reads a committed segments table.
//
//nolint:gosec // G304: artifact paths come from pipeline configuration
func ReadSegments(path string) ([]segment.User, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	t, err := ingest.NewTable(f, path)
	if err != nil {
		return nil, err
	}
	pos, err := t.Require(segmentsHeader...)
	if err != nil {
		return nil, err
	}

	var users []segment.User
	for {
		rec, err := t.Next()
		if errors.Is(err, io.EOF) {
			return users, nil
		}
		if err != nil {
			return nil, err
		}
		tag, err := strconv.Atoi(field(rec, pos[3]))
		if err != nil {
			return nil, fmt.Errorf("%s: column priority: %w", path, err)
		}
		p, err := segment.ParsePriority(tag)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		value, err := parseFloat(path, "clv", field(rec, pos[4]))
		if err != nil {
			return nil, err
		}
		users = append(users, segment.User{
			ID:       field(rec, pos[0]),
			Tier:     segment.Tier(field(rec, pos[1])),
			ValueTag: segment.ValueTag(field(rec, pos[2])),
			Priority: p,
			Value:    value,
		})
	}
}

// WriteClusters commits the clusters of one cohort.
func WriteClusters(path string, clusters []cluster.Cluster) error {
	t, err := Create(path, clustersHeader...)
	if err != nil {
		return err
	}
	defer t.Abort() //nolint:errcheck // No-op after Commit

	for _, c := range clusters {
		if err := t.Write(
			c.Pivot,
			strconv.FormatFloat(c.Cohesion, 'f', -1, 64),
			strconv.Itoa(len(c.Members)),
			strings.Join(c.Members, memberSeparator),
		); err != nil {
			return err
		}
	}
	return t.Commit()
}

// WriteFinal commits the merged and padded recommendation table.
func WriteFinal(path string, rows []recommend.Row) error {
	t, err := Create(path, finalHeader...)
	if err != nil {
		return err
	}
	defer t.Abort() //nolint:errcheck // No-op after Commit

	for _, r := range rows {
		if err := t.Write(
			strconv.Itoa(r.Seq),
			r.User,
			r.Document.Name,
			r.Document.ID,
			r.Document.DocNum,
			FormatScore(r.Score),
		); err != nil {
			return err
		}
	}
	return t.Commit()
}
