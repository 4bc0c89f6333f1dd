// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package artifact

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/tomtom215/lexsegment/internal/recommend"
)

// EdgeTable is the neighbor edge table of one cohort. Each cluster appends
// its edges and reads them back through a Segment before the next cluster
// starts.
type EdgeTable struct {
	*File
	count int
}

var _ recommend.EdgeSink = (*EdgeTable)(nil)

// CreateEdgeTable opens an uncommitted edge table at path.
func CreateEdgeTable(path string) (*EdgeTable, error) {
	f, err := Create(path, edgesHeader...)
	if err != nil {
		return nil, err
	}
	return &EdgeTable{File: f}, nil
}

// WriteEdge appends one edge.
func (t *EdgeTable) WriteEdge(e recommend.Edge) error {
	if err := t.Write(e.User, e.Neighbor, strconv.FormatFloat(e.Similarity, 'g', -1, 64)); err != nil {
		return err
	}
	t.count++
	return nil
}

// Count returns the number of edges written.
func (t *EdgeTable) Count() int {
	return t.count
}

// Segment returns a source over the edges written since offset from, which
// must come from an earlier call to Offset.
func (t *EdgeTable) Segment(from int64) (*EdgeReader, error) {
	to, err := t.Offset()
	if err != nil {
		return nil, err
	}
	return NewEdgeReader(t.Section(from, to), t.tmp), nil
}

// EdgeReader reads headerless user,neighbor,similarity records.
type EdgeReader struct {
	source string
	r      *csv.Reader
}

var _ recommend.EdgeSource = (*EdgeReader)(nil)

// NewEdgeReader reads edges from r. source names the input in errors.
func NewEdgeReader(r io.Reader, source string) *EdgeReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(edgesHeader)
	cr.ReuseRecord = true
	return &EdgeReader{source: source, r: cr}
}

// NextEdge returns the next edge, or io.EOF at the end of the section.
func (r *EdgeReader) NextEdge() (recommend.Edge, error) {
	rec, err := r.r.Read()
	if errors.Is(err, io.EOF) {
		return recommend.Edge{}, io.EOF
	}
	if err != nil {
		return recommend.Edge{}, fmt.Errorf("%s: %w", r.source, err)
	}
	sim, err := parseFloat(r.source, "similarity", rec[2])
	if err != nil {
		return recommend.Edge{}, err
	}
	return recommend.Edge{User: rec[0], Neighbor: rec[1], Similarity: sim}, nil
}
