// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tomtom215/lexsegment/internal/logging"
)

const utf8BOM = "\ufeff"

// Table is a header-indexed CSV reader.
type Table struct {
	source string
	r      *csv.Reader
	header []string
	index  map[string]int
}

// NewTable reads the header row of r. source names the input in errors.
func NewTable(r io.Reader, source string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file", source)
		}
		return nil, fmt.Errorf("%s: read header: %w", source, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		header[i] = name
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	return &Table{source: source, r: cr, header: header, index: index}, nil
}

// Header returns the trimmed header row.
func (t *Table) Header() []string {
	return t.header
}

// Require resolves column names to field positions.
func (t *Table) Require(columns ...string) ([]int, error) {
	out := make([]int, len(columns))
	for i, c := range columns {
		pos, ok := t.index[c]
		if !ok {
			return nil, &MissingColumnError{Source: t.source, Column: c}
		}
		out[i] = pos
	}
	return out, nil
}

// Next returns the next record, or io.EOF at end of input.
func (t *Table) Next() ([]string, error) {
	rec, err := t.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%s: %w", t.source, err)
	}
	return rec, nil
}

// field returns rec[pos] trimmed, or "" when the record is short.
func field(rec []string, pos int) string {
	if pos >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[pos])
}

// ReadLogins reads a login log. Rows without a user or with an unparseable
// timestamp are dropped.
func ReadLogins(r io.Reader, source string, cols LoginColumns, layout string) ([]LoginEvent, error) {
	t, err := NewTable(r, source)
	if err != nil {
		return nil, err
	}
	pos, err := t.Require(cols.User, cols.Time, cols.Province, cols.City)
	if err != nil {
		return nil, err
	}

	var (
		events  []LoginEvent
		dropped int
	)
	for {
		rec, err := t.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		user := field(rec, pos[0])
		ts, ok := ParseTime(field(rec, pos[1]), layout)
		if user == "" || !ok {
			dropped++
			continue
		}
		events = append(events, LoginEvent{
			User:     user,
			Time:     ts,
			Province: NormalizeLocation(field(rec, pos[2])),
			City:     NormalizeLocation(field(rec, pos[3])),
		})
	}

	logging.Debug().Str("source", source).Int("rows", len(events)).Int("dropped", dropped).Msg("Login log read")
	return events, nil
}

// ReadViews reads a document view log. Rows without a user are dropped;
// rows with an invalid item id are kept for attribute resolution.
func ReadViews(r io.Reader, source string, cols ViewColumns) ([]ViewEvent, error) {
	t, err := NewTable(r, source)
	if err != nil {
		return nil, err
	}
	pos, err := t.Require(cols.User, cols.Item, cols.Name, cols.DocNum, cols.Industry)
	if err != nil {
		return nil, err
	}

	var (
		events  []ViewEvent
		dropped int
	)
	for {
		rec, err := t.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		user := field(rec, pos[0])
		if user == "" {
			dropped++
			continue
		}
		events = append(events, ViewEvent{
			User:     user,
			Item:     field(rec, pos[1]),
			Name:     field(rec, pos[2]),
			DocNum:   field(rec, pos[3]),
			Industry: field(rec, pos[4]),
		})
	}

	logging.Debug().Str("source", source).Int("rows", len(events)).Int("dropped", dropped).Msg("View log read")
	return events, nil
}

// ReadDownloads reads a document download log. Rows without a user are dropped.
func ReadDownloads(r io.Reader, source string, cols DownloadColumns) ([]DownloadEvent, error) {
	t, err := NewTable(r, source)
	if err != nil {
		return nil, err
	}
	pos, err := t.Require(cols.User, cols.Item)
	if err != nil {
		return nil, err
	}

	var (
		events  []DownloadEvent
		dropped int
	)
	for {
		rec, err := t.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		user := field(rec, pos[0])
		if user == "" {
			dropped++
			continue
		}
		events = append(events, DownloadEvent{User: user, Item: field(rec, pos[1])})
	}

	logging.Debug().Str("source", source).Int("rows", len(events)).Int("dropped", dropped).Msg("Download log read")
	return events, nil
}

// OpenLogins reads the login log at path.
func OpenLogins(path string, cols LoginColumns, layout string) ([]LoginEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open login log: %w", err)
	}
	defer f.Close()
	return ReadLogins(f, path, cols, layout)
}

// OpenViews reads the view log at path.
func OpenViews(path string, cols ViewColumns) ([]ViewEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open view log: %w", err)
	}
	defer f.Close()
	return ReadViews(f, path, cols)
}

// OpenDownloads reads the download log at path.
func OpenDownloads(path string, cols DownloadColumns) ([]DownloadEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open download log: %w", err)
	}
	defer f.Close()
	return ReadDownloads(f, path, cols)
}
