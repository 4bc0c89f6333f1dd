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
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// tmpSuffix marks uncommitted tables.
const tmpSuffix = ".tmp"

// scoreScale rounds scores to 8 decimal places.
const scoreScale = 1e8

// ErrClosed is returned when writing to a committed or aborted table.
var ErrClosed = errors.New("artifact: table closed")

// File is a CSV table committed atomically by rename.
type File struct {
	path string
	tmp  string
	f    *os.File
	w    *csv.Writer
	done bool
}

// Create opens path+".tmp" for writing, creating parent directories, and
// writes the header row.
//
//nolint:gosec // G304: artifact paths come from pipeline configuration
func Create(path string, header ...string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", path, err)
	}
	tmp := path + tmpSuffix
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", tmp, err)
	}

	t := &File{path: path, tmp: tmp, f: f, w: csv.NewWriter(f)}
	if err := t.Write(header...); err != nil {
		t.Abort() //nolint:errcheck // Best effort cleanup on error
		return nil, err
	}
	return t, nil
}

// Path returns the committed path of the table.
func (t *File) Path() string {
	return t.path
}

// Write appends one record.
func (t *File) Write(record ...string) error {
	if t.done {
		return ErrClosed
	}
	if err := t.w.Write(record); err != nil {
		return fmt.Errorf("write %s: %w", t.tmp, err)
	}
	return nil
}

// Flush writes buffered records to the temporary file.
func (t *File) Flush() error {
	if t.done {
		return ErrClosed
	}
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", t.tmp, err)
	}
	return nil
}

// Offset flushes and returns the size of the temporary file.
func (t *File) Offset() (int64, error) {
	if err := t.Flush(); err != nil {
		return 0, err
	}
	off, err := t.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("seek %s: %w", t.tmp, err)
	}
	return off, nil
}

// Section returns a reader over bytes [from, to) of the temporary file.
func (t *File) Section(from, to int64) io.Reader {
	return io.NewSectionReader(t.f, from, to-from)
}

// Commit flushes, syncs and renames the temporary file over the table path.
func (t *File) Commit() (err error) {
	if t.done {
		return ErrClosed
	}
	defer func() {
		if err != nil {
			t.Abort() //nolint:errcheck // Best effort cleanup on error
		}
	}()

	if err := t.Flush(); err != nil {
		return err
	}
	if err := t.f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", t.tmp, err)
	}
	if err := t.f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", t.tmp, err)
	}
	t.done = true
	if err := os.Rename(t.tmp, t.path); err != nil {
		os.Remove(t.tmp) //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("commit %s: %w", t.path, err)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (t *File) Abort() error {
	if t.done {
		return nil
	}
	t.done = true
	closeErr := t.f.Close()
	if err := os.Remove(t.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", t.tmp, err)
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return fmt.Errorf("close %s: %w", t.tmp, closeErr)
	}
	return nil
}

// FormatScore renders a score rounded to at most 8 decimal places.
func FormatScore(v float64) string {
	r := math.Round(v*scoreScale) / scoreScale
	if r == 0 {
		r = 0 // normalizes -0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// parseFloat parses a numeric field, naming the table and column on error.
func parseFloat(source, column, value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: column %s: %w", source, column, err)
	}
	return v, nil
}

// field returns rec[pos] trimmed, or "" when the record is short.
func field(rec []string, pos int) string {
	if pos >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[pos])
}
