// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package recommend

import (
	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/lexsegment/internal/ingest"
)

// PreferenceMatrix is the accumulated interaction weight of each user on
// each document.
//
// Row i belongs to Users[i] and column j to Items[j]. Both are assigned in
// order of first appearance, scanning views before downloads, so only users
// with at least one qualifying event get a row.
type PreferenceMatrix struct {
	Users []string
	Items []string

	// Data is nil when the matrix has no rows.
	Data *mat.Dense

	userIndex map[string]int
	itemIndex map[string]int
}

type cell struct {
	row, col int
	weight   float64
}

// BuildPreferenceMatrix builds the preference matrix of members. Events of
// users outside members are ignored.
func BuildPreferenceMatrix(members []string, views []ingest.ViewEvent, downloads []ingest.DownloadEvent, w Weights) *PreferenceMatrix {
	allowed := make(map[string]struct{}, len(members))
	for _, u := range members {
		allowed[u] = struct{}{}
	}

	m := &PreferenceMatrix{
		userIndex: make(map[string]int),
		itemIndex: make(map[string]int),
	}

	var cells []cell
	for _, e := range Events(views, downloads) {
		if _, ok := allowed[e.User]; !ok {
			continue
		}
		row, ok := m.userIndex[e.User]
		if !ok {
			row = len(m.Users)
			m.userIndex[e.User] = row
			m.Users = append(m.Users, e.User)
		}
		col, ok := m.itemIndex[e.Item]
		if !ok {
			col = len(m.Items)
			m.itemIndex[e.Item] = col
			m.Items = append(m.Items, e.Item)
		}
		cells = append(cells, cell{row: row, col: col, weight: w.Of(e.Kind)})
	}

	if len(m.Users) == 0 {
		return m
	}

	m.Data = mat.NewDense(len(m.Users), len(m.Items), nil)
	for _, c := range cells {
		m.Data.Set(c.row, c.col, m.Data.At(c.row, c.col)+c.weight)
	}
	return m
}

// Len returns the number of users.
func (m *PreferenceMatrix) Len() int {
	return len(m.Users)
}

// UserIndex returns the row of user.
func (m *PreferenceMatrix) UserIndex(user string) (int, bool) {
	i, ok := m.userIndex[user]
	return i, ok
}

// ItemIndex returns the column of item.
func (m *PreferenceMatrix) ItemIndex(item string) (int, bool) {
	j, ok := m.itemIndex[item]
	return j, ok
}

// At returns the preference of row i on column j.
func (m *PreferenceMatrix) At(i, j int) float64 {
	return m.Data.At(i, j)
}

// Row returns a view of row i. The slice must not be modified.
func (m *PreferenceMatrix) Row(i int) []float64 {
	return m.Data.RawRowView(i)
}
