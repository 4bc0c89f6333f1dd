// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package recommend

// Row is one line of the final recommendation table.
type Row struct {
	// Seq numbers rows from 1 in table order.
	Seq      int
	User     string
	Document Document
	Score    float64
	// Padded marks popularity fallback rows.
	Padded bool
}

// MergeConfig configures a Merger.
type MergeConfig struct {
	// N is the list length every known user is padded to.
	N int

	// ExcludeRecommended skips popular documents already in the user's list.
	// When false a padded row may repeat a personalized document.
	ExcludeRecommended bool
}

// PadDepth returns how many popular documents padding can consume per user.
func (c MergeConfig) PadDepth() int {
	if c.ExcludeRecommended {
		return 2 * c.N
	}
	return c.N
}

// MergeStats summarizes a merge.
type MergeStats struct {
	Personalized int
	Padded       int
	// ShortUsers counts known users left with fewer than N rows because
	// the popularity ranking ran out.
	ShortUsers int
}

// Merger assembles cohort recommendation tables into the final table.
type Merger struct {
	cfg     MergeConfig
	catalog *Catalog

	rows   []Row
	counts map[string]int
	items  map[string]map[string]struct{}
	stats  MergeStats
}

// NewMerger creates a Merger resolving document metadata from catalog.
func NewMerger(cfg MergeConfig, catalog *Catalog) *Merger {
	return &Merger{
		cfg:     cfg,
		catalog: catalog,
		counts:  make(map[string]int),
		items:   make(map[string]map[string]struct{}),
	}
}

var _ RecommendationSink = (*Merger)(nil)

// WriteRecommendation appends one personalized row.
func (m *Merger) WriteRecommendation(r Recommendation) error {
	m.Add(r)
	return nil
}

// Add appends personalized rows in the given order.
func (m *Merger) Add(recs ...Recommendation) {
	for _, r := range recs {
		m.append(r.User, r.Item, r.Score, false)
		m.stats.Personalized++
	}
}

// Pad tops up every user in users, in order, to N rows with popular
// documents scored 0. Users already holding N rows are left untouched and
// repeated users are padded once.
func (m *Merger) Pad(users []string, pop *Popularity) MergeStats {
	ranked := pop.Ranked()
	done := make(map[string]struct{}, len(users))

	for _, user := range users {
		if _, ok := done[user]; ok {
			continue
		}
		done[user] = struct{}{}

		for _, item := range ranked {
			if m.counts[user] >= m.cfg.N {
				break
			}
			if m.cfg.ExcludeRecommended && m.has(user, item) {
				continue
			}
			m.append(user, item, 0, true)
			m.stats.Padded++
		}
		if m.counts[user] < m.cfg.N {
			m.stats.ShortUsers++
		}
	}
	return m.stats
}

// Rows returns the table in order.
func (m *Merger) Rows() []Row {
	return m.rows
}

// Stats returns the running merge statistics.
func (m *Merger) Stats() MergeStats {
	return m.stats
}

// Count returns the number of rows held for user.
func (m *Merger) Count(user string) int {
	return m.counts[user]
}

func (m *Merger) has(user, item string) bool {
	_, ok := m.items[user][item]
	return ok
}

func (m *Merger) append(user, item string, score float64, padded bool) {
	m.rows = append(m.rows, Row{
		Seq:      len(m.rows) + 1,
		User:     user,
		Document: m.catalog.Lookup(item),
		Score:    score,
		Padded:   padded,
	})
	m.counts[user]++

	set, ok := m.items[user]
	if !ok {
		set = make(map[string]struct{})
		m.items[user] = set
	}
	set[item] = struct{}{}
}
