// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package recommend

import (
	"slices"

	"github.com/tomtom215/lexsegment/internal/ingest"
)

// Popularity ranks documents by interaction count across all users.
// Ties keep first-seen order, scanning views before downloads.
type Popularity struct {
	counts map[string]int
	ranked []string
}

// Popular counts every qualifying view and download and keeps the depth
// most frequent documents. A depth <= 0 keeps all of them.
func Popular(views []ingest.ViewEvent, downloads []ingest.DownloadEvent, depth int) *Popularity {
	p := &Popularity{counts: make(map[string]int)}

	var order []string
	for _, e := range Events(views, downloads) {
		if _, ok := p.counts[e.Item]; !ok {
			order = append(order, e.Item)
		}
		p.counts[e.Item]++
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return p.counts[b] - p.counts[a]
	})
	if depth > 0 && len(order) > depth {
		order = order[:depth]
	}
	p.ranked = order
	return p
}

// Len returns the number of ranked documents.
func (p *Popularity) Len() int {
	return len(p.ranked)
}

// Count returns the interaction count of item.
func (p *Popularity) Count(item string) int {
	return p.counts[item]
}

// TopK returns the k most popular documents.
func (p *Popularity) TopK(k int) []string {
	if k <= 0 || len(p.ranked) == 0 {
		return nil
	}
	if k > len(p.ranked) {
		k = len(p.ranked)
	}
	result := make([]string, k)
	copy(result, p.ranked[:k])
	return result
}

// Ranked returns every ranked document, most popular first.
func (p *Popularity) Ranked() []string {
	return slices.Clone(p.ranked)
}
