// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package recommend

import (
	"errors"
	"fmt"

	"github.com/tomtom215/lexsegment/internal/ingest"
)

// Sentinel errors.
var (
	// ErrInvalidConfig is returned when neighbor search or scoring parameters are out of range.
	ErrInvalidConfig = errors.New("recommend: invalid configuration")

	// ErrUnknownUser is returned when an edge references a user outside the matrix.
	ErrUnknownUser = errors.New("recommend: unknown user")
)

// Kind is the type of a user-document interaction.
type Kind string

const (
	// KindView is a document view.
	KindView Kind = "view"
	// KindDownload is a document download.
	KindDownload Kind = "download"
)

// Event is one qualifying user-document interaction.
type Event struct {
	User string
	Item string
	Kind Kind
}

// Weights is the preference added per interaction kind.
type Weights struct {
	View     float64
	Download float64
}

// DefaultWeights returns equal view and download weights of 0.5.
func DefaultWeights() Weights {
	return Weights{View: 0.5, Download: 0.5}
}

// Of returns the weight of kind.
func (w Weights) Of(kind Kind) float64 {
	switch kind {
	case KindView:
		return w.View
	case KindDownload:
		return w.Download
	default:
		return 0
	}
}

// Events flattens views then downloads into one interaction stream,
// dropping rows with an empty user or an invalid item id.
func Events(views []ingest.ViewEvent, downloads []ingest.DownloadEvent) []Event {
	events := make([]Event, 0, len(views)+len(downloads))
	for _, v := range views {
		if v.User == "" || !ingest.ValidItem(v.Item) {
			continue
		}
		events = append(events, Event{User: v.User, Item: v.Item, Kind: KindView})
	}
	for _, d := range downloads {
		if d.User == "" || !ingest.ValidItem(d.Item) {
			continue
		}
		events = append(events, Event{User: d.User, Item: d.Item, Kind: KindDownload})
	}
	return events
}

// Edge links a user to one of its nearest neighbors.
type Edge struct {
	User       string
	Neighbor   string
	Similarity float64
}

// Recommendation is one scored document for a user.
type Recommendation struct {
	User  string
	Item  string
	Score float64
}

// EdgeSink receives neighbor edges in source user order.
type EdgeSink interface {
	WriteEdge(e Edge) error
}

// EdgeSource yields neighbor edges grouped by source user.
// NextEdge returns io.EOF once the stream is exhausted.
type EdgeSource interface {
	NextEdge() (Edge, error)
}

// RecommendationSink receives scored documents.
type RecommendationSink interface {
	WriteRecommendation(r Recommendation) error
}

// Document describes a recommendable item.
type Document struct {
	ID     string
	Name   string
	DocNum string
}

// Catalog resolves document metadata from the view log.
type Catalog struct {
	docs map[string]Document
}

// NewCatalog indexes the first name and document number seen for each item.
func NewCatalog(views []ingest.ViewEvent) *Catalog {
	c := &Catalog{docs: make(map[string]Document)}
	for _, v := range views {
		if !ingest.ValidItem(v.Item) {
			continue
		}
		if _, ok := c.docs[v.Item]; ok {
			continue
		}
		c.docs[v.Item] = Document{ID: v.Item, Name: v.Name, DocNum: v.DocNum}
	}
	return c
}

// Lookup returns the metadata of item. Unknown items resolve to their id
// with empty name and document number.
func (c *Catalog) Lookup(item string) Document {
	if c != nil {
		if d, ok := c.docs[item]; ok {
			return d
		}
	}
	return Document{ID: item}
}

// Len returns the number of indexed documents.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.docs)
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
