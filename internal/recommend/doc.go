// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

// Package recommend implements neighborhood-based document recommendation
// for one cluster of users at a time, plus the popularity fallback that pads
// every known user to a fixed list length.
//
// # Stages
//
//   - BuildPreferenceMatrix accumulates view and download weights into a
//     dense users x documents matrix with first-seen row and column order.
//   - SearchNeighbors computes cosine similarity in row blocks and streams at
//     most K positive neighbors per user to an EdgeSink.
//   - Score consumes the edge stream grouped by user and emits the top N
//     documents each neighbor prefers more strongly than the user.
//   - Popular and Merger build the final table and pad short lists with
//     popular documents scored 0.
//
// # Determinism
//
// Every ordering is explicit: users and documents by first appearance,
// neighbors by similarity then column, documents by score then id. The
// worker split inside SearchNeighbors changes throughput, never output.
//
// # Memory
//
// Neighbor search holds BlockSize x users similarities in addition to the
// preference matrix. Blocks are released as soon as their edges are written.
package recommend
