// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package clv

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

// hyp2f1 evaluates the Gauss hypergeometric function 2F1(a, b; c; z) for
// 0 <= z < 1 and returns NaN outside that interval.
func hyp2f1(a, b, c, z float64) float64 {
	if z == 0 {
		return 1
	}
	if z < 0 || z >= 1 {
		return math.NaN()
	}
	return mathext.Hypergeo(a, b, c, z)
}
