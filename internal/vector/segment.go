/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "math"

// direction is the cross product (c - a) x (b - a). Its sign tells on which
// side of the line a->b the point c lies; zero means collinear.
func direction(a, b, c Pt) float64 {
	return (c.X-a.X)*(b.Y-a.Y) - (b.X-a.X)*(c.Y-a.Y)
}

// onSegment reports whether c, known to be collinear with a-b, lies within
// the segment's coordinate span on both axes.
func onSegment(a, b, c Pt) bool {
	return math.Min(a.X, b.X) <= c.X && c.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= c.Y && c.Y <= math.Max(a.Y, b.Y)
}

// SegmentsIntersect reports whether segment p1-p2 and segment p3-p4 share
// at least one point.
func SegmentsIntersect(p1, p2, p3, p4 Pt) bool {
	d1 := direction(p3, p4, p1)
	d2 := direction(p3, p4, p2)
	d3 := direction(p1, p2, p3)
	d4 := direction(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(p3, p4, p1):
		return true
	case d2 == 0 && onSegment(p3, p4, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, p3):
		return true
	case d4 == 0 && onSegment(p1, p2, p4):
		return true
	}
	return false
}

// SegmentCrossesRect reports whether a-b crosses any of r's four edges.
// A segment lying fully inside r does not cross; callers test endpoints
// with Contains for that case.
func SegmentCrossesRect(a, b Pt, r Rect) bool {
	for _, e := range r.Edges() {
		if SegmentsIntersect(a, b, e[0], e[1]) {
			return true
		}
	}
	return false
}
