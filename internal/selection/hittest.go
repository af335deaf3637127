/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package selection answers read-only geometric queries against a page's
// element list: what is under the pointer, what a marquee touches, and the
// bounds of the current selection.
package selection

import (
	"inkboard/internal/domain"
	"inkboard/internal/vector"
)

// TopmostAt returns the id of the front-most element whose frame contains p.
func TopmostAt(elements []domain.Element, p vector.Pt) (string, bool) {
	for i := len(elements) - 1; i >= 0; i-- {
		if elements[i].Frame.Contains(p) {
			return elements[i].ID, true
		}
	}
	return "", false
}

// PointInAnySelected reports whether p falls inside the frame of any
// selected element.
func PointInAnySelected(elements []domain.Element, p vector.Pt, selected Set) bool {
	if selected.Len() == 0 {
		return false
	}
	for _, e := range elements {
		if selected.Has(e.ID) && e.Frame.Contains(p) {
			return true
		}
	}
	return false
}

// ElementsIntersecting returns the ids of elements touched by r. Strokes
// need an actual point or segment inside r; other kinds are accepted on
// frame overlap alone.
func ElementsIntersecting(elements []domain.Element, r vector.Rect) Set {
	out := Set{}
	for _, e := range elements {
		if !r.Intersects(e.Frame) {
			continue
		}
		if e.Kind == domain.KindStroke {
			if !StrokeIntersectsRect(e, r) {
				continue
			}
		}
		out.Add(e.ID)
	}
	return out
}

// StrokeIntersectsRect is the precise test for ink: true when a sample lies
// inside r or a segment between consecutive samples crosses one of r's edges.
func StrokeIntersectsRect(e domain.Element, r vector.Rect) bool {
	pts := domain.AbsolutePoints(e)
	for _, p := range pts {
		if r.Contains(p) {
			return true
		}
	}
	for i := 1; i < len(pts); i++ {
		if vector.SegmentCrossesRect(pts[i-1], pts[i], r) {
			return true
		}
	}
	return false
}

// Bounds returns the logical selection bounds. While a marquee is active
// (box non-nil) the marquee itself is the bounds; otherwise it is the union
// of the selected frames.
func Bounds(elements []domain.Element, selected Set, box *vector.Rect) (vector.Rect, bool) {
	if box != nil {
		return *box, true
	}
	var (
		out   vector.Rect
		found bool
	)
	for _, e := range elements {
		if !selected.Has(e.ID) {
			continue
		}
		if !found {
			out, found = e.Frame, true
			continue
		}
		out = out.Union(e.Frame)
	}
	return out, found
}
