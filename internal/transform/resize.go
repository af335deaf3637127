/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import (
	"math"

	"inkboard/internal/domain"
	"inkboard/internal/selection"
	"inkboard/internal/vector"
)

// MinResizeExtent is the smallest width or height a group can be resized to.
const MinResizeExtent = 20

// ResizeSession scales a group from the state it had at gesture start.
type ResizeSession struct {
	bounds    vector.Rect
	originals []domain.Element
}

// BeginResize captures the group bounds and deep copies of the selected
// elements. It returns false when nothing is selected.
func BeginResize(elements []domain.Element, selected selection.Set) (*ResizeSession, bool) {
	b, ok := selection.Bounds(elements, selected, nil)
	if !ok {
		return nil, false
	}
	r := &ResizeSession{bounds: b}
	for _, e := range elements {
		if selected.Has(e.ID) {
			r.originals = append(r.originals, domain.Clone(e))
		}
	}
	return r, true
}

// Bounds is the group rectangle at gesture start.
func (r *ResizeSession) Bounds() vector.Rect { return r.bounds }

// Apply resizes the group to size (floored at MinResizeExtent), anchored at
// the original bounds origin, and writes the results into elements.
func (r *ResizeSession) Apply(elements []domain.Element, size vector.Size, page vector.Size) (sx, sy float64) {
	sx, sy = ScaleFactors(r.bounds, size)
	index := indexByID(elements)
	for _, o := range r.originals {
		i, ok := index[o.ID]
		if !ok {
			continue
		}
		elements[i] = ResizeElement(o, r.bounds, sx, sy, page)
	}
	return sx, sy
}

// ScaleFactors returns independent x/y factors from old to the requested
// size. A zero-extent axis keeps factor 1.
func ScaleFactors(old vector.Rect, size vector.Size) (sx, sy float64) {
	w := math.Max(size.W, MinResizeExtent)
	h := math.Max(size.H, MinResizeExtent)
	sx, sy = 1, 1
	if old.W > 0 {
		sx = w / old.W
	}
	if old.H > 0 {
		sy = h / old.H
	}
	return sx, sy
}

// ResizeElement scales o relative to the group bounds origin. Stroke points
// are scaled with the frame and the ink width by the mean factor, so content
// resizes with its container.
func ResizeElement(o domain.Element, bounds vector.Rect, sx, sy float64, page vector.Size) domain.Element {
	target := vector.Rect{
		X: bounds.X + (o.Frame.X-bounds.X)*sx,
		Y: bounds.Y + (o.Frame.Y-bounds.Y)*sy,
		W: o.Frame.W * sx,
		H: o.Frame.H * sy,
	}
	out := domain.Clone(o)
	out.Frame = ClampFrame(target, page)

	sc, ok := out.Stroke()
	if !ok {
		return out
	}
	// clamping may have shrunk the frame further than requested
	ex, ey := sx, sy
	if target.W > 0 {
		ex = sx * out.Frame.W / target.W
	}
	if target.H > 0 {
		ey = sy * out.Frame.H / target.H
	}
	pts := domain.ScalePoints(sc.Points, ex, ey)
	sc.Width *= meanScale(sx, sy)
	abs := vector.Translate(out.Frame.X, out.Frame.Y).ApplyAll(pts)
	if frame, rel, ok := domain.NormalizePoints(abs); ok {
		out.Frame = frame
		pts = rel
	}
	sc.Points = pts
	out.Content = sc
	return out
}
