/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package vector holds the 2D geometry used by the canvas engine.
// All values are page-local units in float64; page space has its origin
// at the top-left corner with y growing downwards.
package vector

import "math"

// Pt is a 2D point.
type Pt struct{ X, Y float64 }

func (p Pt) Add(o Pt) Pt { return Pt{p.X + o.X, p.Y + o.Y} }
func (p Pt) Sub(o Pt) Pt { return Pt{p.X - o.X, p.Y - o.Y} }

// Size is a width/height pair.
type Size struct{ W, H float64 }

// Rect is an axis-aligned rectangle defined by min corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

// RectFromPoints returns the normalized rectangle spanned by two corners.
func RectFromPoints(a, b Pt) Rect {
	x0, x1 := math.Min(a.X, b.X), math.Max(a.X, b.X)
	y0, y1 := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func (r Rect) Min() Pt     { return Pt{r.X, r.Y} }
func (r Rect) Max() Pt     { return Pt{r.X + r.W, r.Y + r.H} }
func (r Rect) Origin() Pt  { return Pt{r.X, r.Y} }
func (r Rect) Size() Size  { return Size{r.W, r.H} }
func (r Rect) Empty() bool { return r.W <= 0 && r.H <= 0 }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Intersects reports whether the closed rectangles overlap. Touching edges
// count, so zero-width frames (straight strokes) can still be hit.
func (r Rect) Intersects(o Rect) bool {
	return r.X <= o.X+o.W && o.X <= r.X+r.W && r.Y <= o.Y+o.H && o.Y <= r.Y+r.H
}

// Offset returns r translated by d.
func (r Rect) Offset(d Pt) Rect { return Rect{X: r.X + d.X, Y: r.Y + d.Y, W: r.W, H: r.H} }

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.W, o.X+o.W)
	maxY := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Edges returns the four sides of r as segments: top, right, bottom, left.
func (r Rect) Edges() [4][2]Pt {
	tl := Pt{r.X, r.Y}
	tr := Pt{r.X + r.W, r.Y}
	br := Pt{r.X + r.W, r.Y + r.H}
	bl := Pt{r.X, r.Y + r.H}
	return [4][2]Pt{{tl, tr}, {tr, br}, {br, bl}, {bl, tl}}
}

// BoundsOf returns the bounding box of pts. ok is false for an empty slice.
func BoundsOf(pts []Pt) (r Rect, ok bool) {
	if len(pts) == 0 {
		return Rect{}, false
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}, true
}

// Clamp limits v to [lo, hi] as max(lo, min(v, hi)); lo wins when hi < lo.
func Clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(v, hi)) }

// Affine2D represents a 2D affine transform as matrix:
// | a c e |
// | b d f |
// | 0 0 1 |
// stored as [a b c d e f].
type Affine2D struct{ A, B, C, D, E, F float64 }

func (m Affine2D) Apply(p Pt) Pt {
	return Pt{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// ApplyAll maps every point through m into a new slice.
func (m Affine2D) ApplyAll(pts []Pt) []Pt {
	out := make([]Pt, len(pts))
	for i, p := range pts {
		out[i] = m.Apply(p)
	}
	return out
}

func Translate(tx, ty float64) Affine2D { return Affine2D{A: 1, D: 1, E: tx, F: ty} }
func Scale(sx, sy float64) Affine2D     { return Affine2D{A: sx, D: sy} }

// NearlyEqual compares with an absolute tolerance.
func NearlyEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

// RectNearlyEqual compares all four components with an absolute tolerance.
func RectNearlyEqual(a, b Rect, eps float64) bool {
	return NearlyEqual(a.X, b.X, eps) && NearlyEqual(a.Y, b.Y, eps) &&
		NearlyEqual(a.W, b.W, eps) && NearlyEqual(a.H, b.H, eps)
}
