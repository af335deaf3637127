/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package transform implements the mutating geometry of the canvas: turning
// pointer samples into strokes, moving and resizing selections, and merging
// elements into a raster. Every result stays inside the page canvas.
package transform

import (
	"math"

	"inkboard/internal/vector"
)

// ClampPosition keeps the frame's size and moves it so that
// 0 <= x <= page.W-w and 0 <= y <= page.H-h.
func ClampPosition(f vector.Rect, page vector.Size) vector.Rect {
	f.X = vector.Clamp(f.X, 0, page.W-f.W)
	f.Y = vector.Clamp(f.Y, 0, page.H-f.H)
	return f
}

// ClampFrame clamps the origin into the page first and then reduces the size
// until the frame fits.
func ClampFrame(f vector.Rect, page vector.Size) vector.Rect {
	f.X = vector.Clamp(f.X, 0, page.W)
	f.Y = vector.Clamp(f.Y, 0, page.H)
	f.W = vector.Clamp(f.W, 0, page.W-f.X)
	f.H = vector.Clamp(f.H, 0, page.H-f.Y)
	return f
}

// ClampPoint pins p into the page rectangle.
func ClampPoint(p vector.Pt, page vector.Size) vector.Pt {
	return vector.Pt{X: vector.Clamp(p.X, 0, page.W), Y: vector.Clamp(p.Y, 0, page.H)}
}

// InPage reports whether f lies fully inside the page, allowing float noise.
func InPage(f vector.Rect, page vector.Size) bool {
	const eps = 1e-9
	return f.X >= -eps && f.Y >= -eps && f.W >= 0 && f.H >= 0 &&
		f.X+f.W <= page.W+eps && f.Y+f.H <= page.H+eps
}

func meanScale(sx, sy float64) float64 {
	m := (sx + sy) / 2
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return 1
	}
	return m
}
