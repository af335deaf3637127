/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "inkboard/internal/vector"

// frameEpsilon absorbs float noise from scaling round trips.
const frameEpsilon = 1e-6

// IsConsistent reports whether a stroke's frame equals the bounding box of
// its frame-relative points. Non-stroke elements are always consistent.
func IsConsistent(e Element) bool {
	sc, ok := e.Stroke()
	if !ok {
		return true
	}
	b, ok := vector.BoundsOf(sc.Points)
	if !ok {
		return e.Frame.W == 0 && e.Frame.H == 0
	}
	want := vector.Rect{X: 0, Y: 0, W: e.Frame.W, H: e.Frame.H}
	return vector.RectNearlyEqual(b, want, frameEpsilon)
}

// NormalizePoints turns page-space samples into a frame and points relative
// to that frame's origin. ok is false when abs is empty.
func NormalizePoints(abs []vector.Pt) (frame vector.Rect, rel []vector.Pt, ok bool) {
	frame, ok = vector.BoundsOf(abs)
	if !ok {
		return vector.Rect{}, nil, false
	}
	rel = vector.Translate(-frame.X, -frame.Y).ApplyAll(abs)
	return frame, rel, true
}

// AbsolutePoints returns the stroke samples of e in page space.
func AbsolutePoints(e Element) []vector.Pt {
	sc, ok := e.Stroke()
	if !ok {
		return nil
	}
	return vector.Translate(e.Frame.X, e.Frame.Y).ApplyAll(sc.Points)
}

// ScalePoints returns pts scaled about the frame origin.
func ScalePoints(pts []vector.Pt, sx, sy float64) []vector.Pt {
	return vector.Scale(sx, sy).ApplyAll(pts)
}
