/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package sanitize repairs stroke frames that were persisted by older
// writers which stored page-absolute points with a zero frame.
package sanitize

import (
	"math"

	"inkboard/internal/domain"
	"inkboard/internal/vector"
)

// originTolerance is how far the recomputed origin may sit from (0,0)
// before a zero-origin frame is considered stale.
const originTolerance = 1.0

// Report lists the ids of repaired elements, in document order.
type Report struct {
	Repaired []string
}

func (r Report) Changed() bool { return len(r.Repaired) > 0 }

// Sanitize inspects every stroke of every page and rewrites inconsistent
// ones in place.
func Sanitize(doc *domain.Document) Report {
	var rep Report
	for pi := range doc.Pages {
		els := doc.Pages[pi].Elements
		for i := range els {
			if fixed, ok := Repair(els[i]); ok {
				els[i] = fixed
				rep.Repaired = append(rep.Repaired, fixed.ID)
			}
		}
	}
	return rep
}

// NeedsRepair applies the stale-frame heuristic. A stroke whose points
// legitimately start near the page origin with a zero-origin frame is left
// alone.
func NeedsRepair(e domain.Element) bool {
	sc, ok := e.Stroke()
	if !ok || len(sc.Points) == 0 {
		return false
	}
	b, _ := vector.BoundsOf(sc.Points)
	f := e.Frame
	if f.X == 0 && f.Y == 0 && (math.Abs(b.X) > originTolerance || math.Abs(b.Y) > originTolerance) {
		return true
	}
	return (f.W == 0 && b.W > 0) || (f.H == 0 && b.H > 0)
}

// Repair returns e with frame set to the bounds of its stored points and the
// points re-expressed relative to it. ok is false when e needed no repair.
func Repair(e domain.Element) (domain.Element, bool) {
	if !NeedsRepair(e) {
		return e, false
	}
	sc, _ := e.Stroke()
	frame, rel, ok := domain.NormalizePoints(sc.Points)
	if !ok {
		return e, false
	}
	out := domain.Clone(e)
	out.Frame = frame
	sc.Points = rel
	out.Content = sc
	return out, true
}
