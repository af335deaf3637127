/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package sanitize

import (
	"reflect"
	"testing"

	"inkboard/internal/domain"
	"inkboard/internal/vector"
)

func stroke(id string, frame vector.Rect, pts ...vector.Pt) domain.Element {
	return domain.Element{ID: id, Kind: domain.KindStroke, Frame: frame,
		Content: domain.StrokeContent{Points: pts, Color: "#000000", Width: 2, BrushType: domain.BrushPen}}
}

func TestLegacyZeroFrameIsRepaired(t *testing.T) {
	doc := domain.Document{Pages: []domain.Page{{ID: "p", Elements: []domain.Element{
		stroke("s", vector.Rect{}, vector.Pt{X: 5, Y: 5}, vector.Pt{X: 25, Y: 30}),
	}}}}
	rep := Sanitize(&doc)
	if !rep.Changed() || !reflect.DeepEqual(rep.Repaired, []string{"s"}) {
		t.Fatalf("report = %+v", rep)
	}
	got := doc.Pages[0].Elements[0]
	if got.Frame != vector.R(5, 5, 20, 25) {
		t.Fatalf("frame = %+v", got.Frame)
	}
	sc, _ := got.Stroke()
	if !reflect.DeepEqual(sc.Points, []vector.Pt{{X: 0, Y: 0}, {X: 20, Y: 25}}) {
		t.Fatalf("points = %+v", sc.Points)
	}
	if !domain.IsConsistent(got) {
		t.Fatalf("repaired stroke must be consistent")
	}
}

func TestZeroWidthFrameIsRepaired(t *testing.T) {
	e := stroke("s", vector.R(40, 40, 0, 10), vector.Pt{X: 40, Y: 40}, vector.Pt{X: 60, Y: 50})
	if !NeedsRepair(e) {
		t.Fatalf("zero width frame with wide points should need repair")
	}
}

func TestConsistentStrokesAreUntouched(t *testing.T) {
	ok := stroke("a", vector.R(100, 100, 20, 20), vector.Pt{X: 0, Y: 0}, vector.Pt{X: 20, Y: 20})
	// points near the origin with a zero-origin frame look fine to the heuristic
	nearOrigin := stroke("b", vector.R(0, 0, 10, 10), vector.Pt{X: 0.5, Y: 0.5}, vector.Pt{X: 10, Y: 10})
	text := domain.Element{ID: "t", Kind: domain.KindText, Content: domain.TextContent{Text: "hi"}}
	doc := domain.Document{Pages: []domain.Page{{ID: "p", Elements: []domain.Element{ok, nearOrigin, text}}}}
	before := domain.CloneDocument(doc)
	if rep := Sanitize(&doc); rep.Changed() {
		t.Fatalf("nothing should be repaired, got %+v", rep.Repaired)
	}
	if !reflect.DeepEqual(doc, before) {
		t.Fatalf("document changed")
	}
}

func TestEmptyStrokeIsIgnored(t *testing.T) {
	if NeedsRepair(stroke("e", vector.Rect{})) {
		t.Fatalf("stroke without points cannot be repaired")
	}
}
