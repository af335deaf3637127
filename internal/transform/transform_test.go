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
	"math/rand"
	"reflect"
	"testing"

	"inkboard/internal/domain"
	"inkboard/internal/selection"
	"inkboard/internal/vector"
)

var page = vector.Size{W: 794, H: 1123}

func rect(id string, r vector.Rect) domain.Element {
	return domain.Element{ID: id, Kind: domain.KindImage, Frame: r, Content: domain.ImageContent{Src: "x"}}
}

func captured(t *testing.T, id string, pts ...vector.Pt) domain.Element {
	t.Helper()
	c := NewCapture(page, DefaultStrokeStyle, pts[0])
	for _, p := range pts[1:] {
		c.Add(p)
	}
	e, ok := c.Finish(id, 0)
	if !ok {
		t.Fatalf("capture produced no element")
	}
	return e
}

func TestCaptureNormalizesToFrame(t *testing.T) {
	e := captured(t, "s", vector.Pt{X: 10, Y: 10}, vector.Pt{X: 50, Y: 10}, vector.Pt{X: 50, Y: 50})
	if e.Frame != vector.R(10, 10, 40, 40) {
		t.Fatalf("frame = %+v", e.Frame)
	}
	sc, _ := e.Stroke()
	want := []vector.Pt{{X: 0, Y: 0}, {X: 40, Y: 0}, {X: 40, Y: 40}}
	if !reflect.DeepEqual(sc.Points, want) {
		t.Fatalf("points = %+v", sc.Points)
	}
	if !domain.IsConsistent(e) {
		t.Fatalf("captured stroke must satisfy the stroke invariant")
	}
}

func TestCaptureClampsSamplesIntoPage(t *testing.T) {
	e := captured(t, "s", vector.Pt{X: -20, Y: 5}, vector.Pt{X: 900, Y: 1200})
	if e.Frame != vector.R(0, 5, page.W, page.H-5) {
		t.Fatalf("frame = %+v", e.Frame)
	}
}

func TestCaptureWithoutSamplesIsDiscarded(t *testing.T) {
	c := &Capture{page: page, style: DefaultStrokeStyle}
	if _, ok := c.Finish("x", 0); ok {
		t.Fatalf("empty capture must not create an element")
	}
}

func TestMoveUsesAnchorsAndZoom(t *testing.T) {
	els := []domain.Element{rect("a", vector.R(100, 100, 50, 50)), rect("b", vector.R(300, 300, 10, 10))}
	m := BeginMove(els, selection.NewSet("a"))
	m.Apply(els, vector.Pt{X: 40, Y: 20}, 2, page)
	m.Apply(els, vector.Pt{X: 80, Y: 40}, 2, page) // absolute from start, not cumulative
	if els[0].Frame != vector.R(140, 120, 50, 50) {
		t.Fatalf("a = %+v", els[0].Frame)
	}
	if els[1].Frame != vector.R(300, 300, 10, 10) {
		t.Fatalf("unselected element moved: %+v", els[1].Frame)
	}
}

func TestMoveClampsEachElementIndependently(t *testing.T) {
	els := []domain.Element{rect("a", vector.R(10, 10, 50, 50)), rect("b", vector.R(400, 400, 50, 50))}
	m := BeginMove(els, selection.NewSet("a", "b"))
	m.Apply(els, vector.Pt{X: -100, Y: 0}, 1, page)
	if els[0].Frame.X != 0 {
		t.Fatalf("a should stop at the left edge, got %v", els[0].Frame.X)
	}
	if els[1].Frame.X != 300 {
		t.Fatalf("b should move freely, got %v", els[1].Frame.X)
	}
	m.Apply(els, vector.Pt{X: 10000, Y: 10000}, 1, page)
	for _, e := range els {
		if e.Frame.X != page.W-50 || e.Frame.Y != page.H-50 {
			t.Fatalf("%s should stop at bottom-right, got %+v", e.ID, e.Frame)
		}
	}
}

func TestResizeGroupScenario(t *testing.T) {
	els := []domain.Element{rect("big", vector.R(0, 0, 100, 100)), rect("small", vector.R(20, 20, 10, 10))}
	r, ok := BeginResize(els, selection.NewSet("big", "small"))
	if !ok || r.Bounds() != vector.R(0, 0, 100, 100) {
		t.Fatalf("bounds = %+v ok=%v", r.Bounds(), ok)
	}
	sx, sy := r.Apply(els, vector.Size{W: 200, H: 50}, page)
	if sx != 2 || sy != 0.5 {
		t.Fatalf("scale = %v,%v", sx, sy)
	}
	if els[1].Frame != vector.R(40, 10, 20, 5) {
		t.Fatalf("small = %+v", els[1].Frame)
	}
	if els[0].Frame != vector.R(0, 0, 200, 50) {
		t.Fatalf("big = %+v", els[0].Frame)
	}
}

func TestResizeScalesStrokeContent(t *testing.T) {
	e := captured(t, "s", vector.Pt{X: 10, Y: 10}, vector.Pt{X: 50, Y: 10}, vector.Pt{X: 50, Y: 50})
	els := []domain.Element{e}
	r, _ := BeginResize(els, selection.NewSet("s"))
	r.Apply(els, vector.Size{W: 80, H: 20}, page)
	got := els[0]
	if got.Frame != vector.R(10, 10, 80, 20) {
		t.Fatalf("frame = %+v", got.Frame)
	}
	sc, _ := got.Stroke()
	want := []vector.Pt{{X: 0, Y: 0}, {X: 80, Y: 0}, {X: 80, Y: 20}}
	if !reflect.DeepEqual(sc.Points, want) {
		t.Fatalf("points = %+v", sc.Points)
	}
	// width 2 scaled by mean(2, 0.5)
	if sc.Width != 2*1.25 {
		t.Fatalf("stroke width = %v", sc.Width)
	}
	if !domain.IsConsistent(got) {
		t.Fatalf("stroke invariant broken after resize")
	}
}

func TestResizeFloorsAtMinimumExtent(t *testing.T) {
	els := []domain.Element{rect("a", vector.R(0, 0, 100, 100))}
	r, _ := BeginResize(els, selection.NewSet("a"))
	r.Apply(els, vector.Size{W: 0, H: -5}, page)
	if els[0].Frame != vector.R(0, 0, MinResizeExtent, MinResizeExtent) {
		t.Fatalf("frame = %+v", els[0].Frame)
	}
}

func TestResizeOfNothingSelected(t *testing.T) {
	if _, ok := BeginResize([]domain.Element{rect("a", vector.R(0, 0, 1, 1))}, selection.Set{}); ok {
		t.Fatalf("empty selection cannot be resized")
	}
}

func TestResizeClampedStrokeStaysConsistent(t *testing.T) {
	e := captured(t, "s", vector.Pt{X: 700, Y: 1000}, vector.Pt{X: 790, Y: 1100})
	els := []domain.Element{e}
	r, _ := BeginResize(els, selection.NewSet("s"))
	r.Apply(els, vector.Size{W: 400, H: 400}, page)
	if !InPage(els[0].Frame, page) {
		t.Fatalf("frame escaped the page: %+v", els[0].Frame)
	}
	if !domain.IsConsistent(els[0]) {
		t.Fatalf("clamped stroke lost its invariant: %+v", els[0])
	}
}

func TestRandomMoveResizeSequenceStaysInPage(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	els := []domain.Element{
		rect("a", vector.R(10, 10, 100, 80)),
		rect("b", vector.R(500, 900, 200, 150)),
		captured(t, "s", vector.Pt{X: 200, Y: 200}, vector.Pt{X: 260, Y: 310}, vector.Pt{X: 300, Y: 220}),
	}
	all := selection.NewSet("a", "b", "s")
	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			m := BeginMove(els, all)
			m.Apply(els, vector.Pt{X: rng.Float64()*2000 - 1000, Y: rng.Float64()*2000 - 1000}, 0.5+rng.Float64()*2, page)
		} else {
			r, ok := BeginResize(els, all)
			if !ok {
				t.Fatalf("selection vanished")
			}
			r.Apply(els, vector.Size{W: rng.Float64() * 1500, H: rng.Float64() * 1500}, page)
		}
		for _, e := range els {
			if !InPage(e.Frame, page) {
				t.Fatalf("step %d: %s out of page: %+v", i, e.ID, e.Frame)
			}
			if !domain.IsConsistent(e) {
				t.Fatalf("step %d: %s inconsistent", i, e.ID)
			}
		}
	}
}

func TestMergeReplacesSelection(t *testing.T) {
	els := []domain.Element{rect("a", vector.R(0, 0, 10, 10)), rect("b", vector.R(20, 20, 10, 10)), rect("c", vector.R(50, 50, 10, 10))}
	out, merged, ok := Merge(els, selection.NewSet("a", "c"), Raster{Src: "cG5n", Bounds: vector.R(-5, 0, 70, 60), PixelWidth: 140, PixelHeight: 120}, "m", page)
	if !ok {
		t.Fatalf("merge failed")
	}
	if len(out) != 2 || out[0].ID != "b" || out[1].ID != "m" {
		t.Fatalf("unexpected elements: %+v", out)
	}
	if merged.Kind != domain.KindBitmapInk || merged.Frame != vector.R(0, 0, 70, 60) || merged.ZIndex != 1 {
		t.Fatalf("unexpected merged element: %+v", merged)
	}
	bc := merged.Content.(domain.BitmapInkContent)
	if bc.OriginalWidth != 140 || bc.OriginalHeight != 120 {
		t.Fatalf("pixel size not kept: %+v", bc)
	}
	if _, _, ok := Merge(els, selection.NewSet("zzz"), Raster{}, "n", page); ok {
		t.Fatalf("merge of unknown ids must fail")
	}
}

func TestClampFrameReducesSize(t *testing.T) {
	f := ClampFrame(vector.R(780, -10, 50, 50), page)
	if f.X != 780 || f.Y != 0 || math.Abs(f.W-14) > 1e-9 || f.H != 50 {
		t.Fatalf("frame = %+v", f)
	}
}
