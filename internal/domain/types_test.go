package domain

import (
	"reflect"
	"testing"

	"inkboard/internal/vector"
)

func stroke(frame vector.Rect, pts ...vector.Pt) Element {
	return Element{ID: "s1", Kind: KindStroke, Frame: frame, Content: StrokeContent{Points: pts, Color: "#000000", Width: 2, BrushType: BrushPen}}
}

func TestIsConsistent(t *testing.T) {
	ok := stroke(vector.R(10, 10, 40, 40), vector.Pt{X: 0, Y: 0}, vector.Pt{X: 40, Y: 0}, vector.Pt{X: 40, Y: 40})
	if !IsConsistent(ok) {
		t.Fatalf("normalized stroke should be consistent")
	}
	zombie := stroke(vector.R(0, 0, 0, 0), vector.Pt{X: 5, Y: 5}, vector.Pt{X: 25, Y: 30})
	if IsConsistent(zombie) {
		t.Fatalf("absolute points with empty frame should be inconsistent")
	}
	empty := stroke(vector.R(3, 3, 0, 0))
	if !IsConsistent(empty) {
		t.Fatalf("pointless stroke with zero frame should be consistent")
	}
	text := Element{ID: "t", Kind: KindText, Frame: vector.R(0, 0, 5, 5), Content: TextContent{Text: "x"}}
	if !IsConsistent(text) {
		t.Fatalf("non-stroke elements are always consistent")
	}
}

func TestNormalizePoints(t *testing.T) {
	frame, rel, ok := NormalizePoints([]vector.Pt{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 50, Y: 50}})
	if !ok {
		t.Fatalf("expected ok")
	}
	if frame != vector.R(10, 10, 40, 40) {
		t.Fatalf("frame = %+v", frame)
	}
	want := []vector.Pt{{X: 0, Y: 0}, {X: 40, Y: 0}, {X: 40, Y: 40}}
	if !reflect.DeepEqual(rel, want) {
		t.Fatalf("rel = %+v want %+v", rel, want)
	}
	if _, _, ok := NormalizePoints(nil); ok {
		t.Fatalf("empty input should not normalize")
	}
}

func TestCloneIsDeep(t *testing.T) {
	ymin := -1.0
	els := []Element{
		stroke(vector.R(0, 0, 1, 1), vector.Pt{X: 0, Y: 0}, vector.Pt{X: 1, Y: 1}),
		{ID: "g", Kind: KindGraph, Content: GraphContent{Expression: "x^2", XMin: -1, XMax: 1, YMin: &ymin}},
	}
	cp := CloneElements(els)
	if !reflect.DeepEqual(cp, els) {
		t.Fatalf("clone should be structurally equal")
	}
	sc := cp[0].Content.(StrokeContent)
	sc.Points[0] = vector.Pt{X: 99, Y: 99}
	if els[0].Content.(StrokeContent).Points[0].X == 99 {
		t.Fatalf("clone shares stroke points")
	}
	*cp[1].Content.(GraphContent).YMin = 5
	if ymin != -1 {
		t.Fatalf("clone shares graph bounds")
	}
}

func TestPageIndexClamped(t *testing.T) {
	d := NewDocument("2")
	d.CurrentPageIndex = 7
	if d.PageIndex() != 0 {
		t.Fatalf("index should clamp to last page, got %d", d.PageIndex())
	}
	d.CurrentPageIndex = -2
	if d.PageIndex() != 0 {
		t.Fatalf("negative index should clamp to 0")
	}
}

func TestParseBrushType(t *testing.T) {
	if ParseBrushType("") != BrushPen || ParseBrushType("crayon") != BrushPen {
		t.Fatalf("unknown brush should default to pen")
	}
	if ParseBrushType("highlighter") != BrushHighlighter {
		t.Fatalf("known brush should round trip")
	}
}
