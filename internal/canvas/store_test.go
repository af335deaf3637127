/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"inkboard/internal/domain"
	applog "inkboard/internal/log"
	"inkboard/internal/storage"
	"inkboard/internal/transform"
	"inkboard/internal/vector"
)

type memWriter struct {
	mu   sync.Mutex
	data [][]byte
	err  error
}

func (w *memWriter) Write(_ context.Context, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.data = append(w.data, append([]byte(nil), data...))
	return nil
}

func (w *memWriter) last() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.data) == 0 {
		return nil
	}
	return w.data[len(w.data)-1]
}

func (w *memWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.data)
}

// newTestStore uses a long debounce so only explicit flushes write.
func newTestStore(t *testing.T) (*Store, *memWriter) {
	t.Helper()
	w := &memWriter{}
	s := New(Options{Config: Config{Debounce: time.Hour}, Writer: w, Logger: applog.Discard()})
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, w
}

func box(id string, r vector.Rect) domain.Element {
	return domain.Element{ID: id, Kind: domain.KindImage, Frame: r, Content: domain.ImageContent{Src: "x", OriginalWidth: r.W, OriginalHeight: r.H}}
}

func mustAdd(t *testing.T, s *Store, e domain.Element) domain.Element {
	t.Helper()
	out, err := s.AddElement(e)
	if err != nil {
		t.Fatalf("add %s: %v", e.ID, err)
	}
	return out
}

func drawStroke(s *Store, pts ...vector.Pt) (domain.Element, bool) {
	s.StartStroke(pts[0], transform.DefaultStrokeStyle)
	for _, p := range pts[1:] {
		s.ContinueStroke(p)
	}
	return s.EndStroke()
}

func TestStrokeCaptureScenario(t *testing.T) {
	s, _ := newTestStore(t)
	e, ok := drawStroke(s, vector.Pt{X: 10, Y: 10}, vector.Pt{X: 50, Y: 10}, vector.Pt{X: 50, Y: 50})
	if !ok {
		t.Fatalf("stroke not committed")
	}
	if e.Frame != vector.R(10, 10, 40, 40) || e.ZIndex != 0 {
		t.Fatalf("element = %+v", e)
	}
	sc, _ := e.Stroke()
	if !reflect.DeepEqual(sc.Points, []vector.Pt{{X: 0, Y: 0}, {X: 40, Y: 0}, {X: 40, Y: 40}}) {
		t.Fatalf("points = %+v", sc.Points)
	}
	if !s.CanUndo() || !s.Pending() {
		t.Fatalf("stroke must be undoable and dirty")
	}
	if !s.Undo() || len(s.CurrentPage().Elements) != 0 {
		t.Fatalf("undo should remove the stroke")
	}
	if !s.Redo() || len(s.CurrentPage().Elements) != 1 {
		t.Fatalf("redo should restore the stroke")
	}
}

func TestEndStrokeWithoutStartIsIgnored(t *testing.T) {
	s, _ := newTestStore(t)
	if _, ok := s.EndStroke(); ok {
		t.Fatalf("nothing was captured")
	}
	if s.CanUndo() {
		t.Fatalf("no history expected")
	}
}

func TestUndoRedoAreInverse(t *testing.T) {
	s, _ := newTestStore(t)
	var states [][]domain.Element
	states = append(states, s.CurrentPage().Elements)
	mustAdd(t, s, box("a", vector.R(0, 0, 10, 10)))
	states = append(states, s.CurrentPage().Elements)
	mustAdd(t, s, box("b", vector.R(20, 20, 10, 10)))
	states = append(states, s.CurrentPage().Elements)
	s.Select("a")
	s.BeginMove()
	s.UpdateMove(vector.Pt{X: 30, Y: 30}, 1)
	s.EndMove()
	states = append(states, s.CurrentPage().Elements)
	s.RemoveElements("b")
	states = append(states, s.CurrentPage().Elements)

	for i := len(states) - 2; i >= 0; i-- {
		if !s.Undo() {
			t.Fatalf("undo %d failed", i)
		}
		if got := s.CurrentPage().Elements; !reflect.DeepEqual(got, states[i]) {
			t.Fatalf("after undo expected state %d, got %+v", i, got)
		}
	}
	if s.Undo() {
		t.Fatalf("history should be exhausted")
	}
	for i := 1; i < len(states); i++ {
		if !s.Redo() {
			t.Fatalf("redo %d failed", i)
		}
		if got := s.CurrentPage().Elements; !reflect.DeepEqual(got, states[i]) {
			t.Fatalf("after redo expected state %d, got %+v", i, got)
		}
	}
	if s.CanRedo() {
		t.Fatalf("redo should be exhausted")
	}
}

func TestNewMutationClearsRedo(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, box("a", vector.R(0, 0, 10, 10)))
	s.Undo()
	mustAdd(t, s, box("b", vector.R(0, 0, 10, 10)))
	if s.CanRedo() {
		t.Fatalf("redo must be cleared by a new mutation")
	}
}

func TestHistoryKeepsTwentySteps(t *testing.T) {
	s, _ := newTestStore(t)
	for i := 0; i < 21; i++ {
		mustAdd(t, s, box("", vector.R(float64(i), 0, 10, 10)))
	}
	undone := 0
	for s.Undo() {
		undone++
	}
	if undone != 20 {
		t.Fatalf("undone = %d", undone)
	}
	if n := len(s.CurrentPage().Elements); n != 1 {
		t.Fatalf("oldest reachable state should hold one element, got %d", n)
	}
}

func TestLegacyLoadIsRepairedAndSaved(t *testing.T) {
	s, w := newTestStore(t)
	legacy := []byte(`{"elements":[{"id":"s","kind":"stroke","x":0,"y":0,"width":0,"height":0,
		"content":{"stroke":{"points":[{"x":5,"y":5},{"x":25,"y":30}],"color":"#000000","width":2}}}]}`)
	doc, rep := s.Load(legacy)
	if !rep.SaveScheduled || !rep.Decode.LegacyElements || len(rep.Sanitize.Repaired) != 1 {
		t.Fatalf("report = %+v", rep)
	}
	e := doc.Pages[0].Elements[0]
	if e.Frame != vector.R(5, 5, 20, 25) || !domain.IsConsistent(e) {
		t.Fatalf("stroke not repaired: %+v", e)
	}
	if sc, _ := e.Stroke(); sc.BrushType != domain.BrushPen {
		t.Fatalf("brush = %q", sc.BrushType)
	}
	if !s.Pending() {
		t.Fatalf("load should schedule a save")
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	saved, srep := storage.Decode(w.last())
	if srep.FromVersion != "2" || srep.Migrated() {
		t.Fatalf("saved bytes not in current format: %+v", srep)
	}
	if got := saved.Pages[0].Elements[0].Frame; got != vector.R(5, 5, 20, 25) {
		t.Fatalf("saved frame = %+v", got)
	}
}

func TestDiscardedLegacyLoadIsNeverWritten(t *testing.T) {
	s, w := newTestStore(t)
	legacy := []byte(`{"elements":[{"id":"s","kind":"stroke","x":0,"y":0,"width":0,"height":0,
		"content":{"stroke":{"points":[{"x":5,"y":5},{"x":25,"y":30}],"color":"#000000","width":2}}}]}`)
	if _, rep := s.Load(legacy); !rep.SaveScheduled {
		t.Fatalf("legacy load should want a save: %+v", rep)
	}
	s.Discard()
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if w.last() != nil {
		t.Fatalf("a discarded store must not write")
	}
}

func TestCurrentDocumentLoadDoesNotSave(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, box("a", vector.R(1, 2, 3, 4)))
	data := s.Save()
	s2, _ := newTestStore(t)
	doc, rep := s2.Load(data)
	if rep.SaveScheduled || s2.Pending() {
		t.Fatalf("a current document must load clean: %+v", rep)
	}
	if len(doc.Pages[0].Elements) != 1 || s2.CanUndo() {
		t.Fatalf("unexpected state after load")
	}
}

func TestMalformedLoadKeepsFileUntouched(t *testing.T) {
	s, w := newTestStore(t)
	doc, rep := s.Load([]byte("{not json"))
	if !rep.Decode.Malformed || rep.SaveScheduled {
		t.Fatalf("report = %+v", rep)
	}
	if len(doc.Pages) != 1 || len(doc.Pages[0].Elements) != 0 {
		t.Fatalf("expected one empty page")
	}
	if err := s.Flush(context.Background()); err != nil || w.count() != 0 {
		t.Fatalf("nothing should be written (err %v, writes %d)", err, w.count())
	}
}

func TestResizeGestureRecordsOnce(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, box("big", vector.R(0, 0, 100, 100)))
	mustAdd(t, s, box("small", vector.R(20, 20, 10, 10)))
	before := s.CurrentPage().Elements
	s.Select("big", "small")
	b, ok := s.BeginResize()
	if !ok || b != vector.R(0, 0, 100, 100) {
		t.Fatalf("bounds = %+v", b)
	}
	s.UpdateResize(vector.Size{W: 150, H: 150})
	if sx, sy := s.UpdateResize(vector.Size{W: 200, H: 50}); sx != 2 || sy != 0.5 {
		t.Fatalf("scale = %v,%v", sx, sy)
	}
	s.EndResize()
	els := s.CurrentPage().Elements
	if els[1].Frame != vector.R(40, 10, 20, 5) || els[0].Frame != vector.R(0, 0, 200, 50) {
		t.Fatalf("frames = %+v / %+v", els[0].Frame, els[1].Frame)
	}
	if !s.Undo() || !reflect.DeepEqual(s.CurrentPage().Elements, before) {
		t.Fatalf("one undo should restore the pre-gesture state")
	}
}

func TestClickWithoutDragKeepsRedo(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, box("a", vector.R(0, 0, 10, 10)))
	mustAdd(t, s, box("b", vector.R(20, 20, 10, 10)))
	s.Undo()
	s.Select("a")
	if !s.BeginMove() {
		t.Fatalf("begin move")
	}
	s.UpdateMove(vector.Pt{}, 1)
	s.EndMove()
	if _, ok := s.BeginResize(); !ok {
		t.Fatalf("begin resize")
	}
	s.EndResize()
	if !s.CanRedo() {
		t.Fatalf("a gesture that changed nothing must keep redo")
	}
	if !s.Redo() || len(s.CurrentPage().Elements) != 2 {
		t.Fatalf("redo should bring b back")
	}
}

func TestDragRecordsOnFirstChange(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, box("a", vector.R(0, 0, 10, 10)))
	before := s.CurrentPage().Elements
	s.Select("a")
	s.BeginMove()
	s.UpdateMove(vector.Pt{}, 1)
	s.UpdateMove(vector.Pt{X: 5}, 1)
	s.UpdateMove(vector.Pt{X: 9}, 1)
	s.EndMove()
	if !s.Undo() || !reflect.DeepEqual(s.CurrentPage().Elements, before) {
		t.Fatalf("one undo should restore the pre-drag state")
	}
	if !s.CanUndo() {
		t.Fatalf("the add should still be undoable")
	}
}

func TestMoveClampsAndConvertsZoom(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, box("a", vector.R(100, 100, 50, 50)))
	s.Select("a")
	if !s.BeginMove() {
		t.Fatalf("begin move")
	}
	s.UpdateMove(vector.Pt{X: 40, Y: -20}, 2)
	if f := s.CurrentPage().Elements[0].Frame; f != vector.R(120, 90, 50, 50) {
		t.Fatalf("frame = %+v", f)
	}
	s.UpdateMove(vector.Pt{X: -1000, Y: 0}, 2)
	s.EndMove()
	if f := s.CurrentPage().Elements[0].Frame; f.X != 0 {
		t.Fatalf("frame should stop at the edge: %+v", f)
	}
	s.ClearSelection()
	if s.BeginMove() {
		t.Fatalf("move without selection must not start")
	}
}

func TestSelectionBoxUsesStrokeGeometry(t *testing.T) {
	s, _ := newTestStore(t)
	l, _ := drawStroke(s, vector.Pt{X: 100, Y: 100}, vector.Pt{X: 100, Y: 200}, vector.Pt{X: 200, Y: 200})
	img := mustAdd(t, s, box("img", vector.R(400, 400, 20, 20)))

	s.BeginSelectionBox(vector.Pt{X: 150, Y: 110})
	if ids := s.UpdateSelectionBox(vector.Pt{X: 180, Y: 140}); len(ids) != 0 {
		t.Fatalf("empty corner of the L must not select it: %v", ids)
	}
	if r, ok := s.SelectionBounds(); !ok || r != vector.R(150, 110, 30, 30) {
		t.Fatalf("bounds during drag should be the box, got %+v", r)
	}
	s.UpdateSelectionBox(vector.Pt{X: 90, Y: 140})
	if ids := s.EndSelectionBox(); !reflect.DeepEqual(ids, []string{l.ID}) {
		t.Fatalf("selected = %v", ids)
	}
	if _, ok := s.SelectionBox(); ok {
		t.Fatalf("box should be gone")
	}
	if r, _ := s.SelectionBounds(); r != l.Frame {
		t.Fatalf("bounds = %+v", r)
	}
	if id, ok := s.TopmostAt(vector.Pt{X: 410, Y: 410}); !ok || id != img.ID {
		t.Fatalf("topmost = %q", id)
	}
	if !s.PointInSelection(vector.Pt{X: 150, Y: 150}) || s.PointInSelection(vector.Pt{X: 410, Y: 410}) {
		t.Fatalf("point-in-selection mismatch")
	}
}

func TestMergeSelectionBecomesSoleSelection(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, box("a", vector.R(10, 10, 20, 20)))
	mustAdd(t, s, box("b", vector.R(40, 40, 20, 20)))
	mustAdd(t, s, box("c", vector.R(300, 300, 20, 20)))
	s.Select("a", "b")
	snap, err := s.RenderSelection(1)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	m, ok := s.MergeSelection(snap)
	if !ok || m.Kind != domain.KindBitmapInk || m.Frame != vector.R(10, 10, 50, 50) {
		t.Fatalf("merged = %+v", m)
	}
	if ids := s.SelectedIDs(); !reflect.DeepEqual(ids, []string{m.ID}) {
		t.Fatalf("selection = %v", ids)
	}
	if n := len(s.CurrentPage().Elements); n != 2 {
		t.Fatalf("elements = %d", n)
	}
	s.Undo()
	if n := len(s.CurrentPage().Elements); n != 3 || len(s.SelectedIDs()) != 0 {
		t.Fatalf("undo should restore originals and drop the stale selection")
	}
}

func TestAddElementClampsIntoPage(t *testing.T) {
	s, _ := newTestStore(t)
	e := mustAdd(t, s, box("", vector.R(-10, 1100, 50, 50)))
	if e.ID == "" || e.Frame != vector.R(0, 1100, 50, 23) {
		t.Fatalf("element = %+v", e)
	}
	st := mustAdd(t, s, domain.Element{Frame: vector.R(780, 0, 40, 10),
		Content: domain.StrokeContent{Points: []vector.Pt{{X: 0, Y: 0}, {X: 40, Y: 10}}, Width: 2}})
	if st.Kind != domain.KindStroke || st.Frame != vector.R(780, 0, 14, 10) || !domain.IsConsistent(st) {
		t.Fatalf("stroke = %+v", st)
	}
	if _, err := s.AddElement(domain.Element{ID: "x"}); !errors.Is(err, ErrNoContent) {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdateAndRemove(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustAdd(t, s, box("a", vector.R(0, 0, 10, 10)))
	a.Frame = vector.R(5, 5, 10, 10)
	if err := s.UpdateElement(a); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.UpdateElement(box("zzz", vector.R(0, 0, 1, 1))); !errors.Is(err, ErrNoElement) {
		t.Fatalf("err = %v", err)
	}
	s.Select("a")
	s.SetEditing("a")
	if n := s.RemoveElements("a", "zzz"); n != 1 {
		t.Fatalf("removed = %d", n)
	}
	if len(s.SelectedIDs()) != 0 || s.EditingID() != "" {
		t.Fatalf("removed element still referenced")
	}
	if s.RemoveElements("a") != 0 {
		t.Fatalf("second remove should do nothing")
	}
}

func TestPagesKeepTheirOwnHistory(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, box("p1", vector.R(0, 0, 10, 10)))
	p2 := s.AddPage()
	if s.CurrentPageIndex() != 1 || s.CurrentPage().ID != p2.ID || s.CanUndo() {
		t.Fatalf("new page should be current and have no history")
	}
	mustAdd(t, s, box("p2", vector.R(0, 0, 10, 10)))
	s.SetCurrentPage(0)
	if !s.Undo() || len(s.CurrentPage().Elements) != 0 {
		t.Fatalf("undo should act on page 0")
	}
	s.SetCurrentPage(1)
	if len(s.CurrentPage().Elements) != 1 {
		t.Fatalf("page 1 untouched")
	}
	if !s.DeletePage(1) || s.PageCount() != 1 || s.CurrentPageIndex() != 0 {
		t.Fatalf("delete failed")
	}
	if s.DeletePage(0) {
		t.Fatalf("the last page must survive")
	}
	if s.SetCurrentPage(5) {
		t.Fatalf("out of range page accepted")
	}
}

func TestFailedWriteStaysPending(t *testing.T) {
	s, w := newTestStore(t)
	w.err = errors.New("disk full")
	mustAdd(t, s, box("a", vector.R(0, 0, 10, 10)))
	if err := s.Flush(context.Background()); err == nil {
		t.Fatalf("expected write error")
	}
	if !s.Pending() || s.LastError() == nil {
		t.Fatalf("failure must keep the document dirty")
	}
	if len(s.CurrentPage().Elements) != 1 {
		t.Fatalf("model must not roll back")
	}
	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()
	if err := s.Flush(context.Background()); err != nil || s.Pending() {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestAutosaveCoalescesMutations(t *testing.T) {
	w := &memWriter{}
	s := New(Options{Config: Config{Debounce: 50 * time.Millisecond}, Writer: w, Logger: applog.Discard()})
	defer func() { _ = s.Close(context.Background()) }()
	for i := 0; i < 5; i++ {
		mustAdd(t, s, box("", vector.R(float64(i), 0, 5, 5)))
	}
	deadline := time.Now().Add(3 * time.Second)
	for s.Pending() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if w.count() != 1 {
		t.Fatalf("writes = %d", w.count())
	}
	doc, _ := storage.Decode(w.last())
	if len(doc.Pages[0].Elements) != 5 {
		t.Fatalf("saved %d elements", len(doc.Pages[0].Elements))
	}
}

func TestCloseFlushes(t *testing.T) {
	w := &memWriter{}
	s := New(Options{Config: Config{Debounce: time.Hour}, Writer: w, Logger: applog.Discard()})
	mustAdd(t, s, box("a", vector.R(0, 0, 10, 10)))
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if w.count() != 1 {
		t.Fatalf("close should write once, got %d", w.count())
	}
}

type reindexer struct {
	mu   sync.Mutex
	docs []domain.Document
}

func (r *reindexer) Reindex(_ context.Context, doc domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return nil
}

func TestSaveRefreshesSearchIndex(t *testing.T) {
	ri := &reindexer{}
	s := New(Options{Config: Config{Debounce: time.Hour}, Writer: &memWriter{}, Search: ri, Logger: applog.Discard()})
	mustAdd(t, s, domain.Element{Frame: vector.R(0, 0, 100, 20), Content: domain.TextContent{Text: "hello", FontSize: 16}})
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	ri.mu.Lock()
	defer ri.mu.Unlock()
	if len(ri.docs) != 1 || len(ri.docs[0].Pages[0].Elements) != 1 {
		t.Fatalf("reindex calls = %d", len(ri.docs))
	}
}

func TestEmergencySaveEncodesCurrentState(t *testing.T) {
	s, w := newTestStore(t)
	mustAdd(t, s, box("a", vector.R(0, 0, 10, 10)))
	data, err := s.EmergencySave()
	if err != nil {
		t.Fatalf("emergency save: %v", err)
	}
	doc, rep := storage.Decode(data)
	if rep.Malformed || len(doc.Pages[0].Elements) != 1 || w.count() != 0 {
		t.Fatalf("unexpected emergency payload")
	}
}
