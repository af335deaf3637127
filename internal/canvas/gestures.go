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
	"reflect"

	"inkboard/internal/domain"
	"inkboard/internal/selection"
	"inkboard/internal/transform"
	"inkboard/internal/vector"
)

// StartStroke begins ink capture at p (page space). A capture already in
// progress is discarded.
func (s *Store) StartStroke(p vector.Pt, style transform.StrokeStyle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capture = transform.NewCapture(s.cfg.PageSize, style, p)
}

// ContinueStroke adds a sample to the capture in progress.
func (s *Store) ContinueStroke(p vector.Pt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture != nil {
		s.capture.Add(p)
	}
}

// StrokePreview returns the samples captured so far.
func (s *Store) StrokePreview() []vector.Pt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture == nil {
		return nil
	}
	return s.capture.Points()
}

// EndStroke commits the capture as a stroke element on top of the page.
func (s *Store) EndStroke() (domain.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.capture
	s.capture = nil
	if c == nil {
		return domain.Element{}, false
	}
	p := s.pageLocked()
	e, ok := c.Finish(domain.NewID(), len(p.Elements))
	if !ok {
		return domain.Element{}, false
	}
	s.recordLocked()
	p.Elements = append(p.Elements, e)
	s.sched.MarkDirty()
	return domain.Clone(e), true
}

// BeginSelectionBox starts a marquee at p and clears the selection.
func (s *Store) BeginSelectionBox(p vector.Pt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boxStart = p
	r := vector.RectFromPoints(p, p)
	s.box = &r
	s.selected = selection.NewSet()
	s.editing = ""
}

// UpdateSelectionBox stretches the marquee to p and reselects everything it
// touches. Strokes are selected only when their ink crosses the box.
func (s *Store) UpdateSelectionBox(p vector.Pt) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.box == nil {
		return nil
	}
	r := vector.RectFromPoints(s.boxStart, p)
	s.box = &r
	s.selected = selection.ElementsIntersecting(s.pageLocked().Elements, r)
	return s.selected.IDs()
}

// EndSelectionBox drops the marquee and keeps the selection it produced.
func (s *Store) EndSelectionBox() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.box = nil
	return s.selected.IDs()
}

// SelectionBox returns the active marquee.
func (s *Store) SelectionBox() (vector.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.box == nil {
		return vector.Rect{}, false
	}
	return *s.box, true
}

// Select replaces the selection with the ids that exist on the current page.
func (s *Store) Select(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pageLocked()
	s.selected = selection.NewSet()
	for _, id := range ids {
		if p.IndexOf(id) >= 0 {
			s.selected.Add(id)
		}
	}
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = selection.NewSet()
	s.box = nil
	s.editing = ""
}

// SelectedIDs returns the selection in sorted order.
func (s *Store) SelectedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected.IDs()
}

// SelectionBounds is the marquee while one is active, otherwise the union of
// the selected frames.
func (s *Store) SelectionBounds() (vector.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return selection.Bounds(s.pageLocked().Elements, s.selected, s.box)
}

// TopmostAt returns the id of the front-most element whose frame contains p.
func (s *Store) TopmostAt(p vector.Pt) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return selection.TopmostAt(s.pageLocked().Elements, p)
}

// PointInSelection reports whether p hits any selected frame.
func (s *Store) PointInSelection(p vector.Pt) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return selection.PointInAnySelected(s.pageLocked().Elements, p, s.selected)
}

// SetEditing marks the element being edited in place; an empty id clears it.
func (s *Store) SetEditing(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" && s.pageLocked().IndexOf(id) < 0 {
		return false
	}
	s.editing = id
	return true
}

func (s *Store) EditingID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing
}

// BeginMove anchors the selected elements. History is recorded once for the
// whole drag, on the first update that changes a frame. It reports false when
// nothing is selected.
func (s *Store) BeginMove() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected.Len() == 0 {
		return false
	}
	p := s.pageLocked()
	m := transform.BeginMove(p.Elements, s.selected)
	if m.Len() == 0 {
		return false
	}
	s.beginGestureLocked()
	s.move = m
	return true
}

// UpdateMove places the selection at its start position plus screenDelta
// converted by zoom.
func (s *Store) UpdateMove(screenDelta vector.Pt, zoom float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.move == nil {
		return
	}
	s.move.Apply(s.pageLocked().Elements, screenDelta, zoom, s.cfg.PageSize)
	s.noteGestureLocked()
}

// EndMove finishes the drag and schedules a save.
func (s *Store) EndMove() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.move == nil {
		return
	}
	s.move = nil
	s.endGestureLocked()
}

// BeginResize captures the selection bounds. Like a move, the resize is
// recorded once, when it first changes something.
func (s *Store) BeginResize() (vector.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := transform.BeginResize(s.pageLocked().Elements, s.selected)
	if !ok {
		return vector.Rect{}, false
	}
	s.beginGestureLocked()
	s.resize = r
	return r.Bounds(), true
}

// UpdateResize scales the selected group to size from its state at gesture
// start.
func (s *Store) UpdateResize(size vector.Size) (sx, sy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resize == nil {
		return 1, 1
	}
	sx, sy = s.resize.Apply(s.pageLocked().Elements, size, s.cfg.PageSize)
	s.noteGestureLocked()
	return sx, sy
}

func (s *Store) EndResize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resize == nil {
		return
	}
	s.resize = nil
	s.endGestureLocked()
}

// gestureEdit holds the page state from gesture start until a change is
// actually made.
type gestureEdit struct {
	pageID   string
	before   []domain.Element
	recorded bool
}

func (s *Store) beginGestureLocked() {
	p := s.pageLocked()
	s.gesture = &gestureEdit{pageID: p.ID, before: domain.CloneElements(p.Elements)}
}

// noteGestureLocked records the start state the first time the live list
// differs from it.
func (s *Store) noteGestureLocked() {
	g := s.gesture
	if g == nil || g.recorded {
		return
	}
	if reflect.DeepEqual(g.before, s.pageLocked().Elements) {
		return
	}
	s.history.Record(g.pageID, g.before)
	g.recorded = true
}

func (s *Store) endGestureLocked() {
	if g := s.gesture; g != nil && g.recorded {
		s.sched.MarkDirty()
	}
	s.gesture = nil
}
