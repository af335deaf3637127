/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"fmt"
	"reflect"
	"testing"

	"inkboard/internal/domain"
	"inkboard/internal/vector"
)

func el(id string, x float64) domain.Element {
	return domain.Element{ID: id, Kind: domain.KindText, Frame: vector.R(x, 0, 10, 10), Content: domain.TextContent{Text: id}}
}

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager(Config{})
	pg := "p1"
	before := []domain.Element{el("a", 0)}
	m.Record(pg, before)
	after := []domain.Element{el("a", 0), el("b", 5)}

	got, ok := m.Undo(pg, after)
	if !ok || !reflect.DeepEqual(got, before) {
		t.Fatalf("undo expected %+v, got ok=%v %+v", before, ok, got)
	}
	if !m.CanRedo(pg) || m.CanUndo(pg) {
		t.Fatalf("after undo: expected redo available and undo empty")
	}
	got, ok = m.Redo(pg, got)
	if !ok || !reflect.DeepEqual(got, after) {
		t.Fatalf("redo expected %+v, got ok=%v %+v", after, ok, got)
	}
}

func TestUndoOnEmptyIsNoop(t *testing.T) {
	m := NewManager(Config{})
	if _, ok := m.Undo("p", nil); ok {
		t.Fatalf("undo on empty stack must report false")
	}
	if _, ok := m.Redo("p", nil); ok {
		t.Fatalf("redo on empty stack must report false")
	}
}

func TestRecordClearsRedo(t *testing.T) {
	m := NewManager(Config{})
	m.Record("p", []domain.Element{el("a", 0)})
	_, _ = m.Undo("p", []domain.Element{el("a", 1)})
	if !m.CanRedo("p") {
		t.Fatalf("redo expected after undo")
	}
	m.Record("p", []domain.Element{el("a", 0)})
	if m.CanRedo("p") {
		t.Fatalf("a new mutation must clear redo")
	}
}

func TestSnapshotsAreDeepCopies(t *testing.T) {
	m := NewManager(Config{})
	live := []domain.Element{el("a", 0)}
	m.Record("p", live)
	live[0].Frame.X = 99
	got, _ := m.Undo("p", live)
	if got[0].Frame.X != 0 {
		t.Fatalf("snapshot was mutated through the live list")
	}
}

func TestDepthCapDropsOldest(t *testing.T) {
	m := NewManager(Config{})
	pg := "p"
	state := []domain.Element{}
	initial := domain.CloneElements(state)
	for i := 0; i < DefaultDepth+1; i++ {
		m.Record(pg, state)
		state = append(domain.CloneElements(state), el(fmt.Sprintf("e%d", i), float64(i)))
	}
	if _, undos, _ := m.Stats(); undos != DefaultDepth {
		t.Fatalf("expected %d snapshots, got %d", DefaultDepth, undos)
	}
	var last []domain.Element
	for m.CanUndo(pg) {
		last, _ = m.Undo(pg, state)
		state = last
	}
	if reflect.DeepEqual(last, initial) {
		t.Fatalf("the state before the first of 21 mutations must be unreachable")
	}
	if len(last) != 1 || last[0].ID != "e0" {
		t.Fatalf("oldest reachable state should hold only e0, got %+v", last)
	}
}

func TestPagesAreIndependent(t *testing.T) {
	m := NewManager(Config{Depth: 3})
	m.Record("p1", []domain.Element{el("a", 0)})
	if m.CanUndo("p2") {
		t.Fatalf("p2 has no history")
	}
	m.ClearPage("p1")
	if m.CanUndo("p1") {
		t.Fatalf("cleared page still has history")
	}
}
