/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import (
	"inkboard/internal/domain"
	"inkboard/internal/selection"
	"inkboard/internal/vector"
)

type anchor struct {
	id     string
	origin vector.Pt
}

// MoveSession remembers where each selected element started so every drag
// update is computed from the gesture start, not accumulated.
type MoveSession struct {
	anchors []anchor
}

// BeginMove snapshots the origin of every selected element.
func BeginMove(elements []domain.Element, selected selection.Set) *MoveSession {
	m := &MoveSession{}
	for _, e := range elements {
		if selected.Has(e.ID) {
			m.anchors = append(m.anchors, anchor{id: e.ID, origin: e.Frame.Origin()})
		}
	}
	return m
}

func (m *MoveSession) Len() int { return len(m.anchors) }

// Apply positions every anchored element at anchor + screenDelta/zoom,
// clamped per element. Elements no longer present are skipped.
func (m *MoveSession) Apply(elements []domain.Element, screenDelta vector.Pt, zoom float64, page vector.Size) int {
	if zoom <= 0 {
		zoom = 1
	}
	d := vector.Pt{X: screenDelta.X / zoom, Y: screenDelta.Y / zoom}
	index := indexByID(elements)
	moved := 0
	for _, a := range m.anchors {
		i, ok := index[a.id]
		if !ok {
			continue
		}
		f := elements[i].Frame
		p := a.origin.Add(d)
		f.X, f.Y = p.X, p.Y
		elements[i].Frame = ClampPosition(f, page)
		moved++
	}
	return moved
}

func indexByID(elements []domain.Element) map[string]int {
	m := make(map[string]int, len(elements))
	for i, e := range elements {
		m[e.ID] = i
	}
	return m
}
