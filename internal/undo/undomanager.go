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
	"sync"
	"time"

	"inkboard/internal/domain"
)

// DefaultDepth is the number of undo (and redo) steps kept per page.
const DefaultDepth = 20

// Snapshot is a full copy of one page's element list.
// TS is when the snapshot was captured.
type Snapshot struct {
	PageID   string
	Elements []domain.Element
	TS       time.Time
}

// Config controls the stack depth.
type Config struct {
	// Depth limits undo and redo entries per page; oldest entries are dropped.
	Depth int
}

// Manager provides bounded undo/redo stacks of whole-list snapshots per page.
// Snapshots are deep copies, so later mutation of the live list never leaks
// into history. It is safe for concurrent use.
type Manager struct {
	cfg  Config
	mu   sync.Mutex
	undo map[string][]Snapshot
	redo map[string][]Snapshot
	now  func() time.Time
}

func NewManager(cfg Config) *Manager {
	if cfg.Depth <= 0 {
		cfg.Depth = DefaultDepth
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Snapshot), redo: make(map[string][]Snapshot), now: time.Now}
}

// Record pushes a copy of the page's elements as they are before a mutation.
// Any new change invalidates redo for the page.
func (m *Manager) Record(pageID string, elements []domain.Element) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo[pageID] = m.pushLocked(m.undo[pageID], pageID, elements)
	m.redo[pageID] = nil
}

// Undo pops the newest snapshot for the page and stores current on the redo
// stack. ok is false when there is nothing to undo.
func (m *Manager) Undo(pageID string, current []domain.Element) ([]domain.Element, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[pageID]
	if len(stack) == 0 {
		return nil, false
	}
	s := stack[len(stack)-1]
	m.undo[pageID] = stack[:len(stack)-1]
	m.redo[pageID] = m.pushLocked(m.redo[pageID], pageID, current)
	return domain.CloneElements(s.Elements), true
}

// Redo pops the newest redo snapshot and stores current on the undo stack.
func (m *Manager) Redo(pageID string, current []domain.Element) ([]domain.Element, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[pageID]
	if len(r) == 0 {
		return nil, false
	}
	s := r[len(r)-1]
	m.redo[pageID] = r[:len(r)-1]
	m.undo[pageID] = m.pushLocked(m.undo[pageID], pageID, current)
	return domain.CloneElements(s.Elements), true
}

func (m *Manager) CanUndo(pageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[pageID]) > 0
}

func (m *Manager) CanRedo(pageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[pageID]) > 0
}

// ClearPage drops both stacks of a page, e.g. when the page is deleted.
func (m *Manager) ClearPage(pageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.undo, pageID)
	delete(m.redo, pageID)
}

// Reset drops all history, used when a new document is loaded.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = make(map[string][]Snapshot)
	m.redo = make(map[string][]Snapshot)
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (pages int, undoSnapshots int, redoSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.undo {
		if len(v) > 0 {
			pages++
		}
		undoSnapshots += len(v)
	}
	for _, v := range m.redo {
		redoSnapshots += len(v)
	}
	return pages, undoSnapshots, redoSnapshots
}

func (m *Manager) pushLocked(stack []Snapshot, pageID string, elements []domain.Element) []Snapshot {
	stack = append(stack, Snapshot{PageID: pageID, Elements: domain.CloneElements(elements), TS: m.now()})
	if len(stack) > m.cfg.Depth {
		// drop the oldest extras
		toDrop := len(stack) - m.cfg.Depth
		stack = append([]Snapshot{}, stack[toDrop:]...)
	}
	return stack
}
