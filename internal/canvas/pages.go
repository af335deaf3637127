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
	"log/slog"
	"slices"

	"inkboard/internal/domain"
)

// PageCount returns the number of pages.
func (s *Store) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.doc.Pages)
}

// AddPage inserts an empty page after the current one and switches to it.
func (s *Store) AddPage() domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := s.doc.PageIndex() + 1
	p := domain.NewPage()
	s.doc.Pages = slices.Insert(s.doc.Pages, at, p)
	s.doc.CurrentPageIndex = at
	s.resetEphemeralLocked()
	s.sched.MarkDirty()
	return domain.ClonePage(p)
}

// SetCurrentPage switches pages. Selection and gestures are dropped; each
// page keeps its own history.
func (s *Store) SetCurrentPage(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.doc.Pages) {
		return false
	}
	if i == s.doc.PageIndex() {
		return true
	}
	s.doc.CurrentPageIndex = i
	s.resetEphemeralLocked()
	s.sched.MarkDirty()
	return true
}

// DeletePage removes page i together with its history. The last remaining
// page is never removed.
func (s *Store) DeletePage(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.doc.Pages) <= 1 || i < 0 || i >= len(s.doc.Pages) {
		return false
	}
	cur := s.doc.PageIndex()
	id := s.doc.Pages[i].ID
	s.doc.Pages = slices.Delete(s.doc.Pages, i, i+1)
	if i < cur || cur >= len(s.doc.Pages) {
		cur--
	}
	s.doc.CurrentPageIndex = max(cur, 0)
	s.history.ClearPage(id)
	s.resetEphemeralLocked()
	s.log.Debug("page deleted", slog.String("page", id))
	s.sched.MarkDirty()
	return true
}
