/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package canvas is the document store: it owns the loaded document, routes
// every mutation through history and clamping, tracks the ephemeral selection
// and gesture state, and hands serialized bytes to the autosave scheduler.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inkboard/internal/autosave"
	"inkboard/internal/domain"
	applog "inkboard/internal/log"
	"inkboard/internal/raster"
	"inkboard/internal/sanitize"
	"inkboard/internal/selection"
	"inkboard/internal/storage"
	"inkboard/internal/transform"
	"inkboard/internal/undo"
	"inkboard/internal/vector"
	"inkboard/internal/version"
)

// DefaultPageSize is a portrait A4 page at 96 dpi.
var DefaultPageSize = vector.Size{W: 794, H: 1123}

// Config holds the tunables of a Store. Zero values select defaults.
type Config struct {
	PageSize     vector.Size
	Debounce     time.Duration
	HistoryDepth int
}

func (c Config) withDefaults() Config {
	if c.PageSize.W <= 0 || c.PageSize.H <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Debounce <= 0 {
		c.Debounce = autosave.DefaultDelay
	}
	if c.HistoryDepth <= 0 {
		c.HistoryDepth = undo.DefaultDepth
	}
	return c
}

// Writer persists serialized document bytes. *storage.FileStore satisfies it.
type Writer interface {
	Write(ctx context.Context, data []byte) error
}

// Reindexer refreshes a search index after a successful write.
// *storage.Index satisfies it.
type Reindexer interface {
	Reindex(ctx context.Context, doc domain.Document) error
}

// Options wires the collaborators of a Store. Everything except Config is
// optional: without a Writer saves only produce bytes.
type Options struct {
	Config     Config
	Writer     Writer
	Search     Reindexer
	Previews   PreviewCache
	Similarity SimilarityIndex
	Images     raster.ImageSource
	Logger     *slog.Logger
}

// LoadReport summarizes what Load had to fix.
type LoadReport struct {
	Decode   storage.DecodeReport
	Sanitize sanitize.Report
	// SaveScheduled is set when the loaded bytes differ from what a save would
	// write and an autosave was requested.
	SaveScheduled bool
}

// Store is the single owner of a document. Its mutex serializes public calls
// with the background writer taking a snapshot.
type Store struct {
	cfg    Config
	log    *slog.Logger
	writer Writer
	search Reindexer
	prev   PreviewCache
	sim    SimilarityIndex
	images raster.ImageSource

	history *undo.Manager
	sched   *autosave.Scheduler

	mu       sync.Mutex
	doc      domain.Document
	selected selection.Set
	box      *vector.Rect
	boxStart vector.Pt
	editing  string

	capture *transform.Capture
	move    *transform.MoveSession
	resize  *transform.ResizeSession
	gesture *gestureEdit
}

// New returns a store holding a fresh document with one empty page.
func New(opts Options) *Store {
	s := &Store{
		cfg:      opts.Config.withDefaults(),
		log:      opts.Logger,
		writer:   opts.Writer,
		search:   opts.Search,
		prev:     opts.Previews,
		sim:      opts.Similarity,
		images:   opts.Images,
		doc:      domain.NewDocument(version.DocumentFormat),
		selected: selection.NewSet(),
	}
	if s.log == nil {
		s.log = applog.WithComponent("canvas")
	}
	s.history = undo.NewManager(undo.Config{Depth: s.cfg.HistoryDepth})
	s.sched = autosave.New(s.cfg.Debounce, s.write, autosave.WithLogger(s.log.With(slog.String("op", "autosave"))))
	return s
}

// PageSize is the fixed canvas size every frame is clamped into.
func (s *Store) PageSize() vector.Size { return s.cfg.PageSize }

// Load replaces the document with the decoded bytes. It never fails: broken
// input yields a single empty page. Legacy or repaired documents are
// scheduled for saving in the current format; malformed input is not, so the
// original bytes stay on disk.
func (s *Store) Load(data []byte) (domain.Document, LoadReport) {
	doc, drep := storage.Decode(data)
	srep := sanitize.Sanitize(&doc)
	rep := LoadReport{Decode: drep, Sanitize: srep}

	s.mu.Lock()
	s.doc = doc
	s.resetEphemeralLocked()
	s.history.Reset()
	out := domain.CloneDocument(s.doc)
	s.mu.Unlock()

	if drep.Malformed {
		s.log.Warn("document unreadable, starting empty", slog.Any("err", drep.Err))
	}
	if len(drep.Dropped) > 0 {
		s.log.Warn("dropped unresolvable elements", slog.Int("count", len(drep.Dropped)), slog.Any("ids", drep.Dropped))
	}
	if srep.Changed() {
		s.log.Info("repaired inconsistent strokes", slog.Int("count", len(srep.Repaired)))
	}
	if drep.Migrated() || srep.Changed() || len(drep.Dropped) > 0 {
		rep.SaveScheduled = true
		s.sched.MarkDirty()
	}
	s.log.Debug("document loaded",
		slog.String("from_version", drep.FromVersion),
		slog.Int("pages", len(out.Pages)))
	return out, rep
}

// Document returns a deep copy of the whole document.
func (s *Store) Document() domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneDocument(s.doc)
}

// CurrentPage returns a deep copy of the page being edited.
func (s *Store) CurrentPage() domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ClonePage(*s.pageLocked())
}

// CurrentPageIndex is the clamped index of the page being edited.
func (s *Store) CurrentPageIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.PageIndex()
}

// Save serializes the document in the current format and stamps saved_at.
// It returns nil only if encoding fails, which is logged.
func (s *Store) Save() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.encodeLocked()
	if err != nil {
		s.log.Error("encode document", slog.Any("err", err))
		return nil
	}
	return data
}

func (s *Store) encodeLocked() ([]byte, error) {
	s.doc.Version = version.DocumentFormat
	s.doc.SavedAt = time.Now().UTC()
	s.doc.CurrentPageIndex = s.doc.PageIndex()
	return storage.Encode(s.doc)
}

// write is the autosave callback. The snapshot is taken under the lock, the
// I/O runs outside it.
func (s *Store) write(ctx context.Context) error {
	s.mu.Lock()
	data, err := s.encodeLocked()
	var doc domain.Document
	if err == nil && s.search != nil {
		doc = domain.CloneDocument(s.doc)
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if s.writer == nil {
		return nil
	}
	if err := s.writer.Write(ctx, data); err != nil {
		return err
	}
	if s.search != nil {
		if err := s.search.Reindex(ctx, doc); err != nil {
			// search results stay stale until the next save
			s.log.Warn("reindex after save failed", slog.Any("err", err))
		}
	}
	return nil
}

// Flush writes immediately when there are unsaved changes.
func (s *Store) Flush(ctx context.Context) error { return s.sched.Flush(ctx) }

// Close performs the final flush and stops autosaving.
func (s *Store) Close(ctx context.Context) error { return s.sched.Close(ctx) }

// Discard stops autosaving without writing. Used when a document is only
// read, so load-time repairs stay in memory.
func (s *Store) Discard() { s.sched.Stop() }

// Pending reports unsaved changes.
func (s *Store) Pending() bool { return s.sched.Pending() }

// LastError is the error of the most recent failed write, nil after a
// successful one.
func (s *Store) LastError() error { return s.sched.LastError() }

// EmergencySave serializes the document for crash recovery without touching
// the regular document file.
func (s *Store) EmergencySave() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encodeLocked()
}

// ErrNoElement is returned when an id does not exist on the current page.
var ErrNoElement = errors.New("no such element on the current page")

// ErrNoContent rejects elements without a payload.
var ErrNoContent = errors.New("element has no content")

// AddElement appends e to the current page on top of the others. A missing
// id is generated; the frame (and stroke samples) are clamped into the page.
func (s *Store) AddElement(e domain.Element) (domain.Element, error) {
	if e.Content == nil {
		return domain.Element{}, ErrNoContent
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pageLocked()
	e = clampElement(domain.Clone(e), s.cfg.PageSize)
	if e.ID == "" {
		e.ID = domain.NewID()
	}
	e.Kind = e.Content.Kind()
	e.ZIndex = len(p.Elements)
	s.recordLocked()
	p.Elements = append(p.Elements, e)
	s.sched.MarkDirty()
	return domain.Clone(e), nil
}

// UpdateElement replaces the element with the same id, keeping its list
// position.
func (s *Store) UpdateElement(e domain.Element) error {
	if e.Content == nil {
		return fmt.Errorf("update %q: %w", e.ID, ErrNoContent)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pageLocked()
	i := p.IndexOf(e.ID)
	if i < 0 {
		return fmt.Errorf("update %q: %w", e.ID, ErrNoElement)
	}
	e = clampElement(domain.Clone(e), s.cfg.PageSize)
	e.Kind = e.Content.Kind()
	s.recordLocked()
	p.Elements[i] = e
	s.sched.MarkDirty()
	return nil
}

// RemoveElements deletes the given ids from the current page and returns how
// many were removed. Nothing is recorded when none exist.
func (s *Store) RemoveElements(ids ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pageLocked()
	drop := selection.NewSet(ids...)
	kept := make([]domain.Element, 0, len(p.Elements))
	for _, e := range p.Elements {
		if !drop.Has(e.ID) {
			kept = append(kept, e)
		}
	}
	n := len(p.Elements) - len(kept)
	if n == 0 {
		return 0
	}
	s.recordLocked()
	p.Elements = kept
	for _, id := range ids {
		s.selected.Remove(id)
		if s.editing == id {
			s.editing = ""
		}
	}
	s.sched.MarkDirty()
	return n
}

// MergeSelection replaces the selected elements with one raster element built
// from snap, which becomes the only selection.
func (s *Store) MergeSelection(snap transform.Raster) (domain.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected.Len() == 0 {
		return domain.Element{}, false
	}
	p := s.pageLocked()
	before := domain.CloneElements(p.Elements)
	out, merged, ok := transform.Merge(p.Elements, s.selected, snap, domain.NewID(), s.cfg.PageSize)
	if !ok {
		return domain.Element{}, false
	}
	s.history.Record(p.ID, before)
	p.Elements = out
	s.selected = selection.NewSet(merged.ID)
	s.editing = ""
	s.sched.MarkDirty()
	return domain.Clone(merged), true
}

// RenderSelection rasterizes the selected elements at scale pixels per unit,
// ready for MergeSelection.
func (s *Store) RenderSelection(scale float64) (transform.Raster, error) {
	s.mu.Lock()
	els := domain.CloneElements(s.pageLocked().Elements)
	sel := s.selected.Clone()
	s.mu.Unlock()
	return raster.Snapshot(els, sel, raster.Options{Scale: scale, Images: s.images})
}

// Undo restores the current page to the state before its last recorded
// mutation. It reports false when there is nothing to undo.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pageLocked()
	els, ok := s.history.Undo(p.ID, p.Elements)
	if !ok {
		return false
	}
	s.restoreLocked(p, els)
	return true
}

// Redo re-applies the last undone mutation of the current page.
func (s *Store) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pageLocked()
	els, ok := s.history.Redo(p.ID, p.Elements)
	if !ok {
		return false
	}
	s.restoreLocked(p, els)
	return true
}

func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo(s.pageLocked().ID)
}

func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo(s.pageLocked().ID)
}

func (s *Store) restoreLocked(p *domain.Page, els []domain.Element) {
	if els == nil {
		els = []domain.Element{}
	}
	p.Elements = els
	s.cancelGesturesLocked()
	for _, id := range s.selected.IDs() {
		if p.IndexOf(id) < 0 {
			s.selected.Remove(id)
		}
	}
	if s.editing != "" && p.IndexOf(s.editing) < 0 {
		s.editing = ""
	}
	s.sched.MarkDirty()
}

// recordLocked pushes the current page's elements before a mutation.
func (s *Store) recordLocked() {
	p := s.pageLocked()
	s.history.Record(p.ID, p.Elements)
}

// pageLocked returns the current page, clamping the index first.
func (s *Store) pageLocked() *domain.Page {
	if len(s.doc.Pages) == 0 {
		s.doc.Pages = []domain.Page{domain.NewPage()}
	}
	s.doc.CurrentPageIndex = s.doc.PageIndex()
	return &s.doc.Pages[s.doc.CurrentPageIndex]
}

func (s *Store) resetEphemeralLocked() {
	s.selected = selection.NewSet()
	s.box = nil
	s.editing = ""
	s.cancelGesturesLocked()
}

func (s *Store) cancelGesturesLocked() {
	s.capture = nil
	s.move = nil
	s.resize = nil
	s.gesture = nil
}

// clampElement pins e into the page. Stroke samples are clamped one by one
// and renormalized so the frame keeps matching the points.
func clampElement(e domain.Element, page vector.Size) domain.Element {
	sc, ok := e.Stroke()
	if !ok || len(sc.Points) == 0 {
		e.Frame = transform.ClampFrame(e.Frame, page)
		return e
	}
	abs := domain.AbsolutePoints(e)
	for i := range abs {
		abs[i] = transform.ClampPoint(abs[i], page)
	}
	frame, rel, _ := domain.NormalizePoints(abs)
	e.Frame = frame
	sc.Points = rel
	e.Content = sc
	return e
}
