/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the scene data of a drawing document: a document of
// pages, each page an ordered list of typed elements. The list order is the
// render order (back to front). Wire encoding lives in internal/storage.

import (
	"time"

	"github.com/google/uuid"

	"inkboard/internal/vector"
)

// Kind discriminates element content.
type Kind string

const (
	KindText      Kind = "text"
	KindGraph     Kind = "graph"
	KindImage     Kind = "image"
	KindStroke    Kind = "stroke"
	KindBitmapInk Kind = "bitmapInk"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindGraph, KindImage, KindStroke, KindBitmapInk:
		return true
	}
	return false
}

// BrushType selects how a stroke is inked.
type BrushType string

const (
	BrushPen         BrushType = "pen"
	BrushPencil      BrushType = "pencil"
	BrushMarker      BrushType = "marker"
	BrushHighlighter BrushType = "highlighter"
)

// ParseBrushType maps unknown or empty values to BrushPen.
func ParseBrushType(s string) BrushType {
	switch BrushType(s) {
	case BrushPencil, BrushMarker, BrushHighlighter:
		return BrushType(s)
	default:
		return BrushPen
	}
}

// Document is the persisted root. Pages is never empty.
type Document struct {
	Version          string
	SavedAt          time.Time
	Pages            []Page
	CurrentPageIndex int
}

// Page is one canvas surface. Elements order is z-order.
type Page struct {
	ID       string
	Elements []Element
}

// Element is one visual object on a page. Frame is in page units.
// ZIndex is a creation-time hint; ordering is the position in Page.Elements.
type Element struct {
	ID      string
	Kind    Kind
	Frame   vector.Rect
	ZIndex  int
	Content Content
}

// Content is the closed set of element payloads.
type Content interface {
	Kind() Kind
	sealed()
}

type TextContent struct {
	Text       string
	FontSize   float64
	FontFamily string
	Color      string
}

type GraphContent struct {
	Expression string
	XMin, XMax float64
	YMin, YMax *float64
	Color      string
}

type ImageContent struct {
	Src            string
	OriginalWidth  float64
	OriginalHeight float64
}

// BitmapInkContent is a rasterized merge of several elements.
type BitmapInkContent struct {
	Src            string
	OriginalWidth  float64
	OriginalHeight float64
}

// StrokeContent holds ink samples relative to the element frame origin.
type StrokeContent struct {
	Points    []vector.Pt
	Color     string
	Width     float64
	BrushType BrushType
}

func (TextContent) Kind() Kind      { return KindText }
func (GraphContent) Kind() Kind     { return KindGraph }
func (ImageContent) Kind() Kind     { return KindImage }
func (BitmapInkContent) Kind() Kind { return KindBitmapInk }
func (StrokeContent) Kind() Kind    { return KindStroke }

func (TextContent) sealed()      {}
func (GraphContent) sealed()     {}
func (ImageContent) sealed()     {}
func (BitmapInkContent) sealed() {}
func (StrokeContent) sealed()    {}

// NewID returns a fresh opaque identifier for pages and elements.
func NewID() string { return uuid.NewString() }

// NewPage returns an empty page with a fresh id.
func NewPage() Page { return Page{ID: NewID(), Elements: []Element{}} }

// NewDocument returns a current-format document with one empty page.
func NewDocument(version string) Document {
	return Document{Version: version, Pages: []Page{NewPage()}}
}

// PageIndex returns CurrentPageIndex clamped into [0, len(Pages)).
func (d *Document) PageIndex() int {
	if len(d.Pages) == 0 {
		return 0
	}
	i := d.CurrentPageIndex
	if i < 0 {
		return 0
	}
	if i >= len(d.Pages) {
		return len(d.Pages) - 1
	}
	return i
}

// IndexOf returns the list position of the element with id, or -1.
func (p *Page) IndexOf(id string) int {
	for i := range p.Elements {
		if p.Elements[i].ID == id {
			return i
		}
	}
	return -1
}

// Stroke returns the stroke payload when e is a stroke.
func (e Element) Stroke() (StrokeContent, bool) {
	sc, ok := e.Content.(StrokeContent)
	return sc, ok
}
