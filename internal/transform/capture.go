/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import (
	"slices"

	"inkboard/internal/domain"
	"inkboard/internal/vector"
)

// StrokeStyle is the pen state applied to a captured stroke.
type StrokeStyle struct {
	Color string
	Width float64
	Brush domain.BrushType
}

// DefaultStrokeStyle is a thin black pen.
var DefaultStrokeStyle = StrokeStyle{Color: "#000000", Width: 2, Brush: domain.BrushPen}

// Capture accumulates pointer samples of one stroke in page space.
type Capture struct {
	page  vector.Size
	style StrokeStyle
	pts   []vector.Pt
}

// NewCapture starts a stroke at start.
func NewCapture(page vector.Size, style StrokeStyle, start vector.Pt) *Capture {
	if style.Brush == "" {
		style.Brush = domain.BrushPen
	}
	c := &Capture{page: page, style: style}
	c.Add(start)
	return c
}

// Add appends a sample, pinned into the page.
func (c *Capture) Add(p vector.Pt) { c.pts = append(c.pts, ClampPoint(p, c.page)) }

func (c *Capture) Len() int { return len(c.pts) }

// Points returns a copy of the samples captured so far, for live feedback.
func (c *Capture) Points() []vector.Pt { return slices.Clone(c.pts) }

// Finish builds the committed element. It returns false when no samples
// were captured.
func (c *Capture) Finish(id string, zIndex int) (domain.Element, bool) {
	frame, rel, ok := domain.NormalizePoints(c.pts)
	if !ok {
		return domain.Element{}, false
	}
	return domain.Element{
		ID:     id,
		Kind:   domain.KindStroke,
		Frame:  frame,
		ZIndex: zIndex,
		Content: domain.StrokeContent{
			Points:    rel,
			Color:     c.style.Color,
			Width:     c.style.Width,
			BrushType: c.style.Brush,
		},
	}, true
}
