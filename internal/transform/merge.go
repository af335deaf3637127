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

// Raster is a rendered snapshot of a selection, produced by the renderer.
// Src is base64 PNG data; Bounds is the page area it covers.
type Raster struct {
	Src         string
	Bounds      vector.Rect
	PixelWidth  int
	PixelHeight int
	// AsImage stores the result as an Image element instead of BitmapInk.
	AsImage bool
}

// Merge replaces the selected elements with one raster element covering
// snap.Bounds. The new element is appended on top. It returns false when
// none of the selected ids exist in elements.
func Merge(elements []domain.Element, selected selection.Set, snap Raster, id string, page vector.Size) ([]domain.Element, domain.Element, bool) {
	kept := make([]domain.Element, 0, len(elements))
	removed := 0
	for _, e := range elements {
		if selected.Has(e.ID) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return elements, domain.Element{}, false
	}
	frame := ClampFrame(snap.Bounds, page)
	ow, oh := float64(snap.PixelWidth), float64(snap.PixelHeight)
	if ow <= 0 || oh <= 0 {
		ow, oh = snap.Bounds.W, snap.Bounds.H
	}
	merged := domain.Element{ID: id, Frame: frame, ZIndex: len(kept)}
	if snap.AsImage {
		merged.Kind = domain.KindImage
		merged.Content = domain.ImageContent{Src: snap.Src, OriginalWidth: ow, OriginalHeight: oh}
	} else {
		merged.Kind = domain.KindBitmapInk
		merged.Content = domain.BitmapInkContent{Src: snap.Src, OriginalWidth: ow, OriginalHeight: oh}
	}
	return append(kept, merged), merged, true
}
