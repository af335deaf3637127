/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export writes documents out of the editor: multi-page PDF, one PNG
// per page, or a CBZ archive of page images. Pages are rasterized through
// internal/raster; page units are CSS pixels (96 per inch).
package export

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"inkboard/internal/domain"
	"inkboard/internal/raster"
	"inkboard/internal/vector"
)

// unitsPerInch is the resolution page coordinates are expressed in.
const unitsPerInch = 96.0

// Options is shared by all exporters.
type Options struct {
	// DPI of raster output; <= 0 selects 96 (one pixel per unit).
	DPI int
	// Pages are zero-based indices; empty exports all pages.
	Pages  []int
	Images raster.ImageSource
}

func (o Options) scale() float64 {
	if o.DPI <= 0 {
		return 1
	}
	return float64(o.DPI) / unitsPerInch
}

func pageIndexes(total int, specific []int) []int {
	if len(specific) == 0 {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, len(specific))
	for _, i := range specific {
		if i >= 0 && i < total {
			out = append(out, i)
		}
	}
	return out
}

// renderPage rasterizes one page on white. keep filters elements; nil keeps all.
func renderPage(p domain.Page, size vector.Size, opt Options, keep func(domain.Element) bool) image.Image {
	if keep != nil {
		filtered := domain.Page{ID: p.ID}
		for _, e := range p.Elements {
			if keep(e) {
				filtered.Elements = append(filtered.Elements, e)
			}
		}
		p = filtered
	}
	return raster.RasterizePage(p, size, raster.Options{Scale: opt.scale(), Background: color.White, Images: opt.Images})
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	return nil
}

func checkDocument(doc domain.Document, size vector.Size) error {
	if len(doc.Pages) == 0 {
		return fmt.Errorf("document has no pages")
	}
	if size.W <= 0 || size.H <= 0 {
		return fmt.Errorf("invalid page size %vx%v", size.W, size.H)
	}
	return nil
}
