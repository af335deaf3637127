/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"inkboard/internal/domain"
	"inkboard/internal/vector"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls batch export across multiple formats.
//
// Outputs go to OutDir/<preset>/: <base>.pdf, <base>.cbz and png/<base>-page-<n>.png.
type BatchOptions struct {
	Preset      PresetName
	Formats     []string // allowed: pdf, png, cbz; empty means preset defaults
	Pages       []int    // zero-based indices; empty means all pages
	DPIOverride int      // when > 0 overrides the preset resolution
	OutDir      string
	Base        string // file name stem, defaults to "document"
	Options     Options
}

// BatchExport runs exports according to the given preset and returns the
// written paths.
func BatchExport(doc domain.Document, size vector.Size, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	base := opt.Base
	if base == "" {
		base = "document"
	}
	preset := opt.Preset
	if preset == "" {
		preset = PresetWeb
	}
	outDir := filepath.Join(opt.OutDir, string(preset))

	o := opt.Options
	o.Pages = opt.Pages
	o.DPI = presetDPI(preset)
	if opt.DPIOverride > 0 {
		o.DPI = opt.DPIOverride
	}

	var written []string
	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "pdf":
			out := filepath.Join(outDir, base+".pdf")
			if err := ExportPDF(doc, size, out, PDFOptions{Options: o, VectorText: preset == PresetPrint, Title: base}); err != nil {
				return written, fmt.Errorf("pdf: %w", err)
			}
			written = append(written, out)
		case "cbz":
			out := filepath.Join(outDir, base+".cbz")
			if err := ExportCBZ(doc, size, out, CBZOptions{Options: o, Title: base}); err != nil {
				return written, fmt.Errorf("cbz: %w", err)
			}
			written = append(written, out)
		case "png":
			paths, err := ExportPNGPages(doc, size, filepath.Join(outDir, "png"), base, o)
			written = append(written, paths...)
			if err != nil {
				return written, fmt.Errorf("png: %w", err)
			}
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetPrint:
		return []string{"pdf"}
	default:
		return []string{"png", "cbz"}
	}
}

func presetDPI(p PresetName) int {
	if p == PresetPrint {
		return 300
	}
	return 96
}
