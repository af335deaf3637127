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
	"bytes"
	"fmt"
	"image/color"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"inkboard/internal/domain"
	"inkboard/internal/raster"
	"inkboard/internal/vector"
	"inkboard/internal/version"
)

// PDFOptions controls PDF export behavior.
// Units are points (pt); one page unit is 0.75pt.
// With VectorText, text blocks are written as PDF text in built-in Helvetica
// and left out of the page raster, so they stay selectable.
type PDFOptions struct {
	Options
	VectorText bool
	Title      string
}

const ptPerUnit = 72.0 / unitsPerInch

// ExportPDF writes the document to a single multi-page PDF at outPath.
func ExportPDF(doc domain.Document, size vector.Size, outPath string, opt PDFOptions) error {
	if err := checkDocument(doc, size); err != nil {
		return err
	}
	mediaW, mediaH := size.W*ptPerUnit, size.H*ptPerUnit
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: mediaW, Ht: mediaH},
		// We'll set orientation automatically by size
		OrientationStr: "",
	})
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	pdf.SetCreator("Inkboard "+version.Version, true)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	var keep func(domain.Element) bool
	if opt.VectorText {
		keep = func(e domain.Element) bool { return e.Kind != domain.KindText }
	}
	for n, pidx := range pageIndexes(len(doc.Pages), opt.Pages) {
		pg := doc.Pages[pidx]
		pdf.AddPageFormat("", gofpdf.SizeType{Wd: mediaW, Ht: mediaH})

		png, err := raster.EncodePNG(renderPage(pg, size, opt.Options, keep))
		if err != nil {
			return err
		}
		name := fmt.Sprintf("page-%d", n+1)
		imgOpt := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, imgOpt, bytes.NewReader(png))
		pdf.ImageOptions(name, 0, 0, mediaW, mediaH, false, imgOpt, 0, "")

		if opt.VectorText {
			for _, e := range pg.Elements {
				if tc, ok := e.Content.(domain.TextContent); ok {
					writeText(pdf, tr, e.Frame, tc)
				}
			}
		}
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := ensureDir(outPath); err != nil {
		return err
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func writeText(pdf *gofpdf.Fpdf, tr func(string) string, frame vector.Rect, tc domain.TextContent) {
	size := tc.FontSize
	if size <= 0 {
		size = 16
	}
	pt := size * ptPerUnit
	col := raster.ParseColor(tc.Color, color.NRGBA{A: 0xff})
	pdf.SetTextColor(int(col.R), int(col.G), int(col.B))
	pdf.SetFont("Helvetica", "", pt)
	x := frame.X * ptPerUnit
	y := frame.Y*ptPerUnit + pt
	bottom := (frame.Y + frame.H) * ptPerUnit
	for _, line := range strings.Split(tc.Text, "\n") {
		if frame.H > 0 && y > bottom+pt*0.25 {
			break
		}
		pdf.Text(x, y, tr(line))
		y += pt * 1.2
	}
}
