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
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"inkboard/internal/domain"
	"inkboard/internal/raster"
	"inkboard/internal/vector"
)

// CBZOptions controls CBZ export behavior. Title ends up in ComicInfo.xml.
type CBZOptions struct {
	Options
	Title string
}

// ExportCBZ packages the selected pages as PNG images into a CBZ (ZIP) archive
// and adds a ComicInfo.xml manifest for reader compatibility.
func ExportCBZ(doc domain.Document, size vector.Size, outPath string, opt CBZOptions) (err error) {
	if err := checkDocument(doc, size); err != nil {
		return err
	}
	if !strings.HasSuffix(strings.ToLower(outPath), ".cbz") {
		outPath = outPath + ".cbz"
	}
	if err := ensureDir(outPath); err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create cbz: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	zw := zip.NewWriter(f)

	pages := pageIndexes(len(doc.Pages), opt.Pages)
	pad := len(fmt.Sprint(len(pages)))
	for i, pidx := range pages {
		data, err := raster.EncodePNG(renderPage(doc.Pages[pidx], size, opt.Options, nil))
		if err != nil {
			return err
		}
		if err := addZipFile(zw, fmt.Sprintf("%0*d.png", pad, i+1), data); err != nil {
			return fmt.Errorf("zip add image: %w", err)
		}
	}
	manifest, err := comicInfo(opt.Title, len(pages))
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}
	if err := addZipFile(zw, "ComicInfo.xml", manifest); err != nil {
		return fmt.Errorf("zip add manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

type comicInfoXML struct {
	XMLName   xml.Name `xml:"ComicInfo"`
	Title     string   `xml:"Title,omitempty"`
	PageCount int      `xml:"PageCount"`
	Notes     string   `xml:"Notes"`
}

func comicInfo(title string, pages int) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(comicInfoXML{Title: title, PageCount: pages, Notes: "Exported by Inkboard"}); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
