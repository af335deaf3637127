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
	"os"
	"path/filepath"

	"inkboard/internal/domain"
	"inkboard/internal/raster"
	"inkboard/internal/vector"
)

// ExportPNGPages writes each selected page as <outDir>/<base>-page-<n>.png
// (n is 1-based) and returns the written paths.
func ExportPNGPages(doc domain.Document, size vector.Size, outDir, base string, opt Options) ([]string, error) {
	if err := checkDocument(doc, size); err != nil {
		return nil, err
	}
	if base == "" {
		base = "document"
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	var out []string
	for _, pidx := range pageIndexes(len(doc.Pages), opt.Pages) {
		data, err := raster.EncodePNG(renderPage(doc.Pages[pidx], size, opt, nil))
		if err != nil {
			return out, err
		}
		path := filepath.Join(outDir, fmt.Sprintf("%s-page-%d.png", base, pidx+1))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return out, fmt.Errorf("write %s: %w", path, err)
		}
		out = append(out, path)
	}
	return out, nil
}
