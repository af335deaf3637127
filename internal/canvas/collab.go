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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"log/slog"

	"inkboard/internal/domain"
	"inkboard/internal/raster"
	"inkboard/internal/storage"
	"inkboard/internal/vector"
)

// Viewport maps screen coordinates to page coordinates.
type Viewport struct {
	Pan  vector.Pt
	Zoom float64
}

func (v Viewport) zoom() float64 {
	if v.Zoom <= 0 {
		return 1
	}
	return v.Zoom
}

// ToPage converts a screen point: page = (screen - pan) / zoom.
func (v Viewport) ToPage(screen vector.Pt) vector.Pt {
	d := screen.Sub(v.Pan)
	z := v.zoom()
	return vector.Pt{X: d.X / z, Y: d.Y / z}
}

// ToScreen is the inverse of ToPage.
func (v Viewport) ToScreen(page vector.Pt) vector.Pt {
	z := v.zoom()
	return vector.Pt{X: page.X*z + v.Pan.X, Y: page.Y*z + v.Pan.Y}
}

// Match is one ranked result of a similarity query. Lower Distance is closer.
type Match struct {
	PageID   string
	Distance float64
}

// SimilarityIndex is an image-similarity service fed with rasterized pages.
type SimilarityIndex interface {
	Index(ctx context.Context, pageID string, img image.Image) error
	Query(ctx context.Context, img image.Image, limit int) []Match
}

// PreviewCache stores rendered page thumbnails. *storage.Index satisfies it.
type PreviewCache interface {
	Thumbnail(ctx context.Context, key storage.ThumbKey) ([]byte, error)
	PutThumbnail(ctx context.Context, key storage.ThumbKey, png []byte) error
}

// similarityWidth is the pixel width pages are rendered at for the index.
const similarityWidth = 256

// IndexCurrentPage rasterizes the current page and hands it to the
// similarity index. It is a no-op without one.
func (s *Store) IndexCurrentPage(ctx context.Context) error {
	if s.sim == nil {
		return nil
	}
	p := s.CurrentPage()
	img := raster.RasterizePage(p, s.cfg.PageSize, raster.Options{
		Scale:      similarityWidth / s.cfg.PageSize.W,
		Background: image.White,
		Images:     s.images,
	})
	if err := s.sim.Index(ctx, p.ID, img); err != nil {
		return fmt.Errorf("index page %s: %w", p.ID, err)
	}
	return nil
}

// SimilarPages asks the similarity index for pages resembling img.
func (s *Store) SimilarPages(ctx context.Context, img image.Image, limit int) []Match {
	if s.sim == nil || img == nil {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}
	return s.sim.Query(ctx, img, limit)
}

// Thumbnail returns a PNG of page i scaled to maxWidth. Renderings are
// cached in the preview cache keyed by a hash of the page content.
func (s *Store) Thumbnail(ctx context.Context, i int, maxWidth int) ([]byte, error) {
	s.mu.Lock()
	if i < 0 || i >= len(s.doc.Pages) {
		s.mu.Unlock()
		return nil, fmt.Errorf("page %d out of range", i)
	}
	p := domain.ClonePage(s.doc.Pages[i])
	s.mu.Unlock()

	size, ok := raster.ThumbnailSize(s.cfg.PageSize, maxWidth)
	if !ok {
		return nil, fmt.Errorf("invalid thumbnail width %d", maxWidth)
	}
	key := storage.ThumbKey{PageID: p.ID, W: size.X, H: size.Y}
	if s.prev != nil {
		h, err := pageHash(p)
		if err != nil {
			return nil, err
		}
		key.Hash = h
		if data, err := s.prev.Thumbnail(ctx, key); err != nil {
			s.log.Warn("preview lookup failed", slog.Any("err", err))
		} else if data != nil {
			return data, nil
		}
	}
	data, _, err := raster.Thumbnail(p, s.cfg.PageSize, maxWidth, s.images)
	if err != nil {
		return nil, err
	}
	if s.prev != nil {
		if err := s.prev.PutThumbnail(ctx, key, data); err != nil {
			s.log.Warn("preview store failed", slog.Any("err", err))
		}
	}
	return data, nil
}

// pageHash fingerprints a page by its encoded form.
func pageHash(p domain.Page) (string, error) {
	data, err := storage.Encode(domain.Document{Pages: []domain.Page{p}})
	if err != nil {
		return "", fmt.Errorf("hash page: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
