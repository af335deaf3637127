/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultMaxPreviewBytes caps the thumbnail cache of one document.
const DefaultMaxPreviewBytes int64 = 64 * 1024 * 1024

// ThumbKey identifies one cached page rendering. Hash fingerprints the page
// content so a thumbnail of an older revision is never served.
type ThumbKey struct {
	PageID string
	W, H   int
	Hash   string
}

// Thumbnail returns the cached PNG for key and marks it recently used. It
// returns nil, nil when nothing matching is cached.
func (ix *Index) Thumbnail(ctx context.Context, key ThumbKey) ([]byte, error) {
	var blob []byte
	var hash string
	err := ix.db.QueryRowContext(ctx, `SELECT thumb_blob, hash FROM previews WHERE page_id=? AND w=? AND h=?`,
		key.PageID, key.W, key.H).Scan(&blob, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preview: %w", err)
	}
	if hash != key.Hash {
		return nil, nil
	}
	// touch
	_, _ = ix.db.ExecContext(ctx, `UPDATE previews SET last_access=(SELECT COALESCE(MAX(last_access),0)+1 FROM previews)
		WHERE page_id=? AND w=? AND h=?`, key.PageID, key.W, key.H)
	return blob, nil
}

// PutThumbnail upserts a PNG and enforces the cache cap via LRU eviction.
func (ix *Index) PutThumbnail(ctx context.Context, key ThumbKey, png []byte) error {
	if len(png) == 0 {
		return errors.New("empty thumbnail")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := ix.db.ExecContext(ctx, `INSERT INTO previews(page_id,w,h,hash,thumb_blob,size,updated_at,last_access)
		VALUES(?,?,?,?,?,?,?,(SELECT COALESCE(MAX(last_access),0)+1 FROM previews))
		ON CONFLICT(page_id,w,h) DO UPDATE SET hash=excluded.hash, thumb_blob=excluded.thumb_blob,
			size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		key.PageID, key.W, key.H, key.Hash, png, len(png), now)
	if err != nil {
		return fmt.Errorf("upsert preview: %w", err)
	}
	if ix.MaxPreviewBytes > 0 {
		return ix.EvictPreviewsToFit(ctx, ix.MaxPreviewBytes)
	}
	return nil
}

// DropThumbnails removes every cached rendering of a page.
func (ix *Index) DropThumbnails(ctx context.Context, pageID string) error {
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM previews WHERE page_id=?`, pageID); err != nil {
		return fmt.Errorf("drop previews: %w", err)
	}
	return nil
}

// EvictPreviewsToFit deletes least-recently-used rows until total size <= capBytes.
func (ix *Index) EvictPreviewsToFit(ctx context.Context, capBytes int64) error {
	total, err := ix.TotalPreviewBytes(ctx)
	if err != nil {
		return err
	}
	if total <= capBytes {
		return nil
	}
	rows, err := ix.db.QueryContext(ctx, `SELECT id, size FROM previews ORDER BY last_access ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []any
	cur := total
	for rows.Next() {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, id)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// close the cursor before writing; the pool has a single connection
	if err := rows.Close(); err != nil {
		return err
	}
	if len(victims) == 0 {
		return nil
	}
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM previews WHERE id IN (`+placeholders(len(victims))+`)`, victims...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	return nil
}

// TotalPreviewBytes returns total bytes tracked by previews.size
func (ix *Index) TotalPreviewBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := ix.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum previews size: %w", err)
	}
	return total, nil
}

// MaxPreviewBytesFromEnv reads INK_PREVIEWS_MAX_BYTES, falling back to def.
func MaxPreviewBytesFromEnv(def int64) int64 {
	v := os.Getenv("INK_PREVIEWS_MAX_BYTES")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
