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
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"inkboard/internal/domain"
	applog "inkboard/internal/log"
	"inkboard/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName holds the per-document sidecar databases next to the document.
	IndexDirName = ".inkboard"

	// schemaVersion tracks the local SQLite schema for the sidecar index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// IndexPath returns <dir>/.inkboard/<name>.sqlite for a document path.
func IndexPath(docPath string) string {
	name := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	return filepath.Join(filepath.Dir(docPath), IndexDirName, name+".sqlite")
}

// Index is the derived, disposable sidecar of one document: full-text rows
// for text and graph elements plus cached page thumbnails.
type Index struct {
	db   *sql.DB
	path string
	// MaxPreviewBytes caps the thumbnail cache; 0 disables eviction.
	MaxPreviewBytes int64
}

// OpenIndex creates or opens the sidecar for docPath, enables WAL mode and
// brings the schema up to date.
func OpenIndex(docPath string) (*Index, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_open").With(
		slog.String("doc", docPath),
	)
	if strings.TrimSpace(docPath) == "" {
		return nil, errors.New("document path is required")
	}
	path := IndexPath(docPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return &Index{db: db, path: path, MaxPreviewBytes: DefaultMaxPreviewBytes}, nil
}

// Path is the database file location.
func (ix *Index) Path() string { return ix.path }

func (ix *Index) Close() error { return ix.db.Close() }

// SchemaVersion reads the stored schema number.
func (ix *Index) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := ix.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// SetMeta stores a key/value pair in the meta table.
func (ix *Index) SetMeta(ctx context.Context, key, value string) error {
	_, err := ix.db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// Meta returns the value for key, or "" when unset.
func (ix *Index) Meta(ctx context.Context, key string) (string, error) {
	var v string
	err := ix.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read meta %s: %w", key, err)
	}
	return v, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema so runMigrations can step it forward
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_elements_kind ON elements(kind);`,
				`CREATE INDEX IF NOT EXISTS idx_previews_access ON previews(last_access);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS elements (
			id          INTEGER PRIMARY KEY,
			page_id     TEXT    NOT NULL,
			page_index  INTEGER NOT NULL,
			element_id  TEXT    NOT NULL,
			kind        TEXT    NOT NULL,
			text        TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_elements_page ON elements(page_id);`,
		// external-content FTS so snippet() can read the source text
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_elements USING fts5(
			text,
			content='elements',
			content_rowid='id',
			tokenize = 'unicode61'
		);`,
		`CREATE TABLE IF NOT EXISTS previews (
			id           INTEGER PRIMARY KEY,
			page_id      TEXT    NOT NULL,
			w            INTEGER NOT NULL,
			h            INTEGER NOT NULL,
			hash         TEXT    NOT NULL,
			thumb_blob   BLOB    NOT NULL,
			size         INTEGER NOT NULL,
			updated_at   TEXT    NOT NULL,
			last_access  INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_previews_variant ON previews(page_id, w, h);`,
		`CREATE INDEX IF NOT EXISTS idx_elements_kind ON elements(kind);`,
		`CREATE INDEX IF NOT EXISTS idx_previews_access ON previews(last_access);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS elements_ai AFTER INSERT ON elements BEGIN
			INSERT INTO fts_elements(rowid, text) VALUES (new.id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS elements_ad AFTER DELETE ON elements BEGIN
			INSERT INTO fts_elements(fts_elements, rowid, text) VALUES ('delete', old.id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS elements_au AFTER UPDATE OF text ON elements BEGIN
			INSERT INTO fts_elements(fts_elements, rowid, text) VALUES ('delete', old.id, old.text);
			INSERT INTO fts_elements(rowid, text) VALUES (new.id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// Reindex replaces all element rows with the searchable content of doc:
// text blocks and graph expressions.
func (ix *Index) Reindex(ctx context.Context, doc domain.Document) error {
	rows, digest := indexRows(doc)
	if prev, err := ix.Meta(ctx, metaIndexedDigest); err == nil && prev == digest {
		return nil
	}
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM elements;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear elements: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO elements(page_id, page_index, element_id, kind, text) VALUES(?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, r := range rows {
		if _, err := ins.ExecContext(ctx, r.pageID, r.pageIndex, r.elementID, r.kind, r.text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert element: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return ix.SetMeta(ctx, metaIndexedDigest, digest)
}

// metaIndexedDigest names the meta row holding the digest of the rows last
// written by Reindex; an unchanged document is not rewritten.
const metaIndexedDigest = "indexed_digest"

type indexRow struct {
	pageID    string
	pageIndex int
	elementID string
	kind      string
	text      string
}

func indexRows(doc domain.Document) ([]indexRow, string) {
	var rows []indexRow
	h := sha256.New()
	for pi, p := range doc.Pages {
		for _, e := range p.Elements {
			text := searchableText(e)
			if text == "" {
				continue
			}
			r := indexRow{pageID: p.ID, pageIndex: pi, elementID: e.ID, kind: string(e.Kind), text: text}
			rows = append(rows, r)
			fmt.Fprintf(h, "%q %d %q %q %q\n", r.pageID, r.pageIndex, r.elementID, r.kind, r.text)
		}
	}
	return rows, hex.EncodeToString(h.Sum(nil))
}

func searchableText(e domain.Element) string {
	switch c := e.Content.(type) {
	case domain.TextContent:
		return strings.TrimSpace(c.Text)
	case domain.GraphContent:
		return strings.TrimSpace(c.Expression)
	}
	return ""
}

// Healthy runs a quick integrity check and probes the core table.
func (ix *Index) Healthy(ctx context.Context) bool {
	var chk string
	if err := ix.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.EqualFold(strings.TrimSpace(chk), "ok") {
		return false
	}
	_, err := ix.db.ExecContext(ctx, `SELECT 1 FROM elements LIMIT 1;`)
	return err == nil
}

// OpenOrRebuildIndex opens the sidecar and, when it cannot be opened or fails
// its health check, moves the broken file to .inkboard/backups and rebuilds
// it from doc. rebuilt reports whether that happened.
func OpenOrRebuildIndex(ctx context.Context, docPath string, doc domain.Document) (ix *Index, rebuilt bool, err error) {
	path := IndexPath(docPath)
	ix, err = OpenIndex(docPath)
	if err == nil && ix.Healthy(ctx) {
		return ix, false, nil
	}
	if ix != nil {
		_ = ix.Close()
	}
	applog.WithComponent("storage").Warn("index unusable, rebuilding", slog.String("path", path), slog.Any("err", err))
	backupIndexFile(path)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	ix, oerr := OpenIndex(docPath)
	if oerr != nil {
		return nil, false, fmt.Errorf("rebuild index: %w", oerr)
	}
	if rerr := ix.Reindex(ctx, doc); rerr != nil {
		_ = ix.Close()
		return nil, false, rerr
	}
	return ix, true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in .inkboard/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}
