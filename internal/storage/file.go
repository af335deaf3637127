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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	applog "inkboard/internal/log"
)

const (
	BackupsDirName = "backups"
	// DefaultKeepBackups bounds the number of timestamped backups per document.
	DefaultKeepBackups = 10
	backupStamp        = "20060102-150405.000"
)

// FileStore persists one document file. Every write first copies the
// previous file into backups/ and then replaces the document through a temp
// file and rename, so a crash leaves either the old or the new bytes.
type FileStore struct {
	Path        string
	KeepBackups int

	mu       sync.Mutex
	lastHash [sha256.Size]byte
}

// NewFileStore returns a store for path. keep <= 0 selects DefaultKeepBackups.
func NewFileStore(path string, keep int) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("document path is required")
	}
	if keep <= 0 {
		keep = DefaultKeepBackups
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve document path: %w", err)
	}
	return &FileStore{Path: abs, KeepBackups: keep}, nil
}

// BackupsDir is <document dir>/backups.
func (s *FileStore) BackupsDir() string { return filepath.Join(filepath.Dir(s.Path), BackupsDirName) }

// Exists reports whether the document file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// Read returns the document bytes. When the file is missing or does not hold
// JSON, the newest backup that does is returned instead; fromBackup names it.
func (s *FileStore) Read() (data []byte, fromBackup string, err error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "read").With(slog.String("path", s.Path))
	b, rerr := os.ReadFile(s.Path)
	if rerr == nil && json.Valid(b) {
		s.remember(b)
		return b, "", nil
	}
	cause := rerr
	if cause == nil {
		cause = errors.New("document is not valid JSON")
	}
	bb, bpath, berr := s.latestBackup()
	if berr != nil {
		if rerr != nil {
			return nil, "", fmt.Errorf("read document: %w; backup attempt: %v", cause, berr)
		}
		// unreadable but present: hand the bytes to the decoder, which degrades
		return b, "", nil
	}
	l.Warn("document unreadable, using backup", slog.String("backup", bpath), slog.Any("err", cause))
	return bb, bpath, nil
}

// Write replaces the document with data.
func (s *FileStore) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("ensure document dir: %w", err)
	}
	if _, statErr := os.Stat(s.Path); statErr == nil {
		bdir := s.BackupsDir()
		if err := os.MkdirAll(bdir, 0o755); err != nil {
			return fmt.Errorf("ensure backups dir: %w", err)
		}
		bname := fmt.Sprintf("%s.%s.bak", filepath.Base(s.Path), time.Now().Format(backupStamp))
		if cerr := copyFile(s.Path, filepath.Join(bdir, bname)); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
		if perr := s.pruneBackups(); perr != nil {
			applog.WithComponent("storage").Warn("prune backups failed", slog.Any("err", perr))
		}
	}
	if err := replaceFile(s.Path, data); err != nil {
		return err
	}
	s.lastHash = sha256.Sum256(data)
	return nil
}

// WriteCopy writes data next to the document as <name>.<suffix>.json without
// touching the document or its backups. It returns the written path.
func (s *FileStore) WriteCopy(suffix string, data []byte) (string, error) {
	ext := filepath.Ext(s.Path)
	base := strings.TrimSuffix(s.Path, ext)
	if ext == "" {
		ext = ".json"
	}
	p := fmt.Sprintf("%s.%s%s", base, suffix, ext)
	if err := replaceFile(p, data); err != nil {
		return "", err
	}
	return p, nil
}

// Backups lists backup files for this document, oldest first.
func (s *FileStore) Backups() ([]string, error) {
	ents, err := os.ReadDir(s.BackupsDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(s.Path) + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(s.BackupsDir(), name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

// WroteLast reports whether data equals the bytes this store last read or
// wrote. The watcher uses it to ignore its own writes.
func (s *FileStore) WroteLast(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sha256.Sum256(data) == s.lastHash
}

func (s *FileStore) remember(data []byte) {
	h := sha256.Sum256(data)
	s.mu.Lock()
	s.lastHash = h
	s.mu.Unlock()
}

func (s *FileStore) pruneBackups() error {
	all, err := s.Backups()
	if err != nil {
		return err
	}
	for len(all) > s.KeepBackups {
		if err := os.Remove(all[0]); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		all = all[1:]
	}
	return nil
}

func (s *FileStore) latestBackup() ([]byte, string, error) {
	all, err := s.Backups()
	if err != nil {
		return nil, "", err
	}
	for i := len(all) - 1; i >= 0; i-- {
		b, err := os.ReadFile(all[i])
		if err == nil && json.Valid(b) {
			return b, all[i], nil
		}
	}
	return nil, "", errors.New("no usable backups found")
}

// replaceFile writes to a temp file in the same directory, then renames it
// over path.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp document: %w", werr)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		// Windows refuses to rename over an existing file
		_ = os.Remove(path)
		if rerr2 := os.Rename(temp, path); rerr2 != nil {
			_ = os.Remove(temp)
			return fmt.Errorf("replace document: %w", rerr)
		}
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
