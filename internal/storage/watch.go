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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	applog "inkboard/internal/log"
)

// ChangeHandler receives the new bytes of an externally modified document.
type ChangeHandler func(data []byte)

// Watcher reports modifications of a document file made by other processes.
// Writes done through the watched FileStore are recognized by content and
// ignored. Bursts of events are settled before the file is read.
type Watcher struct {
	store    *FileStore
	onChange ChangeHandler
	settle   time.Duration

	w      *fsnotify.Watcher
	log    *slog.Logger
	stopCh chan struct{}
	done   chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// Watch starts watching the directory of store.Path. fsnotify watches the
// directory so atomic rename-over writes are seen. settle <= 0 selects 100ms.
func Watch(store *FileStore, settle time.Duration, onChange ChangeHandler) (*Watcher, error) {
	if settle <= 0 {
		settle = 100 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(store.Path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(store.Path), err)
	}
	w := &Watcher{
		store:    store,
		onChange: onChange,
		settle:   settle,
		w:        fw,
		log:      applog.WithComponent("watch").With(slog.String("path", store.Path)),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.store.Path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", slog.Any("err", err))
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, w.check)
}

func (w *Watcher) check() {
	select {
	case <-w.stopCh:
		return
	default:
	}
	data, err := os.ReadFile(w.store.Path)
	if err != nil {
		// the file may be mid-replace; the next event retries
		w.log.Debug("read after change failed", slog.Any("err", err))
		return
	}
	if w.store.WroteLast(data) {
		return
	}
	w.store.remember(data)
	w.log.Info("document changed on disk", slog.Int("bytes", len(data)))
	if w.onChange != nil {
		w.onChange(data)
	}
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	select {
	case <-w.stopCh:
		return nil
	default:
	}
	close(w.stopCh)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	err := w.w.Close()
	<-w.done
	return err
}
