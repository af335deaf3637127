/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package raster turns page content into pixels: it decodes embedded image
// payloads off the caller's goroutine and renders pages and selections into
// RGBA images for thumbnails and merges.
package raster

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"inkboard/internal/domain"
	applog "inkboard/internal/log"
)

// DecodeSource decodes an element src: a data URL, raw base64 image bytes, or
// a file path (relative paths resolve against baseDir).
func DecodeSource(src, baseDir string) (image.Image, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, errors.New("empty image source")
	}
	if strings.HasPrefix(src, "data:") {
		comma := strings.IndexByte(src, ',')
		if comma < 0 || !strings.Contains(src[:comma], ";base64") {
			return nil, errors.New("unsupported data URL")
		}
		return decodeBase64(src[comma+1:])
	}
	if img, err := decodeBase64(src); err == nil {
		return img, nil
	}
	p := src
	if !filepath.IsAbs(p) && baseDir != "" {
		p = filepath.Join(baseDir, p)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("image source is neither base64 nor a readable file: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, err)
	}
	return img, nil
}

func decodeBase64(s string) (image.Image, error) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, fmt.Errorf("base64: %w", err)
		}
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// State of a payload in the Decoder cache.
type State int

const (
	Missing State = iota // never requested
	Pending              // queued or decoding
	Ready
	Failed
)

type entry struct {
	state State
	img   image.Image
	err   error
	done  chan struct{} // closed once state leaves Pending
}

// ReadyFunc is called from a worker goroutine once a payload is decoded.
type ReadyFunc func(src string, img image.Image, err error)

// Decoder decodes image payloads on a fixed pool of workers. Readers see
// Pending until the result is published and are expected to render a
// placeholder meanwhile. Decodes are never canceled.
type Decoder struct {
	baseDir string
	onReady ReadyFunc

	mu    sync.Mutex
	cache map[[sha256.Size]byte]*entry
	jobs  chan string
	wg    sync.WaitGroup
	log   *slog.Logger

	closeMu sync.RWMutex // held for reading while sending on jobs
	closed  bool
}

// NewDecoder starts workers (at least one). onReady may be nil.
func NewDecoder(workers int, baseDir string, onReady ReadyFunc) *Decoder {
	if workers < 1 {
		workers = 1
	}
	d := &Decoder{
		baseDir: baseDir,
		onReady: onReady,
		cache:   make(map[[sha256.Size]byte]*entry),
		jobs:    make(chan string, 64),
		log:     applog.WithComponent("raster"),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

func (d *Decoder) work() {
	defer d.wg.Done()
	for src := range d.jobs {
		img, err := DecodeSource(src, d.baseDir)
		d.mu.Lock()
		e := d.cache[key(src)]
		if err != nil {
			e.state, e.err = Failed, err
		} else {
			e.state, e.img = Ready, img
		}
		close(e.done)
		d.mu.Unlock()
		if err != nil {
			d.log.Warn("image decode failed", slog.Any("err", err))
		}
		if d.onReady != nil {
			d.onReady(src, img, err)
		}
	}
}

func key(src string) [sha256.Size]byte { return sha256.Sum256([]byte(src)) }

// Request returns the decoded image when available and otherwise queues the
// payload. It never blocks on decoding; it may block briefly when the queue
// is full.
func (d *Decoder) Request(src string) (image.Image, State) {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		img, st, _ := d.Lookup(src)
		return img, st
	}
	k := key(src)
	d.mu.Lock()
	if e, ok := d.cache[k]; ok {
		d.mu.Unlock()
		return e.img, e.state
	}
	d.cache[k] = &entry{state: Pending, done: make(chan struct{})}
	d.mu.Unlock()
	d.jobs <- src
	return nil, Pending
}

// Lookup reports the cached state without queueing anything.
func (d *Decoder) Lookup(src string) (image.Image, State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.cache[key(src)]
	if !ok {
		return nil, Missing, nil
	}
	return e.img, e.state, e.err
}

// Image implements ImageSource: ready images are returned, anything else is
// requested and reported as unavailable.
func (d *Decoder) Image(src string) (image.Image, bool) {
	img, st := d.Request(src)
	return img, st == Ready
}

// Wait requests every src and blocks until each one is decoded or failed.
// Payloads requested after Close are skipped.
func (d *Decoder) Wait(ctx context.Context, srcs ...string) error {
	for _, src := range srcs {
		d.Request(src)
	}
	for _, src := range srcs {
		d.mu.Lock()
		e := d.cache[key(src)]
		d.mu.Unlock()
		if e == nil {
			continue
		}
		select {
		case <-e.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Sources lists the distinct image payloads referenced by pages.
func Sources(pages ...domain.Page) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range pages {
		for _, e := range p.Elements {
			var src string
			switch c := e.Content.(type) {
			case domain.ImageContent:
				src = c.Src
			case domain.BitmapInkContent:
				src = c.Src
			}
			if src != "" && !seen[src] {
				seen[src] = true
				out = append(out, src)
			}
		}
	}
	return out
}

// Close stops accepting work and waits for in-flight decodes to finish.
func (d *Decoder) Close() {
	d.closeMu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.closeMu.Unlock()
	d.wg.Wait()
}

// SyncImages decodes on the calling goroutine. It is used by one-shot tools
// such as the CLI thumbnail command.
type SyncImages struct {
	BaseDir string
}

func (s SyncImages) Image(src string) (image.Image, bool) {
	img, err := DecodeSource(src, s.BaseDir)
	return img, err == nil
}
