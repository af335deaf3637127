/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package autosave debounces document writes: a burst of changes produces a
// single write once the document has been quiet for the configured delay.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	applog "inkboard/internal/log"
)

// DefaultDelay is the quiet window used when New receives a non-positive delay.
const DefaultDelay = time.Second

// SaveFunc performs one write of the current document.
type SaveFunc func(ctx context.Context) error

// Scheduler owns a single timer. Every MarkDirty moves the deadline; when the
// timer fires and no newer signal arrived in between, one write runs.
// Writes never overlap.
type Scheduler struct {
	delay time.Duration
	save  SaveFunc
	log   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64 // bumped by every MarkDirty
	dirty   bool
	closed  bool
	stopped bool
	lastErr error
	writes  int

	writeMu sync.Mutex // serializes save calls
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for write failures.
func WithLogger(l *slog.Logger) Option { return func(s *Scheduler) { s.log = l } }

func New(delay time.Duration, save SaveFunc, opts ...Option) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	s := &Scheduler{delay: delay, save: save}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = applog.WithComponent("autosave")
	}
	return s
}

// MarkDirty records a change and restarts the quiet window. It never blocks
// on a write. Calls after Close are ignored.
func (s *Scheduler) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.dirty = true
	s.gen++
	s.armLocked()
}

func (s *Scheduler) armLocked() {
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen || !s.dirty {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	if err := s.write(context.Background(), gen); err != nil {
		s.log.Error("autosave failed; will retry", slog.Any("err", err))
		s.mu.Lock()
		// a newer MarkDirty already armed its own window
		if !s.closed && gen == s.gen {
			s.armLocked()
		}
		s.mu.Unlock()
	}
}

// write runs one save. The dirty flag is cleared only when no MarkDirty
// arrived while the write was in flight, so a change made during a write is
// picked up by the next window.
func (s *Scheduler) write(ctx context.Context, gen uint64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.save(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		return err
	}
	s.writes++
	if s.gen == gen {
		s.dirty = false
	}
	return nil
}

// Flush cancels any pending window and writes immediately if dirty.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	if !s.dirty || s.stopped {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	s.mu.Unlock()
	if err := s.write(ctx, gen); err != nil {
		s.log.Error("flush failed", slog.Any("err", err))
		return err
	}
	return nil
}

// Close flushes pending changes and stops the scheduler. Later MarkDirty
// calls are ignored.
func (s *Scheduler) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return err
}

// Stop ends autosaving without writing. Pending changes stay pending and
// later Flush and Close calls write nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Pending reports whether there are changes not yet written.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// LastError is the result of the most recent write attempt.
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Writes counts successful writes.
func (s *Scheduler) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
