/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package autosave

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	applog "inkboard/internal/log"
)

type recorder struct {
	mu      sync.Mutex
	calls   int32
	fail    error
	active  int32
	overlap bool
}

func (r *recorder) save(ctx context.Context) error {
	if atomic.AddInt32(&r.active, 1) > 1 {
		r.mu.Lock()
		r.overlap = true
		r.mu.Unlock()
	}
	defer atomic.AddInt32(&r.active, -1)
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&r.calls, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fail
}

func (r *recorder) count() int { return int(atomic.LoadInt32(&r.calls)) }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestBurstCoalescesIntoOneWrite(t *testing.T) {
	r := &recorder{}
	s := New(80*time.Millisecond, r.save, WithLogger(applog.Discard()))
	for i := 0; i < 10; i++ {
		s.MarkDirty()
		time.Sleep(5 * time.Millisecond)
	}
	if r.count() != 0 {
		t.Fatalf("write happened inside the quiet window")
	}
	waitFor(t, func() bool { return !s.Pending() })
	time.Sleep(100 * time.Millisecond)
	if r.count() != 1 {
		t.Fatalf("expected exactly one write, got %d", r.count())
	}
}

func TestFlushWritesImmediately(t *testing.T) {
	r := &recorder{}
	s := New(time.Hour, r.save, WithLogger(applog.Discard()))
	if err := s.Flush(context.Background()); err != nil || r.count() != 0 {
		t.Fatalf("flush of clean scheduler should not write")
	}
	s.MarkDirty()
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if r.count() != 1 || s.Pending() {
		t.Fatalf("expected one write and clean state, got %d pending=%v", r.count(), s.Pending())
	}
}

func TestFailedWriteStaysDirtyAndRetries(t *testing.T) {
	r := &recorder{fail: errors.New("disk full")}
	s := New(time.Hour, r.save, WithLogger(applog.Discard()))
	s.MarkDirty()
	if err := s.Flush(context.Background()); err == nil {
		t.Fatalf("expected flush error")
	}
	if !s.Pending() || s.LastError() == nil {
		t.Fatalf("failed write must keep the document dirty")
	}
	r.mu.Lock()
	r.fail = nil
	r.mu.Unlock()
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if s.Pending() || s.LastError() != nil || s.Writes() != 1 {
		t.Fatalf("retry should succeed: pending=%v err=%v writes=%d", s.Pending(), s.LastError(), s.Writes())
	}
}

func TestCloseFlushesAndStops(t *testing.T) {
	r := &recorder{}
	s := New(time.Hour, r.save, WithLogger(applog.Discard()))
	s.MarkDirty()
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	s.MarkDirty()
	if s.Pending() || r.count() != 1 {
		t.Fatalf("close should write once and ignore later changes")
	}
}

func TestWritesNeverOverlap(t *testing.T) {
	r := &recorder{}
	s := New(time.Millisecond, r.save, WithLogger(applog.Discard()))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s.MarkDirty()
				if j%5 == 0 {
					_ = s.Flush(context.Background())
				}
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()
	_ = s.Close(context.Background())
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.overlap {
		t.Fatalf("two writes ran concurrently")
	}
}

func TestTimerRetriesFailedWriteWithoutNewEdits(t *testing.T) {
	r := &recorder{fail: errors.New("disk full")}
	s := New(20*time.Millisecond, r.save, WithLogger(applog.Discard()))
	defer func() { _ = s.Close(context.Background()) }()
	s.MarkDirty()
	waitFor(t, func() bool { return r.count() >= 1 })
	r.mu.Lock()
	r.fail = nil
	r.mu.Unlock()
	waitFor(t, func() bool { return !s.Pending() })
	if s.Writes() != 1 || s.LastError() != nil {
		t.Fatalf("writes=%d lastErr=%v", s.Writes(), s.LastError())
	}
}

func TestStopDropsPendingWrite(t *testing.T) {
	r := &recorder{}
	s := New(10*time.Millisecond, r.save, WithLogger(applog.Discard()))
	s.MarkDirty()
	s.Stop()
	time.Sleep(40 * time.Millisecond)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	s.MarkDirty()
	if r.count() != 0 {
		t.Fatalf("stopped scheduler wrote %d times", r.count())
	}
}
