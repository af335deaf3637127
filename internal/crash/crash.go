/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report plus an emergency copy of
// the open document before the process exits.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "inkboard/internal/log"
	"inkboard/internal/storage"
	"inkboard/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// EmergencySaver serializes the document being edited.
type EmergencySaver interface {
	EmergencySave() ([]byte, error)
}

// Target is what Recover rescues. Either field may be nil.
type Target struct {
	Files *storage.FileStore
	Saver EmergencySaver
}

// Recover captures a panic, logs an error with stacktrace,
// writes an error report file, and attempts a crash-safe copy
// of the document (if a target is provided).
//
// Recover must be deferred directly (defer crash.Recover(target)); called
// from inside another deferred closure it sees no panic.
func Recover(target *Target) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, err := writeReport(target, r, stack)
		if err != nil {
			l.Error("crash report not written", slog.Any("err", err))
		}
		if path, err := emergencyCopy(target); err != nil {
			l.Error("emergency copy failed", slog.Any("err", err))
		} else if path != "" {
			l.Info("emergency copy written", slog.String("path", path))
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		// Exit with a non-zero code to indicate failure in CLI context.
		exitFn(2)
	}
}

// Guard runs fn with Recover deferred on target. Fields of target set while
// fn runs are seen by Recover.
func Guard(target *Target, fn func()) {
	defer Recover(target)
	fn()
}

// emergencyCopy writes the saver's bytes next to the document as
// <name>.crash-<stamp>.json. It returns "" when there is nothing to save.
func emergencyCopy(target *Target) (string, error) {
	if target == nil || target.Saver == nil || target.Files == nil {
		return "", nil
	}
	data, err := target.Saver.EmergencySave()
	if err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return target.Files.WriteCopy("crash-"+time.Now().Format("20060102-150405"), data)
}

func writeReport(target *Target, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if target != nil && target.Files != nil {
		dir = target.Files.BackupsDir()
		_ = os.MkdirAll(dir, 0o755)
	}
	stamp := time.Now().Format("20060102-150405")
	fname := fmt.Sprintf("crash-%s.log", stamp)
	path := filepath.Join(dir, fname)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Inkboard Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if target != nil && target.Files != nil {
		_, _ = fmt.Fprintf(&buf, "Document: %s\n", target.Files.Path)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()
	return path, nil
}
