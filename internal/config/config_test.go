/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points the config file into a temp dir so the developer's own
// config never leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigFile, path)
	return path
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Canvas.PageWidth != 794 || cfg.Canvas.PageHeight != 1123 || cfg.History.Depth != 20 || !cfg.Index.Enabled {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if cfg.Autosave.Debounce() != time.Second {
		t.Fatalf("debounce = %v", cfg.Autosave.Debounce())
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := isolate(t)
	cfg := Defaults()
	cfg.Canvas.PageWidth = 1000
	cfg.Autosave.DebounceMs = 250
	cfg.Index.Enabled = false
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Canvas.PageWidth != 1000 || got.Autosave.Debounce() != 250*time.Millisecond || got.Index.Enabled {
		t.Fatalf("round trip lost values: %#v", got)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("history:\n  depth: 5\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.History.Depth != 5 || !cfg.Index.Enabled || cfg.Canvas.PageHeight != 1123 {
		t.Fatalf("partial file should only change history.depth: %#v", cfg)
	}
}

func TestBrokenFileIsReported(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("canvas: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.Canvas.PageWidth != 794 {
		t.Fatalf("defaults expected on error: %#v", cfg.Canvas)
	}
}

func TestEnvOverridesCanvasAndAutosave(t *testing.T) {
	isolate(t)
	t.Setenv(EnvPageWidth, "500")
	t.Setenv(EnvPageHeight, "bogus")
	t.Setenv(EnvAutosaveMs, "40")
	t.Setenv(EnvHistoryDepth, "3")
	t.Setenv(EnvBackupsKeep, "2")
	t.Setenv(EnvIndexEnabled, "off")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Canvas.PageWidth != 500 || cfg.Canvas.PageHeight != 1123 {
		t.Fatalf("canvas = %#v", cfg.Canvas)
	}
	if cfg.Autosave.DebounceMs != 40 || cfg.Autosave.KeepBackups != 2 || cfg.History.Depth != 3 || cfg.Index.Enabled {
		t.Fatalf("overrides not applied: %#v", cfg)
	}
	if env, ok := EnvOverrideFor("canvas.page_width"); !ok || env != EnvPageWidth {
		t.Fatalf("EnvOverrideFor(canvas.page_width) = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("logging.file"); ok {
		t.Fatalf("logging.file is not overridden")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = " DEBUG "
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/ink.log"
	src.Logging.RotateMB = 20
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/ink.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
	opts := dst.Logging.LogOptions()
	if opts.Level != "debug" || !opts.AddSource || opts.File != "/tmp/ink.log" || opts.Rotate.MaxSizeMB != 20 {
		t.Fatalf("log options = %#v", opts)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/var/tmp/ink.log")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/var/tmp/ink.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}
