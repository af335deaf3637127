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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "inkboard/internal/log"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type CanvasConfig struct {
	PageWidth  float64 `yaml:"page_width"`
	PageHeight float64 `yaml:"page_height"`
}

type AutosaveConfig struct {
	DebounceMs  int `yaml:"debounce_ms"`
	KeepBackups int `yaml:"keep_backups"`
}

type HistoryConfig struct {
	Depth int `yaml:"depth"`
}

// IndexConfig controls the per-document SQLite sidecar (search and thumbnails).
type IndexConfig struct {
	Enabled         bool  `yaml:"enabled"`
	MaxPreviewBytes int64 `yaml:"max_preview_bytes"`
	ThumbnailWidth  int   `yaml:"thumbnail_width"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
	// RotateMB and RotateKeep bound the file sink; 0 keeps the logger defaults.
	RotateMB   int `yaml:"rotate_mb,omitempty"`
	RotateKeep int `yaml:"rotate_keep,omitempty"`
}

type AppConfig struct {
	ConfigVersion int            `yaml:"config_version"`
	Canvas        CanvasConfig   `yaml:"canvas"`
	Autosave      AutosaveConfig `yaml:"autosave"`
	History       HistoryConfig  `yaml:"history"`
	Index         IndexConfig    `yaml:"index"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Canvas:        CanvasConfig{PageWidth: 794, PageHeight: 1123},
		Autosave:      AutosaveConfig{DebounceMs: 1000, KeepBackups: 10},
		History:       HistoryConfig{Depth: 20},
		Index:         IndexConfig{Enabled: true, MaxPreviewBytes: 64 * 1024 * 1024, ThumbnailWidth: 256},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile   = "INK_CONFIG"
	EnvPageWidth    = "INK_PAGE_WIDTH"
	EnvPageHeight   = "INK_PAGE_HEIGHT"
	EnvAutosaveMs   = "INK_AUTOSAVE_MS"
	EnvHistoryDepth = "INK_HISTORY_DEPTH"
	EnvBackupsKeep  = "INK_BACKUPS_KEEP"
	EnvIndexEnabled = "INK_INDEX_ENABLED"
	// EnvLogLevel Logging envs
	EnvLogLevel  = applog.EnvLevel
	EnvLogFormat = applog.EnvFormat
	EnvLogSource = applog.EnvSource
	EnvLogFile   = applog.EnvFile
)

// ConfigPath returns the per-user config file path. INK_CONFIG replaces it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Inkboard")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Inkboard")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "inkboard")
		} else if home := os.Getenv("HOME"); home != "" {
			base = filepath.Join(home, ".config", "inkboard")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present) over the defaults and merges
// environment overrides. A broken file is reported but the returned config is
// still usable.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	var fileErr error
	if data, err := os.ReadFile(path); err == nil {
		fileCfg := Defaults()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			fileErr = fmt.Errorf("parse %s: %w", path, err)
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, fileErr
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// mergeInto copies valid file values over dst. Non-positive sizes are ignored.
func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Canvas.PageWidth > 0 {
		dst.Canvas.PageWidth = src.Canvas.PageWidth
	}
	if src.Canvas.PageHeight > 0 {
		dst.Canvas.PageHeight = src.Canvas.PageHeight
	}
	if src.Autosave.DebounceMs > 0 {
		dst.Autosave.DebounceMs = src.Autosave.DebounceMs
	}
	if src.Autosave.KeepBackups > 0 {
		dst.Autosave.KeepBackups = src.Autosave.KeepBackups
	}
	if src.History.Depth > 0 {
		dst.History.Depth = src.History.Depth
	}
	dst.Index.Enabled = src.Index.Enabled
	if src.Index.MaxPreviewBytes > 0 {
		dst.Index.MaxPreviewBytes = src.Index.MaxPreviewBytes
	}
	if src.Index.ThumbnailWidth > 0 {
		dst.Index.ThumbnailWidth = src.Index.ThumbnailWidth
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
	if src.Logging.RotateMB > 0 {
		dst.Logging.RotateMB = src.Logging.RotateMB
	}
	if src.Logging.RotateKeep > 0 {
		dst.Logging.RotateKeep = src.Logging.RotateKeep
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvPageWidth)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Canvas.PageWidth = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvPageHeight)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Canvas.PageHeight = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvAutosaveMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Autosave.DebounceMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryDepth)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.History.Depth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackupsKeep)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Autosave.KeepBackups = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvIndexEnabled)); v != "" {
		cfg.Index.Enabled = envBool(v)
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var overrideEnv = map[string]string{
	"canvas.page_width":     EnvPageWidth,
	"canvas.page_height":    EnvPageHeight,
	"autosave.debounce_ms":  EnvAutosaveMs,
	"autosave.keep_backups": EnvBackupsKeep,
	"history.depth":         EnvHistoryDepth,
	"index.enabled":         EnvIndexEnabled,
	"logging.level":         EnvLogLevel,
	"logging.format":        EnvLogFormat,
	"logging.source":        EnvLogSource,
	"logging.file":          EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideEnv[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Debounce is the autosave quiet window.
func (a AutosaveConfig) Debounce() time.Duration {
	if a.DebounceMs <= 0 {
		return time.Duration(Defaults().Autosave.DebounceMs) * time.Millisecond
	}
	return time.Duration(a.DebounceMs) * time.Millisecond
}

// LogOptions converts the logging section for log.Init.
func (l LoggingConfig) LogOptions() applog.Options {
	return applog.Options{
		Level:     l.Level,
		Format:    l.Format,
		AddSource: l.Source,
		File:      l.File,
		Rotate:    applog.Rotation{MaxSizeMB: l.RotateMB, MaxBackups: l.RotateKeep},
	}
}
