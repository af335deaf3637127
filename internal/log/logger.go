/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package log provides centralized slog-based logging for inkboard.
// Records carry the component and operation of the caller and, when the
// context holds one, the path of the document being worked on.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"inkboard/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization. Zero values fall back to the
// environment defaults of FromEnv: INFO, console output on stderr, no source.
type Options struct {
	Level     string // debug|info|warn|error
	Format    string // console|json
	AddSource bool
	// File enables a rotated JSON log next to the console output.
	File   string
	Rotate Rotation
	// Console replaces stderr as the console destination.
	Console io.Writer
}

// Rotation limits for the file sink. Zero fields use DefaultRotation.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var DefaultRotation = Rotation{MaxSizeMB: 5, MaxBackups: 5, MaxAgeDays: 14}

// Env var names read by FromEnv.
const (
	EnvLevel  = "INK_LOG_LEVEL"
	EnvFormat = "INK_LOG_FORMAT"
	EnvSource = "INK_LOG_SOURCE"
	EnvFile   = "INK_LOG_FILE"
)

var (
	mu      sync.RWMutex
	current *slog.Logger
	level   = new(slog.LevelVar)
)

// L returns the application logger. The first call without Init configures it
// from the environment.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	return Init(FromEnv())
}

// Init replaces the application logger and slog.Default.
func Init(opts Options) *slog.Logger {
	level.Set(parseLevel(opts.Level))
	hopts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}

	out := opts.Console
	if out == nil {
		out = os.Stderr
	}
	var sinks []slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		sinks = append(sinks, slog.NewJSONHandler(out, hopts))
	} else {
		sinks = append(sinks, newConsoleHandler(out, hopts))
	}
	if f := strings.TrimSpace(opts.File); f != "" {
		sinks = append(sinks, slog.NewJSONHandler(rotating(f, opts.Rotate), hopts))
	}

	logger := slog.New(&rootHandler{sinks: sinks}).With(
		slog.String("app", "inkboard"),
		slog.String("ver", version.Version),
	)
	mu.Lock()
	current = logger
	mu.Unlock()
	slog.SetDefault(logger)
	return logger
}

func rotating(path string, r Rotation) io.Writer {
	d := DefaultRotation
	if r.MaxSizeMB > 0 {
		d.MaxSizeMB = r.MaxSizeMB
	}
	if r.MaxBackups > 0 {
		d.MaxBackups = r.MaxBackups
	}
	if r.MaxAgeDays > 0 {
		d.MaxAgeDays = r.MaxAgeDays
	}
	return &lj.Logger{Filename: path, MaxSize: d.MaxSizeMB, MaxBackups: d.MaxBackups, MaxAge: d.MaxAgeDays, Compress: true}
}

// SetLevel changes the minimum level of the running logger.
func SetLevel(s string) { level.Set(parseLevel(s)) }

// FromEnv builds Options from environment variables.
func FromEnv() Options {
	return Options{
		Level:     getenv(EnvLevel, "info"),
		Format:    getenv(EnvFormat, "console"),
		AddSource: strings.EqualFold(getenv(EnvSource, "false"), "true"),
		File:      os.Getenv(EnvFile),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

// Discard returns a logger that drops everything.
func Discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

type docKey struct{}

// ContextWithDocument stores the document path so every record logged with
// the returned context carries it as "doc".
func ContextWithDocument(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, docKey{}, path)
}

// DocumentFrom returns the path stored by ContextWithDocument.
func DocumentFrom(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	p, ok := ctx.Value(docKey{}).(string)
	return p, ok && p != ""
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
