/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"inkboard/internal/canvas"
	"inkboard/internal/config"
	"inkboard/internal/crash"
	"inkboard/internal/domain"
	"inkboard/internal/export"
	applog "inkboard/internal/log"
	"inkboard/internal/raster"
	"inkboard/internal/storage"
	"inkboard/internal/vector"
	"inkboard/internal/version"
)

func usage() {
	fmt.Println("Inkboard canvas documents")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  inkboard version|-v|--version               Show version")
	fmt.Println("  inkboard new <file>                         Create an empty document")
	fmt.Println("  inkboard info <file>                        Print a document summary")
	fmt.Println("  inkboard sanitize <file>                    Repair inconsistent strokes and save if needed")
	fmt.Println("  inkboard migrate <file>                     Rewrite the document in the current format")
	fmt.Println("  inkboard validate <file>                    Check the file against the current schema")
	fmt.Println("  inkboard thumbnail <file> <page> <out.png> [width]")
	fmt.Println("                                              Render a page thumbnail")
	fmt.Println("  inkboard search <file> <text>               Full-text search over text and graph elements")
	fmt.Println("  inkboard export <file> <outdir> [web|print] [pdf,png,cbz]")
	fmt.Println("                                              Export pages with a preset")
	fmt.Println("  inkboard watch <file>                       Report external changes until interrupted")
}

// session bundles the pieces opened for one document.
type session struct {
	files  *storage.FileStore
	store  *canvas.Store
	index  *storage.Index
	images *raster.Decoder
	rep    canvas.LoadReport
}

func (s *session) close(ctx context.Context) error {
	err := s.store.Close(ctx)
	if s.index != nil {
		err = errors.Join(err, s.index.Close())
	}
	s.images.Close()
	return err
}

// preload decodes every image payload of the document before rendering.
func (s *session) preload(ctx context.Context) error {
	return s.images.Wait(ctx, raster.Sources(s.store.Document().Pages...)...)
}

func storeOptions(cfg config.AppConfig, files *storage.FileStore) canvas.Options {
	return canvas.Options{
		Config: canvas.Config{
			PageSize:     vector.Size{W: cfg.Canvas.PageWidth, H: cfg.Canvas.PageHeight},
			Debounce:     cfg.Autosave.Debounce(),
			HistoryDepth: cfg.History.Depth,
		},
		Writer: files,
		Images: raster.SyncImages{BaseDir: filepath.Dir(files.Path)},
	}
}

// open reads and loads a document. With withIndex the sidecar index is
// opened (rebuilt when damaged) and wired into the store. A readOnly session
// never writes the document, even when loading repaired it.
func open(ctx context.Context, cfg config.AppConfig, path string, withIndex, readOnly bool, target *crash.Target) (*session, error) {
	files, err := storage.NewFileStore(path, cfg.Autosave.KeepBackups)
	if err != nil {
		return nil, err
	}
	target.Files = files
	data, fromBackup, err := files.Read()
	if err != nil {
		return nil, err
	}
	l := applog.WithComponent("cli")
	if fromBackup != "" {
		l.WarnContext(ctx, "document restored from backup", slog.String("backup", fromBackup))
	}
	opts := storeOptions(cfg, files)
	s := &session{files: files, images: raster.NewDecoder(runtime.NumCPU(), filepath.Dir(files.Path), nil)}
	opts.Images = s.images
	if withIndex && cfg.Index.Enabled {
		doc, _ := storage.Decode(data)
		ix, rebuilt, err := storage.OpenOrRebuildIndex(ctx, files.Path, doc)
		if err != nil {
			l.WarnContext(ctx, "index unavailable", slog.Any("err", err))
		} else {
			if rebuilt {
				l.InfoContext(ctx, "index rebuilt", slog.String("path", ix.Path()))
			}
			ix.MaxPreviewBytes = storage.MaxPreviewBytesFromEnv(cfg.Index.MaxPreviewBytes)
			opts.Search = ix
			opts.Previews = ix
			s.index = ix
		}
	}
	s.store = canvas.New(opts)
	target.Saver = s.store
	_, s.rep = s.store.Load(data)
	if readOnly {
		s.store.Discard()
	}
	return s, nil
}

func fail(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func need(args []string, n int, what string) {
	if len(args) < n {
		fmt.Println(what)
		usage()
		os.Exit(2)
	}
}

func main() {
	cfg, cfgErr := config.Load()
	applog.Init(cfg.Logging.LogOptions())
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not fully loaded", slog.Any("err", cfgErr))
	}
	var target crash.Target
	crash.Guard(&target, func() { run(cfg, l, os.Args, &target) })
}

// run dispatches one command. Panics reach crash.Recover through Guard.
func run(cfg config.AppConfig, l *slog.Logger, args []string, target *crash.Target) {
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	ctx := context.Background()
	if len(args) > 2 {
		ctx = applog.ContextWithDocument(ctx, args[2])
	}

	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("Inkboard")
		fmt.Println(version.String())
	case "new":
		need(args, 3, "new requires <file>")
		files, err := storage.NewFileStore(args[2], cfg.Autosave.KeepBackups)
		if err != nil {
			fail(l, "new failed", err)
		}
		if files.Exists() {
			fail(l, "new failed", fmt.Errorf("%s already exists", files.Path))
		}
		store := canvas.New(storeOptions(cfg, files))
		if err := files.Write(ctx, store.Save()); err != nil {
			fail(l, "new failed", err)
		}
		_ = store.Close(ctx)
		fmt.Println("Created document at", files.Path)
	case "info":
		need(args, 3, "info requires <file>")
		s, err := open(ctx, cfg, args[2], false, true, target)
		if err != nil {
			fail(l, "open failed", err)
		}
		printInfo(s)
		_ = s.close(ctx)
	case "sanitize", "migrate":
		need(args, 3, args[1]+" requires <file>")
		s, err := open(ctx, cfg, args[2], true, false, target)
		if err != nil {
			fail(l, "open failed", err)
		}
		if s.rep.Decode.Malformed {
			fail(l, args[1]+" refused", fmt.Errorf("document is unreadable: %w", s.rep.Decode.Err))
		}
		for _, id := range s.rep.Sanitize.Repaired {
			fmt.Println("repaired stroke", id)
		}
		for _, id := range s.rep.Decode.Dropped {
			fmt.Println("dropped element", id)
		}
		switch {
		case args[1] == "migrate" && !s.rep.SaveScheduled:
			// rewrite anyway so the file gets the current formatting and saved_at
			if err := s.files.Write(ctx, s.store.Save()); err != nil {
				fail(l, "migrate failed", err)
			}
			fmt.Println("Document rewritten in format", version.DocumentFormat)
		case s.rep.SaveScheduled:
			if err := s.store.Flush(ctx); err != nil {
				fail(l, args[1]+" failed", err)
			}
			fmt.Printf("Saved (format %s, was %s)\n", version.DocumentFormat, s.rep.Decode.FromVersion)
		default:
			fmt.Println("Nothing to repair")
		}
		if err := s.close(ctx); err != nil {
			fail(l, "close failed", err)
		}
	case "validate":
		need(args, 3, "validate requires <file>")
		data, err := os.ReadFile(args[2])
		if err != nil {
			fail(l, "read failed", err)
		}
		if err := storage.ValidateDocument(data); err != nil {
			var se *storage.SchemaError
			if errors.As(err, &se) {
				for _, p := range se.Problems {
					fmt.Println(" -", p)
				}
				os.Exit(1)
			}
			fail(l, "validate failed", err)
		}
		fmt.Println("Document is valid")
	case "thumbnail":
		need(args, 5, "thumbnail requires <file> <page> <out.png>")
		page, err := strconv.Atoi(args[3])
		if err != nil {
			fail(l, "bad page number", err)
		}
		width := cfg.Index.ThumbnailWidth
		if len(args) > 5 {
			if width, err = strconv.Atoi(args[5]); err != nil {
				fail(l, "bad width", err)
			}
		}
		s, err := open(ctx, cfg, args[2], true, true, target)
		if err != nil {
			fail(l, "open failed", err)
		}
		if err := s.preload(ctx); err != nil {
			fail(l, "thumbnail failed", err)
		}
		png, err := s.store.Thumbnail(ctx, page-1, width)
		if err != nil {
			fail(l, "thumbnail failed", err)
		}
		if err := os.WriteFile(args[4], png, 0o644); err != nil {
			fail(l, "write thumbnail failed", err)
		}
		_ = s.close(ctx)
		fmt.Println("Wrote", args[4])
	case "search":
		need(args, 4, "search requires <file> and <text>")
		cfg.Index.Enabled = true
		s, err := open(ctx, cfg, args[2], true, true, target)
		if err != nil {
			fail(l, "open failed", err)
		}
		if s.index == nil {
			fail(l, "search failed", errors.New("index unavailable"))
		}
		if err := s.index.Reindex(ctx, s.store.Document()); err != nil {
			fail(l, "reindex failed", err)
		}
		res, err := s.index.Search(ctx, storage.SearchQuery{Text: strings.Join(args[3:], " "), Limit: 50})
		if err != nil {
			fail(l, "search failed", err)
		}
		for _, r := range res {
			fmt.Printf("page %d  %-9s %s  %s\n", r.PageIndex+1, r.Kind, r.ElementID, r.Snippet)
		}
		fmt.Printf("%d result(s)\n", len(res))
		_ = s.close(ctx)
	case "export":
		need(args, 4, "export requires <file> and <outdir>")
		opt := export.BatchOptions{Preset: export.PresetWeb, OutDir: args[3]}
		if len(args) > 4 {
			opt.Preset = export.PresetName(args[4])
		}
		if len(args) > 5 {
			opt.Formats = strings.Split(args[5], ",")
		}
		s, err := open(ctx, cfg, args[2], false, true, target)
		if err != nil {
			fail(l, "open failed", err)
		}
		if s.rep.Decode.Malformed {
			fail(l, "export refused", fmt.Errorf("document is unreadable: %w", s.rep.Decode.Err))
		}
		opt.Base = strings.TrimSuffix(filepath.Base(s.files.Path), filepath.Ext(s.files.Path))
		if err := s.preload(ctx); err != nil {
			fail(l, "export failed", err)
		}
		opt.Options.Images = s.images
		written, err := export.BatchExport(s.store.Document(), s.store.PageSize(), opt)
		for _, w := range written {
			fmt.Println("Wrote", w)
		}
		if err != nil {
			fail(l, "export failed", err)
		}
		_ = s.close(ctx)
	case "watch":
		need(args, 3, "watch requires <file>")
		files, err := storage.NewFileStore(args[2], cfg.Autosave.KeepBackups)
		if err != nil {
			fail(l, "watch failed", err)
		}
		w, err := storage.Watch(files, 200*time.Millisecond, func(data []byte) {
			doc, rep := storage.Decode(data)
			n := 0
			for _, p := range doc.Pages {
				n += len(p.Elements)
			}
			fmt.Printf("%s changed: %d page(s), %d element(s), format %s\n", time.Now().Format(time.TimeOnly), len(doc.Pages), n, rep.FromVersion)
		})
		if err != nil {
			fail(l, "watch failed", err)
		}
		sig, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		fmt.Println("Watching", files.Path, "(Ctrl+C to stop)")
		<-sig.Done()
		stop()
		_ = w.Close()
	default:
		usage()
		os.Exit(2)
	}
}

func printInfo(s *session) {
	doc := s.store.Document()
	fmt.Println("Document:", s.files.Path)
	fmt.Printf("Format: %s", s.rep.Decode.FromVersion)
	if s.rep.Decode.FromVersion != version.DocumentFormat {
		fmt.Printf(" (current is %s)", version.DocumentFormat)
	}
	fmt.Println()
	if s.rep.Decode.Malformed {
		fmt.Println("Unreadable:", s.rep.Decode.Err)
	}
	if !doc.SavedAt.IsZero() {
		fmt.Println("Saved:", doc.SavedAt.Local().Format(time.RFC3339))
	}
	fmt.Printf("Pages: %d (current %d)\n", len(doc.Pages), doc.PageIndex()+1)
	for i, p := range doc.Pages {
		kinds := map[domain.Kind]int{}
		for _, e := range p.Elements {
			kinds[e.Kind]++
		}
		parts := make([]string, 0, len(kinds))
		for k, n := range kinds {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
		}
		sort.Strings(parts)
		fmt.Printf("  %d. %s  %d element(s) %s\n", i+1, p.ID, len(p.Elements), strings.Join(parts, " "))
	}
	if n := len(s.rep.Sanitize.Repaired); n > 0 {
		fmt.Printf("Strokes needing repair: %d\n", n)
	}
	if n := len(s.rep.Decode.Dropped); n > 0 {
		fmt.Printf("Unresolvable elements: %d\n", n)
	}
	if b, err := s.files.Backups(); err == nil {
		fmt.Printf("Backups: %d\n", len(b))
	}
}
