// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package walker analyzes a Python project directory into a ProjectModel.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/classmap/services/classmap/ast"
	"github.com/AleutianAI/classmap/services/classmap/config"
	"github.com/AleutianAI/classmap/services/classmap/model"
)

// ErrInvalidRoot indicates the project root is missing or not a directory.
var ErrInvalidRoot = errors.New("invalid project root")

// Extractor turns one source file into its class records.
//
// *ast.PythonExtractor is the production implementation.
type Extractor interface {
	Extract(ctx context.Context, content []byte, module string) (model.ModuleClasses, error)
}

// Stats summarizes one Walk.
type Stats struct {
	// FilesSeen counts source files found under the root.
	FilesSeen int `json:"files_seen"`

	// FilesParsed counts files whose classes were merged into the model.
	FilesParsed int `json:"files_parsed"`

	// FilesSkipped counts files dropped for read or parse failures.
	FilesSkipped int `json:"files_skipped"`

	Modules int `json:"modules"`
	Classes int `json:"classes"`
	Methods int `json:"methods"`
	Calls   int `json:"calls"`

	Duration time.Duration `json:"duration_ns"`
}

// Option configures a Walk.
type Option func(*options)

type options struct {
	cfg       *config.Config
	extractor Extractor
	workers   int
	logger    *slog.Logger
}

// WithConfig uses cfg instead of loading classmap.config.yaml from the root.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.cfg = cfg
		}
	}
}

// WithExtractor replaces the extractor built from the configuration.
func WithExtractor(ex Extractor) Option {
	return func(o *options) {
		if ex != nil {
			o.extractor = ex
		}
	}
}

// WithWorkers overrides the configured number of concurrent parses.
// Non-positive values are ignored.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// sourceFile is one file selected for extraction.
type sourceFile struct {
	path   string
	module string
	size   int64
}

// fileResult is the outcome of extracting one sourceFile.
type fileResult struct {
	classes model.ModuleClasses
	ok      bool
}

// Walk analyzes every source file under root.
//
// Description:
//
//	Enumerates files recursively in lexical order, derives each file's
//	module path from its location relative to root, and extracts its
//	classes. Files that cannot be read or parsed are skipped and counted;
//	they never fail the walk. Files that parse but define no class still
//	get an empty entry. With more than one worker files are parsed
//	concurrently, but the result is merged by a single goroutine in
//	enumeration order and is identical to a sequential walk.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked between files.
//	root - The project directory.
//	opts - Optional configuration.
//
// Outputs:
//
//	model.ProjectModel - Module path to that module's classes.
//	*Stats - Counters for the walk. Non-nil whenever the model is.
//	error - Wraps ErrInvalidRoot, config.ErrInvalidConfig for an invalid
//	        WithConfig value, or a context error.
//
// Thread Safety: Safe for concurrent use; each call owns its state.
func Walk(ctx context.Context, root string, opts ...Option) (model.ProjectModel, *Stats, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, root)
	}
	// WalkDir does not descend a root that is itself a symlink.
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
	}

	if o.cfg != nil {
		if err := o.cfg.Validate(); err != nil {
			return nil, nil, err
		}
	} else {
		cfg, err := config.Load(root)
		if err != nil {
			o.logger.Warn("ignoring project config",
				slog.String("root", root),
				slog.String("error", err.Error()))
			cfg = config.Default()
		}
		o.cfg = cfg
	}
	if o.workers == 0 {
		o.workers = o.cfg.Workers
	}
	if o.extractor == nil {
		o.extractor = ast.NewPythonExtractor(
			ast.WithMaxFileSize(o.cfg.MaxFileSize),
			ast.WithMaxDepth(o.cfg.MaxDepth),
			ast.WithLogger(o.logger),
		)
	}

	ctx, span := startWalkSpan(ctx, root, o.workers)
	start := time.Now()

	pm, stats, err := walk(ctx, resolved, o)
	finishWalkSpan(span, start, stats, err)
	if err != nil {
		return nil, nil, err
	}

	o.logger.Info("project analyzed",
		slog.String("root", root),
		slog.Int("files_parsed", stats.FilesParsed),
		slog.Int("files_skipped", stats.FilesSkipped),
		slog.Int("classes", stats.Classes),
		slog.Duration("duration", stats.Duration))
	return pm, stats, nil
}

func walk(ctx context.Context, root string, o *options) (model.ProjectModel, *Stats, error) {
	start := time.Now()
	stats := &Stats{}

	files, err := collect(ctx, root, o)
	if err != nil {
		return nil, stats, err
	}
	stats.FilesSeen = len(files)

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = extractFile(gctx, o, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, fmt.Errorf("walk canceled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, fmt.Errorf("walk canceled: %w", err)
	}

	pm := make(model.ProjectModel, len(files))
	for i, f := range files {
		r := results[i]
		if !r.ok {
			stats.FilesSkipped++
			walkFilesTotal.WithLabelValues("skipped").Inc()
			continue
		}
		stats.FilesParsed++
		walkFilesTotal.WithLabelValues("parsed").Inc()
		pm[f.module] = r.classes
	}

	stats.Modules, stats.Classes, stats.Methods, stats.Calls = pm.Counts()
	stats.Duration = time.Since(start)
	return pm, stats, nil
}

// collect enumerates the source files under root. Unreadable entries below
// the root are skipped.
func collect(ctx context.Context, root string, o *options) ([]sourceFile, error) {
	files := make([]sourceFile, 0, 64)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			o.logger.Debug("skipping unreadable entry",
				slog.String("path", path),
				slog.String("error", walkErr.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && o.cfg.Excluded(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		ext := matchExtension(d.Name(), o.cfg.Extensions)
		if ext == "" {
			return nil
		}

		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}
		module, err := ModulePath(root, path, ext)
		if err != nil {
			return nil
		}
		files = append(files, sourceFile{path: path, module: module, size: size})
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("walk canceled: %w", ctxErr)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
	}
	return files, nil
}

// extractFile reads and extracts one file. Every failure is logged at debug
// and reported as a skip.
func extractFile(ctx context.Context, o *options, f sourceFile) fileResult {
	if f.size > o.cfg.MaxFileSize {
		o.logger.Debug("skipping oversized file",
			slog.String("path", f.path),
			slog.Int64("size_bytes", f.size))
		return fileResult{}
	}

	content, err := os.ReadFile(f.path)
	if err != nil {
		o.logger.Debug("skipping unreadable file",
			slog.String("path", f.path),
			slog.String("error", err.Error()))
		return fileResult{}
	}

	classes, err := o.extractor.Extract(ctx, content, f.module)
	if err != nil {
		o.logger.Debug("skipping unparseable file",
			slog.String("path", f.path),
			slog.String("module", f.module),
			slog.String("error", err.Error()))
		return fileResult{}
	}
	if classes == nil {
		classes = make(model.ModuleClasses)
	}
	return fileResult{classes: classes, ok: true}
}

// matchExtension returns the configured extension name ends with, or "".
func matchExtension(name string, exts []string) string {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return ext
		}
	}
	return ""
}

// ModulePath derives the dotted module path of a file under root.
//
// The path relative to root has its extension removed and its separators
// replaced by ".": "pkg/sub/mod.py" becomes "pkg.sub.mod".
func ModulePath(root, path, ext string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("relative path of %s: %w", path, err)
	}
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ext)
	return strings.ReplaceAll(rel, "/", "."), nil
}

// =============================================================================
// Observability
// =============================================================================

func startWalkSpan(ctx context.Context, root string, workers int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "walker.Walk",
		trace.WithAttributes(
			attribute.String("root", root),
			attribute.Int("workers", workers),
		),
	)
}

func finishWalkSpan(span trace.Span, start time.Time, stats *Stats, err error) {
	walkDuration.Observe(time.Since(start).Seconds())
	if stats != nil {
		span.SetAttributes(
			attribute.Int("files_seen", stats.FilesSeen),
			attribute.Int("files_parsed", stats.FilesParsed),
			attribute.Int("files_skipped", stats.FilesSkipped),
			attribute.Int("classes", stats.Classes),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
