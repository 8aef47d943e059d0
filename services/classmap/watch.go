// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last write
// before reloading.
const DefaultDebounce = 250 * time.Millisecond

// ErrNoDataFile indicates Watch was called without a configured data file.
var ErrNoDataFile = errors.New("no data file configured")

// Watch reloads the data file whenever it changes until ctx is done.
//
// Description:
//
//	Watches the file's directory rather than the file itself so that
//	editors which replace the file by rename are followed. Bursts of
//	events are coalesced by debounce. A failed reload is logged and the
//	previous model keeps serving.
//
// Inputs:
//
//	ctx - Stops the watcher when done.
//	debounce - Quiet period before reloading. Non-positive uses DefaultDebounce.
//
// Outputs:
//
//	error - ErrNoDataFile, or a watcher setup error. Nil when ctx ends.
func (s *Service) Watch(ctx context.Context, debounce time.Duration) error {
	path := s.cfg.DataFile
	if path == "" {
		return ErrNoDataFile
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving data file: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	s.logger.Info("watching data file", slog.String("path", abs))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			if err := s.LoadFile(path); err != nil {
				reloadsTotal.WithLabelValues("failed").Inc()
				s.logger.Warn("reload failed, keeping previous model",
					slog.String("path", path),
					slog.String("error", err.Error()))
				continue
			}
			reloadsTotal.WithLabelValues("reloaded").Inc()
		}
	}
}
