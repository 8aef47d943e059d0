// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads per-project analyzer settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up in the project root.
const FileName = "classmap.config.yaml"

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultWorkers parses files sequentially.
	DefaultWorkers = 1

	// MaxWorkers bounds the parse pool.
	MaxWorkers = 64

	// DefaultMaxFileSize is the per-file size limit (10MB).
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// DefaultMaxDepth bounds syntax-tree recursion per file.
	DefaultMaxDepth = 2048
)

// ErrInvalidConfig indicates the configuration file failed to decode or
// validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the analyzer settings for one project.
//
// Description:
//
//	Every field has a default, so an absent or partial file yields a usable
//	configuration. Fields missing from the file keep their default value.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	// Extensions are the source file suffixes analyzed, including the dot.
	Extensions []string `yaml:"extensions" validate:"required,min=1,dive,required,startswith=."`

	// ExcludeDirs are directory base names pruned from the walk.
	// Empty by default: every directory under the root is visited.
	ExcludeDirs []string `yaml:"exclude_dirs" validate:"dive,required,excludesall=/"`

	// Workers is the number of files parsed concurrently.
	Workers int `yaml:"workers" validate:"min=1,max=64"`

	// MaxFileSize is the largest file, in bytes, handed to the extractor.
	MaxFileSize int64 `yaml:"max_file_size" validate:"min=1"`

	// MaxDepth bounds syntax-tree recursion.
	MaxDepth int `yaml:"max_depth" validate:"min=1"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Extensions:  []string{".py"},
		ExcludeDirs: []string{},
		Workers:     DefaultWorkers,
		MaxFileSize: DefaultMaxFileSize,
		MaxDepth:    DefaultMaxDepth,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration against its field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Excluded reports whether a directory base name is pruned from the walk.
func (c *Config) Excluded(dir string) bool {
	for _, d := range c.ExcludeDirs {
		if d == dir {
			return true
		}
	}
	return false
}

// Load reads FileName from the project root.
//
// Description:
//
//	A missing file is not an error: the defaults are returned. A present
//	file is decoded over the defaults and validated.
//
// Inputs:
//
//	root - The project root directory.
//
// Outputs:
//
//	*Config - The effective configuration. Never nil on success.
//	error - Wraps ErrInvalidConfig on decode or validation failure.
func Load(root string) (*Config, error) {
	return LoadFile(filepath.Join(root, FileName))
}

// LoadFile reads a configuration from an explicit path. See Load.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("no project config, using defaults", slog.String("path", path))
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}
	for i, ext := range cfg.Extensions {
		cfg.Extensions[i] = strings.TrimSpace(ext)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	slog.Debug("loaded project config",
		slog.String("path", path),
		slog.Int("workers", cfg.Workers),
		slog.Int("extensions", len(cfg.Extensions)))
	return cfg, nil
}
