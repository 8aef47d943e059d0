// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/classmap/services/classmap/model"
	"github.com/AleutianAI/classmap/services/classmap/snapshot"
	"github.com/AleutianAI/classmap/services/classmap/walker"
)

const (
	msgInvalidPath = "Please provide a valid path to a Python project directory."
	outputSuffix   = "_analysis_results"
)

type analyzeOptions struct {
	workers    int
	snapshotDB string
	label      string
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze [path] [output]",
		Short: "Analyze a Python project and write its class model as JSON",
		Long: `Analyze walks every .py file under path and writes the class model as
indented JSON next to the project directory. The file is named after
output, or after the project directory with "_analysis_results"
appended; ".json" is added when missing.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent parses (default from classmap.config.yaml)")
	cmd.Flags().StringVar(&opts.snapshotDB, "snapshot-db", "", "Also store a snapshot in this Badger directory")
	cmd.Flags().StringVar(&opts.label, "label", "", "Label for the stored snapshot")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts analyzeOptions) error {
	out := cmd.OutOrStdout()

	if len(args) == 0 || !isDir(args[0]) {
		fmt.Fprintln(out, msgInvalidPath)
		return &exitError{code: 1}
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving %s: %w", args[0], err)
	}

	pm, stats, err := walker.Walk(cmd.Context(), abs, walker.WithWorkers(opts.workers))
	if err != nil {
		return err
	}
	slog.Debug("walk finished",
		slog.Int("files_parsed", stats.FilesParsed),
		slog.Int("files_skipped", stats.FilesSkipped))

	base := filepath.Base(abs)
	fmt.Fprintf(out, "Analyzed project: %s\n", base)

	path := outputPath(abs, outputName(base, args))
	if err := model.Save(path, pm); err != nil {
		return err
	}

	if opts.snapshotDB != "" {
		meta, err := saveSnapshot(cmd, opts, abs, pm)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Snapshot: %s\n", meta.SnapshotID)
	}

	fmt.Fprintf(out, "Done. Output: %s\n", path)
	return nil
}

// outputName returns the output file name with a .json suffix.
func outputName(base string, args []string) string {
	name := base + outputSuffix
	if len(args) > 1 && args[1] != "" {
		name = args[1]
	}
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	return name
}

// outputPath places name in the parent directory of the project root.
func outputPath(absRoot, name string) string {
	return filepath.Join(filepath.Dir(absRoot), name)
}

func saveSnapshot(cmd *cobra.Command, opts analyzeOptions, root string, pm model.ProjectModel) (*snapshot.Metadata, error) {
	db, err := snapshot.OpenDB(opts.snapshotDB)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	mgr, err := snapshot.NewManager(db, slog.Default())
	if err != nil {
		return nil, err
	}
	return mgr.Save(cmd.Context(), root, pm, opts.label)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
