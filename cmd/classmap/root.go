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

	"github.com/spf13/cobra"
)

// exitError ends the process with code after the command has already
// reported the problem to the user.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   "classmap",
		Short: "Map classes, inheritance and method calls of a Python project",
		Long: `classmap parses a Python project with tree-sitter and records, for every
class, its bases, attributes, methods and the calls each method makes.
The result is written as JSON and can be explored as inheritance, call
and dependency graphs from the command line or over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newAnalyzeCmd(),
		newClassesCmd(),
		newGraphCmd(),
		newServeCmd(),
		newSnapshotCmd(),
	)
	return root
}
