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
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/classmap/services/classmap/snapshot"
)

func newSnapshotCmd() *cobra.Command {
	var dbDir string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect stored model snapshots",
	}
	cmd.PersistentFlags().StringVar(&dbDir, "db", "", "Badger snapshot directory")
	_ = cmd.MarkPersistentFlagRequired("db")

	var project string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(dbDir, func(mgr *snapshot.Manager) error {
				metas, err := mgr.List(cmd.Context(), project, limit)
				if err != nil {
					return err
				}
				return renderTable(cmd.OutOrStdout(),
					[]string{"ID", "CREATED", "PROJECT", "LABEL", "CLASSES", "CALLS"}, snapshotRows(metas))
			})
		},
	}
	list.Flags().StringVar(&project, "project", "", "Only snapshots of this project root")
	list.Flags().IntVar(&limit, "limit", snapshot.DefaultListLimit, "Maximum snapshots to list")

	diff := &cobra.Command{
		Use:   "diff <base-id> <target-id>",
		Short: "Compare two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(dbDir, func(mgr *snapshot.Manager) error {
				d, err := mgr.Diff(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), d)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(dbDir, func(mgr *snapshot.Manager) error {
				if err := mgr.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, diff, del)
	return cmd
}

// withManager opens the snapshot store for the duration of fn.
func withManager(dir string, fn func(*snapshot.Manager) error) error {
	db, err := snapshot.OpenDB(dir)
	if err != nil {
		return err
	}
	defer func(db *badger.DB) {
		if err := db.Close(); err != nil {
			slog.Warn("Failed to close snapshot BadgerDB", slog.String("error", err.Error()))
		}
	}(db)

	mgr, err := snapshot.NewManager(db, slog.Default())
	if err != nil {
		return err
	}
	return fn(mgr)
}

func snapshotRows(metas []*snapshot.Metadata) [][]string {
	rows := make([][]string, 0, len(metas))
	for _, m := range metas {
		rows = append(rows, []string{
			m.SnapshotID,
			time.UnixMilli(m.CreatedAtMilli).UTC().Format(time.RFC3339),
			m.ProjectRoot,
			m.Label,
			strconv.Itoa(m.Classes),
			strconv.Itoa(m.Calls),
		})
	}
	return rows
}
