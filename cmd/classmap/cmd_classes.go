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
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/classmap/services/classmap/model"
)

func newClassesCmd() *cobra.Command {
	var namesOnly bool

	cmd := &cobra.Command{
		Use:   "classes <analysis.json>",
		Short: "List the classes of an analysis file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := model.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if namesOnly {
				for _, name := range pm.ClassNames() {
					if _, err := out.Write([]byte(name + "\n")); err != nil {
						return err
					}
				}
				return nil
			}
			return renderTable(out, []string{"MODULE", "CLASS", "BASES", "METHODS", "CALLS"}, classRows(pm))
		},
	}
	cmd.Flags().BoolVar(&namesOnly, "names", false, "Print only the sorted, deduplicated class names")
	return cmd
}

// classRows returns one row per class in sorted module, then class order.
func classRows(pm model.ProjectModel) [][]string {
	rows := make([][]string, 0)
	for _, module := range pm.Modules() {
		classes := pm[module]
		for _, name := range classes.ClassNames() {
			rec := classes[name]
			calls := 0
			for _, m := range rec.Methods {
				calls += len(m.Calls)
			}
			rows = append(rows, []string{
				module,
				name,
				strings.Join(rec.Bases, ", "),
				strconv.Itoa(len(rec.Methods)),
				strconv.Itoa(calls),
			})
		}
	}
	return rows
}
