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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/classmap/services/classmap"
	"github.com/AleutianAI/classmap/services/classmap/graph"
	"github.com/AleutianAI/classmap/services/classmap/model"
)

type graphOptions struct {
	kind       string
	center     string
	hops       int
	undirected bool
	serialized bool
}

func newGraphCmd() *cobra.Command {
	var opts graphOptions

	cmd := &cobra.Command{
		Use:   "graph <analysis.json>",
		Short: "Print a graph of an analysis file as Cytoscape elements",
		Long: `Graph builds one of the graph kinds from an analysis file and prints it
as a JSON array of Cytoscape elements. With --center only the nodes
within --hops of the center, in either direction, are printed.

Kinds: inherit, call, dep, class_method_call.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.kind, "kind", string(graph.KindInherit), "Graph kind")
	cmd.Flags().StringVar(&opts.center, "center", "", "Restrict to the neighborhood of this node")
	cmd.Flags().IntVar(&opts.hops, "hops", classmap.DefaultHops, "Neighborhood radius (1-4)")
	cmd.Flags().BoolVar(&opts.undirected, "undirected", false, "Label edges as undirected")
	cmd.Flags().BoolVar(&opts.serialized, "serialized", false, "Print nodes, edges and hash instead of Cytoscape elements")
	return cmd
}

func runGraph(cmd *cobra.Command, path string, opts graphOptions) error {
	kind, err := graph.ParseKind(opts.kind)
	if err != nil {
		return err
	}
	pm, err := model.Load(path)
	if err != nil {
		return err
	}
	g, err := graph.Build(kind, pm)
	if err != nil {
		return err
	}
	if opts.center != "" {
		if !g.HasNode(opts.center) {
			return fmt.Errorf("node %q not in %s graph", opts.center, kind)
		}
		g = graph.ExtractNeighbors(g, opts.center, classmap.ClampHops(opts.hops))
	}

	if opts.serialized {
		return writeJSON(cmd.OutOrStdout(), g.ToSerializable())
	}
	return writeJSON(cmd.OutOrStdout(), graph.ToCytoscape(g, !opts.undirected))
}
