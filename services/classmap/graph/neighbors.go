// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"sort"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// ExtractNeighbors returns the subgraph induced by center and every node
// within hops steps of it, following edges in either direction.
//
// Description:
//
//	Expansion is a breadth-first walk over an undirected view of g. The
//	result keeps the parent graph's node order and all edges among the
//	selected nodes, including edges between two neighbors. An unknown
//	center yields an empty graph. Non-positive hops select the center alone.
func ExtractNeighbors(g *Graph, center string, hops int) *Graph {
	if g == nil || !g.HasNode(center) {
		kind := Kind("")
		if g != nil {
			kind = g.Kind
		}
		return NewGraph(kind)
	}

	selected := make(map[string]struct{})
	bfs := traverse.BreadthFirst{
		Visit: func(n gonum.Node) {
			selected[g.nodes[n.ID()]] = struct{}{}
		},
	}
	bfs.Walk(undirectedView(g), simple.Node(g.index[center]), func(_ gonum.Node, depth int) bool {
		return depth >= hops
	})
	return g.Subgraph(selected)
}

// undirectedView maps g onto a gonum undirected graph whose node IDs are the
// insertion indexes of g. Self-loops are dropped; simple graphs reject them.
func undirectedView(g *Graph) *simple.UndirectedGraph {
	u := simple.NewUndirectedGraph()
	for i := range g.nodes {
		u.AddNode(simple.Node(int64(i)))
	}
	for e := range g.edges {
		from, to := int64(g.index[e.From]), int64(g.index[e.To])
		if from == to || u.HasEdgeBetween(from, to) {
			continue
		}
		u.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}
	return u
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
