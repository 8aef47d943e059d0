// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds navigable graphs from a ProjectModel.
//
// Four builders derive directed graphs from the same immutable model:
// inheritance, call, class dependency, and class-method call graphs. A
// graph can be narrowed to the neighborhood of one node and converted to
// the element list consumed by Cytoscape front ends.
package graph

// Edge is a directed edge between two node IDs.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is a simple directed graph over string node IDs.
//
// Description:
//
//	Nodes keep insertion order. Adding an edge adds any missing endpoint,
//	and parallel edges collapse into one. Edges iterate grouped by source
//	node in node order, then by insertion order within each source.
//
// Thread Safety:
//
//	Not safe for concurrent mutation. Builders return graphs that are
//	never mutated afterwards, and those are safe for concurrent reads.
type Graph struct {
	// Kind is the builder that produced the graph; empty for subgraphs
	// built by hand.
	Kind Kind

	nodes []string
	index map[string]int
	succ  map[string][]string
	pred  map[string][]string
	edges map[Edge]struct{}
}

// NewGraph creates an empty graph of the given kind.
func NewGraph(kind Kind) *Graph {
	return &Graph{
		Kind:  kind,
		nodes: make([]string, 0),
		index: make(map[string]int),
		succ:  make(map[string][]string),
		pred:  make(map[string][]string),
		edges: make(map[Edge]struct{}),
	}
}

// AddNode adds id if it is not already present.
func (g *Graph) AddNode(id string) {
	if _, ok := g.index[id]; ok {
		return
	}
	g.index[id] = len(g.nodes)
	g.nodes = append(g.nodes, id)
}

// AddEdge adds the edge from → to, adding missing endpoints in that order.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	e := Edge{From: from, To: to}
	if _, ok := g.edges[e]; ok {
		return
	}
	g.edges[e] = struct{}{}
	g.succ[from] = append(g.succ[from], to)
	g.pred[to] = append(g.pred[to], from)
}

// HasNode reports whether id is a node of g.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// HasEdge reports whether the edge from → to exists.
func (g *Graph) HasEdge(from, to string) bool {
	_, ok := g.edges[Edge{From: from, To: to}]
	return ok
}

// Nodes returns the node IDs in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns every edge, grouped by source in node order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, from := range g.nodes {
		for _, to := range g.succ[from] {
			out = append(out, Edge{From: from, To: to})
		}
	}
	return out
}

// Successors returns the targets of edges leaving id.
func (g *Graph) Successors(id string) []string {
	return append([]string(nil), g.succ[id]...)
}

// Predecessors returns the sources of edges entering id.
func (g *Graph) Predecessors(id string) []string {
	return append([]string(nil), g.pred[id]...)
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Subgraph returns the graph induced by keep: the kept nodes in g's node
// order and every edge of g whose endpoints are both kept.
func (g *Graph) Subgraph(keep map[string]struct{}) *Graph {
	sub := NewGraph(g.Kind)
	for _, id := range g.nodes {
		if _, ok := keep[id]; ok {
			sub.AddNode(id)
		}
	}
	for _, from := range g.nodes {
		if _, ok := keep[from]; !ok {
			continue
		}
		for _, to := range g.succ[from] {
			if _, ok := keep[to]; ok {
				sub.AddEdge(from, to)
			}
		}
	}
	return sub
}
