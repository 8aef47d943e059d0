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

// Element is one Cytoscape node or edge.
type Element struct {
	Data    ElementData `json:"data"`
	Classes string      `json:"classes"`
}

// ElementData carries the element fields. Nodes set ID and Label; edges set
// Source, Target and Label.
type ElementData struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	Label  string `json:"label"`
}

// Element classes.
const (
	ClassNode     = "node"
	ClassDirected = "directed"
	ClassEdge     = "edge"
)

// ToCytoscape converts g to a Cytoscape element list: every node in node
// order, then every edge. Directed edges are labeled "a → b" and classed
// "directed"; otherwise "a -- b" and "edge".
func ToCytoscape(g *Graph, directed bool) []Element {
	if g == nil {
		return []Element{}
	}
	elements := make([]Element, 0, g.NodeCount()+g.EdgeCount())
	for _, id := range g.nodes {
		elements = append(elements, Element{
			Data:    ElementData{ID: id, Label: id},
			Classes: ClassNode,
		})
	}

	sep, class := " -- ", ClassEdge
	if directed {
		sep, class = " → ", ClassDirected
	}
	for _, e := range g.Edges() {
		elements = append(elements, Element{
			Data:    ElementData{Source: e.From, Target: e.To, Label: e.From + sep + e.To},
			Classes: class,
		})
	}
	return elements
}
