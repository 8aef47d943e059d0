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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// GraphSchemaVersion tags exported graphs. Bump it on incompatible changes.
const GraphSchemaVersion = "1.0"

// ErrUnsupportedSchema indicates a serialized graph of a different schema.
var ErrUnsupportedSchema = errors.New("unsupported graph schema version")

// SerializableGraph is the plain JSON form of a Graph.
//
// Description:
//
//	Nodes and edges keep the graph's own iteration order so a round trip
//	reproduces the same Cytoscape output. GraphHash is independent of that
//	order.
type SerializableGraph struct {
	SchemaVersion string `json:"schema_version"`

	// Kind is the builder that produced the graph.
	Kind Kind `json:"kind"`

	// GraphHash is Graph.Hash of the exported graph.
	GraphHash string `json:"graph_hash"`

	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// ToSerializable exports g in node and edge iteration order.
//
// Complexity:
//
//	O(V log V + E log E), dominated by the hash.
func (g *Graph) ToSerializable() *SerializableGraph {
	if g == nil {
		g = NewGraph("")
	}
	return &SerializableGraph{
		SchemaVersion: GraphSchemaVersion,
		Kind:          g.Kind,
		GraphHash:     g.Hash(),
		Nodes:         g.Nodes(),
		Edges:         g.Edges(),
	}
}

// FromSerializable reconstructs a Graph from its serializable form.
//
// Description:
//
//	Nodes are added first, then edges, so node order survives even for
//	nodes that only appear as edge endpoints. When GraphHash is set it must
//	match the rebuilt graph.
//
// Outputs:
//
//	*Graph - The reconstructed graph.
//	error - Non-nil if sg is nil, of another schema, or fails its hash check.
func FromSerializable(sg *SerializableGraph) (*Graph, error) {
	if sg == nil {
		return nil, errors.New("nil serialized graph")
	}
	if v := sg.SchemaVersion; v != GraphSchemaVersion {
		return nil, fmt.Errorf("%w: %q (expected %q)", ErrUnsupportedSchema, v, GraphSchemaVersion)
	}

	g := NewGraph(sg.Kind)
	for _, id := range sg.Nodes {
		g.AddNode(id)
	}
	for _, edge := range sg.Edges {
		g.AddEdge(edge.From, edge.To)
	}

	if sg.GraphHash != "" {
		if got := g.Hash(); got != sg.GraphHash {
			return nil, fmt.Errorf("graph hash mismatch: stored %s, rebuilt %s", sg.GraphHash, got)
		}
	}
	return g, nil
}

// Hash returns a hex SHA256 over the sorted node and edge sets. Two graphs
// with the same nodes and edges hash equal regardless of insertion order.
func (g *Graph) Hash() string {
	nodes := g.Nodes()
	sort.Strings(nodes)

	edges := make([]string, 0, len(g.edges))
	for e := range g.edges {
		edges = append(edges, e.From+"\x00"+e.To)
	}
	sort.Strings(edges)

	h := sha256.New()
	h.Write([]byte(string(g.Kind)))
	h.Write([]byte{'\n'})
	h.Write([]byte(strings.Join(nodes, "\x01")))
	h.Write([]byte{'\n'})
	h.Write([]byte(strings.Join(edges, "\x01")))
	return hex.EncodeToString(h.Sum(nil))
}
