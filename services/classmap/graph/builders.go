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
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/classmap/services/classmap/ast"
	"github.com/AleutianAI/classmap/services/classmap/model"
)

// Kind selects a graph builder.
type Kind string

const (
	// KindInherit is the inheritance graph: base → subclass.
	KindInherit Kind = "inherit"

	// KindCall is the call graph: Class.method → callee.
	KindCall Kind = "call"

	// KindDependency is the class dependency graph: user → used class.
	KindDependency Kind = "dep"

	// KindClassMethodCall is the call graph over normalized callees only.
	KindClassMethodCall Kind = "class_method_call"
)

// ErrUnknownKind indicates a graph kind with no builder.
var ErrUnknownKind = errors.New("unknown graph kind")

// Kinds returns every supported kind.
func Kinds() []Kind {
	return []Kind{KindInherit, KindCall, KindDependency, KindClassMethodCall}
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Build dispatches to the builder for kind.
//
// Outputs:
//
//	*Graph - The built graph. Never nil on success.
//	error - Wraps ErrUnknownKind.
func Build(kind Kind, pm model.ProjectModel) (*Graph, error) {
	var g *Graph
	switch kind {
	case KindInherit:
		g = BuildInheritanceGraph(pm)
	case KindCall:
		g = BuildCallGraph(pm)
	case KindDependency:
		g = BuildClassDependencyGraph(pm)
	case KindClassMethodCall:
		g = BuildClassMethodCallGraph(pm)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	buildsTotal.WithLabelValues(string(kind)).Inc()
	return g, nil
}

// eachClass visits every class record in sorted module order, then sorted
// class order within the module.
func eachClass(pm model.ProjectModel, fn func(name string, rec *model.ClassRecord)) {
	for _, module := range pm.Modules() {
		classes := pm[module]
		for _, name := range classes.ClassNames() {
			fn(name, classes[name])
		}
	}
}

// BuildInheritanceGraph adds the edge base → class for every listed base.
// Classes without bases that no other class extends do not appear.
func BuildInheritanceGraph(pm model.ProjectModel) *Graph {
	g := NewGraph(KindInherit)
	eachClass(pm, func(name string, rec *model.ClassRecord) {
		for _, base := range rec.Bases {
			g.AddEdge(base, name)
		}
	})
	return g
}

// BuildCallGraph adds a node for every Class.method and an edge to each
// call's target (the normalized callee, or the raw text when the callee is
// empty). Calls with no target are dropped.
func BuildCallGraph(pm model.ProjectModel) *Graph {
	g := NewGraph(KindCall)
	eachClass(pm, func(name string, rec *model.ClassRecord) {
		for _, method := range rec.MethodNames() {
			src := name + "." + method
			g.AddNode(src)
			for _, call := range rec.Methods[method].Calls {
				if target := call.Target(); target != "" {
					g.AddEdge(src, target)
				}
			}
		}
	})
	return g
}

// instantiation matches a capitalized name immediately followed by "(".
var instantiation = regexp.MustCompile(`([A-Z][A-Za-z0-9_]+)\(`)

// BuildClassDependencyGraph adds a node for every class and an edge
// user → target whenever the user's definition references a known class.
//
// Description:
//
//	A reference is a base, an attribute placeholder value, the last dotted
//	segment of a call target (ignoring anything from the first "("), or any
//	capitalized name followed by "(" inside a call target. Only names of
//	classes defined somewhere in the model count, and a class never depends
//	on itself. Class names are matched globally across modules, so two
//	classes with the same name in different modules share one node.
func BuildClassDependencyGraph(pm model.ProjectModel) *Graph {
	g := NewGraph(KindDependency)
	known := pm.KnownClasses()

	depend := func(user, target string) {
		if target == "" || user == target {
			return
		}
		if _, ok := known[target]; ok {
			g.AddEdge(user, target)
		}
	}

	eachClass(pm, func(name string, rec *model.ClassRecord) {
		g.AddNode(name)

		for _, base := range rec.Bases {
			depend(name, base)
		}
		for _, attr := range sortedKeys(rec.Attributes) {
			depend(name, rec.Attributes[attr])
		}
		for _, method := range rec.MethodNames() {
			for _, call := range rec.Methods[method].Calls {
				target := call.Target()
				clean, _, _ := strings.Cut(target, "(")
				depend(name, clean[strings.LastIndex(clean, ".")+1:])

				for _, m := range instantiation.FindAllStringSubmatch(target, -1) {
					depend(name, m[1])
				}
			}
		}
	})
	return g
}

// BuildClassMethodCallGraph is BuildCallGraph restricted to normalized
// callees. Any "self." left in a callee is rewritten to the calling class.
func BuildClassMethodCallGraph(pm model.ProjectModel) *Graph {
	g := NewGraph(KindClassMethodCall)
	eachClass(pm, func(name string, rec *model.ClassRecord) {
		for _, method := range rec.MethodNames() {
			caller := name + "." + method
			g.AddNode(caller)
			for _, call := range rec.Methods[method].Calls {
				if call.Callee == "" {
					continue
				}
				g.AddEdge(caller, strings.ReplaceAll(call.Callee, ast.ReceiverPrefix, name+"."))
			}
		}
	})
	return g
}
