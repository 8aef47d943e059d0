// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the structural model produced by the extractor:
// classes, their bases, attributes and methods, and the call edges issued
// from each method. The model is the exchange format between the analyzer,
// the graph builders and the HTTP service, and is persisted as JSON.
package model

import (
	"sort"
)

// UnknownType is the placeholder stored for every attribute. The extractor
// does not infer types.
const UnknownType = "Unknown"

// CallEdge is one call expression found inside a method body.
type CallEdge struct {
	// Caller is the enclosing method as "Class.method".
	Caller string `json:"caller"`

	// Callee is the normalized, best-effort fully-qualified target.
	// Empty when unresolved; encoded as null.
	Callee string `json:"callee"`

	// Raw is the dotted expression exactly as written in source.
	Raw string `json:"raw"`
}

// Target returns the callee, falling back to the raw form when the
// normalized form is empty.
func (e CallEdge) Target() string {
	if e.Callee != "" {
		return e.Callee
	}
	return e.Raw
}

// MethodRecord holds the calls issued by one method, in textual order.
type MethodRecord struct {
	Calls []CallEdge `json:"calls"`
}

// ClassRecord describes one class definition in one file.
//
// Description:
//
//	Name is unique only within its defining file. Records for classes with
//	the same name in different modules live in separate module buckets of
//	ProjectModel and are never merged.
//
// Thread Safety: Immutable after extraction; safe for concurrent reads.
type ClassRecord struct {
	// Name is the class identifier. Not serialized; it is the map key.
	Name string `json:"-"`

	// Module is the dotted module path of the defining file.
	Module string `json:"module"`

	// Bases are the base-class expressions rendered as text, in source order.
	Bases []string `json:"bases"`

	// Attributes maps attribute names to UnknownType.
	Attributes map[string]string `json:"attributes"`

	// Methods maps method names to their records.
	Methods map[string]*MethodRecord `json:"methods"`
}

// NewClassRecord creates an empty record with all collections allocated so
// that JSON output never carries null collections.
func NewClassRecord(name, module string) *ClassRecord {
	return &ClassRecord{
		Name:       name,
		Module:     module,
		Bases:      make([]string, 0),
		Attributes: make(map[string]string),
		Methods:    make(map[string]*MethodRecord),
	}
}

// MethodNames returns the record's method names sorted.
func (c *ClassRecord) MethodNames() []string {
	names := make([]string, 0, len(c.Methods))
	for name := range c.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModuleClasses is the extractor output for a single file.
type ModuleClasses map[string]*ClassRecord

// ClassNames returns the class names of the module sorted.
func (m ModuleClasses) ClassNames() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProjectModel is the merged result of a project walk, keyed by module path.
//
// Description:
//
//	A pure aggregation of per-file results. Graph builders and the HTTP
//	service read it and never mutate it.
type ProjectModel map[string]ModuleClasses

// Modules returns the module paths sorted. All iteration that must be
// deterministic (first-match lookup, graph node order) goes through here.
func (p ProjectModel) Modules() []string {
	modules := make([]string, 0, len(p))
	for module := range p {
		modules = append(modules, module)
	}
	sort.Strings(modules)
	return modules
}

// ClassNames enumerates every distinct class name across all modules,
// sorted.
func (p ProjectModel) ClassNames() []string {
	seen := make(map[string]struct{})
	for _, classes := range p {
		for name := range classes {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KnownClasses returns the set of class names across all modules.
//
// Names are treated as globally unique here even though the model keeps
// colliding names in separate modules.
func (p ProjectModel) KnownClasses() map[string]struct{} {
	known := make(map[string]struct{})
	for _, classes := range p {
		for name := range classes {
			known[name] = struct{}{}
		}
	}
	return known
}

// FindClass returns the first record named name, scanning modules in sorted
// order.
//
// Outputs:
//
//	*ClassRecord - The record, or nil if absent.
//	string - The module the record was found in.
//	bool - True if found.
func (p ProjectModel) FindClass(name string) (*ClassRecord, string, bool) {
	for _, module := range p.Modules() {
		if rec, ok := p[module][name]; ok {
			return rec, module, true
		}
	}
	return nil, "", false
}

// Counts returns the number of modules, classes, methods and call edges.
func (p ProjectModel) Counts() (modules, classes, methods, calls int) {
	modules = len(p)
	for _, mc := range p {
		classes += len(mc)
		for _, rec := range mc {
			methods += len(rec.Methods)
			for _, m := range rec.Methods {
				calls += len(m.Calls)
			}
		}
	}
	return modules, classes, methods, calls
}
