// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnmarshalJSON accepts both shapes a call entry can take in persisted
// models: a structured edge object, or a bare string naming the callee.
//
// Description:
//
//	Bare strings become edges with Callee and Raw both set to the string.
//	A null callee in an object decodes as the empty string. The caller of a
//	bare-string entry is filled in by ProjectModel.UnmarshalJSON from the
//	enclosing class and method.
func (e *CallEdge) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = CallEdge{Callee: s, Raw: s}
		return nil
	case '{':
		var wire struct {
			Caller string  `json:"caller"`
			Callee *string `json:"callee"`
			Raw    string  `json:"raw"`
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			return err
		}
		*e = CallEdge{Caller: wire.Caller, Raw: wire.Raw}
		if wire.Callee != nil {
			e.Callee = *wire.Callee
		}
		return nil
	default:
		return fmt.Errorf("call entry must be a string or an object, got %q", truncate(data, 32))
	}
}

// MarshalJSON writes an empty callee as null, the form it was read from.
func (e CallEdge) MarshalJSON() ([]byte, error) {
	wire := struct {
		Caller string  `json:"caller"`
		Callee *string `json:"callee"`
		Raw    string  `json:"raw"`
	}{Caller: e.Caller, Raw: e.Raw}
	if e.Callee != "" {
		wire.Callee = &e.Callee
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the nested module → class → record mapping and
// normalizes every record at the ingestion boundary, so that graph logic
// only ever sees fully populated structured records.
func (p *ProjectModel) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]*ClassRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(ProjectModel, len(raw))
	for module, classes := range raw {
		mc := make(ModuleClasses, len(classes))
		for name, rec := range classes {
			if rec == nil {
				rec = NewClassRecord(name, module)
			}
			normalizeRecord(rec, name)
			mc[name] = rec
		}
		out[module] = mc
	}
	*p = out
	return nil
}

// normalizeRecord fills the record name, allocates nil collections and
// drops empty call entries.
func normalizeRecord(rec *ClassRecord, name string) {
	rec.Name = name
	if rec.Bases == nil {
		rec.Bases = make([]string, 0)
	}
	if rec.Attributes == nil {
		rec.Attributes = make(map[string]string)
	}
	if rec.Methods == nil {
		rec.Methods = make(map[string]*MethodRecord)
	}
	for methodName, m := range rec.Methods {
		if m == nil {
			m = &MethodRecord{}
			rec.Methods[methodName] = m
		}
		calls := make([]CallEdge, 0, len(m.Calls))
		for _, call := range m.Calls {
			if call.Raw == "" && call.Callee == "" {
				continue
			}
			if call.Caller == "" {
				call.Caller = name + "." + methodName
			}
			calls = append(calls, call)
		}
		m.Calls = calls
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
