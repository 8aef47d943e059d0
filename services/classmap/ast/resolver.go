// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ReceiverPrefix is the lexical marker for "the current instance" in a
// Python method body.
const ReceiverPrefix = "self."

// NormalizeCallee maps a raw dotted callee to a best-effort fully-qualified
// name using only its lexical shape.
//
// Description:
//
//	Rules, applied in order:
//	  1. "self.rest" becomes "currentClass.rest". Only the leading segment is
//	     replaced; the remainder is kept verbatim.
//	  2. A first segment starting with an uppercase letter is taken to be
//	     "ClassName.member..." already and returned unchanged.
//	  3. Anything else is a module-scope reference (free function, local or
//	     module variable) and is returned unchanged.
//
//	The mapping is deliberately unsound. It cannot tell an instance variable
//	holding an unrelated object from a same-class method, and it does not
//	follow aliasing or multi-hop attribute chains. Downstream graphs depend on
//	exactly these outputs, so the rules must not be refined here.
//
// Inputs:
//
//	raw - The dotted name as written in source. Must not be empty.
//	currentClass - Name of the class enclosing the call.
//
// Outputs:
//
//	string - The normalized name. Never empty for non-empty raw.
//
// Thread Safety: Pure function; safe for concurrent use.
func NormalizeCallee(raw, currentClass string) string {
	switch ClassifyCallee(raw) {
	case CalleeKindReceiver:
		return currentClass + "." + raw[len(ReceiverPrefix):]
	default:
		// Class-qualified and module-scope names pass through unchanged.
		return raw
	}
}

// isQualifiedByClass reports whether the first dotted segment of name starts
// with an uppercase letter.
func isQualifiedByClass(name string) bool {
	first, _, _ := strings.Cut(name, ".")
	r, size := utf8.DecodeRuneInString(first)
	if size == 0 || r == utf8.RuneError {
		return false
	}
	return unicode.IsUpper(r)
}

// CalleeKind classifies which normalization rule applied to a raw callee.
type CalleeKind int

const (
	// CalleeKindReceiver is a call through the receiver prefix.
	CalleeKindReceiver CalleeKind = iota

	// CalleeKindClass is a call whose first segment is capitalized.
	CalleeKindClass

	// CalleeKindModule is a module-scope reference.
	CalleeKindModule
)

// String returns the label used for metrics and logs.
func (k CalleeKind) String() string {
	switch k {
	case CalleeKindReceiver:
		return "receiver"
	case CalleeKindClass:
		return "class"
	case CalleeKindModule:
		return "module"
	default:
		return "unknown"
	}
}

// ClassifyCallee reports which rule of NormalizeCallee applies to raw.
func ClassifyCallee(raw string) CalleeKind {
	switch {
	case strings.HasPrefix(raw, ReceiverPrefix):
		return CalleeKindReceiver
	case isQualifiedByClass(raw):
		return CalleeKindClass
	default:
		return CalleeKindModule
	}
}
