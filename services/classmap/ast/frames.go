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
	"github.com/AleutianAI/classmap/services/classmap/model"
)

// frame is the attribution context of one class or method definition.
//
// A class frame has a nil method. Frames hold the records themselves, not
// their names, so a later same-named definition that replaces a record in
// the class map cannot redirect calls of a frame still on the stack.
type frame struct {
	class      *model.ClassRecord
	method     *model.MethodRecord
	methodName string
}

// caller returns "Class.method" for a method frame.
func (f frame) caller() string {
	return f.class.Name + "." + f.methodName
}

// frameStack tracks the lexically enclosing class and method definitions.
// Frames are pushed on entry to a definition and popped on exit, so
// attribution after a nested definition returns to the outer context.
type frameStack []frame

func (s *frameStack) push(f frame) {
	*s = append(*s, f)
}

func (s *frameStack) pop() {
	if len(*s) > 0 {
		*s = (*s)[:len(*s)-1]
	}
}

// top returns the innermost frame. The zero frame (no class) is returned
// at module scope.
func (s frameStack) top() frame {
	if len(s) == 0 {
		return frame{}
	}
	return s[len(s)-1]
}

// inClassBody reports whether the innermost frame is a class body, the only
// place where a function definition declares a method.
func (s frameStack) inClassBody() bool {
	t := s.top()
	return t.class != nil && t.method == nil
}

// inMethod reports whether calls at this point attribute to a method.
func (s frameStack) inMethod() bool {
	t := s.top()
	return t.class != nil && t.method != nil
}
