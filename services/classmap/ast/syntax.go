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
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Python 2 constructs the tree-sitter grammar accepts without error nodes.
const (
	nodePrintStatement = "print_statement"
	nodeExecStatement  = "exec_statement"
	nodeExceptClause   = "except_clause"
)

// tabSize is the tab width CPython's tokenizer uses for indentation.
const tabSize = 8

// checkPython3 rejects sources that tree-sitter parses cleanly but Python 3
// does not: print and exec statements, "except E, e:" clauses, and
// indentation whose meaning depends on the tab width.
func checkPython3(root *sitter.Node, content []byte) error {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Type() {
		case nodePrintStatement, nodeExecStatement:
			return fmt.Errorf("%w: line %d: python 2 %s", ErrSyntax, n.StartPoint().Row+1, n.Type())
		case nodeExceptClause:
			for i := 0; i < int(n.ChildCount()); i++ {
				if n.Child(i).Type() == "," {
					return fmt.Errorf("%w: line %d: python 2 except clause", ErrSyntax, n.StartPoint().Row+1)
				}
			}
		}

		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if child := n.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
	return checkIndentation(content)
}

// indent is the width of one indentation prefix measured two ways: with
// tabs expanded to tabSize columns and with tabs counted as one column.
type indent struct {
	col, alt int
}

// checkIndentation applies CPython's tab consistency rule to every logical
// line: two indentation levels must compare the same way whatever the tab
// width. Lines inside brackets, strings or after a backslash continuation
// are not logical line starts, and blank or comment-only lines are ignored.
func checkIndentation(content []byte) error {
	levels := []indent{{}}
	var (
		depth     int
		quote     byte
		triple    bool
		continued bool
		line      = 1
	)

	for i := 0; i < len(content); {
		// Start of a physical line.
		if quote == 0 && depth == 0 && !continued {
			var cur indent
			j := i
		measure:
			for ; j < len(content); j++ {
				switch content[j] {
				case ' ':
					cur.col++
					cur.alt++
				case '\t':
					cur.col = (cur.col/tabSize + 1) * tabSize
					cur.alt++
				case '\f':
					cur = indent{}
				default:
					break measure
				}
			}
			blank := j >= len(content) || content[j] == '\n' || content[j] == '\r' || content[j] == '#'
			if !blank {
				top := levels[len(levels)-1]
				switch {
				case cur.col == top.col:
					if cur.alt != top.alt {
						return tabError(line)
					}
				case cur.col > top.col:
					if cur.alt <= top.alt {
						return tabError(line)
					}
					levels = append(levels, cur)
				default:
					for len(levels) > 1 && cur.col < levels[len(levels)-1].col {
						levels = levels[:len(levels)-1]
					}
					if top = levels[len(levels)-1]; cur.col != top.col || cur.alt != top.alt {
						return tabError(line)
					}
				}
			}
			i = j
		}
		continued = false

		// Rest of the physical line.
		for i < len(content) && content[i] != '\n' {
			c := content[i]
			switch {
			case quote != 0:
				switch {
				case c == '\\':
					if i+1 < len(content) && content[i+1] == '\n' {
						line++
					}
					i++
				case c == quote && !triple:
					quote = 0
				case c == quote && triple && i+2 < len(content) && content[i+1] == quote && content[i+2] == quote:
					quote, triple = 0, false
					i += 2
				}
			case c == '#':
				for i+1 < len(content) && content[i+1] != '\n' {
					i++
				}
			case c == '"' || c == '\'':
				quote = c
				if i+2 < len(content) && content[i+1] == c && content[i+2] == c {
					triple = true
					i += 2
				}
			case c == '(' || c == '[' || c == '{':
				depth++
			case c == ')' || c == ']' || c == '}':
				if depth > 0 {
					depth--
				}
			case c == '\\':
				if i+1 < len(content) && content[i+1] == '\n' {
					continued = true
				} else if i+2 < len(content) && content[i+1] == '\r' && content[i+2] == '\n' {
					continued = true
					i++
				}
			}
			i++
		}
		// An unterminated single-quoted string ends with its line.
		if quote != 0 && !triple {
			quote = 0
		}
		i++
		line++
	}
	return nil
}

func tabError(line int) error {
	return fmt.Errorf("%w: line %d: inconsistent use of tabs and spaces in indentation", ErrSyntax, line)
}
