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

	sitter "github.com/smacker/go-tree-sitter"
)

// Tree-sitter Python node types used by the extractor.
const (
	nodeClassDefinition = "class_definition"
	nodeFunctionDef     = "function_definition"
	nodeDecoratedDef    = "decorated_definition"
	nodeCall            = "call"
	nodeAttribute       = "attribute"
	nodeIdentifier      = "identifier"
	nodeAssignment      = "assignment"
	nodeParenthesized   = "parenthesized_expression"
	nodeKeywordArgument = "keyword_argument"
	nodeDictionarySplat = "dictionary_splat"
	nodeComment         = "comment"
	nodeError           = "ERROR"
)

// nodeText returns the source text spanned by node.
func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}

// unwrapParens strips any number of enclosing parentheses, as Python's own
// AST does: "(a).b" and "a.b" have the same shape.
func unwrapParens(node *sitter.Node) *sitter.Node {
	for node != nil && node.Type() == nodeParenthesized {
		var inner *sitter.Node
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() != nodeComment {
				inner = child
				break
			}
		}
		if inner == nil {
			return node
		}
		node = inner
	}
	return node
}

// fullName reconstructs the dotted name of a call target.
//
// Description:
//
//	A bare identifier yields itself. A chain of attribute accesses rooted in
//	an identifier yields the dotted name in root-to-leaf order ("a.b.c").
//	Any other root (a call, a subscript, a literal) makes the name
//	undefined.
//
// Outputs:
//
//	string - The dotted name.
//	bool - False when the target has no dotted-name form.
func fullName(node *sitter.Node, content []byte) (string, bool) {
	node = unwrapParens(node)
	if node == nil {
		return "", false
	}

	switch node.Type() {
	case nodeIdentifier:
		return nodeText(node, content), true

	case nodeAttribute:
		parts := make([]string, 0, 4)
		curr := node
		for curr != nil && curr.Type() == nodeAttribute {
			attr := curr.ChildByFieldName("attribute")
			if attr == nil {
				return "", false
			}
			parts = append(parts, nodeText(attr, content))
			curr = unwrapParens(curr.ChildByFieldName("object"))
		}
		if curr == nil || curr.Type() != nodeIdentifier {
			return "", false
		}
		parts = append(parts, nodeText(curr, content))

		for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
			parts[i], parts[j] = parts[j], parts[i]
		}
		return strings.Join(parts, "."), true

	default:
		return "", false
	}
}

// renderBases renders the positional arguments of a class's superclass list.
//
// Description:
//
//	Dotted chains render as dotted names; any other expression renders as
//	its source text with runs of whitespace collapsed. Keyword arguments
//	(metaclass=...) and **kwargs are not bases. Expressions that cannot be
//	rendered (error or missing nodes, empty text) are omitted.
func renderBases(argList *sitter.Node, content []byte) []string {
	bases := make([]string, 0)
	if argList == nil {
		return bases
	}

	for i := 0; i < int(argList.NamedChildCount()); i++ {
		arg := argList.NamedChild(i)
		switch arg.Type() {
		case nodeKeywordArgument, nodeDictionarySplat, nodeComment:
			continue
		}
		if rendered, ok := renderExpression(arg, content); ok {
			bases = append(bases, rendered)
		}
	}
	return bases
}

// renderExpression renders a single expression, or reports false if it
// cannot be rendered.
func renderExpression(node *sitter.Node, content []byte) (string, bool) {
	if node.Type() == nodeError || node.IsMissing() || node.HasError() {
		return "", false
	}
	if name, ok := fullName(node, content); ok {
		return name, true
	}
	text := strings.Join(strings.Fields(nodeText(node, content)), " ")
	if text == "" {
		return "", false
	}
	return text, true
}
