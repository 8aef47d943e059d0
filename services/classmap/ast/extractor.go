// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast extracts the structural model of Python source files.
//
// The extractor walks one file's tree-sitter syntax tree in a single pass
// and records every class definition with its bases, attributes, methods
// and the calls issued from each method. It has no symbol table and does
// not resolve imports: call targets are normalized from their lexical
// shape alone (see NormalizeCallee).
package ast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/AleutianAI/classmap/services/classmap/model"
)

const (
	// DefaultMaxFileSize is the largest file the extractor accepts (10MB).
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// WarnFileSize triggers a warning log for large inputs (1MB).
	WarnFileSize = 1024 * 1024

	// DefaultMaxDepth bounds syntax-tree recursion. Deeper subtrees are
	// not visited.
	DefaultMaxDepth = 2048

	// ctxCheckInterval is how many nodes are visited between context checks.
	ctxCheckInterval = 1000
)

var (
	// ErrFileTooLarge indicates the content exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent indicates the content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrSyntax indicates the source does not parse as Python.
	ErrSyntax = errors.New("syntax error")
)

// ExtractorOption configures a PythonExtractor.
type ExtractorOption func(*PythonExtractor)

// WithMaxFileSize sets the maximum accepted content size in bytes.
// Non-positive values are ignored.
func WithMaxFileSize(bytes int64) ExtractorOption {
	return func(p *PythonExtractor) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithMaxDepth sets the syntax-tree recursion bound. Non-positive values are
// ignored.
func WithMaxDepth(depth int) ExtractorOption {
	return func(p *PythonExtractor) {
		if depth > 0 {
			p.maxDepth = depth
		}
	}
}

// WithLogger sets the logger used for diagnostics. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ExtractorOption {
	return func(p *PythonExtractor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// PythonExtractor builds ClassRecords from Python source.
//
// Description:
//
//	Each Extract call parses the content with tree-sitter and walks the tree
//	once. Attribution of calls and assignments follows an explicit stack of
//	class and method frames: a call belongs to the lexically nearest
//	enclosing method, and leaving a nested definition restores the outer
//	context.
//
// Thread Safety:
//
//	Safe for concurrent use. Every Extract call creates its own tree-sitter
//	parser and traversal state.
type PythonExtractor struct {
	maxFileSize int64
	maxDepth    int
	logger      *slog.Logger
}

// NewPythonExtractor creates an extractor with the given options.
//
// Example:
//
//	ex := NewPythonExtractor(WithMaxFileSize(2 * 1024 * 1024))
//	classes, err := ex.Extract(ctx, src, "pkg.module")
func NewPythonExtractor(opts ...ExtractorOption) *PythonExtractor {
	p := &PythonExtractor{
		maxFileSize: DefaultMaxFileSize,
		maxDepth:    DefaultMaxDepth,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extensions returns the file extensions the extractor handles.
func (p *PythonExtractor) Extensions() []string {
	return []string{".py"}
}

// Extract parses content and returns the classes it defines.
//
// Description:
//
//	Covers every class definition at any nesting depth. A source with any
//	syntax error is rejected as a whole: no partial record is produced.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked before parsing and periodically
//	      during the walk.
//	content - Raw Python source. Must be valid UTF-8.
//	module - The dotted module path recorded on every ClassRecord.
//
// Outputs:
//
//	model.ModuleClasses - Class name to record. Never nil on success.
//	error - ErrFileTooLarge, ErrInvalidContent, ErrSyntax (all wrapped), or
//	        a context error.
func (p *PythonExtractor) Extract(ctx context.Context, content []byte, module string) (model.ModuleClasses, error) {
	ctx, span := startExtractSpan(ctx, module, len(content))
	start := time.Now()

	classes, status, err := p.extract(ctx, content, module)
	finishExtractSpan(span, start, status, len(classes), err)
	if err != nil {
		return nil, err
	}
	extractClassesTotal.Add(float64(len(classes)))
	return classes, nil
}

func (p *PythonExtractor) extract(ctx context.Context, content []byte, module string) (model.ModuleClasses, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "canceled", fmt.Errorf("extract canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		return nil, "too_large", fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if len(content) > WarnFileSize {
		p.logger.Warn("extracting large file",
			slog.String("module", module),
			slog.Int("size_bytes", len(content)))
	}
	if !utf8.Valid(content) {
		return nil, "invalid_content", fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, "syntax_error", fmt.Errorf("%w: tree-sitter parse failed: %v", ErrSyntax, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, "syntax_error", fmt.Errorf("%w: empty syntax tree", ErrSyntax)
	}
	if root.HasError() {
		return nil, "syntax_error", fmt.Errorf("%w: source contains syntax errors", ErrSyntax)
	}
	if err := checkPython3(root, content); err != nil {
		return nil, "syntax_error", err
	}

	w := &walk{
		ctx:      ctx,
		content:  content,
		module:   module,
		maxDepth: p.maxDepth,
		logger:   p.logger,
		classes:  make(model.ModuleClasses),
	}
	w.visit(root, 0)
	if w.err != nil {
		return nil, "canceled", fmt.Errorf("extract canceled: %w", w.err)
	}

	return w.classes, "success", nil
}

// walk is the traversal state of one Extract call.
type walk struct {
	ctx      context.Context
	content  []byte
	module   string
	maxDepth int
	logger   *slog.Logger

	classes model.ModuleClasses
	frames  frameStack
	visited int
	err     error
}

// visit dispatches on the node type and recurses into children.
func (w *walk) visit(node *sitter.Node, depth int) {
	if node == nil || w.err != nil {
		return
	}
	if depth > w.maxDepth {
		w.logger.Debug("max syntax depth reached",
			slog.String("module", w.module),
			slog.Int("depth", depth))
		return
	}

	w.visited++
	if w.visited%ctxCheckInterval == 0 {
		if err := w.ctx.Err(); err != nil {
			w.err = err
			return
		}
	}

	switch node.Type() {
	case nodeDecoratedDef:
		if def := node.ChildByFieldName("definition"); def != nil {
			w.enterDefinition(def, node, depth)
			return
		}
	case nodeClassDefinition, nodeFunctionDef:
		w.enterDefinition(node, nil, depth)
		return
	case nodeAssignment:
		w.recordAssignment(node)
	case nodeCall:
		w.recordCall(node)
	}

	w.visitChildren(node, depth)
}

func (w *walk) visitChildren(node *sitter.Node, depth int) {
	for i := 0; i < int(node.ChildCount()); i++ {
		w.visit(node.Child(i), depth+1)
	}
}

// enterDefinition handles a class or function definition. When the
// definition is decorated, wrapper is the decorated_definition node and
// its decorators are visited inside the definition's frame.
func (w *walk) enterDefinition(def, wrapper *sitter.Node, depth int) {
	pushed := false

	switch def.Type() {
	case nodeClassDefinition:
		if rec := w.registerClass(def); rec != nil {
			w.frames.push(frame{class: rec})
			pushed = true
		}

	case nodeFunctionDef:
		// Only a definition directly in a class body is a method. Functions
		// nested in a method keep attributing to that method; free
		// functions register nothing.
		if w.frames.inClassBody() {
			if nameNode := def.ChildByFieldName("name"); nameNode != nil {
				cls := w.frames.top().class
				name := nodeText(nameNode, w.content)
				method := &model.MethodRecord{Calls: make([]model.CallEdge, 0)}
				cls.Methods[name] = method
				w.frames.push(frame{class: cls, method: method, methodName: name})
				pushed = true
			}
		}
	}

	if wrapper != nil {
		for i := 0; i < int(wrapper.ChildCount()); i++ {
			if child := wrapper.Child(i); child != nil && !sameNode(child, def) {
				w.visit(child, depth+1)
			}
		}
		depth++
	}
	w.visitChildren(def, depth)

	if pushed {
		w.frames.pop()
	}
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// registerClass creates the record for a class definition. A later class
// with the same name in the same file replaces the earlier record.
func (w *walk) registerClass(def *sitter.Node) *model.ClassRecord {
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, w.content)
	if name == "" {
		return nil
	}

	rec := model.NewClassRecord(name, w.module)
	rec.Bases = renderBases(def.ChildByFieldName("superclasses"), w.content)
	w.classes[name] = rec
	return rec
}

// recordAssignment registers simple-identifier targets as attributes of the
// innermost class. Chained assignments ("a = b = 1") nest in the tree, so
// each link is seen by its own visit.
func (w *walk) recordAssignment(node *sitter.Node) {
	cls := w.frames.top().class
	if cls == nil {
		return
	}
	// "x: int = 1" is an annotated declaration, not a plain assignment.
	if node.ChildByFieldName("type") != nil {
		return
	}
	left := unwrapParens(node.ChildByFieldName("left"))
	if left == nil || left.Type() != nodeIdentifier {
		return
	}
	cls.Attributes[nodeText(left, w.content)] = model.UnknownType
}

// recordCall appends a CallEdge for a call inside a method. Calls whose
// target has no dotted-name form produce nothing; their arguments and
// receiver are still visited by the caller.
func (w *walk) recordCall(node *sitter.Node) {
	if !w.frames.inMethod() {
		return
	}
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}
	raw, ok := fullName(fn, w.content)
	if !ok {
		return
	}

	f := w.frames.top()
	f.method.Calls = append(f.method.Calls, model.CallEdge{
		Caller: f.caller(),
		Callee: NormalizeCallee(raw, f.class.Name),
		Raw:    raw,
	})
	extractCallsTotal.WithLabelValues(ClassifyCallee(raw).String()).Inc()
}
