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
	"context"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/AleutianAI/relmap/services/relmap/syntax"
)

// MethodScope selects which function definitions in a class body count as
// methods of that class.
type MethodScope int

const (
	// MethodScopeNested reports every function definition anywhere in the
	// class body, including helpers nested inside methods. Such helpers are
	// also excluded from FunctionDef, so they appear only as methods.
	MethodScopeNested MethodScope = iota

	// MethodScopeDirect reports only function definitions whose nearest
	// enclosing definition is the class itself.
	MethodScopeDirect
)

// String returns "nested" or "direct".
func (s MethodScope) String() string {
	switch s {
	case MethodScopeNested:
		return "nested"
	case MethodScopeDirect:
		return "direct"
	default:
		return fmt.Sprintf("MethodScope(%d)", int(s))
	}
}

// ParseMethodScope resolves "nested" or "direct". The empty string is nested.
func ParseMethodScope(s string) (MethodScope, error) {
	switch s {
	case "", "nested":
		return MethodScopeNested, nil
	case "direct":
		return MethodScopeDirect, nil
	default:
		return MethodScopeNested, fmt.Errorf("unknown method scope %q", s)
	}
}

// ExtractorOption configures an Extractor instance.
type ExtractorOption func(*Extractor)

// WithParser sets the parser used by CreateAST.
func WithParser(p *Parser) ExtractorOption {
	return func(e *Extractor) {
		if p != nil {
			e.parser = p
		}
	}
}

// WithMethodScope sets how methods are discovered in class bodies.
func WithMethodScope(scope MethodScope) ExtractorOption {
	return func(e *Extractor) {
		e.scope = scope
	}
}

// Extractor holds at most one parsed unit and extracts its relationships.
//
// Description:
//
//	CreateAST replaces the current unit, closing the previous one first.
//	GetRelationships always works on the most recently created unit. To
//	process files in parallel, use one Extractor per goroutine.
//
// Thread Safety: NOT safe for concurrent use.
//
// Example:
//
//	ex := NewExtractor()
//	defer ex.Close()
//	if _, err := ex.CreateAST(ctx, "app/models.py"); err != nil {
//	    return err
//	}
//	set, err := ex.GetRelationships(ctx)
type Extractor struct {
	parser *Parser
	scope  MethodScope
	unit   *SourceUnit
}

// NewExtractor creates an Extractor with the given options.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		parser: NewParser(),
		scope:  MethodScopeNested,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateAST reads and parses the file at path and makes it the current unit.
//
// Outputs:
//   - *SourceUnit: The new current unit, owned by the Extractor.
//   - error: *FileAccessError when the file is missing or unreadable, or
//     any error from Parser.ParseFile. On error the Extractor has no unit.
func (e *Extractor) CreateAST(ctx context.Context, path string) (*SourceUnit, error) {
	e.release()
	unit, err := e.parser.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	e.unit = unit
	return unit, nil
}

// CreateASTFromSource parses an in-memory buffer and makes it the current unit.
func (e *Extractor) CreateASTFromSource(ctx context.Context, name string, content []byte) (*SourceUnit, error) {
	e.release()
	unit, err := e.parser.Parse(ctx, content, name)
	if err != nil {
		return nil, err
	}
	e.unit = unit
	return unit, nil
}

// Unit returns the current unit, or nil.
func (e *Extractor) Unit() *SourceUnit {
	return e.unit
}

// GetRelationships extracts the relationships of the current unit.
//
// Outputs:
//   - RelationshipSet: A new set owned by the caller.
//   - error: ErrNoSourceUnit when no unit has been created, or the last
//     CreateAST call failed.
func (e *Extractor) GetRelationships(ctx context.Context) (RelationshipSet, error) {
	if e.unit == nil {
		return nil, ErrNoSourceUnit
	}
	return extract(ctx, e.unit, e.scope)
}

// Close releases the current unit.
func (e *Extractor) Close() {
	e.release()
}

func (e *Extractor) release() {
	if e.unit != nil {
		e.unit.Close()
		e.unit = nil
	}
}

// Extract builds the relationship set of unit with default method scope.
//
// Description:
//
//	The steps run in a fixed order: imports, class declarations, free
//	function declarations, methods, then calls and instantiations inside
//	free functions. Nothing is deduplicated. Extract is a pure function of
//	the unit's tree: calling it twice yields equal sets.
//
// Outputs:
//   - RelationshipSet: A new set owned by the caller. Never nil on success.
//   - error: ErrNoSourceUnit, ErrUnitClosed, ErrContextCanceled.
func Extract(ctx context.Context, unit *SourceUnit) (RelationshipSet, error) {
	return extract(ctx, unit, MethodScopeNested)
}

// ExtractWithScope is Extract with an explicit method scope.
func ExtractWithScope(ctx context.Context, unit *SourceUnit, scope MethodScope) (RelationshipSet, error) {
	return extract(ctx, unit, scope)
}

func extract(ctx context.Context, unit *SourceUnit, scope MethodScope) (RelationshipSet, error) {
	if unit == nil {
		return nil, ErrNoSourceUnit
	}

	ctx, span := startExtractSpan(ctx, unit.FileName)
	defer span.End()

	caps, err := Match(ctx, unit)
	if err != nil {
		return nil, err
	}

	b := &setBuilder{
		tree: unit.Tree,
		file: unit.FileName,
		set:  make(RelationshipSet),
	}

	b.imports(caps.Get(CaptureImport), Import)
	b.imports(caps.Get(CaptureImportFrom), ImportFrom)
	b.classes(caps.Get(CaptureClassDef))
	b.functions(caps.Get(CaptureFunctionDef))
	b.methods(caps.Get(CaptureClassDef), caps.Get(CaptureClassBlock), scope)
	b.calls(caps.Get(CaptureFunctionDef), caps.Get(CaptureFunctionBlock))

	setExtractSpanResult(span, b.set)
	recordExtractMetrics(ctx, b.set)
	return b.set, nil
}

// setBuilder accumulates one extraction pass.
type setBuilder struct {
	tree *syntax.Tree
	file string
	set  RelationshipSet
}

func (b *setBuilder) emit(caller, callee string, kind RelationKind, typ string, at syntax.NodeID) {
	b.set.add(Relationship{
		Caller:   caller,
		Callee:   callee,
		Kind:     kind,
		Type:     typ,
		Location: locationOf(b.tree, at),
	})
}

// imports emits the verbatim statement text of each import node.
func (b *setBuilder) imports(nodes []syntax.NodeID, kind RelationKind) {
	for _, id := range nodes {
		b.emit(b.file, b.tree.Text(id), kind, "", id)
	}
}

func (b *setBuilder) classes(defs []syntax.NodeID) {
	for _, id := range defs {
		b.emit(b.file, b.tree.Text(id), ClassDef, "", id)
	}
}

// functions emits function declarations that have no class ancestor.
func (b *setBuilder) functions(defs []syntax.NodeID) {
	for _, id := range defs {
		if IsNestedInClass(b.tree, id) {
			continue
		}
		b.emit(b.file, b.tree.Text(id), FunctionDef, "", id)
	}
}

// methods attributes each function definition in a class body to the class.
func (b *setBuilder) methods(defs, blocks []syntax.NodeID, scope MethodScope) {
	for i, def := range defs {
		class := b.tree.Parent(def)
		body := pairedBody(b.tree, def, blocks, i)
		className := b.tree.Text(def)

		for id := range b.tree.Walk(body) {
			if b.tree.Kind(id) != pyNodeFunctionDefinition {
				continue
			}
			if scope == MethodScopeDirect && enclosingScope(b.tree, id) != class {
				continue
			}
			name := b.tree.Text(b.tree.ChildByField(id, pyFieldName))
			if name == "" {
				continue
			}
			b.emit(className, name, Method, TypeClassMethod, id)
		}
	}
}

// calls classifies every call in each free function body.
func (b *setBuilder) calls(defs, blocks []syntax.NodeID) {
	for i, def := range defs {
		if IsNestedInClass(b.tree, def) {
			continue
		}
		body := pairedBody(b.tree, def, blocks, i)
		caller := b.tree.Text(def)

		for id := range b.tree.Walk(body) {
			if b.tree.Kind(id) != pyNodeCall {
				continue
			}
			callee := b.tree.Text(b.tree.ChildByField(id, pyFieldFunction))
			if callee == "" {
				continue
			}
			if IsInstantiation(callee) {
				b.emit(caller, callee, Instantiation, TypeClassInstantiation, id)
			} else {
				b.emit(caller, callee, Call, TypeFunctionCall, id)
			}
		}
	}
}

// pairedBody returns the body block for the definition name node def.
//
// The block at index i is used when it is the body field of the same
// declaration; otherwise the body is looked up on the declaration itself.
func pairedBody(tree *syntax.Tree, def syntax.NodeID, blocks []syntax.NodeID, i int) syntax.NodeID {
	decl := tree.Parent(def)
	if i < len(blocks) {
		block := blocks[i]
		if block.Valid() && tree.Parent(block) == decl && tree.Node(block).Field == pyFieldBody {
			return block
		}
	}
	return tree.ChildByField(decl, pyFieldBody)
}

// IsInstantiation reports whether a callee name is treated as a class
// instantiation: its first rune is an upper-case letter. This is a naming
// convention check, not type resolution.
func IsInstantiation(callee string) bool {
	r, size := utf8.DecodeRuneInString(callee)
	if size == 0 || r == utf8.RuneError {
		return false
	}
	return unicode.IsUpper(r)
}

func locationOf(tree *syntax.Tree, id syntax.NodeID) Location {
	n := tree.Node(id)
	return Location{
		Start:     n.Start,
		End:       n.End,
		StartByte: n.StartByte,
		EndByte:   n.EndByte,
	}
}
