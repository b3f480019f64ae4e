// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package syntax holds a grammar-agnostic, arena-backed concrete syntax tree.
//
// A Tree owns every Node. Nodes refer to each other through NodeID handles:
// a parent link is an index used for ancestor lookup only, never an owner,
// so the tree has no reference cycles and is released as a single value.
//
// Trees are built from tree-sitter trees by Build and are immutable afterwards.
// An immutable Tree is safe for concurrent readers.
package syntax

import "fmt"

// NodeID is a handle to a node inside a Tree.
type NodeID int32

// NoNode is the handle returned when a lookup finds nothing.
const NoNode NodeID = -1

// Valid reports whether id refers to a node (it does not check bounds).
func (id NodeID) Valid() bool {
	return id >= 0
}

// Point is a 0-indexed (row, column) position in the source text.
// Column is measured in bytes, as tree-sitter does.
type Point struct {
	Row    uint32 `json:"row" yaml:"row"`
	Column uint32 `json:"column" yaml:"column"`
}

// Less orders points lexicographically by (Row, Column).
func (p Point) Less(o Point) bool {
	if p.Row != o.Row {
		return p.Row < o.Row
	}
	return p.Column < o.Column
}

// String renders the point as "row:column".
func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Row, p.Column)
}

// Node is one position in the tree.
type Node struct {
	// Kind is the grammar production name (e.g. "class_definition").
	Kind string

	// Field is the grammar field this node fills under its parent
	// (e.g. "name", "body"). Empty when the node is not a field.
	Field string

	// Named is false for anonymous tokens such as "(" or "def".
	Named bool

	// Missing marks a zero-width node the parser inserted to recover
	// from a syntax error.
	Missing bool

	StartByte uint32
	EndByte   uint32
	Start     Point
	End       Point

	// Parent is NoNode for the root.
	Parent NodeID

	// Children in source order.
	Children []NodeID
}

type spanKey struct {
	kind       string
	start, end uint32
}

// Tree is an arena of nodes over one source buffer.
type Tree struct {
	source []byte
	nodes  []Node
	spans  map[spanKey]NodeID
}

// Root returns the root handle, or NoNode for an empty tree.
func (t *Tree) Root() NodeID {
	if t == nil || len(t.nodes) == 0 {
		return NoNode
	}
	return 0
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Source returns the buffer the tree was parsed from. Callers must not modify it.
func (t *Tree) Source() []byte {
	return t.source
}

// Node returns the node for id. It panics if id is out of range, like a slice index.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// Kind returns the grammar kind of id, or "" for NoNode.
func (t *Tree) Kind(id NodeID) string {
	if !t.has(id) {
		return ""
	}
	return t.nodes[id].Kind
}

// Parent returns the parent of id, or NoNode at the root.
func (t *Tree) Parent(id NodeID) NodeID {
	if !t.has(id) {
		return NoNode
	}
	return t.nodes[id].Parent
}

// Children returns the children of id in source order.
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.has(id) {
		return nil
	}
	return t.nodes[id].Children
}

// ChildByField returns the first child of id filling the given grammar field.
func (t *Tree) ChildByField(id NodeID, field string) NodeID {
	if !t.has(id) {
		return NoNode
	}
	for _, c := range t.nodes[id].Children {
		if t.nodes[c].Field == field {
			return c
		}
	}
	return NoNode
}

// Text returns the source text covered by id. It is materialized on each call.
func (t *Tree) Text(id NodeID) string {
	if !t.has(id) {
		return ""
	}
	n := &t.nodes[id]
	return string(t.source[n.StartByte:n.EndByte])
}

// Lookup returns the outermost node with the given kind and byte span.
//
// It maps nodes reported by the grammar engine (query captures) back to
// arena handles.
func (t *Tree) Lookup(kind string, startByte, endByte uint32) (NodeID, bool) {
	if t == nil {
		return NoNode, false
	}
	id, ok := t.spans[spanKey{kind: kind, start: startByte, end: endByte}]
	if !ok {
		return NoNode, false
	}
	return id, true
}

func (t *Tree) has(id NodeID) bool {
	return t != nil && id >= 0 && int(id) < len(t.nodes)
}

// add appends a node under parent and returns its handle.
func (t *Tree) add(n Node) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)
	if n.Parent.Valid() {
		p := &t.nodes[n.Parent]
		p.Children = append(p.Children, id)
	}
	key := spanKey{kind: n.Kind, start: n.StartByte, end: n.EndByte}
	if _, exists := t.spans[key]; !exists {
		t.spans[key] = id
	}
	return id
}

func newTree(source []byte, sizeHint int) *Tree {
	if sizeHint < 1 {
		sizeHint = 1
	}
	return &Tree{
		source: source,
		nodes:  make([]Node, 0, sizeHint),
		spans:  make(map[spanKey]NodeID, sizeHint),
	}
}
