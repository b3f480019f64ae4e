// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Build copies a tree-sitter tree rooted at root into an arena Tree.
//
// Description:
//
//	Walks the grammar tree with a single tree cursor (first child, next
//	sibling, parent) so the depth of the source never touches the Go call
//	stack. Field names are recorded on each node so ChildByField works
//	without the grammar tree. The returned Tree does not reference root,
//	so the grammar tree may be closed once Build returns.
//
// Inputs:
//   - root: Root of the grammar tree. A nil root yields an empty Tree.
//   - source: The buffer root was parsed from. Retained, not copied.
//
// Outputs:
//   - *Tree: The arena tree, never nil.
func Build(root *sitter.Node, source []byte) *Tree {
	if root == nil {
		return newTree(source, 0)
	}

	t := newTree(source, len(source)/4)

	cursor := sitter.NewTreeCursor(root)
	defer cursor.Close()

	current := t.add(nodeFrom(cursor.CurrentNode(), "", NoNode))

	for {
		if cursor.GoToFirstChild() {
			current = t.add(nodeFrom(cursor.CurrentNode(), cursor.CurrentFieldName(), current))
			continue
		}
		for {
			if cursor.GoToNextSibling() {
				current = t.add(nodeFrom(cursor.CurrentNode(), cursor.CurrentFieldName(), t.nodes[current].Parent))
				break
			}
			if !cursor.GoToParent() {
				return t
			}
			current = t.nodes[current].Parent
		}
	}
}

func nodeFrom(n *sitter.Node, field string, parent NodeID) Node {
	sp, ep := n.StartPoint(), n.EndPoint()
	return Node{
		Kind:      n.Type(),
		Field:     field,
		Named:     n.IsNamed(),
		Missing:   n.IsMissing(),
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		Start:     Point{Row: sp.Row, Column: sp.Column},
		End:       Point{Row: ep.Row, Column: ep.Column},
		Parent:    parent,
	}
}
