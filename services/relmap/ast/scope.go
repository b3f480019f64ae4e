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

import "github.com/AleutianAI/relmap/services/relmap/syntax"

// IsNestedInClass reports whether id or any of its ancestors is a class
// definition, at any depth.
func IsNestedInClass(tree *syntax.Tree, id syntax.NodeID) bool {
	for a := range tree.Ancestors(id) {
		if tree.Kind(a) == pyNodeClassDefinition {
			return true
		}
	}
	return false
}

// enclosingScope returns the nearest function or class definition strictly
// above id, or NoNode at module level.
func enclosingScope(tree *syntax.Tree, id syntax.NodeID) syntax.NodeID {
	for a := range tree.Ancestors(tree.Parent(id)) {
		switch tree.Kind(a) {
		case pyNodeClassDefinition, pyNodeFunctionDefinition:
			return a
		}
	}
	return syntax.NoNode
}
