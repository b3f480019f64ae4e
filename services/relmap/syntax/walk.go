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

import "iter"

// Walk yields every node of the subtree rooted at id in depth-first
// pre-order, id first.
//
// Description:
//
//	Each call to the returned sequence starts from a fresh explicit stack,
//	so a sequence can be ranged over any number of times. Depth is bounded
//	by memory, not by the goroutine stack. Breaking out of the range stops
//	the traversal without visiting the rest of the subtree.
//
// Example:
//
//	for id := range tree.Walk(body) {
//	    if tree.Kind(id) == "call" {
//	        ...
//	    }
//	}
func (t *Tree) Walk(id NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		if !t.has(id) {
			return
		}
		stack := []NodeID{id}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(top) {
				return
			}
			children := t.nodes[top].Children
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
	}
}

// Ancestors yields id and then each of its ancestors up to and including the root.
func (t *Tree) Ancestors(id NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		for cur := id; t.has(cur); cur = t.nodes[cur].Parent {
			if !yield(cur) {
				return
			}
		}
	}
}

// Find returns the first node of the given kind in the pre-order walk from id.
func (t *Tree) Find(id NodeID, kind string) NodeID {
	for n := range t.Walk(id) {
		if t.nodes[n].Kind == kind {
			return n
		}
	}
	return NoNode
}
