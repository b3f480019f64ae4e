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
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/relmap/services/relmap/syntax"
)

// Captures maps capture names to the arena nodes they matched.
//
// Each bucket is in source order. For the paired buckets (function.def with
// function.block, class.def with class.block) index i of both buckets comes
// from the same declaration. Reading an absent bucket yields nil.
type Captures map[string][]syntax.NodeID

// Get returns the nodes captured under name.
func (c Captures) Get(name string) []syntax.NodeID {
	return c[name]
}

// ctxCheckInterval is how many query matches run between context checks.
const ctxCheckInterval = 256

// Match runs the relationship query once over the whole unit.
//
// Description:
//
//	Every query match is mapped back from grammar nodes to arena handles.
//	A definition capture and its body capture are taken from the same
//	match and recorded together, so paired buckets stay aligned even when
//	declarations nest. Buckets are then ordered by the start of their
//	(definition) node, keeping pairs together.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - unit: A unit that has not been closed.
//
// Outputs:
//   - Captures: Capture buckets. Never nil on success.
//   - error: ErrUnitClosed, ErrContextCanceled.
func Match(ctx context.Context, unit *SourceUnit) (Captures, error) {
	if unit == nil {
		return nil, ErrNoSourceUnit
	}
	if unit.closed() {
		return nil, ErrUnitClosed
	}

	g := unit.grammar
	tree := unit.Tree
	root := unit.raw.RootNode()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(g.query, root)

	caps := make(Captures)
	var pairs []capturePair

	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: matching: %v", ErrContextCanceled, err)
			}
		}

		m, ok := qc.NextMatch()
		if !ok {
			break
		}

		byName := make(map[string]syntax.NodeID, len(m.Captures))
		for _, c := range m.Captures {
			id, found := lookupNode(tree, c.Node)
			if !found {
				continue
			}
			byName[g.captureName(c.Index)] = id
		}

		for name, id := range byName {
			if block, paired := pairedCaptures[name]; paired {
				pairs = append(pairs, capturePair{
					defName:   name,
					def:       id,
					blockName: block,
					block:     blockOrNone(byName, block),
				})
				continue
			}
			if isBlockCapture(name) {
				continue
			}
			caps[name] = append(caps[name], id)
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return tree.Node(pairs[i].def).StartByte < tree.Node(pairs[j].def).StartByte
	})
	for _, p := range pairs {
		caps[p.defName] = append(caps[p.defName], p.def)
		caps[p.blockName] = append(caps[p.blockName], p.block)
	}

	for name, ids := range caps {
		if _, paired := pairedCaptures[name]; paired || isBlockCapture(name) {
			continue
		}
		sort.SliceStable(ids, func(i, j int) bool {
			return tree.Node(ids[i]).StartByte < tree.Node(ids[j]).StartByte
		})
	}

	return caps, nil
}

type capturePair struct {
	defName   string
	def       syntax.NodeID
	blockName string
	block     syntax.NodeID
}

func lookupNode(tree *syntax.Tree, n *sitter.Node) (syntax.NodeID, bool) {
	if n == nil {
		return syntax.NoNode, false
	}
	return tree.Lookup(n.Type(), n.StartByte(), n.EndByte())
}

func blockOrNone(byName map[string]syntax.NodeID, name string) syntax.NodeID {
	if id, ok := byName[name]; ok {
		return id
	}
	return syntax.NoNode
}

func isBlockCapture(name string) bool {
	for _, block := range pairedCaptures {
		if block == name {
			return true
		}
	}
	return false
}
