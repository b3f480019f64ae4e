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
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/relmap/services/relmap/syntax"
)

// SourceUnit is one parsed file.
//
// Description:
//
//	A SourceUnit owns the arena tree used by the extractor and the grammar
//	tree the relationship query runs on. Both are released by Close.
//	A unit is produced only by a successful parse; syntax problems are
//	recorded in Diagnostics, never returned as errors.
//
// Thread Safety: Read-only use is safe from multiple goroutines. Close must
// not race with any other use.
type SourceUnit struct {
	// FileName is the display identifier: the base name of the parsed path,
	// or the name given to Parser.Parse.
	FileName string

	// Path is the path the unit was read from. Empty for in-memory sources.
	Path string

	// Hash is the hex SHA-256 of the parsed content.
	Hash string

	// Tree is the arena syntax tree.
	Tree *syntax.Tree

	// Diagnostics lists ERROR and missing nodes in source order.
	Diagnostics []ParseError

	raw     *sitter.Tree
	grammar *Grammar
}

// Source returns the parsed buffer.
func (u *SourceUnit) Source() []byte {
	return u.Tree.Source()
}

// HasErrors reports whether the parser had to recover from syntax errors.
func (u *SourceUnit) HasErrors() bool {
	return len(u.Diagnostics) > 0
}

// Close releases the grammar tree. The arena tree stays readable, but the
// unit can no longer be matched. Close is idempotent.
func (u *SourceUnit) Close() {
	if u == nil || u.raw == nil {
		return
	}
	u.raw.Close()
	u.raw = nil
}

func (u *SourceUnit) closed() bool {
	return u.raw == nil
}
