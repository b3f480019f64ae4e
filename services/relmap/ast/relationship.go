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

	"github.com/AleutianAI/relmap/services/relmap/syntax"
)

// RelationKind identifies the bucket a Relationship belongs to.
type RelationKind int

const (
	// RelationUnknown is the zero value and never emitted.
	RelationUnknown RelationKind = iota

	// Import is a plain "import x" statement.
	Import

	// ImportFrom is a "from x import y" statement.
	ImportFrom

	// ClassDef is a class declaration.
	ClassDef

	// FunctionDef is a function declared outside any class.
	FunctionDef

	// Method is a function found in a class body, attributed to that class.
	Method

	// Call is a call whose callee does not start with an upper-case letter.
	Call

	// Instantiation is a call whose callee starts with an upper-case letter.
	Instantiation
)

// relationKindNames maps RelationKind values to their bucket names.
var relationKindNames = map[RelationKind]string{
	RelationUnknown: "unknown",
	Import:          "imports",
	ImportFrom:      "imports_from",
	ClassDef:        "class_def",
	FunctionDef:     "function_def",
	Method:          "method",
	Call:            "call",
	Instantiation:   "instantiation",
}

// RelationKinds lists every emitted kind in discovery order.
var RelationKinds = []RelationKind{Import, ImportFrom, ClassDef, FunctionDef, Method, Call, Instantiation}

// String returns the bucket name of the kind.
func (k RelationKind) String() string {
	if name, ok := relationKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("RelationKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler so kinds serialize as
// bucket names, including when used as map keys.
func (k RelationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *RelationKind) UnmarshalText(text []byte) error {
	kind, err := ParseRelationKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseRelationKind resolves a bucket name such as "class_def".
func ParseRelationKind(name string) (RelationKind, error) {
	for kind, n := range relationKindNames {
		if n == name && kind != RelationUnknown {
			return kind, nil
		}
	}
	return RelationUnknown, fmt.Errorf("unknown relation kind %q", name)
}

// Type discriminators carried by relationships in multi-purpose buckets.
const (
	TypeClassMethod        = "class_method"
	TypeFunctionCall       = "function_call"
	TypeClassInstantiation = "class_instantiation"
)

// Location is the source span of the node a relationship was emitted for.
// Points are 0-indexed; StartByte and EndByte index the parsed buffer.
type Location struct {
	Start     syntax.Point `json:"start" yaml:"start"`
	End       syntax.Point `json:"end" yaml:"end"`
	StartByte uint32       `json:"start_byte" yaml:"start_byte"`
	EndByte   uint32       `json:"end_byte" yaml:"end_byte"`
}

// Relationship is one fact connecting a caller context to a callee name.
//
// Caller is the file name for declarations and imports, the class name for
// methods, and the enclosing function name for calls and instantiations.
// Relationships are plain values; once emitted they are never modified.
type Relationship struct {
	Caller   string       `json:"caller" yaml:"caller"`
	Callee   string       `json:"callee" yaml:"callee"`
	Kind     RelationKind `json:"kind" yaml:"kind"`
	Type     string       `json:"type,omitempty" yaml:"type,omitempty"`
	Location Location     `json:"location" yaml:"location"`
}

// RelationshipSet groups relationships by kind.
//
// Each bucket keeps discovery order. Reading an absent bucket yields an
// empty slice, never an error.
type RelationshipSet map[RelationKind][]Relationship

// Get returns the bucket for kind, or nil when there is none.
func (s RelationshipSet) Get(kind RelationKind) []Relationship {
	return s[kind]
}

// Count returns the number of relationships of the given kind.
func (s RelationshipSet) Count(kind RelationKind) int {
	return len(s[kind])
}

// Total returns the number of relationships across all buckets.
func (s RelationshipSet) Total() int {
	total := 0
	for _, rels := range s {
		total += len(rels)
	}
	return total
}

// Kinds returns the non-empty kinds in canonical order.
func (s RelationshipSet) Kinds() []RelationKind {
	kinds := make([]RelationKind, 0, len(s))
	for _, k := range RelationKinds {
		if len(s[k]) > 0 {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Flatten returns every relationship, bucket by bucket in canonical order.
func (s RelationshipSet) Flatten() []Relationship {
	out := make([]Relationship, 0, s.Total())
	for _, k := range s.Kinds() {
		out = append(out, s[k]...)
	}
	return out
}

// Counts returns bucket sizes keyed by bucket name.
func (s RelationshipSet) Counts() map[string]int {
	counts := make(map[string]int, len(s))
	for _, k := range s.Kinds() {
		counts[k.String()] = len(s[k])
	}
	return counts
}

func (s RelationshipSet) add(r Relationship) {
	s[r.Kind] = append(s[r.Kind], r)
}
