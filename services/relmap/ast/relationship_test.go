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
	"encoding/json"
	"strings"
	"testing"
)

func TestRelationKind_String(t *testing.T) {
	want := []string{"imports", "imports_from", "class_def", "function_def", "method", "call", "instantiation"}
	for i, kind := range RelationKinds {
		if kind.String() != want[i] {
			t.Errorf("kind %d: got %q, want %q", int(kind), kind.String(), want[i])
		}
		parsed, err := ParseRelationKind(want[i])
		if err != nil || parsed != kind {
			t.Errorf("ParseRelationKind(%q) = %v, %v", want[i], parsed, err)
		}
	}
	if got := RelationKind(99).String(); got != "RelationKind(99)" {
		t.Errorf("unexpected name for unknown kind: %q", got)
	}
	if _, err := ParseRelationKind("unknown"); err == nil {
		t.Error("the zero kind must not parse")
	}
}

func TestRelationshipSet_JSONUsesBucketNames(t *testing.T) {
	set := extractSource(t, "import os\n\ndef f():\n    Widget()\n", MethodScopeNested)

	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	out := string(data)
	for _, key := range []string{`"imports":`, `"function_def":`, `"instantiation":`, `"kind":"instantiation"`, `"type":"class_instantiation"`} {
		if !strings.Contains(out, key) {
			t.Errorf("expected %s in %s", key, out)
		}
	}
	if strings.Contains(out, `"type":""`) {
		t.Error("empty type must be omitted")
	}

	var decoded RelationshipSet
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Count(Instantiation) != 1 || decoded.Get(Instantiation)[0].Callee != "Widget" {
		t.Errorf("unexpected decoded set %+v", decoded)
	}
}

func TestRelationshipSet_Helpers(t *testing.T) {
	set := make(RelationshipSet)
	set.add(Relationship{Kind: Call, Callee: "b"})
	set.add(Relationship{Kind: Import, Callee: "a"})
	set.add(Relationship{Kind: Call, Callee: "c"})

	if set.Total() != 3 {
		t.Errorf("Total = %d, want 3", set.Total())
	}
	kinds := set.Kinds()
	if len(kinds) != 2 || kinds[0] != Import || kinds[1] != Call {
		t.Errorf("Kinds = %v, want [imports call]", kinds)
	}

	var callees []string
	for _, r := range set.Flatten() {
		callees = append(callees, r.Callee)
	}
	if strings.Join(callees, ",") != "a,b,c" {
		t.Errorf("Flatten order = %v", callees)
	}

	counts := set.Counts()
	if counts["call"] != 2 || counts["imports"] != 1 || len(counts) != 2 {
		t.Errorf("Counts = %v", counts)
	}
	if set.Get(Method) != nil || set.Count(Method) != 0 {
		t.Error("absent bucket must read as empty")
	}
}
