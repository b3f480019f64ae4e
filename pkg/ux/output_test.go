// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/AleutianAI/relmap/services/relmap/ast"
	"github.com/AleutianAI/relmap/services/relmap/syntax"
)

func extract(t *testing.T, src string) ast.RelationshipSet {
	t.Helper()
	ex := ast.NewExtractor()
	defer ex.Close()
	if _, err := ex.CreateASTFromSource(context.Background(), "app.py", []byte(src)); err != nil {
		t.Fatalf("CreateASTFromSource() error = %v", err)
	}
	set, err := ex.GetRelationships(context.Background())
	if err != nil {
		t.Fatalf("GetRelationships() error = %v", err)
	}
	return set
}

func TestIsTerminal_Buffer(t *testing.T) {
	var buf bytes.Buffer
	if IsTerminal(&buf) {
		t.Error("a buffer is never a terminal")
	}
	if NewPrinter(&buf).Color() {
		t.Error("expected no color for a buffer")
	}
}

func TestRenderRelationships(t *testing.T) {
	set := extract(t, "import os\n\ndef f():\n    g()\n")

	var buf bytes.Buffer
	RenderRelationships(&buf, "app.py", set)
	out := buf.String()

	want := []string{
		"app.py (3 relationships)",
		"  imports (1)",
		"    app.py → import os  0:0-0:9",
		"  function_def (1)",
		"    app.py → f  2:4-2:5",
		"  call (1)",
		"    f → g  3:4-3:7",
	}
	got := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), out)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRenderRelationships_Empty(t *testing.T) {
	var buf bytes.Buffer
	RenderRelationships(&buf, "empty.py", ast.RelationshipSet{})

	if got := buf.String(); got != "empty.py (0 relationships)\n" {
		t.Errorf("output = %q", got)
	}
}

func TestRenderRelationships_Singular(t *testing.T) {
	var buf bytes.Buffer
	RenderRelationships(&buf, "one.py", extract(t, "import os\n"))

	if !strings.HasPrefix(buf.String(), "one.py (1 relationship)\n") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPrinter_FileStatusAndSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainPrinter(&buf)

	p.FileStatus("a.py", IconSuccess, "")
	p.FileStatus("b.py", IconError, "no such file")
	p.Summary(2, 1, 5)

	out := buf.String()
	for _, want := range []string{
		"✓ a.py\n",
		"✗ b.py (no such file)\n",
		"2 files  1 failed  5 relationships",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_DumpNodes(t *testing.T) {
	var buf bytes.Buffer
	NewPlainPrinter(&buf).DumpNodes([]NodeDump{{
		Capture: "function.def",
		Kind:    "identifier",
		Text:    "f",
		Loc: ast.Location{
			Start:     syntax.Point{Row: 0, Column: 4},
			End:       syntax.Point{Row: 0, Column: 5},
			StartByte: 4,
			EndByte:   5,
		},
	}})

	out := buf.String()
	if !strings.Contains(out, `"f"`) || !strings.Contains(out, "0:4-0:5 [4:5]") {
		t.Errorf("unexpected dump %q", out)
	}
}

func TestOneLine(t *testing.T) {
	if got := oneLine("from x import (\n    a,\n    b)"); got != "from x import ( a, b)" {
		t.Errorf("oneLine() = %q", got)
	}
	if got := oneLine("import os"); got != "import os" {
		t.Errorf("oneLine() = %q", got)
	}
}
