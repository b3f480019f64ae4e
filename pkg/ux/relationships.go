// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/relmap/services/relmap/ast"
)

// RenderRelationships writes set as an indented listing grouped by kind.
//
// Kinds appear in canonical order and empty kinds are omitted. Each line is
//
//	caller → callee  row:col-row:col
//
// Example output:
//
//	app.py (3 relationships)
//	  imports (1)
//	    app.py → import os  0:0-0:9
func RenderRelationships(w io.Writer, fileName string, set ast.RelationshipSet) {
	NewPrinter(w).Relationships(fileName, set)
}

// Relationships writes set grouped by kind. See RenderRelationships.
func (p *Printer) Relationships(fileName string, set ast.RelationshipSet) {
	total := set.Total()
	noun := "relationships"
	if total == 1 {
		noun = "relationship"
	}
	fmt.Fprintf(p.w, "%s %s\n",
		p.render(Styles.Title, fileName),
		p.render(Styles.Muted, fmt.Sprintf("(%d %s)", total, noun)))

	for _, kind := range set.Kinds() {
		rels := set.Get(kind)
		fmt.Fprintf(p.w, "  %s %s\n",
			p.render(Styles.Subtitle, kind.String()),
			p.render(Styles.Muted, fmt.Sprintf("(%d)", len(rels))))

		for _, r := range rels {
			fmt.Fprintf(p.w, "    %s %s %s  %s\n",
				r.Caller,
				p.render(Styles.Muted, string(IconArrow)),
				p.render(Styles.Highlight, oneLine(r.Callee)),
				p.render(Styles.Muted, span(r.Location)))
		}
	}
}

// NodeDump is one row of a definition node listing.
type NodeDump struct {
	Capture string
	Kind    string
	Text    string
	Loc     ast.Location
}

// DumpNodes writes one line per node: capture, kind, text, points and byte
// offsets.
func (p *Printer) DumpNodes(nodes []NodeDump) {
	for _, n := range nodes {
		fmt.Fprintf(p.w, "%-16s %-22s %-32q %s [%d:%d]\n",
			n.Capture, n.Kind, oneLine(n.Text), span(n.Loc), n.Loc.StartByte, n.Loc.EndByte)
	}
}

func span(loc ast.Location) string {
	return loc.Start.String() + "-" + loc.End.String()
}

// oneLine collapses a multi-line callee or import onto one line.
func oneLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}
