// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/relmap/pkg/ux"
	"github.com/AleutianAI/relmap/services/relmap/ast"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	extractFormat        string
	extractDirectMethods bool
	extractDumpNodes     bool
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

// extractCmd extracts relationships from individual files.
var extractCmd = &cobra.Command{
	Use:   "extract FILE...",
	Short: "Extract relationships from Python files",
	Long: `Parse each file and print its relationships grouped by kind.

Kinds are reported in a fixed order: imports, from-imports, class
definitions, function definitions, methods, calls and instantiations.

Examples:
  relmap extract app.py
  relmap extract app.py models.py --format json
  relmap extract app.py --direct-methods
  relmap extract app.py --dump-nodes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", formatText, "Output format: text, json, yaml")
	extractCmd.Flags().BoolVar(&extractDirectMethods, "direct-methods", false, "Only report methods declared directly in a class body")
	extractCmd.Flags().BoolVar(&extractDumpNodes, "dump-nodes", false, "Print the matched definition nodes instead of relationships")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// fileOutput is the structured form of one extracted file.
type fileOutput struct {
	File          string              `json:"file" yaml:"file"`
	Path          string              `json:"path" yaml:"path"`
	Hash          string              `json:"hash" yaml:"hash"`
	Diagnostics   int                 `json:"diagnostics" yaml:"diagnostics"`
	Relationships ast.RelationshipSet `json:"relationships" yaml:"relationships"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	switch extractFormat {
	case formatText, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", extractFormat)
	}

	scope, err := methodScope(extractDirectMethods)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	parser := newParser()
	out := cmd.OutOrStdout()
	printer := ux.NewPrinter(out)

	var outputs []fileOutput
	for _, path := range args {
		if extractDumpNodes {
			if err := dumpNodes(ctx, parser, printer, path); err != nil {
				return err
			}
			continue
		}

		o, err := extractFile(ctx, parser, scope, path)
		if err != nil {
			return err
		}
		if extractFormat == formatText {
			printer.Relationships(o.File, o.Relationships)
			continue
		}
		outputs = append(outputs, o)
	}

	if extractDumpNodes || extractFormat == formatText {
		return nil
	}
	return writeStructured(out, extractFormat, outputs)
}

func extractFile(ctx context.Context, parser *ast.Parser, scope ast.MethodScope, path string) (fileOutput, error) {
	ex := ast.NewExtractor(ast.WithParser(parser), ast.WithMethodScope(scope))
	defer ex.Close()

	unit, err := ex.CreateAST(ctx, path)
	if err != nil {
		return fileOutput{}, err
	}
	set, err := ex.GetRelationships(ctx)
	if err != nil {
		return fileOutput{}, fmt.Errorf("extract %s: %w", path, err)
	}
	return fileOutput{
		File:          unit.FileName,
		Path:          unit.Path,
		Hash:          unit.Hash,
		Diagnostics:   len(unit.Diagnostics),
		Relationships: set,
	}, nil
}

// dumpCaptures is the order captures are listed by --dump-nodes.
var dumpCaptures = []string{
	ast.CaptureImport,
	ast.CaptureImportFrom,
	ast.CaptureClassDef,
	ast.CaptureClassBlock,
	ast.CaptureFunctionDef,
	ast.CaptureFunctionBlock,
}

func dumpNodes(ctx context.Context, parser *ast.Parser, printer *ux.Printer, path string) error {
	unit, err := parser.ParseFile(ctx, path)
	if err != nil {
		return err
	}
	defer unit.Close()

	caps, err := ast.Match(ctx, unit)
	if err != nil {
		return fmt.Errorf("match %s: %w", path, err)
	}

	printer.Title(unit.FileName)
	var rows []ux.NodeDump
	for _, name := range dumpCaptures {
		for _, id := range caps.Get(name) {
			n := unit.Tree.Node(id)
			rows = append(rows, ux.NodeDump{
				Capture: name,
				Kind:    n.Kind,
				Text:    unit.Tree.Text(id),
				Loc: ast.Location{
					Start:     n.Start,
					End:       n.End,
					StartByte: n.StartByte,
					EndByte:   n.EndByte,
				},
			})
		}
	}
	printer.DumpNodes(rows)
	return nil
}

func writeStructured(w io.Writer, format string, v any) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
