// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast parses Python source files and extracts the relationships
// between their imports, classes, functions, methods and calls.
//
// Parsing uses tree-sitter, which is error tolerant: any readable file yields
// a SourceUnit, and extraction runs best effort over whatever the parser
// recognized. The only failure that prevents extraction is an unreadable
// file.
package ast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/relmap/services/relmap/syntax"
)

const (
	// DefaultMaxFileSize is the maximum file size the parser will accept (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold at which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024

	// maxDiagnosticText bounds the source excerpt quoted in a diagnostic.
	maxDiagnosticText = 32
)

// ParserOption configures a Parser instance.
type ParserOption func(*Parser)

// WithMaxFileSize sets the maximum file size the parser will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Non-positive values are ignored.
//
// Example:
//
//	parser := NewParser(WithMaxFileSize(5 * 1024 * 1024)) // 5MB limit
func WithMaxFileSize(bytes int64) ParserOption {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithLogger sets the logger used for parse warnings.
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Parser turns Python source into SourceUnits.
//
// Description:
//
//	Parser uses the shared Grammar and creates a new tree-sitter parser
//	instance for each call, so one Parser supports concurrent use from
//	multiple goroutines.
//
// Thread Safety: Safe for concurrent use.
type Parser struct {
	maxFileSize int64
	logger      *slog.Logger
}

// NewParser creates a Parser with the given options.
//
// Example:
//
//	parser := NewParser()
//	unit, err := parser.Parse(ctx, []byte("import os\n"), "main.py")
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxFileSize returns the configured size limit in bytes.
func (p *Parser) MaxFileSize() int64 {
	return p.maxFileSize
}

// Parse parses content into a SourceUnit named name.
//
// Description:
//
//	Syntax errors never fail the parse: the returned unit carries a
//	diagnostic for every ERROR and missing node. Content that is not valid
//	UTF-8 is parsed as is, with a warning, since names are still extracted
//	byte for byte.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//   - content: Source bytes. Retained by the unit, not copied.
//   - name: Display identifier stored as SourceUnit.FileName.
//
// Outputs:
//   - *SourceUnit: The parsed unit. The caller must Close it.
//   - error: ErrFileTooLarge, ErrContextCanceled, ErrGrammarLoad, or a
//     tree-sitter failure.
func (p *Parser) Parse(ctx context.Context, content []byte, name string) (*SourceUnit, error) {
	ctx, span := startParseSpan(ctx, name, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: before start: %v", ErrContextCanceled, err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		p.logger.Warn("parsing large file",
			slog.String("file", name),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		p.logger.Warn("content is not valid UTF-8, names may be garbled",
			slog.String("file", name))
	}

	g, err := LoadGrammar()
	if err != nil {
		recordParseMetrics(ctx, time.Since(start), 0, false)
		return nil, err
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.Language())

	raw, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, time.Since(start), 0, false)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCanceled, ctx.Err())
		}
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		raw.Close()
		recordParseMetrics(ctx, time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: after tree-sitter: %v", ErrContextCanceled, err)
	}

	unit := &SourceUnit{
		FileName: name,
		Hash:     hex.EncodeToString(hash[:]),
		Tree:     syntax.Build(raw.RootNode(), content),
		raw:      raw,
		grammar:  g,
	}
	unit.Diagnostics = diagnose(unit.Tree, name)

	if len(unit.Diagnostics) > 0 {
		p.logger.Debug("source contains syntax errors",
			slog.String("file", name),
			slog.Int("diagnostics", len(unit.Diagnostics)))
	}

	setParseSpanResult(span, unit.Tree.Len(), len(unit.Diagnostics))
	recordParseMetrics(ctx, time.Since(start), len(unit.Diagnostics), true)
	return unit, nil
}

// ParseFile reads and parses the file at path.
//
// Description:
//
//	The unit's FileName is filepath.Base(path). A file that cannot be
//	stat'ed or read yields a *FileAccessError and no unit.
//
// Outputs:
//   - *SourceUnit: The parsed unit. The caller must Close it.
//   - error: *FileAccessError, ErrFileTooLarge, or any error from Parse.
func (p *Parser) ParseFile(ctx context.Context, path string) (*SourceUnit, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &FileAccessError{Path: path, Op: "stat", Cause: err}
	}
	if info.IsDir() {
		return nil, &FileAccessError{Path: path, Op: "read", Cause: errors.New("is a directory")}
	}
	if info.Size() > p.maxFileSize {
		return nil, fmt.Errorf("%w: %s: size %d exceeds limit %d", ErrFileTooLarge, path, info.Size(), p.maxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileAccessError{Path: path, Op: "read", Cause: err}
	}

	unit, err := p.Parse(ctx, content, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	unit.Path = path
	return unit, nil
}

// diagnose collects a ParseError for every ERROR or missing node.
// Nodes inside an ERROR node are not reported separately.
func diagnose(tree *syntax.Tree, name string) []ParseError {
	var out []ParseError
	var skipEnd uint32
	for id := range tree.Walk(tree.Root()) {
		n := tree.Node(id)
		if n.StartByte < skipEnd {
			continue
		}
		switch {
		case n.Kind == pyNodeError:
			out = append(out, ParseError{
				FilePath: name,
				Line:     int(n.Start.Row) + 1,
				Column:   int(n.Start.Column) + 1,
				Message:  fmt.Sprintf("syntax error near %q", excerpt(tree.Text(id))),
			})
			skipEnd = n.EndByte
		case n.Missing:
			out = append(out, ParseError{
				FilePath: name,
				Line:     int(n.Start.Row) + 1,
				Column:   int(n.Start.Column) + 1,
				Message:  fmt.Sprintf("missing %s", n.Kind),
			})
		}
	}
	return out
}

func excerpt(text string) string {
	if len(text) <= maxDiagnosticText {
		return text
	}
	cut := maxDiagnosticText
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
