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
	"errors"
	"fmt"
)

// Sentinel errors for extraction failures.
//
// These errors can be checked using errors.Is() to determine the
// category of failure without inspecting error messages.
var (
	// ErrFileAccess indicates that the source file could not be read.
	//
	// This is the only failure that prevents a SourceUnit from being
	// created. Syntax problems never produce it.
	ErrFileAccess = errors.New("file access failed")

	// ErrNoSourceUnit indicates that relationships were requested before a
	// source unit was created, or after the last CreateAST call failed.
	ErrNoSourceUnit = errors.New("no source unit parsed")

	// ErrFileTooLarge indicates the content exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrGrammarLoad indicates the grammar or its query failed to initialize.
	// It is a programming error and is not expected at runtime.
	ErrGrammarLoad = errors.New("grammar load failed")

	// ErrContextCanceled indicates that parsing was canceled via context.
	ErrContextCanceled = errors.New("parse canceled")

	// ErrUnitClosed indicates a SourceUnit was used after Close.
	ErrUnitClosed = errors.New("source unit closed")
)

// FileAccessError reports a source file that is missing or unreadable.
//
// It matches ErrFileAccess with errors.Is and unwraps to the underlying
// operating system error, so errors.Is(err, fs.ErrNotExist) also works.
type FileAccessError struct {
	// Path is the path that was passed to CreateAST.
	Path string

	// Op is the failed operation ("open", "read", "stat").
	Op string

	// Cause is the underlying error.
	Cause error
}

// Error returns "read path: cause".
func (e *FileAccessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *FileAccessError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrFileAccess.
func (e *FileAccessError) Is(target error) bool {
	return target == ErrFileAccess
}

// ParseError describes a syntax problem found in a parsed unit.
//
// ParseErrors are diagnostics, not failures: the tree-sitter parser is
// error tolerant, so a unit is still created and extraction still runs over
// whatever nodes were recognized.
//
// Example:
//
//	for _, d := range unit.Diagnostics {
//	    fmt.Println(d.Error()) // "main.py:3:5: syntax error near 'def'"
//	}
type ParseError struct {
	// FilePath is the display name of the unit.
	FilePath string

	// Line is the 1-indexed line number where the error occurred.
	Line int

	// Column is the 1-indexed column where the error occurred.
	// May be 0 if the error is not associated with a specific column.
	Column int

	// Message describes the error in human-readable form.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a formatted error message including file location.
//
// Format depends on available location information:
//   - With line and column: "file.py:10:5: unexpected token"
//   - With line only:       "file.py:10: unexpected token"
//   - Without location:     "file.py: unexpected token"
func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.FilePath, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IsFileAccess checks if an error is or wraps ErrFileAccess.
func IsFileAccess(err error) bool {
	return errors.Is(err, ErrFileAccess)
}
