// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DiscoverOptions controls which files Discover returns.
type DiscoverOptions struct {
	// Extensions are the file suffixes to include, with the leading dot.
	// Default: [".py", ".pyi"]
	Extensions []string

	// SkipDirs are directory base names that are never entered.
	// Default: [".git", "__pycache__", ".venv", "venv", ".tox", "node_modules", "site-packages"]
	SkipDirs []string

	// IncludeHidden enters directories whose name starts with a dot.
	IncludeHidden bool
}

// DefaultDiscoverOptions returns the options used for Python projects.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{
		Extensions: []string{".py", ".pyi"},
		SkipDirs:   []string{".git", "__pycache__", ".venv", "venv", ".tox", "node_modules", "site-packages"},
	}
}

// virtualenvMarker is present at the root of every virtualenv.
const virtualenvMarker = "pyvenv.cfg"

// Discover lists the source files under root in lexical order.
//
// Description:
//
//	Skipped directories, hidden directories and virtualenvs (directories
//	containing pyvenv.cfg) are not entered. Unreadable subdirectories are
//	skipped. A root that is itself a matching file is returned alone.
//
// Outputs:
//   - []string: Matching paths, joined onto root.
//   - error: Non-nil when root cannot be read.
func Discover(root string, opts DiscoverOptions) ([]string, error) {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultDiscoverOptions().Extensions
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}
	if !info.IsDir() {
		if hasExtension(root, opts.Extensions) {
			return []string{root}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != root && skipDir(path, d.Name(), opts) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && hasExtension(path, opts.Extensions) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}
	return files, nil
}

func skipDir(path, name string, opts DiscoverOptions) bool {
	if slices.Contains(opts.SkipDirs, name) {
		return true
	}
	if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	_, err := os.Stat(filepath.Join(path, virtualenvMarker))
	return err == nil
}

func hasExtension(path string, exts []string) bool {
	return slices.Contains(exts, filepath.Ext(path))
}
