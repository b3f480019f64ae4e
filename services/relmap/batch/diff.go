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
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

const devNull = "/dev/null"

// ChangedFiles returns the source files a unified diff leaves in place.
//
// Description:
//
//	Deleted files are skipped. Git's a/ and b/ prefixes are stripped only
//	when the file diff carries them on both sides, so --no-prefix patches
//	keep real top-level a/ and b/ directories. The remaining path is joined
//	onto root. Only files with a default discover
//	extension are returned, each once, in diff order.
//
// Example:
//
//	patch, _ := exec.Command("git", "diff", "main").Output()
//	paths, err := batch.ChangedFiles(patch, repoRoot)
func ChangedFiles(patch []byte, root string) ([]string, error) {
	fileDiffs, err := diff.NewMultiFileDiffReader(bytes.NewReader(patch)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	exts := DefaultDiscoverOptions().Extensions
	seen := make(map[string]bool, len(fileDiffs))
	var out []string
	for _, fd := range fileDiffs {
		name := fd.NewName
		if name == "" || name == devNull {
			continue
		}
		if gitPrefixed(fd) {
			name = strings.TrimPrefix(name, "b/")
		}
		if !hasExtension(name, exts) {
			continue
		}
		path := filepath.Join(root, filepath.FromSlash(name))
		if seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, path)
	}
	return out, nil
}

// gitPrefixed reports whether fd names its files with git's default a/ and
// b/ prefixes. The "diff --git" header decides when present, which also
// covers added files whose old name is /dev/null.
func gitPrefixed(fd *diff.FileDiff) bool {
	for _, line := range fd.Extended {
		if rest, ok := strings.CutPrefix(line, "diff --git "); ok {
			return strings.HasPrefix(rest, "a/") && strings.Contains(rest, " b/")
		}
	}
	return strings.HasPrefix(fd.OrigName, "a/") && strings.HasPrefix(fd.NewName, "b/")
}
