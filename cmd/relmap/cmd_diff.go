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
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/relmap/services/relmap/batch"
)

var diffRoot string

// diffCmd extracts the files a unified diff touches.
var diffCmd = &cobra.Command{
	Use:   "diff PATCH",
	Short: "Extract only the Python files a patch touches",
	Long: `Read a unified diff (git or plain) and extract every added or modified
Python file it names. Deleted files are skipped. Use "-" to read the patch
from stdin.

Examples:
  git diff HEAD~1 | relmap diff -
  relmap diff change.patch --root ./repo --json`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&diffRoot, "root", ".", "Directory the patch paths are relative to")
	addBatchFlags(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	patch, err := readPatch(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	paths, err := batch.ChangedFiles(patch, diffRoot)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "no Python files changed")
		return nil
	}
	return runBatch(cmd, paths)
}

func readPatch(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read patch from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read patch: %w", err)
	}
	return data, nil
}
