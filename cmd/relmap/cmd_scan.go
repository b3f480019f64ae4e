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
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/relmap/pkg/ux"
	"github.com/AleutianAI/relmap/services/relmap/batch"
	"github.com/AleutianAI/relmap/services/relmap/storage"
	rmbadger "github.com/AleutianAI/relmap/services/relmap/storage/badger"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	// Shared by scan and diff
	batchWorkers       int
	batchStorePath     string
	batchDirectMethods bool
	batchJSON          bool
	batchStrict        bool
	batchForce         bool
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

// scanCmd extracts every Python file under a directory.
var scanCmd = &cobra.Command{
	Use:   "scan DIR",
	Short: "Extract every Python file under a directory",
	Long: `Walk DIR, extract every matching file concurrently and print one
status line per file followed by a summary.

Virtual environments, caches and VCS directories are skipped. Results are
persisted when --store is given or storage is configured; files whose
content matches the stored result are reported as unchanged and not
extracted again unless --force is set.

Examples:
  relmap scan ./src
  relmap scan ./src --workers 16 --json
  relmap scan ./src --store ~/.relmap/results
  relmap scan ./src --store ~/.relmap/results --force
  relmap scan ./src --strict`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	addBatchFlags(scanCmd)
}

func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "Concurrent extractions (0 uses the configured value)")
	cmd.Flags().StringVar(&batchStorePath, "store", "", "Badger directory to persist results in")
	cmd.Flags().BoolVar(&batchDirectMethods, "direct-methods", false, "Only report methods declared directly in a class body")
	cmd.Flags().BoolVar(&batchJSON, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&batchStrict, "strict", false, "Exit non-zero when any file fails")
	cmd.Flags().BoolVar(&batchForce, "force", false, "Re-extract files whose stored result is current")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runScan(cmd *cobra.Command, args []string) error {
	paths, err := batch.Discover(args[0], discoverOptions())
	if err != nil {
		return err
	}
	return runBatch(cmd, paths)
}

// runBatch extracts paths, persists successes and prints the outcome.
func runBatch(cmd *cobra.Command, paths []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runner, err := newRunner(batchWorkers, batchDirectMethods)
	if err != nil {
		return err
	}

	db, err := openStore(batchStorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore(db)

	var store *storage.ResultStore
	if db != nil {
		store = storage.NewResultStore(db)
		if !batchForce {
			runner.Unchanged = store.Unchanged
		}
	}

	results := runner.Run(ctx, paths)
	if store != nil {
		storeResults(ctx, store, results)
	}

	summary := batch.Summarize(results)
	if batchJSON {
		err = writeStructured(cmd.OutOrStdout(), formatJSON, batchOutput(results, summary))
	} else {
		printResults(cmd.OutOrStdout(), results)
	}
	if err != nil {
		return err
	}

	if batchStrict && summary.Failed > 0 {
		return errFailedFiles(summary.Failed)
	}
	return nil
}

func storeResults(ctx context.Context, store *storage.ResultStore, results []batch.FileResult) {
	now := time.Now()
	for _, r := range results {
		if !r.OK() || r.Skipped {
			continue
		}
		if err := store.Put(ctx, r.Record(now)); err != nil {
			slog.Warn("store result",
				slog.String("path", r.Path),
				slog.String("error", err.Error()))
		}
	}
}

type batchFile struct {
	batch.FileResult
	Error string `json:"error,omitempty"`
}

type batchResult struct {
	Results []batchFile   `json:"results"`
	Summary batch.Summary `json:"summary"`
}

func batchOutput(results []batch.FileResult, summary batch.Summary) batchResult {
	out := batchResult{Results: make([]batchFile, len(results)), Summary: summary}
	for i, r := range results {
		out.Results[i] = batchFile{FileResult: r}
		if r.Err != nil {
			out.Results[i].Error = r.Err.Error()
		}
	}
	return out
}

func printResults(w io.Writer, results []batch.FileResult) {
	p := ux.NewPrinter(w)
	for _, r := range results {
		printResult(p, r)
	}
	s := batch.Summarize(results)
	p.Summary(s.Files, s.Failed, s.Relationships)
}

func printResult(p *ux.Printer, r batch.FileResult) {
	switch {
	case !r.OK():
		p.FileStatus(r.Path, ux.IconError, r.Err.Error())
	case r.Skipped:
		p.FileStatus(r.Path, ux.IconBullet, "unchanged")
	default:
		p.FileStatus(r.Path, ux.IconSuccess, fmt.Sprintf("%d", r.Relationships.Total()))
	}
}

// openResultStore is used by watch, which keeps the store open for the
// lifetime of the command.
func openResultStore(path string) (*rmbadger.DB, *storage.ResultStore, error) {
	db, err := openStore(path)
	if err != nil || db == nil {
		return nil, nil, err
	}
	return db, storage.NewResultStore(db), nil
}
