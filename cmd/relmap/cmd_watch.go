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
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/relmap/pkg/ux"
	"github.com/AleutianAI/relmap/services/relmap/batch"
)

var (
	watchDebounce      time.Duration
	watchDirectMethods bool
	watchStorePath     string
)

// watchCmd re-extracts files as they change.
var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Re-extract Python files as they change",
	Long: `Watch DIR recursively and re-extract every created or modified Python
file once the tree has been quiet for the debounce window. With a store,
deleted files are removed from it and saves that leave the content
unchanged are not extracted again.

Stop with Ctrl-C.

Examples:
  relmap watch ./src
  relmap watch ./src --debounce 500ms --store ~/.relmap/results`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "Quiet period before extraction (0 uses the configured value)")
	watchCmd.Flags().BoolVar(&watchDirectMethods, "direct-methods", false, "Only report methods declared directly in a class body")
	watchCmd.Flags().StringVar(&watchStorePath, "store", "", "Badger directory to persist results in")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root := args[0]

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	sigCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := newRunner(0, watchDirectMethods)
	if err != nil {
		return err
	}

	db, store, err := openResultStore(watchStorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore(db)
	if store != nil {
		runner.Unchanged = store.Unchanged
	}

	printer := ux.NewPrinter(cmd.OutOrStdout())
	handler := func(ctx context.Context, ev batch.WatchEvent) {
		for _, path := range ev.Removed {
			printer.FileStatus(path, ux.IconBullet, "removed")
			if store == nil {
				continue
			}
			if err := store.Delete(ctx, path); err != nil {
				slog.Warn("delete stored result", slog.String("path", path), slog.String("error", err.Error()))
			}
		}
		for _, r := range ev.Results {
			printResult(printer, r)
		}
		if store != nil {
			storeResults(ctx, store, ev.Results)
		}
	}

	debounce := watchDebounce
	if debounce <= 0 {
		debounce = cfg.Batch.Debounce
	}
	w, err := batch.NewWatcher(root, runner, handler, batch.WatchOptions{
		Debounce: debounce,
		Discover: discoverOptions(),
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Stop, not cancellation, ends the watch: queued changes must reach the
	// store before it closes.
	if err := w.Start(parent); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	printer.Title("Watching " + root)
	<-sigCtx.Done()
	w.Stop()
	return nil
}
