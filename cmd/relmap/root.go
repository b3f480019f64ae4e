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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/relmap/services/relmap"
	"github.com/AleutianAI/relmap/services/relmap/ast"
	"github.com/AleutianAI/relmap/services/relmap/batch"
	"github.com/AleutianAI/relmap/services/relmap/config"
	rmbadger "github.com/AleutianAI/relmap/services/relmap/storage/badger"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

var (
	configPath string
	logLevel   string
	logJSON    bool

	// cfg is populated by loadConfig before any subcommand runs.
	cfg *config.Config
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "relmap",
	Short: "Extract structural relationships from Python source",
	Long: `relmap parses Python files and reports the relationships between
their declarations: imports, class and function definitions, methods,
calls and instantiations.

Examples:
  relmap extract app.py
  relmap scan ./src --workers 8
  relmap serve`,
	Version:           relmap.ServiceVersion,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		loaded.Log.Level = logLevel
	}
	if flags.Changed("log-json") {
		loaded.Log.JSON = logJSON
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	cfg = loaded
	slog.SetDefault(cfg.Log.NewLogger(cmd.ErrOrStderr()))
	return nil
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// methodScope resolves the scope from --direct-methods or the config.
func methodScope(direct bool) (ast.MethodScope, error) {
	if direct {
		return ast.MethodScopeDirect, nil
	}
	return ast.ParseMethodScope(cfg.Extract.MethodScope)
}

func newParser() *ast.Parser {
	return ast.NewParser(
		ast.WithMaxFileSize(cfg.Extract.MaxFileSize),
		ast.WithLogger(slog.Default()),
	)
}

func newRunner(workers int, direct bool) (*batch.Runner, error) {
	scope, err := methodScope(direct)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = cfg.Batch.Workers
	}
	return &batch.Runner{
		Workers: workers,
		Parser:  newParser(),
		Scope:   scope,
		Logger:  slog.Default(),
	}, nil
}

func discoverOptions() batch.DiscoverOptions {
	return batch.DiscoverOptions{
		Extensions: cfg.Extract.Extensions,
		SkipDirs:   cfg.Extract.SkipDirs,
	}
}

// openStore opens the Badger directory at path, or the configured store
// when path is empty. It returns nil when persistence is disabled.
func openStore(path string) (*rmbadger.DB, error) {
	switch {
	case path != "":
		return rmbadger.OpenDB(rmbadger.DefaultConfig(path))
	case cfg.Storage.InMemory:
		return rmbadger.OpenInMemory()
	case cfg.Storage.Path != "":
		return rmbadger.OpenDB(rmbadger.DefaultConfig(cfg.Storage.Path))
	default:
		return nil, nil
	}
}

func closeStore(db *rmbadger.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Warn("close store", slog.String("error", err.Error()))
	}
}

// errFailedFiles is returned by batch commands when --strict is set and at
// least one file failed.
type errFailedFiles int

func (e errFailedFiles) Error() string {
	return fmt.Sprintf("%d file(s) failed", int(e))
}
