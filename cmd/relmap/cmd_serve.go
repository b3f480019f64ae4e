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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/relmap/services/relmap"
	"github.com/AleutianAI/relmap/services/relmap/telemetry"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort      int
	serveStorePath string
	serveNoMetrics bool
)

// serveCmd runs the HTTP service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relationship extraction HTTP service",
	Long: `Serve the /v1/relmap API.

Endpoints:
  POST /v1/relmap/extract         Extract a file on the server
  POST /v1/relmap/extract/source  Extract source sent in the body
  POST /v1/relmap/batch           Extract many files or a directory
  GET  /v1/relmap/files?path=...  Fetch a stored result
  GET  /v1/relmap/health          Health check
  GET  /v1/relmap/ready           Readiness check
  GET  /metrics                   Prometheus metrics

Examples:
  relmap serve
  relmap serve --port 9000 --store ~/.relmap/results`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (0 uses the configured value)")
	serveCmd.Flags().StringVar(&serveStorePath, "store", "", "Badger directory to persist results in")
	serveCmd.Flags().BoolVar(&serveNoMetrics, "no-metrics", false, "Do not expose /metrics")
}

func runServe(cmd *cobra.Command, _ []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	telCfg := cfg.Telemetry
	telCfg.ServiceVersion = relmap.ServiceVersion
	shutdownTelemetry, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter("relmap"))
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	svcCfg, err := relmap.ServiceConfigFrom(*cfg)
	if err != nil {
		return err
	}
	opts := []relmap.ServiceOption{
		relmap.WithMetrics(metrics),
		relmap.WithServiceLogger(slog.Default()),
	}

	db, store, err := openResultStore(serveStorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore(db)
	if store != nil {
		opts = append(opts, relmap.WithStore(store))
	}

	svc := relmap.NewService(svcCfg, opts...)
	router := relmap.NewRouter(svc, metrics, !serveNoMetrics)

	port := servePort
	if port == 0 {
		port = cfg.Server.Port
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting relmap server",
			slog.String("address", srv.Addr),
			slog.Bool("store", store != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down relmap server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
