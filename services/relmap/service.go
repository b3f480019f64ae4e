// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package relmap serves Python relationship extraction over HTTP.
//
// The Service wraps the ast extractor, the batch runner and an optional
// result store. Handlers and RegisterRoutes expose it under /v1/relmap.
package relmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/relmap/services/relmap/ast"
	"github.com/AleutianAI/relmap/services/relmap/batch"
	"github.com/AleutianAI/relmap/services/relmap/config"
	"github.com/AleutianAI/relmap/services/relmap/storage"
	"github.com/AleutianAI/relmap/services/relmap/telemetry"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	MaxFileSize  int64
	MethodScope  ast.MethodScope
	Workers      int
	Discover     batch.DiscoverOptions
	RateLimit    float64
	RateBurst    int
	MaxBodyBytes int64
}

// DefaultServiceConfig mirrors config.DefaultConfig.
func DefaultServiceConfig() ServiceConfig {
	cfg, _ := ServiceConfigFrom(config.DefaultConfig())
	return cfg
}

// ServiceConfigFrom derives a ServiceConfig from the loaded configuration.
func ServiceConfigFrom(cfg config.Config) (ServiceConfig, error) {
	scope, err := ast.ParseMethodScope(cfg.Extract.MethodScope)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("%w: %v", ErrInvalidScope, err)
	}
	return ServiceConfig{
		MaxFileSize: cfg.Extract.MaxFileSize,
		MethodScope: scope,
		Workers:     cfg.Batch.Workers,
		Discover: batch.DiscoverOptions{
			Extensions: cfg.Extract.Extensions,
			SkipDirs:   cfg.Extract.SkipDirs,
		},
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, nil
}

// ServiceOption configures optional Service dependencies.
type ServiceOption func(*Service)

// WithStore persists every successful extraction.
func WithStore(store *storage.ResultStore) ServiceOption {
	return func(s *Service) { s.store = store }
}

// WithMetrics records extraction metrics.
func WithMetrics(m *telemetry.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service performs extraction requests.
//
// Thread Safety: Safe for concurrent use. Every request gets its own
// Extractor; the parser and grammar are shared read-only.
type Service struct {
	cfg     ServiceConfig
	parser  *ast.Parser
	store   *storage.ResultStore
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewService creates a Service.
func NewService(cfg ServiceConfig, opts ...ServiceOption) *Service {
	s := &Service{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = ast.NewParser(ast.WithMaxFileSize(cfg.MaxFileSize), ast.WithLogger(s.logger))
	return s
}

// Config returns the service configuration.
func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// HasStore reports whether results are persisted.
func (s *Service) HasStore() bool {
	return s.store != nil
}

func (s *Service) scope(name string) (ast.MethodScope, error) {
	if name == "" {
		return s.cfg.MethodScope, nil
	}
	scope, err := ast.ParseMethodScope(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScope, err)
	}
	return scope, nil
}

// ExtractFile parses the file at path and returns its relationships.
func (s *Service) ExtractFile(ctx context.Context, path, scopeName string) (*ExtractResponse, error) {
	scope, err := s.scope(scopeName)
	if err != nil {
		return nil, err
	}
	return s.extract(ctx, scope, func(ex *ast.Extractor) (*ast.SourceUnit, error) {
		return ex.CreateAST(ctx, path)
	})
}

// ExtractSource parses content under the display name and returns its
// relationships. In-memory sources are never persisted.
func (s *Service) ExtractSource(ctx context.Context, name string, content []byte, scopeName string) (*ExtractResponse, error) {
	scope, err := s.scope(scopeName)
	if err != nil {
		return nil, err
	}
	return s.extract(ctx, scope, func(ex *ast.Extractor) (*ast.SourceUnit, error) {
		return ex.CreateASTFromSource(ctx, name, content)
	})
}

func (s *Service) extract(ctx context.Context, scope ast.MethodScope, create func(*ast.Extractor) (*ast.SourceUnit, error)) (*ExtractResponse, error) {
	start := time.Now()
	ex := ast.NewExtractor(ast.WithParser(s.parser), ast.WithMethodScope(scope))
	defer ex.Close()

	resp, err := func() (*ExtractResponse, error) {
		unit, err := create(ex)
		if err != nil {
			return nil, err
		}
		set, err := ex.GetRelationships(ctx)
		if err != nil {
			return nil, err
		}
		resp := &ExtractResponse{
			FileName:      unit.FileName,
			Path:          unit.Path,
			Hash:          unit.Hash,
			Relationships: set,
			Counts:        set.Counts(),
			Total:         set.Total(),
			Diagnostics:   diagnostics(unit.Diagnostics),
		}
		if s.store != nil && unit.Path != "" {
			if err := s.store.Put(ctx, storage.NewRecord(unit, set, time.Now())); err != nil {
				s.logger.Warn("store result failed",
					slog.String("path", unit.Path),
					slog.String("error", err.Error()),
				)
			}
		}
		return resp, nil
	}()

	duration := time.Since(start)
	s.metrics.RecordExtraction(ctx, duration, err)
	if err != nil {
		return nil, err
	}
	resp.DurationMs = duration.Milliseconds()
	return resp, nil
}

func diagnostics(errs []ast.ParseError) []Diagnostic {
	if len(errs) == 0 {
		return nil
	}
	out := make([]Diagnostic, len(errs))
	for i, e := range errs {
		out[i] = Diagnostic{Line: e.Line, Column: e.Column, Message: e.Message}
	}
	return out
}

// Batch extracts many files. Per-file failures are reported in the
// response; only request level problems return an error.
func (s *Service) Batch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	start := time.Now()

	paths := req.Paths
	if req.Root != "" {
		found, err := batch.Discover(req.Root, s.cfg.Discover)
		if err != nil {
			return nil, &ast.FileAccessError{Path: req.Root, Op: "discover", Cause: errors.Unwrap(err)}
		}
		paths = found
	}

	workers := s.cfg.Workers
	if req.Workers > 0 {
		workers = req.Workers
	}
	runner := &batch.Runner{
		Workers: workers,
		Parser:  s.parser,
		Scope:   s.cfg.MethodScope,
		Metrics: s.metrics,
		Logger:  s.logger,
	}
	results := runner.Run(ctx, paths)

	resp := &BatchResponse{
		Results: make([]BatchFileResult, len(results)),
		Summary: batch.Summarize(results),
	}
	now := time.Now()
	for i, r := range results {
		out := BatchFileResult{Path: r.Path, FileName: r.FileName}
		if r.Err != nil {
			_, out.Code = classify(r.Err)
			out.Error = r.Err.Error()
		} else {
			out.Relationships = r.Relationships
			out.Counts = r.Relationships.Counts()
			if s.store != nil {
				if err := s.store.Put(ctx, r.Record(now)); err != nil {
					s.logger.Warn("store result failed",
						slog.String("path", r.Path),
						slog.String("error", err.Error()),
					)
				}
			}
		}
		resp.Results[i] = out
	}
	resp.DurationMs = time.Since(start).Milliseconds()
	return resp, nil
}

// Lookup returns the stored result for path.
func (s *Service) Lookup(ctx context.Context, path string) (*storage.Record, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.Get(ctx, path)
}

// Ready reports whether the grammar loads.
func (s *Service) Ready() bool {
	_, err := ast.LoadGrammar()
	return err == nil
}
