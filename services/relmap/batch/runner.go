// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package batch runs relationship extraction over many files.
//
// The Runner fans files out to a bounded pool of workers, each with its own
// ast.Extractor. Discover, ChangedFiles and Watcher decide which files to
// hand to the Runner.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/relmap/services/relmap/ast"
	"github.com/AleutianAI/relmap/services/relmap/storage"
	"github.com/AleutianAI/relmap/services/relmap/telemetry"
)

const tracerName = "relmap.batch"

// FileResult is the outcome of extracting one file.
type FileResult struct {
	Path          string              `json:"path"`
	FileName      string              `json:"file_name,omitempty"`
	Hash          string              `json:"hash,omitempty"`
	Relationships ast.RelationshipSet `json:"relationships,omitempty"`
	Diagnostics   int                 `json:"diagnostics"`
	Duration      time.Duration       `json:"duration_ns"`

	// Skipped is set when Runner.Unchanged reported the content as already
	// extracted. Relationships is empty.
	Skipped bool `json:"skipped,omitempty"`

	// Err is set when the file could not be extracted. Other files in the
	// same run are unaffected.
	Err error `json:"-"`
}

// OK reports whether the file was extracted.
func (r FileResult) OK() bool {
	return r.Err == nil
}

// Record converts a successful result into a storage record.
func (r FileResult) Record(at time.Time) storage.Record {
	return storage.Record{
		Path:          r.Path,
		FileName:      r.FileName,
		Hash:          r.Hash,
		ExtractedAt:   at.UTC(),
		Relationships: r.Relationships,
	}
}

// Summary totals a run.
type Summary struct {
	Files         int `json:"files"`
	Failed        int `json:"failed"`
	Skipped       int `json:"skipped"`
	Relationships int `json:"relationships"`
}

// Summarize totals results.
func Summarize(results []FileResult) Summary {
	s := Summary{Files: len(results)}
	for _, r := range results {
		if !r.OK() {
			s.Failed++
			continue
		}
		if r.Skipped {
			s.Skipped++
			continue
		}
		s.Relationships += r.Relationships.Total()
	}
	return s
}

// Runner extracts relationships from many files concurrently.
//
// Description:
//
//	Every file gets its own Extractor so workers share nothing mutable
//	except the immutable grammar. A failure on one file is reported in its
//	FileResult and never aborts the run.
//
// Thread Safety: Safe for concurrent use once configured.
type Runner struct {
	// Workers bounds concurrent extractions. Zero or less uses GOMAXPROCS.
	Workers int

	// Parser parses every file. Nil uses ast.NewParser().
	Parser *ast.Parser

	// Scope selects how methods are discovered.
	Scope ast.MethodScope

	// Metrics is optional.
	Metrics *telemetry.Metrics

	// Logger is optional. Nil uses slog.Default().
	Logger *slog.Logger

	// Unchanged is optional. It is asked after parsing whether path with
	// this content hash was already extracted; if so the file is reported
	// Skipped and not extracted again.
	Unchanged func(ctx context.Context, path, hash string) bool
}

func (r *Runner) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run extracts every path and returns one result per path, in input order.
//
// Inputs:
//   - ctx: Cancellation stops scheduling new files. Unscheduled files get
//     a result whose Err wraps the context error.
//   - paths: Files to extract. Duplicates are extracted twice.
//
// Outputs:
//   - []FileResult: len(paths) results, results[i] belongs to paths[i].
func (r *Runner) Run(ctx context.Context, paths []string) []FileResult {
	runID := uuid.NewString()
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Runner.Run",
		trace.WithAttributes(
			attribute.String("batch.run_id", runID),
			attribute.Int("batch.files", len(paths)),
			attribute.Int("batch.workers", r.workers()),
		),
	)
	defer span.End()

	logger := telemetry.LoggerWithTrace(ctx, r.logger()).With(slog.String("run_id", runID))
	start := time.Now()

	parser := r.Parser
	if parser == nil {
		parser = ast.NewParser(ast.WithLogger(r.logger()))
	}

	results := make([]FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())

	for i, path := range paths {
		if err := gctx.Err(); err != nil {
			results[i] = FileResult{Path: path, Err: errors.Join(ast.ErrContextCanceled, err)}
			continue
		}
		g.Go(func() error {
			results[i] = r.extractOne(gctx, parser, path)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(results)
	duration := time.Since(start)
	r.Metrics.RecordBatch(ctx, duration)
	span.SetAttributes(
		attribute.Int("batch.failed", summary.Failed),
		attribute.Int("batch.skipped", summary.Skipped),
		attribute.Int("batch.relationships", summary.Relationships),
	)
	telemetry.SetSpanOK(span)

	logger.Info("batch complete",
		slog.Int("files", summary.Files),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("relationships", summary.Relationships),
		slog.Duration("duration", duration),
	)
	return results
}

func (r *Runner) extractOne(ctx context.Context, parser *ast.Parser, path string) FileResult {
	start := time.Now()
	result := FileResult{Path: path}

	ex := ast.NewExtractor(ast.WithParser(parser), ast.WithMethodScope(r.Scope))
	defer ex.Close()

	unit, err := ex.CreateAST(ctx, path)
	if err == nil {
		result.FileName = unit.FileName
		result.Hash = unit.Hash
		result.Diagnostics = len(unit.Diagnostics)
		if r.Unchanged != nil && r.Unchanged(ctx, path, unit.Hash) {
			result.Skipped = true
		} else {
			result.Relationships, err = ex.GetRelationships(ctx)
		}
	}
	result.Duration = time.Since(start)
	result.Err = err

	r.Metrics.RecordExtraction(ctx, result.Duration, err)
	if err != nil {
		r.Metrics.RecordError(ctx, "batch", errorType(err))
		r.logger().Warn("extraction failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
	return result
}

// errorType maps an extraction error to a low-cardinality label.
func errorType(err error) string {
	switch {
	case errors.Is(err, ast.ErrFileAccess):
		return "file_access"
	case errors.Is(err, ast.ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, ast.ErrContextCanceled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "extract"
	}
}
