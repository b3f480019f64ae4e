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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for parsing and extraction.
var (
	tracer = otel.Tracer("relmap.ast")
	meter  = otel.Meter("relmap.ast")
)

var (
	parseLatency      metric.Float64Histogram
	parseTotal        metric.Int64Counter
	parseDiagnostics  metric.Int64Counter
	relationshipTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		parseLatency, err = meter.Float64Histogram(
			"relmap_parse_duration_seconds",
			metric.WithDescription("Duration of source parsing"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseTotal, err = meter.Int64Counter(
			"relmap_parse_total",
			metric.WithDescription("Total number of parse operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseDiagnostics, err = meter.Int64Counter(
			"relmap_parse_diagnostics_total",
			metric.WithDescription("Syntax error and missing nodes found while parsing"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		relationshipTotal, err = meter.Int64Counter(
			"relmap_relationships_extracted",
			metric.WithDescription("Relationships emitted, by kind"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordParseMetrics records metrics for a parse operation.
//
// Parameters:
//   - ctx: Context for metric recording
//   - duration: How long the parse took
//   - diagnostics: Number of syntax diagnostics on the unit
//   - success: Whether a unit was produced
func recordParseMetrics(ctx context.Context, duration time.Duration, diagnostics int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	parseLatency.Record(ctx, duration.Seconds(), attrs)
	parseTotal.Add(ctx, 1, attrs)
	if diagnostics > 0 {
		parseDiagnostics.Add(ctx, int64(diagnostics))
	}
}

// recordExtractMetrics adds one counter sample per non-empty bucket.
func recordExtractMetrics(ctx context.Context, set RelationshipSet) {
	if err := initMetrics(); err != nil {
		return
	}
	for kind, rels := range set {
		if len(rels) == 0 {
			continue
		}
		relationshipTotal.Add(ctx, int64(len(rels)),
			metric.WithAttributes(attribute.String("kind", kind.String())),
		)
	}
}

// startParseSpan creates a span for a parse operation.
// The caller must call span.End().
func startParseSpan(ctx context.Context, fileName string, contentSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Parser.Parse",
		trace.WithAttributes(
			attribute.String("relmap.file", fileName),
			attribute.Int("relmap.content_size", contentSize),
		),
	)
}

func startExtractSpan(ctx context.Context, fileName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Extract",
		trace.WithAttributes(attribute.String("relmap.file", fileName)),
	)
}

// setExtractSpanResult sets the result attributes on an extract span.
func setExtractSpanResult(span trace.Span, set RelationshipSet) {
	span.SetAttributes(
		attribute.Int("relmap.relationship_count", set.Total()),
		attribute.Int("relmap.call_count", set.Count(Call)),
		attribute.Int("relmap.method_count", set.Count(Method)),
	)
}

// setParseSpanResult sets the result attributes on a parse span.
func setParseSpanResult(span trace.Span, nodeCount int, diagnostics int) {
	span.SetAttributes(
		attribute.Int("relmap.node_count", nodeCount),
		attribute.Int("relmap.diagnostic_count", diagnostics),
	)
}
