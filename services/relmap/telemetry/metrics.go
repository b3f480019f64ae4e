// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics contains the service-level instruments for relmap.
//
// Description:
//
//	HTTP instruments are recorded by MetricsMiddleware. Extraction
//	instruments are recorded by the batch runner and the HTTP handlers
//	through RecordExtraction and RecordBatch. All names use the "relmap_"
//	prefix.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPActiveRequests tracks in-flight HTTP requests.
	HTTPActiveRequests metric.Int64UpDownCounter

	// --- Extraction Metrics ---

	// ExtractionsTotal counts per-file extractions by status.
	ExtractionsTotal metric.Int64Counter

	// ExtractionDuration records per-file parse plus extract time.
	ExtractionDuration metric.Float64Histogram

	// BatchesTotal counts batch runs.
	BatchesTotal metric.Int64Counter

	// BatchDuration records wall time of a batch run.
	BatchDuration metric.Float64Histogram

	// --- Error Metrics ---

	// ErrorsTotal counts errors by type and component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics registers every instrument with meter.
//
// Example:
//
//	metrics, err := telemetry.NewMetrics(otel.Meter("relmap"))
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"relmap_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"relmap_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"relmap_http_active_requests",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	m.ExtractionsTotal, err = meter.Int64Counter(
		"relmap_extractions_total",
		metric.WithDescription("Total per-file extractions"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create extractions_total: %w", err)
	}

	m.ExtractionDuration, err = meter.Float64Histogram(
		"relmap_extraction_duration_seconds",
		metric.WithDescription("Per-file parse and extract duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create extraction_duration: %w", err)
	}

	m.BatchesTotal, err = meter.Int64Counter(
		"relmap_batches_total",
		metric.WithDescription("Total batch runs"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create batches_total: %w", err)
	}

	m.BatchDuration, err = meter.Float64Histogram(
		"relmap_batch_duration_seconds",
		metric.WithDescription("Batch run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create batch_duration: %w", err)
	}

	m.ErrorsTotal, err = meter.Int64Counter(
		"relmap_errors_total",
		metric.WithDescription("Total errors by type and component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}

// RecordExtraction records one per-file extraction. A nil receiver is a no-op.
func (m *Metrics) RecordExtraction(ctx context.Context, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.ExtractionsTotal.Add(ctx, 1, attrs)
	m.ExtractionDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordBatch records one batch run. A nil receiver is a no-op.
func (m *Metrics) RecordBatch(ctx context.Context, duration time.Duration) {
	if m == nil {
		return
	}
	m.BatchesTotal.Add(ctx, 1)
	m.BatchDuration.Record(ctx, duration.Seconds())
}

// RecordError counts an error of errType raised by component. A nil receiver is a no-op.
func (m *Metrics) RecordError(ctx context.Context, component, errType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("type", errType),
	))
}
