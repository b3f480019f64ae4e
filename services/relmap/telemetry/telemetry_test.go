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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	t.Setenv("OTEL_METRICS_EXPORTER", "")
	cfg := DefaultConfig()

	if cfg.ServiceName != "relmap" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "relmap")
	}
	if cfg.TraceExporter != ExporterNone {
		t.Errorf("TraceExporter = %q, want %q", cfg.TraceExporter, ExporterNone)
	}
	if cfg.MetricExporter != ExporterPrometheus {
		t.Errorf("MetricExporter = %q, want %q", cfg.MetricExporter, ExporterPrometheus)
	}
	if cfg.OTLPEndpoint != "localhost:4317" {
		t.Errorf("OTLPEndpoint = %q, want %q", cfg.OTLPEndpoint, "localhost:4317")
	}
}

func TestDefaultConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	t.Setenv("RELMAP_ENV", "ci")

	cfg := DefaultConfig()
	if cfg.TraceExporter != "stdout" {
		t.Errorf("TraceExporter = %q, want stdout", cfg.TraceExporter)
	}
	if cfg.Environment != "ci" {
		t.Errorf("Environment = %q, want ci", cfg.Environment)
	}
}

func TestInit_NilContext(t *testing.T) {
	cfg := DefaultConfig()

	_, err := Init(nil, cfg)
	if !errors.Is(err, ErrNilContext) {
		t.Errorf("Init(nil, cfg) error = %v, want %v", err, ErrNilContext)
	}
}

func TestInit_NoopExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterNone
	cfg.MetricExporter = ExporterNone

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown function is nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "zipkin"
	cfg.MetricExporter = ExporterNone

	_, err := Init(context.Background(), cfg)
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("expected ErrUnknownExporter, got %v", err)
	}

	cfg.TraceExporter = ExporterNone
	cfg.MetricExporter = "graphite"
	_, err = Init(context.Background(), cfg)
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("expected ErrUnknownExporter for metrics, got %v", err)
	}
}

func TestInit_StdoutMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterNone
	cfg.MetricExporter = ExporterStdout

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestInit_PrometheusHandler(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterNone
	cfg.MetricExporter = ExporterPrometheus

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	handler := MetricsHandler()
	if handler == nil {
		t.Fatal("expected a metrics handler")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("metrics status = %d", w.Code)
	}
}

func TestLoggerWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LoggerWithTrace(context.Background(), logger).Info("no span")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("unexpected trace_id without span: %s", buf.String())
	}
	buf.Reset()

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	LoggerWithTrace(ctx, logger).Info("with span")
	out := buf.String()
	if !strings.Contains(out, `"trace_id":"`+TraceID(ctx)+`"`) {
		t.Errorf("expected trace_id in %s", out)
	}
	if !strings.Contains(out, `"span_id":"`+SpanID(ctx)+`"`) {
		t.Errorf("expected span_id in %s", out)
	}
	if TraceID(context.Background()) != "" || SpanID(context.Background()) != "" {
		t.Error("expected empty IDs without a span")
	}
}

func TestRecordError_NilSafe(t *testing.T) {
	RecordError(nil, errors.New("boom"))
	SetSpanOK(nil)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	_, span := tp.Tracer("test").Start(context.Background(), "op")
	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()
}

// newTestMetrics returns metrics backed by a manual reader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(data metricdata.Aggregation) int64 {
	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		return -1
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordExtractionAndBatch(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordExtraction(ctx, 10*time.Millisecond, nil)
	m.RecordExtraction(ctx, 5*time.Millisecond, errors.New("missing"))
	m.RecordBatch(ctx, time.Second)
	m.RecordError(ctx, "batch", "file_access")

	data := collect(t, reader)
	if got := sumOf(data["relmap_extractions_total"]); got != 2 {
		t.Errorf("extractions_total = %d, want 2", got)
	}
	if got := sumOf(data["relmap_batches_total"]); got != 1 {
		t.Errorf("batches_total = %d, want 1", got)
	}
	if got := sumOf(data["relmap_errors_total"]); got != 1 {
		t.Errorf("errors_total = %d, want 1", got)
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	m.RecordExtraction(context.Background(), time.Millisecond, nil)
	m.RecordBatch(context.Background(), time.Millisecond)
	m.RecordError(context.Background(), "x", "y")
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, reader := newTestMetrics(t)

	router := gin.New()
	router.Use(MetricsMiddleware(m))
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/items/1", "/items/2", "/missing"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	data := collect(t, reader)
	sum, ok := data["relmap_http_requests_total"].(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected http_requests_total sum, got %T", data["relmap_http_requests_total"])
	}

	routes := map[string]int64{}
	for _, dp := range sum.DataPoints {
		route, _ := dp.Attributes.Value("route")
		routes[route.AsString()] += dp.Value
	}
	if routes["/items/:id"] != 2 {
		t.Errorf("expected 2 requests on the route template, got %v", routes)
	}
	if routes["unmatched"] != 1 {
		t.Errorf("expected 1 unmatched request, got %v", routes)
	}
	if got := sumOf(data["relmap_http_active_requests"]); got != 0 {
		t.Errorf("active requests = %d, want 0", got)
	}
}

func TestMetricsMiddleware_NilMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(MetricsMiddleware(nil))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
