// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry provides OpenTelemetry-based observability for relmap.
//
// The OTel APIs are used directly. Backends are chosen through exporter
// configuration, not code.
//
// # Traces
//
// Spans are exported over OTLP/gRPC (any OTLP receiver such as Jaeger) or
// printed to stdout.
//
// # Metrics
//
// Metrics are exposed for Prometheus scraping at /metrics through
// MetricsHandler, or printed periodically to stdout.
//
// # Logging
//
// Logging is slog. LoggerWithTrace adds trace_id and span_id to a logger
// so log lines can be joined with traces.
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(ctx)
//
// # Environment Variables
//
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - RELMAP_ENV: environment name (default: development)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
