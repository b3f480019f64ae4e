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
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsMiddleware records request count, duration and in-flight requests.
//
// Description:
//
//	Requests are labeled by method, matched route template and status, so
//	path parameters do not explode label cardinality. Unmatched routes are
//	labeled "unmatched". Tracing is left to otelgin, which runs before
//	this middleware.
//
// Example:
//
//	router.Use(otelgin.Middleware("relmap"), telemetry.MetricsMiddleware(metrics))
//
// Thread Safety: Safe for concurrent use.
func MetricsMiddleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		start := time.Now()

		metrics.HTTPActiveRequests.Add(ctx, 1)
		defer metrics.HTTPActiveRequests.Add(ctx, -1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
			attribute.Int("status", c.Writer.Status()),
		)
		metrics.HTTPRequestsTotal.Add(ctx, 1, attrs)
		metrics.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
