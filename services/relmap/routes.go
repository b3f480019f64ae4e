// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package relmap

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/relmap/services/relmap/telemetry"
)

// RegisterRoutes registers all relmap routes with the router.
//
// Description:
//
//	Registers the /v1/relmap/* endpoints on rg. Extraction endpoints share
//	the service's rate limiter and body size cap; health checks do not.
//
// Endpoints:
//
//	POST /v1/relmap/extract - Extract a file on the server
//	POST /v1/relmap/extract/source - Extract source sent in the body
//	POST /v1/relmap/batch - Extract many files
//	GET  /v1/relmap/files - Fetch a stored result
//	GET  /v1/relmap/health - Health check
//	GET  /v1/relmap/ready - Readiness check
//
// Example:
//
//	svc := relmap.NewService(relmap.DefaultServiceConfig())
//	v1 := router.Group("/v1")
//	relmap.RegisterRoutes(v1, relmap.NewHandlers(svc))
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	cfg := handlers.svc.Config()

	rm := rg.Group("/relmap")
	{
		extract := rm.Group("")
		extract.Use(RateLimit(cfg.RateLimit, cfg.RateBurst), MaxBody(cfg.MaxBodyBytes))
		{
			extract.POST("/extract", handlers.HandleExtract)
			extract.POST("/extract/source", handlers.HandleExtractSource)
			extract.POST("/batch", handlers.HandleBatch)
		}

		rm.GET("/files", handlers.HandleGetFile)

		// Health checks
		rm.GET("/health", handlers.HandleHealth)
		rm.GET("/ready", handlers.HandleReady)
	}
}

// NewRouter builds the full HTTP handler: recovery, tracing, metrics,
// the /v1/relmap routes and, when serveMetrics is set and the Prometheus
// exporter is active, /metrics.
func NewRouter(svc *Service, metrics *telemetry.Metrics, serveMetrics bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("relmap"))
	router.Use(telemetry.MetricsMiddleware(metrics))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(svc))

	if serveMetrics {
		if h := telemetry.MetricsHandler(); h != nil {
			router.GET("/metrics", gin.WrapH(h))
		}
	}
	return router
}

// RateLimit rejects requests beyond perSecond with 429 RATE_LIMITED.
// A non-positive rate disables limiting.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  CodeRateLimited,
			})
			return
		}
		c.Next()
	}
}

// MaxBody caps request bodies at limit bytes. A non-positive limit is a no-op.
func MaxBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
