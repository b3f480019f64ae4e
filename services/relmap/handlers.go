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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/relmap/services/relmap/telemetry"
)

// Handlers contains the HTTP handlers for the relmap service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleExtract handles POST /v1/relmap/extract.
//
// Description:
//
//	Parses a file readable by the server and returns its relationship set.
//	When a store is configured the result is also persisted.
//
// Request Body:
//
//	ExtractRequest
//
// Response:
//
//	200 OK: ExtractResponse
//	400 Bad Request: Validation error
//	404 Not Found: File missing or unreadable
//	413 Request Entity Too Large: File or request body exceeds the size limit
//	500 Internal Server Error: Extraction failed
func (h *Handlers) HandleExtract(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.requestLogger(c, requestID, "HandleExtract")

	var req ExtractRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.ExtractFile(c.Request.Context(), req.FilePath, req.MethodScope)
	if err != nil {
		h.fail(c, logger, "Extract failed", err)
		return
	}

	logger.Info("Extracted file",
		"file", resp.FileName,
		"relationships", resp.Total,
		"diagnostics", len(resp.Diagnostics),
		"duration_ms", resp.DurationMs)
	c.JSON(http.StatusOK, resp)
}

// HandleExtractSource handles POST /v1/relmap/extract/source.
//
// Description:
//
//	Parses source text sent in the request body. Nothing is persisted.
//
// Response:
//
//	200 OK: ExtractResponse
//	400 Bad Request: Validation error
//	413 Request Entity Too Large: Content exceeds the size limit
func (h *Handlers) HandleExtractSource(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.requestLogger(c, requestID, "HandleExtractSource")

	var req ExtractSourceRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.ExtractSource(c.Request.Context(), req.FileName, []byte(req.Content), req.MethodScope)
	if err != nil {
		h.fail(c, logger, "Extract failed", err)
		return
	}

	logger.Info("Extracted source",
		"file", resp.FileName,
		"relationships", resp.Total,
		"duration_ms", resp.DurationMs)
	c.JSON(http.StatusOK, resp)
}

// HandleBatch handles POST /v1/relmap/batch.
//
// Description:
//
//	Extracts a list of files, or every Python file under a root. Failures
//	on individual files are reported per file with their error code.
//
// Response:
//
//	200 OK: BatchResponse
//	400 Bad Request: Neither or both of paths and root given
//	404 Not Found: Root missing
//	413 Request Entity Too Large: Body exceeds the size limit
func (h *Handlers) HandleBatch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.requestLogger(c, requestID, "HandleBatch")

	var req BatchRequest
	if !bindJSON(c, logger, &req) {
		return
	}
	if (req.Root == "") == (len(req.Paths) == 0) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "exactly one of paths or root is required",
			Code:  CodeInvalidRequest,
		})
		return
	}

	resp, err := h.svc.Batch(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, "Batch failed", err)
		return
	}

	logger.Info("Batch complete",
		"files", resp.Summary.Files,
		"failed", resp.Summary.Failed,
		"relationships", resp.Summary.Relationships,
		"duration_ms", resp.DurationMs)
	c.JSON(http.StatusOK, resp)
}

// HandleGetFile handles GET /v1/relmap/files?path=.
//
// Response:
//
//	200 OK: storage.Record
//	400 Bad Request: Missing path
//	404 Not Found: No stored result, or no store configured
func (h *Handlers) HandleGetFile(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.requestLogger(c, requestID, "HandleGetFile")

	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "path query parameter is required",
			Code:  CodeInvalidRequest,
		})
		return
	}

	rec, err := h.svc.Lookup(c.Request.Context(), path)
	if err != nil {
		h.fail(c, logger, "Lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleHealth handles GET /v1/relmap/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/relmap/ready.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true)
//	503 Service Unavailable: The grammar failed to load
func (h *Handlers) HandleReady(c *gin.Context) {
	resp := ReadyResponse{
		Grammar: h.svc.Ready(),
		Store:   h.svc.HasStore(),
	}
	resp.Ready = resp.Grammar
	if !resp.Ready {
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// bindJSON decodes and validates the body into req. On failure it writes
// 413 FILE_TOO_LARGE when the body cap was hit, 400 INVALID_REQUEST
// otherwise, and returns false.
func bindJSON(c *gin.Context, logger *slog.Logger, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	status := http.StatusBadRequest
	code := CodeInvalidRequest
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		status = http.StatusRequestEntityTooLarge
		code = CodeFileTooLarge
	}
	logger.Warn("Invalid request body", "error", err)
	c.JSON(status, ErrorResponse{
		Error:   "Invalid request body",
		Code:    code,
		Details: err.Error(),
	})
	return false
}

func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, msg string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, "error", err)
		h.svc.metrics.RecordError(c.Request.Context(), "http", code)
	} else {
		logger.Warn(msg, "error", err)
	}
	c.JSON(status, ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

func (h *Handlers) requestLogger(c *gin.Context, requestID, handler string) *slog.Logger {
	return telemetry.LoggerWithTrace(c.Request.Context(), h.svc.logger).
		With("request_id", requestID, "handler", handler)
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
