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
	"github.com/AleutianAI/relmap/services/relmap/ast"
	"github.com/AleutianAI/relmap/services/relmap/batch"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.3.0"

// ExtractRequest is the body of POST /v1/relmap/extract.
type ExtractRequest struct {
	// FilePath is the file to parse, as seen by the server.
	FilePath string `json:"file_path" binding:"required"`

	// MethodScope overrides the configured method scope: "nested" or "direct".
	MethodScope string `json:"method_scope,omitempty" binding:"omitempty,oneof=nested direct"`
}

// ExtractSourceRequest is the body of POST /v1/relmap/extract/source.
type ExtractSourceRequest struct {
	// FileName is the display name reported in diagnostics.
	FileName string `json:"file_name" binding:"required"`

	// Content is the Python source. Empty content is a valid empty module.
	Content string `json:"content"`

	MethodScope string `json:"method_scope,omitempty" binding:"omitempty,oneof=nested direct"`
}

// Diagnostic is a recovered syntax error.
type Diagnostic struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

// ExtractResponse is returned by both extract endpoints.
type ExtractResponse struct {
	FileName      string              `json:"file_name"`
	Path          string              `json:"path,omitempty"`
	Hash          string              `json:"hash"`
	Relationships ast.RelationshipSet `json:"relationships"`
	Counts        map[string]int      `json:"counts"`
	Total         int                 `json:"total"`
	Diagnostics   []Diagnostic        `json:"diagnostics,omitempty"`
	DurationMs    int64               `json:"duration_ms"`
}

// BatchRequest is the body of POST /v1/relmap/batch. Exactly one of Paths
// or Root is required.
type BatchRequest struct {
	Paths []string `json:"paths" binding:"required_without=Root,max=10000"`
	Root  string   `json:"root" binding:"required_without=Paths"`

	// Workers overrides the configured worker count.
	Workers int `json:"workers,omitempty" binding:"gte=0,lte=256"`
}

// BatchFileResult is one file of a batch response.
type BatchFileResult struct {
	Path          string              `json:"path"`
	FileName      string              `json:"file_name,omitempty"`
	Relationships ast.RelationshipSet `json:"relationships,omitempty"`
	Counts        map[string]int      `json:"counts,omitempty"`
	Error         string              `json:"error,omitempty"`
	Code          string              `json:"code,omitempty"`
}

// BatchResponse is returned by POST /v1/relmap/batch.
type BatchResponse struct {
	Results    []BatchFileResult `json:"results"`
	Summary    batch.Summary     `json:"summary"`
	DurationMs int64             `json:"duration_ms"`
}

// HealthResponse is returned by GET /v1/relmap/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is returned by GET /v1/relmap/ready.
type ReadyResponse struct {
	Ready   bool `json:"ready"`
	Grammar bool `json:"grammar"`
	Store   bool `json:"store"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
