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
	"context"
	"errors"
	"net/http"

	"github.com/AleutianAI/relmap/services/relmap/ast"
	"github.com/AleutianAI/relmap/services/relmap/storage"
)

var (
	// ErrNoStore is returned by lookups when persistence is disabled.
	ErrNoStore = errors.New("result store not configured")

	// ErrInvalidScope is returned for an unknown method scope name.
	ErrInvalidScope = errors.New("invalid method scope")
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeFileNotFound   = "FILE_NOT_FOUND"
	CodeFileTooLarge   = "FILE_TOO_LARGE"
	CodeExtractFailed  = "EXTRACT_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeRateLimited    = "RATE_LIMITED"
	CodeCanceled       = "CANCELED"
	CodeStoreDisabled  = "STORE_DISABLED"
)

// classify maps an error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidScope):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, ast.ErrFileAccess):
		return http.StatusNotFound, CodeFileNotFound
	case errors.Is(err, ast.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, CodeFileTooLarge
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrNoStore):
		return http.StatusNotFound, CodeStoreDisabled
	case errors.Is(err, ast.ErrContextCanceled), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeCanceled
	default:
		return http.StatusInternalServerError, CodeExtractFailed
	}
}
