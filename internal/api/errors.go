// Package api provides the HTTP handlers and the shared error envelope.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/provenhq/expertrank/internal/middleware"
)

// Machine-readable error codes carried in the response envelope and the
// access log.
const (
	ErrCodeValidation  = "validation_error"
	ErrCodeNotFound    = "not_found"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeInternal    = "internal_error"
	ErrCodeConflict    = "conflict"
	ErrCodeBadRequest  = "bad_request"

	// ErrCodeExtractionFailed covers completion-service failures and
	// unusable tool-call responses during attribute extraction.
	ErrCodeExtractionFailed = "extraction_failed"

	// ErrCodeStoreUnavailable means the relational store could not be
	// reached mid-pipeline.
	ErrCodeStoreUnavailable = "store_unavailable"

	ErrCodeInvalidDateRange   = "invalid_date_range"
	ErrCodeDuplicateAttribute = "duplicate_attribute"
)

// ErrorResponse is the envelope every API error uses:
// {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the code plus a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes the JSON error envelope with the given status. Callers
// should stamp the code onto the context first so the access log picks it
// up:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "expert not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	// Late context updates reach the logging middleware through the
	// wrapped writer.
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "marshaling error envelope", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "writing error envelope", "error", err)
	}
}

// StatusCodeMapping maps an error code to its HTTP status.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeInvalidDateRange:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeConflict, ErrCodeDuplicateAttribute:
		return http.StatusConflict
	case ErrCodeExtractionFailed:
		return http.StatusBadGateway
	case ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
