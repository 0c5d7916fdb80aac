// Package api provides HTTP handlers for the ExpertRank API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/provenhq/expertrank/internal/extraction"
	"github.com/provenhq/expertrank/internal/middleware"
	"github.com/provenhq/expertrank/internal/search"
)

// MaxQueryLength caps the accepted query text to keep completion payloads
// bounded.
const MaxQueryLength = 4096

// SearchHandlers holds dependencies for the expert search endpoint.
type SearchHandlers struct {
	service *search.Service
}

// NewSearchHandlers creates a new SearchHandlers instance.
func NewSearchHandlers(service *search.Service) *SearchHandlers {
	return &SearchHandlers{service: service}
}

// SearchExpertsRequest represents the request body for expert search.
type SearchExpertsRequest struct {
	Text  string `json:"text"`
	Limit int    `json:"limit,omitempty"`
}

// SearchExpertsResponse represents the response for expert search.
type SearchExpertsResponse struct {
	Results      []search.RankedExpert    `json:"results"`
	Count        int                      `json:"count"`
	TotalExperts int                      `json:"total_experts"`
	Extracted    *extraction.AttributeSet `json:"extracted,omitempty"`
	ElapsedMS    int64                    `json:"elapsed_ms"`
}

// SearchExperts handles POST /search/experts - runs the ranking pipeline for
// a free-text query and returns the scored expert ranking.
func (h *SearchHandlers) SearchExperts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	if len(req.Text) > MaxQueryLength {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Query text too long")
		return
	}
	if req.Limit < 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must not be negative")
		return
	}

	result, err := h.service.Search(r.Context(), search.Request{Text: req.Text, Limit: req.Limit})
	if err != nil {
		h.writePipelineError(w, r, err)
		return
	}

	response := SearchExpertsResponse{
		Results:      result.Experts,
		Count:        len(result.Experts),
		TotalExperts: result.TotalExperts,
		Extracted:    result.Extracted,
		ElapsedMS:    result.Elapsed.Milliseconds(),
	}
	if response.Results == nil {
		response.Results = []search.RankedExpert{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode search response", "error", err)
	}
}

// decodeRequest reads the query from either a JSON body or, for text/plain,
// the raw body text with the default limit.
func (h *SearchHandlers) decodeRequest(w http.ResponseWriter, r *http.Request) (SearchExpertsRequest, bool) {
	var req SearchExpertsRequest

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "text/plain" {
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxQueryLength+1))
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Unreadable request body")
			return req, false
		}
		req.Text = string(body)
		return req, true
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return req, false
	}
	return req, true
}

// writePipelineError maps a pipeline failure to an HTTP error response.
// Invalid input is the caller's fault; extraction and store failures are
// upstream faults and retryable.
func (h *SearchHandlers) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var pipeErr *search.PipelineError
	if !errors.As(err, &pipeErr) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Search failed")
		return
	}

	switch {
	case errors.Is(pipeErr.Err, extraction.ErrInvalidInput):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Query text must not be empty")
	case errors.Is(pipeErr.Err, extraction.ErrExtractionFailed):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeExtractionFailed)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeExtractionFailed, "Attribute extraction failed, retry later")
	case errors.Is(pipeErr.Err, search.ErrStoreUnavailable):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeStoreUnavailable)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "Store unavailable, retry later")
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Search failed")
	}
}
