package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/provenhq/expertrank/internal/attribute"
	"github.com/provenhq/expertrank/internal/middleware"
)

// Lookup-limit bounds for attribute listing.
const (
	DefaultLookupLimit = 20
	MaxLookupLimit     = 100
)

// AttributeHandlers holds dependencies for attribute catalog HTTP handlers.
type AttributeHandlers struct {
	repo attribute.Repository

	// types is the configured attribute type set; lookups outside it are
	// rejected rather than silently returning nothing.
	types map[string]bool
}

// NewAttributeHandlers creates a new AttributeHandlers instance over the
// configured attribute types.
func NewAttributeHandlers(repo attribute.Repository, types []string) *AttributeHandlers {
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}
	return &AttributeHandlers{repo: repo, types: typeSet}
}

// CreateAttributeRequest represents the request body for creating an
// attribute.
type CreateAttributeRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
}

// AttributeListResponse represents the response for attribute lookup.
type AttributeListResponse struct {
	Attributes []*attribute.Attribute `json:"attributes"`
	Count      int                    `json:"count"`
}

// HandleAttributes handles POST /attributes (create) and GET /attributes
// (typed lookup).
func (h *AttributeHandlers) HandleAttributes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createAttribute(w, r)
	case http.MethodGet:
		h.lookupAttributes(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// HandleAttributeByID handles GET /attributes/{id} and DELETE /attributes/{id}.
func (h *AttributeHandlers) HandleAttributeByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/attributes/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id < 1 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid attribute ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getAttribute(w, r, id)
	case http.MethodDelete:
		h.deleteAttribute(w, r, id)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

func (h *AttributeHandlers) createAttribute(w http.ResponseWriter, r *http.Request) {
	var req CreateAttributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	req.Type = strings.TrimSpace(req.Type)
	req.Name = strings.TrimSpace(req.Name)
	if req.Type == "" || req.Name == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "type and name are required")
		return
	}
	if !h.types[req.Type] {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "unknown attribute type")
		return
	}
	if len(req.Name) > MaxNameLength || len(req.Summary) > MaxSummaryLength {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "field exceeds maximum length")
		return
	}

	attr := &attribute.Attribute{
		Type:    req.Type,
		Name:    req.Name,
		Summary: strings.TrimSpace(req.Summary),
	}
	if err := h.repo.Create(r.Context(), attr); err != nil {
		if errors.Is(err, attribute.ErrDuplicateName) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeDuplicateAttribute)
			WriteError(w, ctx, http.StatusConflict, ErrCodeDuplicateAttribute, "Attribute name already exists for type")
			return
		}
		slog.ErrorContext(r.Context(), "failed to create attribute", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create attribute")
		return
	}

	writeJSON(w, r, http.StatusCreated, attr)
}

func (h *AttributeHandlers) lookupAttributes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	attrType := strings.TrimSpace(query.Get("type"))
	if attrType == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "'type' query parameter is required")
		return
	}
	if !h.types[attrType] {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "unknown attribute type")
		return
	}

	limit := DefaultLookupLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		if limit > MaxLookupLimit {
			limit = MaxLookupLimit
		}
	}

	attrs, err := h.repo.Lookup(r.Context(), attrType, strings.TrimSpace(query.Get("q")), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to lookup attributes", "error", err, "type", attrType)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to lookup attributes")
		return
	}
	if attrs == nil {
		attrs = []*attribute.Attribute{}
	}

	writeJSON(w, r, http.StatusOK, AttributeListResponse{Attributes: attrs, Count: len(attrs)})
}

func (h *AttributeHandlers) getAttribute(w http.ResponseWriter, r *http.Request, id int64) {
	attr, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, attribute.ErrAttributeNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Attribute not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get attribute", "error", err, "attribute_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to get attribute")
		return
	}

	writeJSON(w, r, http.StatusOK, attr)
}

func (h *AttributeHandlers) deleteAttribute(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, attribute.ErrAttributeNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Attribute not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to delete attribute", "error", err, "attribute_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete attribute")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
