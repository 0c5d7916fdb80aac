package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/provenhq/expertrank/internal/expert"
	"github.com/provenhq/expertrank/internal/middleware"
)

// ExperienceHandlers holds dependencies for experience-scoped HTTP handlers.
type ExperienceHandlers struct {
	repo expert.Repository
}

// NewExperienceHandlers creates a new ExperienceHandlers instance.
func NewExperienceHandlers(repo expert.Repository) *ExperienceHandlers {
	return &ExperienceHandlers{repo: repo}
}

// SetAttributesRequest represents the request body for replacing an
// experience's attribute set.
type SetAttributesRequest struct {
	AttributeIDs []int64 `json:"attribute_ids"`
}

// HandleExperienceByID handles /experiences/{id} and
// /experiences/{id}/attributes.
func (h *ExperienceHandlers) HandleExperienceByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/experiences/")
	idStr, sub, _ := strings.Cut(rest, "/")

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id < 1 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid experience ID")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.getExperience(w, r, id)
		case http.MethodDelete:
			h.deleteExperience(w, r, id)
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		}
	case "attributes":
		if r.Method != http.MethodPut {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
			return
		}
		h.setAttributes(w, r, id)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Resource not found")
	}
}

func (h *ExperienceHandlers) getExperience(w http.ResponseWriter, r *http.Request, id int64) {
	exp, err := h.repo.GetExperience(r.Context(), id)
	if err != nil {
		if errors.Is(err, expert.ErrExperienceNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Experience not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get experience", "error", err, "experience_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to get experience")
		return
	}

	writeJSON(w, r, http.StatusOK, exp)
}

func (h *ExperienceHandlers) deleteExperience(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.repo.DeleteExperience(r.Context(), id); err != nil {
		if errors.Is(err, expert.ErrExperienceNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Experience not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to delete experience", "error", err, "experience_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete experience")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ExperienceHandlers) setAttributes(w http.ResponseWriter, r *http.Request, id int64) {
	var req SetAttributesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	for _, attrID := range req.AttributeIDs {
		if attrID < 1 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "attribute_ids must be positive")
			return
		}
	}

	if err := h.repo.SetExperienceAttributes(r.Context(), id, req.AttributeIDs); err != nil {
		if errors.Is(err, expert.ErrExperienceNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Experience not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to set experience attributes", "error", err, "experience_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to set experience attributes")
		return
	}

	exp, err := h.repo.GetExperience(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to reload experience", "error", err, "experience_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to reload experience")
		return
	}

	writeJSON(w, r, http.StatusOK, exp)
}
