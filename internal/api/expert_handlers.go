package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/provenhq/expertrank/internal/expert"
	"github.com/provenhq/expertrank/internal/middleware"
)

// Validation constants for expert fields.
const (
	MaxNameLength    = 200
	MaxSummaryLength = 2000
)

// dateLayout is the wire format for experience dates.
const dateLayout = "2006-01-02"

// ExpertHandlers holds dependencies for expert and experience HTTP handlers.
type ExpertHandlers struct {
	repo expert.Repository
}

// NewExpertHandlers creates a new ExpertHandlers instance.
func NewExpertHandlers(repo expert.Repository) *ExpertHandlers {
	return &ExpertHandlers{repo: repo}
}

// CreateExpertRequest represents the request body for creating an expert.
type CreateExpertRequest struct {
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
}

// UpdateExpertRequest represents the request body for updating an expert.
type UpdateExpertRequest struct {
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
}

// CreateExperienceRequest represents the request body for creating an
// experience under an expert. Dates use YYYY-MM-DD; a missing end_date means
// the experience is ongoing.
type CreateExperienceRequest struct {
	StartDate    string  `json:"start_date"`
	EndDate      *string `json:"end_date,omitempty"`
	Summary      string  `json:"summary,omitempty"`
	AttributeIDs []int64 `json:"attribute_ids,omitempty"`
}

// ExpertListResponse represents the response for listing experts.
type ExpertListResponse struct {
	Experts []*expert.Expert `json:"experts"`
	Count   int              `json:"count"`
}

// ExperienceListResponse represents the response for listing an expert's
// experiences.
type ExperienceListResponse struct {
	Experiences []*expert.Experience `json:"experiences"`
	Count       int                  `json:"count"`
}

// validateExpertFields returns an error message for invalid expert fields,
// or "" when valid.
func validateExpertFields(name, summary string) string {
	if strings.TrimSpace(name) == "" {
		return "name is required"
	}
	if len(name) > MaxNameLength {
		return "name exceeds maximum length"
	}
	if len(summary) > MaxSummaryLength {
		return "summary exceeds maximum length"
	}
	return ""
}

// HandleExperts handles POST /experts (create) and GET /experts (list).
func (h *ExpertHandlers) HandleExperts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createExpert(w, r)
	case http.MethodGet:
		h.listExperts(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// HandleExpertByID handles /experts/{id} and /experts/{id}/experiences.
func (h *ExpertHandlers) HandleExpertByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/experts/")
	idStr, sub, _ := strings.Cut(rest, "/")

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id < 1 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid expert ID")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.getExpert(w, r, id)
		case http.MethodPut:
			h.updateExpert(w, r, id)
		case http.MethodDelete:
			h.deleteExpert(w, r, id)
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		}
	case "experiences":
		switch r.Method {
		case http.MethodPost:
			h.createExperience(w, r, id)
		case http.MethodGet:
			h.listExperiences(w, r, id)
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		}
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Resource not found")
	}
}

func (h *ExpertHandlers) createExpert(w http.ResponseWriter, r *http.Request) {
	var req CreateExpertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	if msg := validateExpertFields(req.Name, req.Summary); msg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, msg)
		return
	}

	e := &expert.Expert{
		Name:    strings.TrimSpace(req.Name),
		Summary: strings.TrimSpace(req.Summary),
	}
	if err := h.repo.CreateExpert(r.Context(), e); err != nil {
		slog.ErrorContext(r.Context(), "failed to create expert", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create expert")
		return
	}

	writeJSON(w, r, http.StatusCreated, e)
}

func (h *ExpertHandlers) listExperts(w http.ResponseWriter, r *http.Request) {
	experts, err := h.repo.ListExperts(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list experts", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list experts")
		return
	}
	if experts == nil {
		experts = []*expert.Expert{}
	}

	writeJSON(w, r, http.StatusOK, ExpertListResponse{Experts: experts, Count: len(experts)})
}

func (h *ExpertHandlers) getExpert(w http.ResponseWriter, r *http.Request, id int64) {
	e, err := h.repo.GetExpert(r.Context(), id)
	if err != nil {
		if errors.Is(err, expert.ErrExpertNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Expert not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get expert", "error", err, "expert_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to get expert")
		return
	}

	writeJSON(w, r, http.StatusOK, e)
}

func (h *ExpertHandlers) updateExpert(w http.ResponseWriter, r *http.Request, id int64) {
	var req UpdateExpertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	if msg := validateExpertFields(req.Name, req.Summary); msg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, msg)
		return
	}

	e := &expert.Expert{
		ID:      id,
		Name:    strings.TrimSpace(req.Name),
		Summary: strings.TrimSpace(req.Summary),
	}
	if err := h.repo.UpdateExpert(r.Context(), e); err != nil {
		if errors.Is(err, expert.ErrExpertNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Expert not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to update expert", "error", err, "expert_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update expert")
		return
	}

	writeJSON(w, r, http.StatusOK, e)
}

func (h *ExpertHandlers) deleteExpert(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.repo.DeleteExpert(r.Context(), id); err != nil {
		if errors.Is(err, expert.ErrExpertNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Expert not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to delete expert", "error", err, "expert_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete expert")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ExpertHandlers) createExperience(w http.ResponseWriter, r *http.Request, expertID int64) {
	var req CreateExperienceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "start_date must be YYYY-MM-DD")
		return
	}

	var end *time.Time
	if req.EndDate != nil {
		parsed, err := time.Parse(dateLayout, *req.EndDate)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "end_date must be YYYY-MM-DD")
			return
		}
		end = &parsed
	}

	if len(req.Summary) > MaxSummaryLength {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "summary exceeds maximum length")
		return
	}

	exp := &expert.Experience{
		ExpertID:  expertID,
		StartDate: start,
		EndDate:   end,
		Summary:   strings.TrimSpace(req.Summary),
	}
	if err := h.repo.CreateExperience(r.Context(), exp); err != nil {
		switch {
		case errors.Is(err, expert.ErrExpertNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Expert not found")
		case errors.Is(err, expert.ErrInvalidDateRange):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidDateRange)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidDateRange, "end_date must not precede start_date")
		default:
			slog.ErrorContext(r.Context(), "failed to create experience", "error", err, "expert_id", expertID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create experience")
		}
		return
	}

	if len(req.AttributeIDs) > 0 {
		if err := h.repo.SetExperienceAttributes(r.Context(), exp.ID, req.AttributeIDs); err != nil {
			slog.ErrorContext(r.Context(), "failed to set experience attributes", "error", err, "experience_id", exp.ID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to set experience attributes")
			return
		}
	}

	created, err := h.repo.GetExperience(r.Context(), exp.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to reload experience", "error", err, "experience_id", exp.ID)
		created = exp
	}

	writeJSON(w, r, http.StatusCreated, created)
}

func (h *ExpertHandlers) listExperiences(w http.ResponseWriter, r *http.Request, expertID int64) {
	experiences, err := h.repo.ListExperiencesByExpert(r.Context(), expertID)
	if err != nil {
		if errors.Is(err, expert.ErrExpertNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Expert not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to list experiences", "error", err, "expert_id", expertID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list experiences")
		return
	}
	if experiences == nil {
		experiences = []*expert.Experience{}
	}

	writeJSON(w, r, http.StatusOK, ExperienceListResponse{Experiences: experiences, Count: len(experiences)})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
