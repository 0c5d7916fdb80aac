package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/provenhq/expertrank/internal/attribute"
)

var testAttributeTypes = []string{"agency", "role", "seniority", "skill", "program"}

func newAttributeHandlers() (*AttributeHandlers, *attribute.InMemoryRepository) {
	repo := attribute.NewInMemoryRepository()
	return NewAttributeHandlers(repo, testAttributeTypes), repo
}

func TestCreateAttribute(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "valid",
			body:       `{"type": "skill", "name": "incident response"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing name",
			body:       `{"type": "skill"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "unknown type",
			body:       `{"type": "hobby", "name": "chess"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "invalid JSON",
			body:       `{broken`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newAttributeHandlers()
			w := doRequest(h.HandleAttributes, http.MethodPost, "/attributes", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantCode != "" {
				if code := decodeErrorCode(t, w); code != tt.wantCode {
					t.Errorf("error code = %q, want %q", code, tt.wantCode)
				}
				return
			}

			var created attribute.Attribute
			if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
				t.Fatalf("unmarshal attribute: %v", err)
			}
			if created.ID == 0 {
				t.Error("created attribute has no ID")
			}
		})
	}
}

func TestCreateAttribute_Duplicate(t *testing.T) {
	h, _ := newAttributeHandlers()

	body := `{"type": "skill", "name": "forensics"}`
	w := doRequest(h.HandleAttributes, http.MethodPost, "/attributes", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("first create: status = %d, want 201", w.Code)
	}

	w = doRequest(h.HandleAttributes, http.MethodPost, "/attributes", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate create: status = %d, want 409", w.Code)
	}
	if code := decodeErrorCode(t, w); code != ErrCodeDuplicateAttribute {
		t.Errorf("error code = %q, want %q", code, ErrCodeDuplicateAttribute)
	}
}

func TestLookupAttributes(t *testing.T) {
	h, repo := newAttributeHandlers()
	ctx := context.Background()

	for _, name := range []string{"malware analysis", "malware triage", "network defense"} {
		if err := repo.Create(ctx, &attribute.Attribute{Type: "skill", Name: name}); err != nil {
			t.Fatalf("create attribute: %v", err)
		}
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCount  int
	}{
		{
			name:       "fragment match",
			path:       "/attributes?type=skill&q=malware",
			wantStatus: http.StatusOK,
			wantCount:  2,
		},
		{
			name:       "empty fragment lists all of type",
			path:       "/attributes?type=skill",
			wantStatus: http.StatusOK,
			wantCount:  3,
		},
		{
			name:       "limit applied",
			path:       "/attributes?type=skill&limit=1",
			wantStatus: http.StatusOK,
			wantCount:  1,
		},
		{
			name:       "no matches",
			path:       "/attributes?type=role",
			wantStatus: http.StatusOK,
			wantCount:  0,
		},
		{
			name:       "missing type",
			path:       "/attributes?q=malware",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown type",
			path:       "/attributes?type=hobby",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad limit",
			path:       "/attributes?type=skill&limit=zero",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(h.HandleAttributes, http.MethodGet, tt.path, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp AttributeListResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal list: %v", err)
			}
			if resp.Count != tt.wantCount {
				t.Errorf("count = %d, want %d", resp.Count, tt.wantCount)
			}
			if resp.Attributes == nil {
				t.Error("attributes should be an empty array, not null")
			}
		})
	}
}

func TestGetAttributeByID(t *testing.T) {
	h, repo := newAttributeHandlers()
	if err := repo.Create(context.Background(), &attribute.Attribute{Type: "role", Name: "analyst"}); err != nil {
		t.Fatalf("create attribute: %v", err)
	}

	w := doRequest(h.HandleAttributeByID, http.MethodGet, "/attributes/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var attr attribute.Attribute
	if err := json.Unmarshal(w.Body.Bytes(), &attr); err != nil {
		t.Fatalf("unmarshal attribute: %v", err)
	}
	if attr.Name != "analyst" {
		t.Errorf("name = %q", attr.Name)
	}

	w = doRequest(h.HandleAttributeByID, http.MethodGet, "/attributes/55", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing attribute: status = %d, want 404", w.Code)
	}

	w = doRequest(h.HandleAttributeByID, http.MethodGet, "/attributes/-1", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad ID: status = %d, want 400", w.Code)
	}
}

func TestDeleteAttribute(t *testing.T) {
	h, repo := newAttributeHandlers()
	if err := repo.Create(context.Background(), &attribute.Attribute{Type: "role", Name: "analyst"}); err != nil {
		t.Fatalf("create attribute: %v", err)
	}

	w := doRequest(h.HandleAttributeByID, http.MethodDelete, "/attributes/1", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}

	w = doRequest(h.HandleAttributeByID, http.MethodDelete, "/attributes/1", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", w.Code)
	}
}
