package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsRequest(t *testing.T, cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	handler := CORS(cfg)(passthroughHandler("ok"))

	req := httptest.NewRequest(method, "/experts", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCORS_DisabledWhenNoOrigins(t *testing.T) {
	rec := corsRequest(t, CORSConfig{}, "GET", "https://anything.example")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want none when CORS is disabled", got)
	}
}

func TestCORS_AllowedOrigin(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins:   []string{"https://app.expertrank.dev"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}
	rec := corsRequest(t, cfg, "GET", "https://app.expertrank.dev")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.expertrank.dev" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want true", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
		t.Errorf("Allow-Methods = %q", got)
	}
}

func TestCORS_UnauthorizedOrigin(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://app.expertrank.dev"}}
	rec := corsRequest(t, cfg, "GET", "https://evil.example")

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestCORS_NoOriginHeader(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://app.expertrank.dev"}}
	rec := corsRequest(t, cfg, "GET", "")

	// same-origin requests carry no Origin header and pass through
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want pass-through", rec.Body.String())
	}
}

func TestCORS_Preflight(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins: []string{"https://app.expertrank.dev"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         600,
	}
	rec := corsRequest(t, cfg, http.MethodOptions, "https://app.expertrank.dev")

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Body.String() == "ok" {
		t.Error("preflight reached the wrapped handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, DELETE" {
		t.Errorf("Allow-Methods = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("Max-Age = %q, want 600", got)
	}
}

func TestCORS_PreflightUnauthorizedOrigin(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://app.expertrank.dev"}}
	rec := corsRequest(t, cfg, http.MethodOptions, "https://evil.example")

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestCORS_CredentialsDisabled(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://app.expertrank.dev"}}
	rec := corsRequest(t, cfg, "GET", "https://app.expertrank.dev")

	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Allow-Credentials = %q, want unset", got)
	}
}

func TestCORS_OriginListNormalization(t *testing.T) {
	// whitespace-padded and empty entries are tolerated in configuration
	cfg := CORSConfig{AllowedOrigins: []string{"  https://app.expertrank.dev  ", ""}}
	rec := corsRequest(t, cfg, "GET", "https://app.expertrank.dev")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for trimmed origin", rec.Code)
	}
}

func TestCORS_WithRequestID(t *testing.T) {
	// CORS composed under RequestID still stamps both sets of headers
	cfg := CORSConfig{
		AllowedOrigins: []string{"https://app.expertrank.dev"},
		AllowedMethods: []string{"GET"},
	}
	handler := RequestID(CORS(cfg)(passthroughHandler("ok")))

	req := httptest.NewRequest("GET", "/experts", nil)
	req.Header.Set("Origin", "https://app.expertrank.dev")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing CORS headers under composed middleware")
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request ID under composed middleware")
	}
}
