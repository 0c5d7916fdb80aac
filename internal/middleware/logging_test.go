package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type logLine struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Size      int    `json:"size"`
	RequestID string `json:"request_id"`
	ErrorCode string `json:"error_code"`
}

// logRequest runs one request through Logging(logger) wrapping inner and
// returns the parsed JSON log line.
func logRequest(t *testing.T, inner http.HandlerFunc, req *http.Request) logLine {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := RequestID(Logging(logger)(inner))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry logLine
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parsing log line: %v (raw: %s)", err, buf.String())
	}
	return entry
}

func TestLogging_SuccessLine(t *testing.T) {
	entry := logRequest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}, httptest.NewRequest(http.MethodGet, "/experts", nil))

	if entry.Method != "GET" || entry.Path != "/experts" {
		t.Errorf("logged %s %s, want GET /experts", entry.Method, entry.Path)
	}
	if entry.Status != 200 {
		t.Errorf("status = %d, want 200", entry.Status)
	}
	if entry.Size != len("hello") {
		t.Errorf("size = %d, want %d", entry.Size, len("hello"))
	}
	if entry.LatencyMS < 0 {
		t.Errorf("latency_ms = %d, want >= 0", entry.LatencyMS)
	}
	if entry.Level != "INFO" {
		t.Errorf("level = %s, want INFO", entry.Level)
	}
	if entry.RequestID == "" {
		t.Error("request_id missing from log line")
	}
}

func TestLogging_CallerRequestIDCorrelated(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/search/experts", nil)
	req.Header.Set(RequestIDHeader, "corr-id-456")

	entry := logRequest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, req)

	if entry.RequestID != "corr-id-456" {
		t.Errorf("request_id = %q, want %q", entry.RequestID, "corr-id-456")
	}
}

func TestLogging_ErrorLevels(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		errorCode string
		wantLevel string
	}{
		{name: "client error logs warn", status: http.StatusBadRequest, errorCode: "invalid_request", wantLevel: "WARN"},
		{name: "not found logs warn", status: http.StatusNotFound, errorCode: "expert_not_found", wantLevel: "WARN"},
		{name: "server error logs error", status: http.StatusInternalServerError, errorCode: "internal_error", wantLevel: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := logRequest(t, func(w http.ResponseWriter, r *http.Request) {
				UpdateResponseContext(w, SetErrorCode(r.Context(), tt.errorCode))
				w.WriteHeader(tt.status)
			}, httptest.NewRequest(http.MethodGet, "/experts/9", nil))

			if entry.Status != tt.status {
				t.Errorf("status = %d, want %d", entry.Status, tt.status)
			}
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", entry.Level, tt.wantLevel)
			}
			if entry.ErrorCode != tt.errorCode {
				t.Errorf("error_code = %q, want %q", entry.ErrorCode, tt.errorCode)
			}
		})
	}
}

func TestLogging_ImplicitStatusIs200(t *testing.T) {
	entry := logRequest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}, httptest.NewRequest(http.MethodGet, "/health", nil))

	if entry.Status != 200 {
		t.Errorf("status = %d, want 200 when handler never calls WriteHeader", entry.Status)
	}
}

func TestLogging_ErrorCodeOmittedOnSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		UpdateResponseContext(w, SetErrorCode(r.Context(), "stray_code"))
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/experts", nil))

	if strings.Contains(buf.String(), "error_code") {
		t.Error("error_code should not appear on 2xx log lines")
	}
}

func TestErrorCodeContext(t *testing.T) {
	ctx := context.Background()
	if code := GetErrorCode(ctx); code != "" {
		t.Errorf("GetErrorCode on empty context = %q, want \"\"", code)
	}
	ctx = SetErrorCode(ctx, "attribute_not_found")
	if code := GetErrorCode(ctx); code != "attribute_not_found" {
		t.Errorf("GetErrorCode = %q, want attribute_not_found", code)
	}
}

func TestResponseWriter_CapturesStatusAndSize(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w, context.Background())

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError) // ignored after first write

	body := []byte(`{"id":1}`)
	n, err := rw.Write(body)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(body) || rw.size != len(body) {
		t.Errorf("wrote %d bytes, size = %d, want %d", n, rw.size, len(body))
	}
	if rw.statusCode != http.StatusCreated || w.Code != http.StatusCreated {
		t.Errorf("status = %d/%d, want 201 from the first WriteHeader only", rw.statusCode, w.Code)
	}
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development", ""} {
		if NewLogger(env) == nil {
			t.Errorf("NewLogger(%q) returned nil", env)
		}
	}
}
