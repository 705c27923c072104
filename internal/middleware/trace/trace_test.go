package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "txlens/internal/log"
)

func TestMiddleware_RequestIDAndMetrics(t *testing.T) {
	m := NewMiddleware(func(*http.Request) string { return "127.0.0.1" }, nil)

	var seen string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromRequest(r)
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	header := rec.Header().Get(HeaderRequestID)
	if !strings.HasPrefix(header, "req_") {
		t.Errorf("request ID header = %q", header)
	}
	if seen != header {
		t.Errorf("context request ID %q differs from header %q", seen, header)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	got := m.GetMetrics()
	if got.TotalRequests != 2 || got.FailedRequests != 1 {
		t.Errorf("metrics = %+v, want 2 total and 1 failed", got)
	}
}

func TestGenerateRequestID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if seen[id] {
			t.Fatalf("duplicate request ID %s", id)
		}
		seen[id] = true
	}
}

func TestMiddleware_LogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Handler: slog.NewTextHandler(&buf, nil)})
	m := NewMiddleware(nil, logger)

	rec := httptest.NewRecorder()
	m.Middleware(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	id := rec.Header().Get(HeaderRequestID)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected start and end records, got:\n%s", buf.String())
	}
	for _, line := range lines {
		if !strings.Contains(line, "request_id="+id) {
			t.Errorf("record missing request_id=%s: %s", id, line)
		}
		if strings.Count(line, "component=") != 1 {
			t.Errorf("component tagged more than once: %s", line)
		}
	}
	if !strings.Contains(lines[1], "level=WARN") || !strings.Contains(lines[1], "status_code=404") {
		t.Errorf("404 should complete at warn: %s", lines[1])
	}
}
