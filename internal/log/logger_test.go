package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func jsonLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewJSONHandler(buf, nil),
	})
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &entry); err != nil {
		t.Fatalf("unmarshal log entry %q: %v", buf.String(), err)
	}
	return entry
}

func TestErrorContextTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, ComponentHTTP)

	logger.ErrorContext(context.Background(), "request failed", FieldPath, "/api/data/alice/expenses")

	entry := lastEntry(t, &buf)
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry[FieldComponent] != ComponentHTTP {
		t.Errorf("component = %v", entry[FieldComponent])
	}
	if entry[FieldPath] != "/api/data/alice/expenses" {
		t.Errorf("path = %v", entry[FieldPath])
	}
}

func TestMiddlewareInjectsLoggerAndLogsCompletion(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, ComponentHTTP)

	var inHandler *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inHandler = FromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data/alice/expenses?limit=5", nil))

	if inHandler != logger {
		t.Error("handler did not see the middleware logger in its context")
	}

	entry := lastEntry(t, &buf)
	if entry["level"] != "WARN" {
		t.Errorf("4xx logged at %v, want WARN", entry["level"])
	}
	if entry[FieldStatusCode] != float64(http.StatusNotFound) {
		t.Errorf("status_code = %v", entry[FieldStatusCode])
	}
	if entry[FieldMethod] != http.MethodGet {
		t.Errorf("method = %v", entry[FieldMethod])
	}
	if entry[FieldSuccess] != false {
		t.Errorf("success = %v", entry[FieldSuccess])
	}
}

func TestMiddlewareLogsServerErrorsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, ComponentHTTP)

	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if entry := lastEntry(t, &buf); entry["level"] != "ERROR" {
		t.Errorf("5xx logged at %v, want ERROR", entry["level"])
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil || logger.Logger == nil {
		t.Fatal("no fallback logger")
	}
}
