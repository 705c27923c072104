package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func bufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentIngest).
		WithUpload("jan.csv", "b-1", 12).
		WithMerchant("Costco").
		WithError(errors.New("boom")).
		WithError(nil)

	if f[FieldComponent] != ComponentIngest || f[FieldRows] != 12 || f[FieldMerchant] != "Costco" {
		t.Errorf("unexpected fields: %v", f)
	}
	if f[FieldError] != "boom" {
		t.Errorf("nil error must not overwrite: %v", f[FieldError])
	}
	if len(f.ToSlice()) != len(f)*2 {
		t.Errorf("ToSlice length = %d", len(f.ToSlice()))
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, ComponentStorage)

	logger.InfoContext(context.Background(), "stored", FieldRows, 3)

	out := buf.String()
	if !strings.Contains(out, "component=storage") || !strings.Contains(out, "rows=3") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestWithComponentTagsOnce(t *testing.T) {
	tests := []struct {
		name string
		log  func(*Logger)
		want string
	}{
		{"retagged", func(l *Logger) { l.WithComponent(ComponentHTTP).WithComponent(ComponentExport).Info("x") }, "component=export"},
		{"explicit key wins", func(l *Logger) { l.Info("x", FieldComponent, ComponentWorker) }, "component=worker"},
		{"attr key wins", func(l *Logger) { l.Warn("x", slog.String(FieldComponent, ComponentAMQP)) }, "component=amqp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(bufferLogger(&buf, ComponentApp))

			out := buf.String()
			if strings.Count(out, "component=") != 1 || !strings.Contains(out, tt.want) {
				t.Errorf("want exactly %s, got %s", tt.want, out)
			}
		})
	}
}

func TestMiddlewareAndFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, ComponentHTTP)

	var got *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got != logger {
		t.Fatalf("expected the attached logger, got %+v", got)
	}
	if FromContext(context.Background()).Component() != ComponentApp {
		t.Error("missing logger should fall back to the app default")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"bound", "req_42", "request_id=req_42"},
		{"no id", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := bufferLogger(&buf, ComponentHTTP)
			h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return tt.id })(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					FromContext(r.Context()).InfoContext(r.Context(), "handled")
				})))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

			out := buf.String()
			if tt.want == "" {
				if strings.Contains(out, FieldRequestID) {
					t.Errorf("unexpected request_id: %s", out)
				}
				return
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %s: %s", tt.want, out)
			}
		})
	}
}

func TestStructuredLoggerUpload(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(bufferLogger(&buf, ComponentApp))

	sl.LogUpload(context.Background(), "jan.csv", "b-1", 4, []string{"Column 'Date' missing"})
	sl.LogMerchantChange(context.Background(), OpExclude, "Costco", 1)

	out := buf.String()
	for _, want := range []string{"file=jan.csv", "batch_id=b-1", "operation=ingest", "merchant=Costco", "operation=exclude"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSlogBindsComponent(t *testing.T) {
	var buf bytes.Buffer
	bufferLogger(&buf, ComponentApp).WithComponent(ComponentWorker).Slog().Info("started")

	if out := buf.String(); !strings.Contains(out, "component=worker") {
		t.Errorf("plain slog logger lost the component: %s", out)
	}
}
