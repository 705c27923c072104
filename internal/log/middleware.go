package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey struct{}

// NewContext returns a copy of ctx carrying l.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger, or the process default tagged as
// the app component when none was attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{Logger: slog.Default(), component: ComponentApp}
}

// Middleware attaches logger to every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// RequestIDMiddleware binds the ID returned by requestID to the context
// logger. Requests without an ID pass through untouched.
func RequestIDMiddleware(requestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := requestID(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			l := FromContext(r.Context()).WithFields(NewFields().WithRequestID(id))
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), l)))
		})
	}
}

// StructuredLogger emits the fixed-shape events handlers and middleware
// share, so every record of one kind carries the same keys.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	f := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), r.Referer()).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	sl.logger.InfoContext(ctx, "HTTP request started", f.ToSlice()...)
}

// LogHTTPEnd logs at Warn for 4xx and Error for 5xx.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	f := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	sl.logger.Log(ctx, level, "HTTP request completed", f.ToSlice()...)
}

func (sl *StructuredLogger) LogUpload(ctx context.Context, file, batchID string, rows int, warnings []string) {
	args := NewFields().
		WithUpload(file, batchID, rows).
		WithOperation(OpIngest).
		WithComponent(ComponentIngest).
		ToSlice()
	if len(warnings) > 0 {
		args = append(args, "warnings", warnings)
	}
	sl.logger.InfoContext(ctx, "Upload ingested", args...)
}

// LogMerchantChange records an exclusion (merchant set) or a reinstatement
// (merchant empty) and how many rows of the list it touched.
func (sl *StructuredLogger) LogMerchantChange(ctx context.Context, op, merchant string, affected int64) {
	f := NewFields().WithOperation(op).WithComponent(ComponentDashboard)
	if merchant != "" {
		f.WithMerchant(merchant)
	}
	f[FieldRows] = affected
	sl.logger.InfoContext(ctx, "Excluded merchants changed", f.ToSlice()...)
}

// LogError adds err, operation and component to fields. fields is modified.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	fields.WithError(err).WithOperation(operation).WithComponent(component)
	sl.logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}
