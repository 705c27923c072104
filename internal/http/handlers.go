package http

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"txlens/internal/ingest"
	"txlens/internal/log"
)

type appMetrics struct {
	uptime       time.Time
	uploads      int64
	rowsIngested int64
	exclusions   int64
	exports      int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{uptime: time.Now()}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady checks templates and the store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.dashboard.Ping(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.GetMetrics().ClientCount,
		"status":         "ok",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	counters := []struct {
		name, help, kind string
		value            int64
	}{
		{"http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests},
		{"http_requests_failed_total", "HTTP requests answered with 5xx", "counter", traceMetrics.FailedRequests},
		{"uploads_total", "Upload requests that stored at least one file", "counter", atomic.LoadInt64(&s.appMetrics.uploads)},
		{"rows_ingested_total", "Transactions appended through uploads", "counter", atomic.LoadInt64(&s.appMetrics.rowsIngested)},
		{"merchant_exclusions_total", "Merchants removed from metrics", "counter", atomic.LoadInt64(&s.appMetrics.exclusions)},
		{"exports_total", "Filtered view exports", "counter", atomic.LoadInt64(&s.appMetrics.exports)},
		{"rate_limit_hits_total", "Total rate limit hits", "counter", rateLimitMetrics.TotalHits},
		{"active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount},
		{"suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests},
	}

	w.WriteHeader(http.StatusOK)
	for _, c := range counters {
		fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", c.name, c.kind)
		fmt.Fprintf(w, "%s %d\n\n", c.name, c.value)
	}
	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.appMetrics.uptime).Seconds())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Page not found").Write(w)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	data := struct {
		MaxUploadMB int64
	}{
		MaxUploadMB: s.maxUploadBytes >> 20,
	}
	s.render(w, r, "index.html", data)
}

// handleOverview renders the aggregates over the filtered view.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	ov, err := s.dashboard.Overview(ctx)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Overview error",
			log.FieldError, err, log.FieldOperation, log.OpRead)
		InternalServerError("Could not load the dashboard").Write(w)
		return
	}
	s.render(w, r, "overview.html", newOverviewView(ov))
}

// handleSearch renders the merchant search report. Search covers every
// stored row, including excluded merchants.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	q := ParseSearchQuery(r.URL.Query())
	report, err := s.dashboard.Search(ctx, q)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Search error",
			log.FieldError, err, log.FieldSearch, q, log.FieldOperation, log.OpSearch)
		InternalServerError("Search failed").Write(w)
		return
	}

	excluded, err := s.dashboard.ListExcluded(ctx)
	if err != nil {
		// Only the button state depends on it.
		log.FromContext(ctx).WarnContext(ctx, "List excluded merchants failed", log.FieldError, err)
	}
	s.render(w, r, "search.html", newSearchView(report, excluded))
}

// handleUpload ingests the uploaded CSV files in order. Files stored before
// a failing one stay stored and are reported alongside the error.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	sources, release, resp := ParseUploads(w, r, s.maxUploadBytes)
	defer release()
	if resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
	defer cancel()

	logger := log.FromContext(ctx)
	results, err := s.dashboard.Ingest(ctx, sources)

	sl := log.NewStructuredLogger(logger)
	rows := 0
	for _, res := range results {
		rows += res.Rows
		sl.LogUpload(ctx, res.File, res.BatchID, res.Rows, res.Warnings)
	}
	if len(results) > 0 {
		atomic.AddInt64(&s.appMetrics.uploads, 1)
		atomic.AddInt64(&s.appMetrics.rowsIngested, int64(rows))
	}

	if err != nil {
		sl.LogError(ctx, "Upload failed", err, log.ComponentIngest, log.OpIngest, log.NewFields())
		if len(results) == 0 {
			resp := InternalServerError("Upload failed")
			var parseErr *csv.ParseError
			if errors.Is(err, ingest.ErrNoHeader) || errors.As(err, &parseErr) {
				resp = UnprocessableEntityError(err.Error())
			}
			resp.TriggerErrorNotification("Upload failed").Write(w)
			return
		}
	}

	builder := NewHTMXResponse().TriggerFormReset()
	if rows > 0 {
		builder.TriggerDashboardRefresh()
	}
	if err != nil {
		builder.TriggerErrorNotification("Some files were not imported")
	} else {
		builder.TriggerSuccessNotification(fmt.Sprintf("Imported %d rows", rows))
	}
	s.renderWith(w, r, builder, "upload_result.html", newUploadView(results, err))
}
