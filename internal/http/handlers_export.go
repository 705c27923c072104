package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"txlens/internal/log"
)

const (
	exportTimeout = 30 * time.Second
	exportName    = "filtered_transactions"

	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// handleExport writes the filtered view to the configured export path on
// the server.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()

	path, rows, err := s.dashboard.ExportCSV(ctx)
	if err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Export failed", err,
			log.ComponentExport, log.OpExport, log.NewFields())
		InternalServerError("Export failed").
			TriggerErrorNotification("Export failed").
			Write(w)
		return
	}

	atomic.AddInt64(&s.appMetrics.exports, 1)
	NewHTMXResponse().
		TriggerSuccessNotification(fmt.Sprintf("Exported %d rows", rows)).
		BodyHTML(fmt.Sprintf(`<div class="success">Exported %d rows to %s</div>`, rows, template.HTMLEscapeString(path))).
		Write(w)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, "csv", contentTypeCSV, s.dashboard.WriteCSV)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, "xlsx", contentTypeXLSX, s.dashboard.WriteXLSX)
}

// download buffers the export so a failure can still answer with a 500.
func (s *Server) download(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(context.Context, io.Writer) error) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()

	var buf bytes.Buffer
	if err := write(ctx, &buf); err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Export download failed", err,
			log.ComponentExport, log.OpExport, log.NewFields())
		InternalServerError("Export failed").Write(w)
		return
	}

	atomic.AddInt64(&s.appMetrics.exports, 1)
	NewHTMXResponse().
		Header("Content-Type", contentType).
		Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, exportName, ext)).
		Header("Content-Length", strconv.Itoa(buf.Len())).
		Body(buf.Bytes()).
		Write(w)
}
