package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync/atomic"
	"time"

	"txlens/internal/log"
	"txlens/internal/services"
)

const mutationTimeout = 7 * time.Second

// handleExcludeMerchant removes a merchant from every dashboard metric.
// The page re-queries its partials on the dashboard:refresh trigger.
func (s *Server) handleExcludeMerchant(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	merchant, resp := ParseMerchant(w, r)
	if resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	if err := s.dashboard.ExcludeMerchant(ctx, merchant); err != nil {
		if errors.Is(err, services.ErrEmptyMerchant) {
			BadRequestError("Merchant name is required").Write(w)
			return
		}
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Exclude merchant failed", err,
			log.ComponentDashboard, log.OpExclude, log.NewFields().WithMerchant(merchant))
		InternalServerError("Could not remove merchant").Write(w)
		return
	}

	atomic.AddInt64(&s.appMetrics.exclusions, 1)
	log.NewStructuredLogger(log.FromContext(ctx)).LogMerchantChange(ctx, log.OpExclude, merchant, 1)

	NewHTMXResponse().
		TriggerDashboardRefresh().
		TriggerSuccessNotification("Removed from metrics").
		BodyHTML(`<div class="success">Removed "` + template.HTMLEscapeString(merchant) + `" from metrics</div>`).
		Write(w)
}

// handleReinstateAll clears every exclusion.
func (s *Server) handleReinstateAll(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	n, err := s.dashboard.ReinstateAll(ctx)
	if err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Reinstate merchants failed", err,
			log.ComponentDashboard, log.OpReinstate, log.NewFields())
		InternalServerError("Could not reinstate merchants").Write(w)
		return
	}

	log.NewStructuredLogger(log.FromContext(ctx)).LogMerchantChange(ctx, log.OpReinstate, "", n)

	msg := fmt.Sprintf("Reinstated %d merchants", n)
	if n == 1 {
		msg = "Reinstated 1 merchant"
	}
	builder := NewHTMXResponse().TriggerSuccessNotification(msg)
	if n > 0 {
		builder.TriggerDashboardRefresh()
	}
	builder.BodyHTML(`<div class="success">` + msg + `</div>`).Write(w)
}
