package http

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"txlens/internal/aggregate"
	"txlens/internal/ingest"
	"txlens/internal/log"
	"txlens/internal/middleware/ratelimit"
	"txlens/internal/middleware/security"
	"txlens/internal/middleware/trace"
	"txlens/internal/services"
	appweb "txlens/web"
)

// DashboardService is what the handlers need from the dashboard.
type DashboardService interface {
	Ingest(ctx context.Context, sources []ingest.Source) ([]ingest.Result, error)
	Overview(ctx context.Context) (services.Overview, error)
	Search(ctx context.Context, query string) (aggregate.MerchantReport, error)
	ExcludeMerchant(ctx context.Context, merchant string) error
	ListExcluded(ctx context.Context) ([]string, error)
	ReinstateAll(ctx context.Context) (int64, error)
	ExportCSV(ctx context.Context) (string, int, error)
	WriteCSV(ctx context.Context, w io.Writer) error
	WriteXLSX(ctx context.Context, w io.Writer) error
	Ping(ctx context.Context) error
}

// Config holds server settings.
type Config struct {
	Addr        string
	MaxUploadMB int
	// RequestsPerMinute limits POSTs per client; zero uses the limiter default.
	RequestsPerMinute int
	Logger            *log.Logger
}

const (
	defaultMaxUploadMB = 10
	readTimeout        = 7 * time.Second
	uploadTimeout      = 60 * time.Second
)

type Server struct {
	http.Server
	templates        *template.Template
	dashboard        DashboardService
	logger           *log.Logger
	maxUploadBytes   int64
	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(cfg Config, dashboard DashboardService) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = defaultMaxUploadMB
	}
	limiterCfg := ratelimit.DefaultConfig()
	if cfg.RequestsPerMinute > 0 {
		limiterCfg.RequestsPerMinute = cfg.RequestsPerMinute
	}

	detector := security.NewDetector()
	s := &Server{
		dashboard:        dashboard,
		logger:           logger,
		maxUploadBytes:   int64(cfg.MaxUploadMB) << 20,
		securityDetector: detector,
		rateLimiter:      ratelimit.NewLimiter(limiterCfg),
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		appMetrics:       newAppMetrics(),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", log.FieldError, err, log.FieldComponent, log.ComponentTemplate)
	}
	s.templates = t

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/ui/overview", s.handleOverview)
	mux.HandleFunc("/ui/search", s.handleSearch)
	mux.HandleFunc("/merchants/exclude", s.handleExcludeMerchant)
	mux.HandleFunc("/merchants/reinstate", s.handleReinstateAll)
	mux.HandleFunc("/export", s.handleExport)
	mux.HandleFunc("/export.csv", s.handleExportCSV)
	mux.HandleFunc("/export.xlsx", s.handleExportXLSX)

	// Outermost first: trace assigns the request ID everything below logs with.
	var handler http.Handler = mux
	handler = log.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = log.Middleware(logger)(handler)
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, s.handleRateLimited)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldComponent, log.ComponentRateLimit)
	TooManyRequestsError("Too many requests. Please try again in a minute.", "60").Write(w)
}

// render executes a named template as a plain 200 response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	s.renderWith(w, r, NewHTMXResponse(), name, data)
}

// renderWith executes a named template into the builder's body, so a
// template failure becomes a clean 500 instead of a half-written page.
func (s *Server) renderWith(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate,
			"error_type", log.ErrorTypeConfiguration)
		InternalServerError("Templates not loaded").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution error",
			log.FieldError, err,
			"template", name,
			log.FieldOperation, log.OpRender)
		InternalServerError("Could not render page").Write(w)
		return
	}
	b.Header("Content-Type", contentTypeHTML).Body(buf.Bytes()).Write(w)
}
