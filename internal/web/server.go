// Package web serves the public status pages for issued permits: the portal,
// the QR landing page and the detailed folio lookup. It reads records through
// a narrow store view and never mutates anything.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coreconfig "github.com/Gsr1989/Aguascalientes/core/config"
	"github.com/Gsr1989/Aguascalientes/core/logger"
	"github.com/Gsr1989/Aguascalientes/internal/metrics"
	"github.com/Gsr1989/Aguascalientes/internal/permit"
)

//go:embed templates/*.html
var templateFS embed.FS

// Reader is the read-only view of the permit store the pages need.
type Reader interface {
	ByFolio(ctx context.Context, folio string) (*permit.Permit, error)
}

// PendingCounter reports how many pending deadlines are currently scheduled.
type PendingCounter interface {
	PendingCount() int
}

// Server hosts the status pages plus /healthz and /metrics.
type Server struct {
	httpServer *http.Server
	tpl        *template.Template
	store      Reader
	pending    PendingCounter
	entidad    string
	priceMXN   int
	baseURL    string
	now        func() time.Time
}

// NewServer builds the server from the web and permits config sections.
func NewServer(cfg coreconfig.WebConfig, permits coreconfig.PermitsConfig, store Reader, pending PendingCounter) (*Server, error) {
	tpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		tpl:      tpl,
		store:    store,
		pending:  pending,
		entidad:  permits.DisplayName,
		priceMXN: permits.PriceMXN,
		baseURL:  cfg.BaseURL,
		now:      time.Now,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(instrument)

	r.Get("/", s.handlePortal)
	r.Get("/estado_folio/{folio}", s.handleEstado)
	r.Get("/consulta_folio/{folio}", s.handleConsulta)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start begins serving in a goroutine. Listen failures are reported on the
// returned channel so the app hook can surface them.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		logger.LogEvent(context.Background(), logger.Web, slog.LevelInfo, "web.listen",
			slog.String("listen", s.httpServer.Addr),
			slog.String("public_url", s.baseURL),
		)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown drains in-flight requests within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.LogEvent(ctx, logger.Web, slog.LevelInfo, "web.shutdown")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := uuid.NewString()
		w.Header().Set("X-Request-Id", rid)
		next.ServeHTTP(w, r.WithContext(logger.WithRID(r.Context(), rid)))
	})
}

// instrument records latency per route pattern and writes one access-log line
// per request. The pattern is read after the handler runs so chi has resolved
// it.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.HTTPRequestDuration.WithLabelValues(route, strconv.Itoa(code)).Observe(elapsed.Seconds())

		level := slog.LevelInfo
		if code >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogEvent(r.Context(), logger.Web, level, "web.request",
			slog.String("route", route),
			slog.String("operation", r.Method+" "+r.URL.Path),
			slog.Int("http_code", code),
			slog.Duration("duration", logger.RoundMS(elapsed)),
		)
	})
}
