// Package server exposes the assessment pipeline over HTTP:
//
//	POST /api/assess  — multipart recording + reference text → scored result
//	POST /api/tts     — JSON text → synthesized reference audio
//	GET  /api/health  — liveness
//	GET  /api/ready   — readiness
//	GET  /metrics     — Prometheus scrape endpoint
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tackung/re-say/internal/assessment"
	"github.com/tackung/re-say/internal/config"
	"github.com/tackung/re-say/internal/health"
	"github.com/tackung/re-say/internal/observe"
	"github.com/tackung/re-say/internal/storage"
	"github.com/tackung/re-say/pkg/provider/synth"
)

// Server wires the orchestrator, synthesizer, and supporting handlers into
// an HTTP handler and manages the listener lifecycle.
type Server struct {
	cfg          *config.Config
	orchestrator *assessment.Orchestrator
	synthesizer  synth.Provider
	spooler      *storage.Spooler
	metrics      *observe.Metrics
	health       *health.Handler

	httpServer *http.Server
}

// New assembles a Server from its dependencies. checkers become the
// readiness probes.
func New(cfg *config.Config, orch *assessment.Orchestrator, syn synth.Provider, m *observe.Metrics, checkers ...health.Checker) *Server {
	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		synthesizer:  syn,
		spooler:      storage.NewSpooler(cfg.Storage.TempDir),
		metrics:      m,
		health:       health.New(checkers...),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the chi router with the full middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(s.metrics))
	if len(s.cfg.Server.CORSAllowedOrigins) > 0 {
		r.Use(corsMiddleware(s.cfg.Server.CORSAllowedOrigins))
	}

	s.health.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/assess", s.handleAssess)
		r.Post("/tts", s.handleSynthesize)
	})

	return r
}

// ListenAndServe starts the HTTP listener and blocks until the listener
// fails or is shut down. TLS is used when configured.
func (s *Server) ListenAndServe() error {
	if tls := s.cfg.Server.TLS; tls != nil {
		return s.httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware answers preflight requests and stamps the CORS headers
// for the configured origins. "*" allows every origin.
func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	allowAll := false
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		origins[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			_, ok := origins[origin]
			if origin != "" && (allowAll || ok) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
