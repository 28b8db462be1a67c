package http

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the dashboard routes.
type Options struct {
	Addr        string
	DatasetPath string // JSON export served at /api/quakes
	FrontendDir string // static dashboard files; skipped when missing
}

// Server exposes the dashboard, the dataset export, and the health, readiness
// and metrics endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /api/quakes and the static dashboard under /.
func NewServer(opts Options, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s := &Server{
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/api/quakes", s.handleDataset(opts.DatasetPath))

	if info, err := os.Stat(opts.FrontendDir); err == nil && info.IsDir() {
		r.Handle("/*", http.FileServer(http.Dir(opts.FrontendDir)))
	} else {
		logger.Warn("frontend directory not found, dashboard disabled", "dir", opts.FrontendDir)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleDataset serves the export file as written by the last run. The file
// is replaced atomically, so a reader sees either the old or the new dataset.
func (s *Server) handleDataset(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no dataset exported yet"})
				return
			}
			s.logger.Error("open dataset export", "path", path, "error", err)
			sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "dataset unavailable"})
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "dataset unavailable"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
	}
}
