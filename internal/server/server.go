// Package server exposes the report analysis over HTTP: uploading report
// files, analyzing and searching them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/cleanup"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/config"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/metrics"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/analyzer"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/storage"
)

const (
	// multipart parts above this size are spooled to temporary files.
	maxMemory = 32 << 20

	// cap of the /analyze and /search bodies.
	maxJSONBody = 1 << 20
)

// Server hosts the analyzer API.
type Server struct {
	cfg        *config.Config
	store      storage.Store
	loader     *analyzer.Loader
	collectors *metrics.Collectors
	cleaner    *cleanup.Cleaner
	newBatchID func() string
}

// New constructs a server storing uploads in store.
func New(cfg *config.Config, store storage.Store) *Server {
	collectors := metrics.NewCollectors()

	loader := analyzer.NewLoader(store, collectors)
	if cfg.Server.Concurrency > 0 {
		loader.Concurrency = cfg.Server.Concurrency
	}

	cleaner := cleanup.New(store, cfg.Cleanup.MaxAge)
	cleaner.ArchiveTo = cfg.Cleanup.ArchiveTo
	cleaner.Collectors = collectors

	return &Server{
		cfg:        cfg,
		store:      store,
		loader:     loader,
		collectors: collectors,
		cleaner:    cleaner,
		newBatchID: func() string { return uuid.New().String() },
	}
}

// Handler returns the API routes wrapped by the logging and CORS middlewares.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", s.allow(http.MethodPost, s.uploadHandler))
	mux.HandleFunc("/analyze", s.allow(http.MethodPost, s.analyzeHandler))
	mux.HandleFunc("/search", s.allow(http.MethodPost, s.searchHandler))
	mux.HandleFunc("/health", s.allow(http.MethodGet, s.healthHandler))
	mux.HandleFunc("/metrics", s.allow(http.MethodGet, s.metricsHandler))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	return s.logRequests(s.cors(mux))
}

// Run starts the HTTP server and the periodic cleanup, blocking until ctx is
// canceled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	if s.cfg.Cleanup.Enabled {
		go s.cleaner.Loop(cleanupCtx, s.cfg.Cleanup.Interval)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting report analyzer on %s", s.cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down report analyzer")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) allow(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	promhttp.HandlerFor(s.collectors.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
