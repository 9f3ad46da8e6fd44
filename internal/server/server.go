// Package server implements the HTTP server that exposes the Nexus document
// chat API: chat turns, document upload and deletion, session management,
// and service availability. The server is started by the `nexus serve` CLI
// command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexusai/nexus/internal/logging"
	"github.com/nexusai/nexus/internal/rag"
	"github.com/nexusai/nexus/internal/store"
)

// Deps bundles the collaborators the server dispatches to.
type Deps struct {
	// Generator produces model responses with rate-limit fallback.
	Generator generator
	// Retriever fetches grounding passages for a session.
	Retriever rag.Retriever
	// Ingester indexes uploaded documents.
	Ingester ingester
	// Cleaner removes vectors for deleted sessions and documents.
	Cleaner cleaner
	// Records is the relational store for sessions, documents, and messages.
	Records *store.Store
	// Registry receives the server's Prometheus metrics and backs /metrics.
	// If nil a private registry is created.
	Registry *prometheus.Registry
}

// New constructs a Server from the provided collaborators and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("server: generator must not be nil")
	}
	if deps.Records == nil {
		return nil, fmt.Errorf("server: record store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full model cascade with retries.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.TopK <= 0 {
		cfg.TopK = rag.DefaultTopK
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		generator: deps.Generator,
		retriever: deps.Retriever,
		ingester:  deps.Ingester,
		cleaner:   deps.Cleaner,
		records:   deps.Records,
		cfg:       cfg,
		log:       log,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(registry),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/availability", s.handleAvailability)
	mux.HandleFunc("POST /api/sessions", s.handleSessionCreate)
	mux.HandleFunc("GET /api/sessions", s.handleSessionList)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleSessionDelete)
	mux.HandleFunc("GET /api/sessions/{id}/messages", s.handleMessageList)
	mux.HandleFunc("POST /api/documents", s.handleDocumentUpload)
	mux.HandleFunc("GET /api/documents", s.handleDocumentList)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDocumentDelete)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, s.metricsMiddleware(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAvailability handles GET /api/availability. Clients poll it to decide
// whether to disable input while the model hierarchy recovers.
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	available, msg := s.generator.CheckAvailability()
	writeJSON(w, http.StatusOK, availabilityResponse{
		Available: available,
		Message:   msg,
	})
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
