// Package http serves run progress over HTTP: a JSON status snapshot, the
// collected work ledger, a health probe and Prometheus metrics.
package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/anneal/pkg/domain"
)

// StatusProvider is the run being observed. The orchestrator implements
// it.
type StatusProvider interface {
	Status() domain.RunStatus
}

// LedgerProvider optionally exposes the work ledger for inspection.
type LedgerProvider interface {
	Checkpoint() domain.LedgerSnapshot
}

// Server wires the run into an HTTP mux.
type Server struct {
	provider StatusProvider
	registry *prometheus.Registry
}

type Option func(*Server)

// WithRegistry serves metrics from the given registry instead of the
// default one.
func WithRegistry(r *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = r
	}
}

// NewHandler builds the HTTP handler for a run.
func NewHandler(provider StatusProvider, opts ...Option) http.Handler {
	server := &Server{provider: provider}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/healthz", server.health)
	r.Get("/status", server.status)
	r.Get("/ledger", server.ledger)
	r.Get("/ledger/{direction}", server.ledgerDirection)

	if server.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(server.registry, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.provider.Status())
}

func (s *Server) ledger(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.provider.(LedgerProvider)
	if !ok {
		http.Error(w, "ledger not available", http.StatusNotFound)
		return
	}
	writeJSON(w, provider.Checkpoint())
}

func (s *Server) ledgerDirection(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.provider.(LedgerProvider)
	if !ok {
		http.Error(w, "ledger not available", http.StatusNotFound)
		return
	}

	direction := domain.Direction(chi.URLParam(r, "direction"))
	if !direction.Valid() {
		http.Error(w, fmt.Sprintf("unknown direction %q", direction), http.StatusBadRequest)
		return
	}

	snapshot := provider.Checkpoint()
	rows := snapshot.Forward
	if direction == domain.DirectionReverse {
		rows = snapshot.Reverse
	}
	if rows == nil {
		rows = [][]float64{}
	}
	writeJSON(w, rows)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encode error: %v", err), http.StatusInternalServerError)
	}
}
