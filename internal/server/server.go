// Package server exposes the running scheduler over HTTP: Prometheus metrics,
// a health probe and the list of pending runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kaelzs/ThreeW/internal/logger"
	"github.com/Kaelzs/ThreeW/internal/scheduler"
)

// RunLister is the part of the scheduler the server reads.
type RunLister interface {
	Runs() []scheduler.ScheduledRun
}

// HTTPServer serves the status endpoints.
type HTTPServer struct {
	server  *http.Server
	mux     *http.ServeMux
	runs    RunLister
	mu      sync.Mutex
	started bool
	stopped bool
}

// runView is the JSON shape of one pending run.
type runView struct {
	EventID     string    `json:"event_id"`
	FireAt      time.Time `json:"fire_at"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// NewHTTPServer creates a server listening on addr. Metrics are read from
// gatherer; a nil gatherer means the default Prometheus registry.
func NewHTTPServer(addr string, runs RunLister, gatherer prometheus.Gatherer) *HTTPServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	s := &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		mux:  mux,
		runs: runs,
	}

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/runs", s.handleRuns)
	return s
}

// Mux returns the server's handler for mounting extra routes or testing.
func (s *HTTPServer) Mux() *http.ServeMux {
	return s.mux
}

// Start begins listening in a background goroutine.
func (s *HTTPServer) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	l := logger.L()
	l.Info("Starting HTTP server", "address", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("HTTP server failed", "error", err)
		}
	}()
}

// Stop gracefully shuts the server down. Stopping twice is a no-op.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped || !s.started {
		s.stopped = true
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	logger.L().Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	runs := s.runs.Runs()
	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, runView{EventID: run.EventID, FireAt: run.FireAt, ScheduledAt: run.ScheduledAt})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		logger.L().Error("Failed to encode runs", "error", err)
	}
}
