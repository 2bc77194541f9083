package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/mesh-intelligence/seguimientos/internal/logger"
	"github.com/mesh-intelligence/seguimientos/internal/metrics"
)

// ObservabilityServer serves metrics, health and profiling endpoints on a
// separate listener.
type ObservabilityServer struct {
	server *http.Server
	log    *logger.Logger
}

// NewObservabilityServer creates the observability HTTP server.
func NewObservabilityServer(addr string, m *metrics.Metrics, log *logger.Logger, ready func(context.Context) error) *ObservabilityServer {
	mux := http.NewServeMux()

	// Prometheus metrics endpoint
	mux.Handle("/metrics", m.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "seguimientos"})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "detail": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &ObservabilityServer{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log.Component("observability"),
	}
}

// Handler returns the endpoint mux.
func (o *ObservabilityServer) Handler() http.Handler {
	return o.server.Handler
}

// Serve serves on l until Shutdown.
func (o *ObservabilityServer) Serve(l net.Listener) error {
	o.log.Info().
		Str("metrics", fmt.Sprintf("http://%s/metrics", l.Addr())).
		Str("pprof", fmt.Sprintf("http://%s/debug/pprof/", l.Addr())).
		Msg("observability endpoints available")

	if err := o.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("observability server failed: %w", err)
	}
	return nil
}

// Start listens on the configured address and serves until Shutdown.
func (o *ObservabilityServer) Start() error {
	l, err := net.Listen("tcp", o.server.Addr)
	if err != nil {
		return fmt.Errorf("observability listen: %w", err)
	}
	return o.Serve(l)
}

// Shutdown gracefully shuts down the observability server.
func (o *ObservabilityServer) Shutdown(ctx context.Context) error {
	o.log.Info().Msg("shutting down observability server")
	return o.server.Shutdown(ctx)
}
