package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server exposes /metrics, /health and /session over HTTP.
type Server struct {
	server *http.Server
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// NewRouter builds the HTTP routes.
func NewRouter(registry *prometheus.Registry, c *Collector) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/session", func(w http.ResponseWriter, _ *http.Request) {
		snap := c.Last()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"active":    snap.Active,
			"completed": snap.Completed,
			"target":    int(snap.Target),
			"streak":    snap.Streak,
			"score":     snap.Score,
			"session":   snap.Session,
			"weights":   snap.Weights,
			"lifetime":  snap.Lifetime,
		}); err != nil {
			logrus.Warnf("failed to encode session: %v", err)
		}
	}).Methods(http.MethodGet)
	return r
}

// NewServer wraps the router with access logging.
func NewServer(addr string, registry *prometheus.Registry, c *Collector) *Server {
	logged := handlers.LoggingHandler(logrus.StandardLogger().WriterLevel(logrus.DebugLevel), NewRouter(registry, c))
	return &Server{server: &http.Server{
		Addr:              addr,
		Handler:           logged,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		logrus.Infof("metrics server listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics server failed: %v", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
