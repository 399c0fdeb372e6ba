// Package server exposes the monitor over HTTP: the latest snapshot,
// live configuration, readiness, and Prometheus metrics.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/linkpulsehq/linkpulse/internal/config"
	"github.com/linkpulsehq/linkpulse/internal/health"
	"github.com/linkpulsehq/linkpulse/internal/metrics"
	"github.com/linkpulsehq/linkpulse/internal/state"
)

// Config controls HTTP server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Monitor is the engine surface the server needs.
type Monitor interface {
	Publisher() *state.Publisher
	Config() config.MonitorConfig
	Reload(config.MonitorConfig) error
}

// Dependencies holds external collaborators required by the server.
type Dependencies struct {
	Logger  *log.Logger
	Monitor Monitor
	Checker *health.Checker
	Metrics *metrics.Store

	// Persist, when set, writes an accepted configuration back to disk
	// after a successful reload.
	Persist func(config.MonitorConfig) error
}

// Server wraps http.Server for convenience.
type Server struct {
	*http.Server
	cfg  Config
	deps Dependencies
}

// New constructs the HTTP server with the monitor API routes.
func New(cfg Config, deps Dependencies) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:9610"
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/snapshot", snapshotHandler(deps)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/config", getConfigHandler(deps)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/config", putConfigHandler(deps)).Methods(http.MethodPut)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.HandleFunc("/readyz", readyHandler(deps)).Methods(http.MethodGet)
	if deps.Metrics != nil {
		r.Handle("/metrics", metrics.NewHTTPHandler(deps.Metrics))
	}

	s := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return &Server{Server: s, cfg: cfg, deps: deps}
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.Server.Handler
}

func snapshotHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := deps.Monitor.Publisher().Current()
		if snap == nil {
			http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			deps.Logger.Printf("encode snapshot failed: %v", err)
		}
	}
}

func getConfigHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(deps.Monitor.Config())
	}
}

func putConfigHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Decode over the active config so omitted fields keep their
		// current values.
		cfg := deps.Monitor.Config()
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		if err := deps.Monitor.Reload(cfg); err != nil {
			var cfgErr *config.ConfigError
			if errors.As(err, &cfgErr) {
				http.Error(w, cfgErr.Error(), http.StatusBadRequest)
			} else {
				deps.Logger.Printf("reload failed: %v", err)
				http.Error(w, "reload failed", http.StatusInternalServerError)
			}
			return
		}

		if deps.Checker != nil {
			deps.Checker.SetStaleAfter(health.StaleWindow(cfg.PingInterval()))
		}
		if deps.Persist != nil {
			if err := deps.Persist(cfg); err != nil {
				// Config is live; persistence failure only costs the
				// next restart.
				deps.Logger.Printf("persist config failed: %v", err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cfg)
	}
}

func readyHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type response struct {
			Ready   bool     `json:"ready"`
			Reasons []string `json:"reasons,omitempty"`
		}

		ready, reasons := true, []string(nil)
		if deps.Checker != nil {
			ready, reasons = deps.Checker.Ready(time.Now())
		}

		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(response{Ready: ready, Reasons: reasons})
	}
}
