// Package api exposes verification over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alevsk/rollout-scope/internal/formatter"
	"github.com/alevsk/rollout-scope/internal/kube"
	"github.com/alevsk/rollout-scope/internal/logger"
	"github.com/alevsk/rollout-scope/internal/manifest"
	"github.com/alevsk/rollout-scope/internal/telemetry"
	"github.com/alevsk/rollout-scope/internal/verify"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"
)

// maxBodySize bounds the manifest stream accepted by the verify endpoint.
// Larger bodies are rejected rather than truncated.
const maxBodySize = 10 << 20

// Options configures the API server
type Options struct {
	Registry *verify.Registry
	Client   kube.Client
	Metrics  *telemetry.Metrics
	Tracer   trace.Tracer
	Clock    clock.Clock

	// Defaults applied when the request does not override them
	PollInterval time.Duration
	Timeout      time.Duration
	Kinds        []string

	// ReadTimeout bounds reading a request; zero disables it
	ReadTimeout time.Duration
}

// Server represents the API server
type Server struct {
	router *mux.Router
	opts   Options
}

// NewServer creates a new API server instance
func NewServer(opts Options) *Server {
	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
	}
	s.routes()
	return s
}

// routes sets up the API routes
func (s *Server) routes() {
	s.router.HandleFunc("/api/v1/health", s.healthCheck).Methods("GET")
	s.router.HandleFunc("/api/v1/verify", s.verify).Methods("POST")
	s.router.Handle("/metrics", s.opts.Metrics.Handler()).Methods("GET")
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	logger.Info().Str("addr", addr).Msg("starting server")
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.opts.ReadTimeout,
	}
	return srv.ListenAndServe()
}

// healthCheck handles the health check endpoint
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		logger.Error().Err(err).Msg("failed to encode health check response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
}

// verify parses the posted manifests, selects targets and runs the
// coordinator. The run is bounded by the request context.
func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	interval, err := durationParam(query.Get("interval"), s.opts.PollInterval)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("interval: %w", err))
		return
	}
	timeout, err := durationParam(query.Get("timeout"), s.opts.Timeout)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("timeout: %w", err))
		return
	}
	kinds := s.opts.Kinds
	if values := query["kind"]; len(values) > 0 {
		kinds = splitKinds(values)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("reading request: %w", err))
		return
	}
	objects, err := manifest.ParseReader("request", bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	targets, err := verify.SelectTargets(objects, kinds)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	opts := []verify.Option{verify.WithMetrics(s.opts.Metrics)}
	if s.opts.Tracer != nil {
		opts = append(opts, verify.WithTracer(s.opts.Tracer))
	}
	if s.opts.Clock != nil {
		opts = append(opts, verify.WithClock(s.opts.Clock))
	}
	coordinator := verify.NewCoordinator(s.opts.Registry, s.opts.Client, opts...)

	report, err := coordinator.Run(r.Context(), targets, interval, timeout)
	switch {
	case errors.Is(err, verify.ErrInvalidInterval), errors.Is(err, verify.ErrInvalidTimeout):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil && report == nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	case err != nil:
		logger.Warn().Err(err).Str("run", report.RunID).Msg("verification interrupted")
	}

	doc, err := formatter.NewDocument(formatter.Result{
		Source:    "request",
		Timestamp: time.Now().Unix(),
		Report:    report,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func durationParam(value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	return time.ParseDuration(value)
}

// splitKinds accepts both repeated and comma separated kind parameters
func splitKinds(values []string) []string {
	var kinds []string
	for _, v := range values {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				kinds = append(kinds, k)
			}
		}
	}
	return kinds
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
