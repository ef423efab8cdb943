// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"

	"github.com/retrobridge/retrobridge/internal/core"
)

// ReadinessChecker returns whether a game is running.
type ReadinessChecker func() bool

// Metrics contains Prometheus metrics for core sessions.
type Metrics struct {
	FramesTotal     prometheus.Counter
	FramesDropped   prometheus.Counter
	CallbacksTotal  *prometheus.CounterVec
	CoreLoadsTotal  *prometheus.CounterVec
	FrameDuration   prometheus.Histogram
	GameLoadedGauge prometheus.Gauge
}

var _ core.Metrics = (*Metrics)(nil)

// NewMetrics creates and registers session metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retrobridge_frames_total",
			Help: "Total number of frames run",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retrobridge_frames_dropped_total",
			Help: "Total number of video frames the core duped or that had no receiver",
		}),
		CallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrobridge_callbacks_total",
				Help: "Total number of core callbacks by kind",
			},
			[]string{"kind"},
		),
		CoreLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrobridge_core_loads_total",
				Help: "Total number of core load attempts by result",
			},
			[]string{"result"},
		),
		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "retrobridge_frame_duration_seconds",
			Help:    "Time spent inside the core run entry point",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10),
		}),
		GameLoadedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "retrobridge_game_loaded",
			Help: "1 while a game is loaded",
		}),
	}

	reg.MustRegister(m.FramesTotal, m.FramesDropped, m.CallbacksTotal,
		m.CoreLoadsTotal, m.FrameDuration, m.GameLoadedGauge)
	return m
}

// Callback counts a core callback.
func (m *Metrics) Callback(kind string) {
	m.CallbacksTotal.WithLabelValues(kind).Inc()
}

// FrameDropped counts a video frame that was not delivered.
func (m *Metrics) FrameDropped() {
	m.FramesDropped.Inc()
}

// CoreLoad counts a load attempt.
func (m *Metrics) CoreLoad(result string) {
	m.CoreLoadsTotal.WithLabelValues(result).Inc()
}

// FrameCompleted records one run call.
func (m *Metrics) FrameCompleted(d time.Duration) {
	m.FramesTotal.Inc()
	m.FrameDuration.Observe(d.Seconds())
}

// SetGameLoaded tracks whether a game is loaded.
func (m *Metrics) SetGameLoaded(loaded bool) {
	if loaded {
		m.GameLoadedGauge.Set(1)
		return
	}
	m.GameLoadedGauge.Set(0)
}

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    atomic.Pointer[ReadinessChecker]
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr: listen address in "host:port" format (e.g., "127.0.0.1:9100", ":9100" for all interfaces).
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		addr:     addr,
		registry: registry,
		metrics:  NewMetrics(registry),
	}
	s.SetReadiness(readinessChecker)
	return s
}

// SetReadiness replaces the readiness check.
func (s *Server) SetReadiness(fn ReadinessChecker) {
	if fn == nil {
		s.isReady.Store(nil)
		return
	}
	s.isReady.Store(&fn)
}

// Metrics returns the session metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the endpoint mux without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)
	return mux
}

// Start begins serving observability endpoints.
// It returns an error channel that will receive any errors from the HTTP server
// after it starts. The channel is closed when the server stops gracefully.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		// Use local httpSrv to avoid race with subsequent Start() calls
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness returns 200 while a game is running, or 503 otherwise.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	ready := s.isReady.Load()
	if ready == nil || (*ready)() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}
