// Package metrics provides a simple Prometheus-compatible metrics endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds runtime metrics for the notebook service
type Metrics struct {
	// Policy reviews
	Reviews        atomic.Int64
	Rejections     atomic.Int64
	ProtocolErrors atomic.Int64

	// Cell executions
	Executions      atomic.Int64
	ExecutionErrors atomic.Int64

	// Kernel operations
	KernelInits     atomic.Int64
	KernelInitFails atomic.Int64
	KernelShutdowns atomic.Int64

	// Timing (last operation duration in ms)
	LastReviewDurationMs atomic.Int64
	LastExecDurationMs   atomic.Int64

	startTime time.Time
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Global returns the global metrics instance
func Global() *Metrics {
	globalOnce.Do(func() {
		global = &Metrics{
			startTime: time.Now(),
		}
	})
	return global
}

// RecordReview records one policy review outcome
func (m *Metrics) RecordReview(approved bool, durationMs int64) {
	m.Reviews.Add(1)
	if !approved {
		m.Rejections.Add(1)
	}
	m.LastReviewDurationMs.Store(durationMs)
}

// RecordProtocolError records a malformed reviewer verdict
func (m *Metrics) RecordProtocolError() {
	m.Reviews.Add(1)
	m.ProtocolErrors.Add(1)
}

// RecordExecution records one cell execution attempt
func (m *Metrics) RecordExecution(success bool, durationMs int64) {
	m.Executions.Add(1)
	if !success {
		m.ExecutionErrors.Add(1)
	}
	m.LastExecDurationMs.Store(durationMs)
}

// RecordKernelInit records a kernel init attempt
func (m *Metrics) RecordKernelInit(success bool) {
	m.KernelInits.Add(1)
	if !success {
		m.KernelInitFails.Add(1)
	}
}

// RecordKernelShutdown records a kernel shutdown
func (m *Metrics) RecordKernelShutdown() {
	m.KernelShutdowns.Add(1)
}

// Handler returns an HTTP handler for /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		uptime := time.Since(m.startTime).Seconds()

		fmt.Fprintf(w, "# HELP fedbook_uptime_seconds Time since the service started\n")
		fmt.Fprintf(w, "# TYPE fedbook_uptime_seconds gauge\n")
		fmt.Fprintf(w, "fedbook_uptime_seconds %.2f\n\n", uptime)

		fmt.Fprintf(w, "# HELP fedbook_reviews_total Total policy reviews requested\n")
		fmt.Fprintf(w, "# TYPE fedbook_reviews_total counter\n")
		fmt.Fprintf(w, "fedbook_reviews_total %d\n\n", m.Reviews.Load())

		fmt.Fprintf(w, "# HELP fedbook_rejections_total Total policy rejections\n")
		fmt.Fprintf(w, "# TYPE fedbook_rejections_total counter\n")
		fmt.Fprintf(w, "fedbook_rejections_total %d\n\n", m.Rejections.Load())

		fmt.Fprintf(w, "# HELP fedbook_protocol_errors_total Total malformed reviewer verdicts\n")
		fmt.Fprintf(w, "# TYPE fedbook_protocol_errors_total counter\n")
		fmt.Fprintf(w, "fedbook_protocol_errors_total %d\n\n", m.ProtocolErrors.Load())

		fmt.Fprintf(w, "# HELP fedbook_executions_total Total cell execution attempts\n")
		fmt.Fprintf(w, "# TYPE fedbook_executions_total counter\n")
		fmt.Fprintf(w, "fedbook_executions_total %d\n\n", m.Executions.Load())

		fmt.Fprintf(w, "# HELP fedbook_execution_errors_total Total failed cell executions\n")
		fmt.Fprintf(w, "# TYPE fedbook_execution_errors_total counter\n")
		fmt.Fprintf(w, "fedbook_execution_errors_total %d\n\n", m.ExecutionErrors.Load())

		fmt.Fprintf(w, "# HELP fedbook_kernel_inits_total Total kernel init attempts\n")
		fmt.Fprintf(w, "# TYPE fedbook_kernel_inits_total counter\n")
		fmt.Fprintf(w, "fedbook_kernel_inits_total %d\n\n", m.KernelInits.Load())

		fmt.Fprintf(w, "# HELP fedbook_kernel_init_failures_total Total kernel init failures\n")
		fmt.Fprintf(w, "# TYPE fedbook_kernel_init_failures_total counter\n")
		fmt.Fprintf(w, "fedbook_kernel_init_failures_total %d\n\n", m.KernelInitFails.Load())

		fmt.Fprintf(w, "# HELP fedbook_kernel_shutdowns_total Total kernel shutdowns\n")
		fmt.Fprintf(w, "# TYPE fedbook_kernel_shutdowns_total counter\n")
		fmt.Fprintf(w, "fedbook_kernel_shutdowns_total %d\n\n", m.KernelShutdowns.Load())

		fmt.Fprintf(w, "# HELP fedbook_last_review_duration_ms Last policy review duration\n")
		fmt.Fprintf(w, "# TYPE fedbook_last_review_duration_ms gauge\n")
		fmt.Fprintf(w, "fedbook_last_review_duration_ms %d\n\n", m.LastReviewDurationMs.Load())

		fmt.Fprintf(w, "# HELP fedbook_last_exec_duration_ms Last cell execution duration\n")
		fmt.Fprintf(w, "# TYPE fedbook_last_exec_duration_ms gauge\n")
		fmt.Fprintf(w, "fedbook_last_exec_duration_ms %d\n", m.LastExecDurationMs.Load())
	}
}

// Server wraps the metrics HTTP server
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server on the given port
func NewServer(port int) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", Global().Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}
}

// Start starts the metrics server in background
func (s *Server) Start() error {
	go s.srv.ListenAndServe()
	return nil
}

// Stop gracefully shuts down the metrics server
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
