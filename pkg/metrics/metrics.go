// Package metrics provides Prometheus-based metrics recording for the
// workflow: phase transitions, hook failures, sandbox executions, and
// oracle requests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records workflow metrics. A nil *Recorder is valid and
// records nothing, so instrumentation points never need nil checks.
type Recorder struct {
	phaseTransitionsTotal *prometheus.CounterVec
	hookFailuresTotal     *prometheus.CounterVec
	sandboxRunsTotal      *prometheus.CounterVec
	sandboxDuration       prometheus.Histogram
	oracleRequestsTotal   *prometheus.CounterVec
	oracleDuration        *prometheus.HistogramVec
	approvalsTotal        *prometheus.CounterVec
}

// NewRecorder creates a recorder registered with the given registerer.
// Pass nil to use the default Prometheus registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		phaseTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_phase_transitions_total",
				Help: "Total number of phase transitions by source and destination phase",
			},
			[]string{"from", "to"},
		),
		hookFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_hook_failures_total",
				Help: "Total number of isolated hook handler failures by event and hook name",
			},
			[]string{"event", "hook"},
		),
		sandboxRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandbox_executions_total",
				Help: "Total number of sandbox executions by outcome status",
			},
			[]string{"status"},
		),
		sandboxDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sandbox_execution_duration_seconds",
				Help:    "Duration of sandbox executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		oracleRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_requests_total",
				Help: "Total number of oracle requests by provider and status",
			},
			[]string{"provider", "status"},
		),
		oracleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oracle_request_duration_seconds",
				Help:    "Duration of oracle requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		approvalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approval_requests_total",
				Help: "Total number of approval requests by type and terminal status",
			},
			[]string{"type", "status"},
		),
	}
}

// ObservePhaseTransition records one phase transition.
func (r *Recorder) ObservePhaseTransition(from, to string) {
	if r == nil {
		return
	}
	r.phaseTransitionsTotal.WithLabelValues(from, to).Inc()
}

// ObserveHookFailure records one isolated hook handler failure.
func (r *Recorder) ObserveHookFailure(event, hook string) {
	if r == nil {
		return
	}
	r.hookFailuresTotal.WithLabelValues(event, hook).Inc()
}

// ObserveSandboxRun records one sandbox execution.
func (r *Recorder) ObserveSandboxRun(status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.sandboxRunsTotal.WithLabelValues(status).Inc()
	r.sandboxDuration.Observe(duration.Seconds())
}

// ObserveOracleRequest records one oracle request.
func (r *Recorder) ObserveOracleRequest(provider string, err error, duration time.Duration) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.oracleRequestsTotal.WithLabelValues(provider, status).Inc()
	r.oracleDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveApproval records one resolved approval request.
func (r *Recorder) ObserveApproval(approvalType, status string) {
	if r == nil {
		return
	}
	r.approvalsTotal.WithLabelValues(approvalType, status).Inc()
}
