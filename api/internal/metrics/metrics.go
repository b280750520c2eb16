// Package metrics holds the prometheus collectors of the bot process.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector; a nil *Metrics is valid and records nothing.
type Metrics struct {
	workerRunning      prometheus.Gauge
	workerStarts       prometheus.Counter
	workerExits        *prometheus.CounterVec
	pipelineRuns       *prometheus.CounterVec
	completionRequests *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	accessDenied       prometheus.Counter
}

// New registers collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		workerRunning: f.NewGauge(prometheus.GaugeOpts{
			Name: "llbuddy_worker_running",
			Help: "Number of live chat-bot workers (0 or 1)",
		}),
		workerStarts: f.NewCounter(prometheus.CounterOpts{
			Name: "llbuddy_worker_starts_total",
			Help: "Number of worker launches",
		}),
		workerExits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "llbuddy_worker_exits_total",
			Help: "Worker terminations by reason",
		}, []string{"reason"}),
		pipelineRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "llbuddy_pipeline_runs_total",
			Help: "Classification pipeline runs by outcome and result",
		}, []string{"outcome", "result"}),
		completionRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "llbuddy_completion_requests_total",
			Help: "Completion service calls by prompt kind and status",
		}, []string{"kind", "status"}),
		completionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llbuddy_completion_duration_seconds",
			Help:    "Completion service call latency",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}, []string{"kind"}),
		accessDenied: f.NewCounter(prometheus.CounterOpts{
			Name: "llbuddy_access_denied_total",
			Help: "Inbound events rejected by the sender allow-list",
		}),
	}
}

func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.workerStarts.Inc()
	m.workerRunning.Inc()
}

func (m *Metrics) WorkerExited(reason string) {
	if m == nil {
		return
	}
	m.workerExits.WithLabelValues(reason).Inc()
	m.workerRunning.Dec()
}

func (m *Metrics) PipelineRun(outcome, result string) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(outcome, result).Inc()
}

func (m *Metrics) CompletionObserved(kind string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.completionRequests.WithLabelValues(kind, status).Inc()
	m.completionDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) AccessDenied() {
	if m == nil {
		return
	}
	m.accessDenied.Inc()
}
