package engine

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rpc-feeprobe-go/internal/evmrpc"
)

// Metrics holds all Prometheus metrics for the prober
type Metrics struct {
	// Probe metrics
	ProbesScheduled prometheus.Counter
	ProbeOutcomes   *prometheus.CounterVec
	ProbeDuration   *prometheus.HistogramVec

	// RPC metrics
	RPCRequestsTotal  *prometheus.CounterVec
	RPCRequestsFailed *prometheus.CounterVec
	RPCLatency        *prometheus.HistogramVec

	// Log store metrics
	LogEntries    prometheus.Gauge
	LogEvicted    prometheus.Counter
	LogSinkErrors *prometheus.CounterVec
	StartTime     prometheus.Gauge
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// GetMetrics returns the singleton Metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics()
	})
	return metrics
}

// NewMetrics registers the metrics on the default registry; use GetMetrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ProbesScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "feeprobe_probes_scheduled_total",
			Help: "Total number of probes armed by the scheduler",
		}),
		ProbeOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "feeprobe_probe_outcomes_total",
			Help: "Probe outcomes by chain and outcome",
		}, []string{"chain", "outcome"}),
		ProbeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feeprobe_probe_duration_seconds",
			Help:    "Time from probe start until its log entry was written",
			Buckets: prometheus.DefBuckets,
		}, []string{"chain"}),

		RPCRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "feeprobe_rpc_requests_total",
			Help: "Total number of eth_feeHistory requests by chain and provider",
		}, []string{"chain", "provider"}),
		RPCRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "feeprobe_rpc_requests_failed_total",
			Help: "Failed eth_feeHistory requests by chain, provider and error kind",
		}, []string{"chain", "provider", "kind"}),
		RPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feeprobe_rpc_request_duration_seconds",
			Help:    "eth_feeHistory latency by chain and provider",
			Buckets: prometheus.DefBuckets,
		}, []string{"chain", "provider"}),

		LogEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "feeprobe_log_entries",
			Help: "Entries currently retained by the log store",
		}),
		LogEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "feeprobe_log_evicted_total",
			Help: "Entries dropped from the log store by the capacity policy",
		}),
		LogSinkErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "feeprobe_log_sink_errors_total",
			Help: "Failed writes to log sinks",
		}, []string{"sink"}),
		StartTime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "feeprobe_start_time_seconds",
			Help: "Unix timestamp when the prober started",
		}),
	}
}

func (m *Metrics) RecordProbeScheduled() {
	m.ProbesScheduled.Inc()
}

func (m *Metrics) RecordProbeOutcome(chain evmrpc.Chain, outcome Outcome, d time.Duration) {
	m.ProbeOutcomes.WithLabelValues(string(chain), outcome.Kind.String()).Inc()
	m.ProbeDuration.WithLabelValues(string(chain)).Observe(d.Seconds())
}

// ObserveRPC matches evmrpc.RequestObserver.
func (m *Metrics) ObserveRPC(chain evmrpc.Chain, provider evmrpc.Provider, d time.Duration, err *evmrpc.RpcError) {
	m.RPCRequestsTotal.WithLabelValues(string(chain), string(provider)).Inc()
	m.RPCLatency.WithLabelValues(string(chain), string(provider)).Observe(d.Seconds())
	if err != nil {
		m.RPCRequestsFailed.WithLabelValues(string(chain), string(provider), string(err.Kind)).Inc()
	}
}

func (m *Metrics) UpdateLogEntries(n int) {
	m.LogEntries.Set(float64(n))
}

func (m *Metrics) RecordLogEvicted(n int) {
	m.LogEvicted.Add(float64(n))
}

func (m *Metrics) RecordSinkError(sink string) {
	m.LogSinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) RecordStartTime() {
	m.StartTime.SetToCurrentTime()
}
