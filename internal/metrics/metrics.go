// Package metrics exposes Prometheus instrumentation for pipeline stages,
// market snapshot refreshes, assistant replies and HTTP requests.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seenimoa/ibexai/internal/agent"
	"github.com/seenimoa/ibexai/internal/llm"
)

const namespace = "ibexai"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	StageCalls   *prometheus.CounterVec
	StageLatency *prometheus.HistogramVec
	StageTokens  *prometheus.CounterVec

	SnapshotRefreshes   prometheus.Counter
	SnapshotDuration    prometheus.Histogram
	SnapshotFailures    prometheus.Gauge
	SnapshotInstruments prometheus.Gauge

	Replies *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New creates and registers every collector, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		StageCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_stage_calls_total",
				Help:      "Total number of pipeline stage executions",
			},
			[]string{"pipeline", "task", "status"}, // status: success|rate_limited|error
		),
		StageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_stage_latency_seconds",
				Help:      "Pipeline stage latency in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"pipeline", "task"},
		),
		StageTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_stage_tokens_total",
				Help:      "Total tokens reported by the backend per stage",
			},
			[]string{"pipeline", "task"},
		),

		SnapshotRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_snapshot_refreshes_total",
			Help:      "Total number of market snapshot builds",
		}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "market_snapshot_duration_seconds",
			Help:      "Market snapshot build duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40},
		}),
		SnapshotFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_snapshot_instrument_failures",
			Help:      "Instruments that failed in the last snapshot build",
		}),
		SnapshotInstruments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_snapshot_instruments",
			Help:      "Instruments in the last snapshot build",
		}),

		Replies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assistant_replies_total",
				Help:      "Assistant replies by mode and kind",
			},
			[]string{"mode", "kind"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"method", "route", "code"},
		),
		HTTPLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		m.StageCalls, m.StageLatency, m.StageTokens,
		m.SnapshotRefreshes, m.SnapshotDuration, m.SnapshotFailures, m.SnapshotInstruments,
		m.Replies,
		m.HTTPRequests, m.HTTPLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveStage records one pipeline stage.
func (m *Metrics) ObserveStage(ev agent.StageEvent) {
	m.StageCalls.WithLabelValues(ev.Pipeline, ev.Task, stageStatus(ev.Err)).Inc()
	m.StageLatency.WithLabelValues(ev.Pipeline, ev.Task).Observe(ev.Duration.Seconds())
	if ev.Tokens > 0 {
		m.StageTokens.WithLabelValues(ev.Pipeline, ev.Task).Add(float64(ev.Tokens))
	}
}

// ObserveRefresh records one market snapshot build.
func (m *Metrics) ObserveRefresh(took time.Duration, instruments, failures int) {
	m.SnapshotRefreshes.Inc()
	m.SnapshotDuration.Observe(took.Seconds())
	m.SnapshotInstruments.Set(float64(instruments))
	m.SnapshotFailures.Set(float64(failures))
}

// ObserveReply records an assistant reply.
func (m *Metrics) ObserveReply(mode, kind string) {
	m.Replies.WithLabelValues(mode, kind).Inc()
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, code int, took time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(took.Seconds())
}

func stageStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, llm.ErrRateLimit):
		return "rate_limited"
	default:
		return "error"
	}
}
