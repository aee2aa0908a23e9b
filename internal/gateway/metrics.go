// ABOUTME: Prometheus collectors for tool calls and upstream ARIA requests
// ABOUTME: Implements the registry Observer so metrics track every dispatch

package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors behind a dedicated
// registry so tests never collide on the global default.
type Metrics struct {
	registry *prometheus.Registry

	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec

	remoteRequests *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the gateway collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aria_gateway_tool_calls_total",
			Help: "Tool calls dispatched, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aria_gateway_tool_call_duration_seconds",
			Help:    "Tool call latency, by tool.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		remoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aria_gateway_remote_requests_total",
			Help: "HTTP requests sent to the ARIA backend, by method and status code.",
		}, []string{"method", "code"}),
		remoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aria_gateway_remote_request_duration_seconds",
			Help:    "ARIA backend request latency, by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.toolCalls,
		m.toolDuration,
		m.remoteRequests,
		m.remoteDuration,
	)
	return m
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentHTTPClient wraps a transport so every request to the ARIA backend
// is counted and timed. This covers the token endpoint as well as tool calls.
func (m *Metrics) InstrumentHTTPClient(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(m.remoteRequests,
		promhttp.InstrumentRoundTripperDuration(m.remoteDuration, next),
	)
}

// ObserveToolCall implements tools.Observer.
func (m *Metrics) ObserveToolCall(_ context.Context, _ string, tool, outcome string, elapsed time.Duration) {
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}
