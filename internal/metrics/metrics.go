// Package metrics exposes Prometheus collectors for tool calls, backend
// requests, authentication and JWT key fetches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aap_mcp"

// Collector records server activity on its own registry. It satisfies
// auth.Observer and openapi2mcp.CallObserver.
type Collector struct {
	registry *prometheus.Registry

	toolCalls       *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	authAttempts    *prometheus.CounterVec
	keyFetches      *prometheus.CounterVec
	tools           prometheus.Gauge
}

// NewCollector registers every collector, plus the Go runtime and process
// collectors, on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of MCP tool calls by outcome",
			},
			[]string{"tool", "outcome"},
		),
		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Duration of HTTP requests to AAP services in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		),
		authAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_total",
				Help:      "Authentication attempts by validator and outcome",
			},
			[]string{"validator", "outcome"},
		),
		keyFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jwt_key_fetch_total",
				Help:      "JWT public key fetches by outcome",
			},
			[]string{"outcome"},
		),
		tools: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tools",
				Help:      "Number of tools generated from the current spec",
			},
		),
	}
	c.registry.MustRegister(
		c.toolCalls,
		c.backendDuration,
		c.authAttempts,
		c.keyFetches,
		c.tools,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ToolCall counts one tool invocation.
func (c *Collector) ToolCall(tool, outcome string) {
	c.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// BackendRequest observes the latency of one backend request.
func (c *Collector) BackendRequest(method string, elapsed time.Duration) {
	c.backendDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// AuthAttempt counts one validator decision.
func (c *Collector) AuthAttempt(validator, outcome string) {
	c.authAttempts.WithLabelValues(validator, outcome).Inc()
}

// KeyFetch counts one JWT key fetch.
func (c *Collector) KeyFetch(outcome string) {
	c.keyFetches.WithLabelValues(outcome).Inc()
}

// SetTools records the size of the published tool set.
func (c *Collector) SetTools(n int) {
	c.tools.Set(float64(n))
}

// Registry returns the registry the collectors live on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
