// Package metrics exposes Prometheus metrics for the HTTP server and the
// content generation job on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	reg      *prometheus.Registry
	handler  http.Handler
	inflight prometheus.Gauge
	reqTotal *prometheus.CounterVec
	reqDur   *prometheus.HistogramVec
	respSize *prometheus.HistogramVec

	httpPanicTotal       prometheus.Counter
	ratelimitDeniedTotal prometheus.Counter
	errorsTotal          *prometheus.CounterVec

	generationTotal    *prometheus.CounterVec
	generationDuration prometheus.Histogram
	generationLastRun  prometheus.Gauge
}

// New returns a fresh registry + standard collectors + application metrics.
// Labels are limited to method, route template and status to keep cardinality bounded.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered handler panics",
		}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route",
		}, []string{"method", "route"}),
		generationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "post_generation_runs_total",
			Help: "Content generation runs by result",
		}, []string{"result"}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "post_generation_duration_seconds",
			Help:    "Time to generate and store one post",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		generationLastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "post_generation_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful generation run",
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respSize,
		m.httpPanicTotal,
		m.ratelimitDeniedTotal,
		m.errorsTotal,
		m.generationTotal,
		m.generationDuration,
		m.generationLastRun,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

func (m *ServerMetrics) IncHTTPPanic() {
	m.httpPanicTotal.Inc()
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}
