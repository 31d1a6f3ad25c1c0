package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dyike/StockBot/internal/service"
)

// Metrics holds the Prometheus collectors of one server. Each instance owns
// its registry so tests can build several.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	queriesTotal   *prometheus.CounterVec
	queryLatency   *prometheus.HistogramVec
	gatewayCalls   *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		// Labels: method, route, status
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockbot",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stockbot",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		// Labels: type (overview, realtime, historical or empty), outcome (ok or error kind)
		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockbot",
			Subsystem: "bot",
			Name:      "queries_total",
			Help:      "Handled commands by query type and outcome",
		}, []string{"type", "outcome"}),
		queryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stockbot",
			Subsystem: "bot",
			Name:      "query_duration_seconds",
			Help:      "End-to-end command latency by query type",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"type"}),

		// Labels: function, outcome
		gatewayCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockbot",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Alpha Vantage calls by function and outcome",
		}, []string{"function", "outcome"}),
		gatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stockbot",
			Subsystem: "gateway",
			Name:      "latency_seconds",
			Help:      "Alpha Vantage call latency including retries",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"function"}),
	}
}

// ObserveQuery records a handled command. It matches service.WithOutcomeObserver.
func (m *Metrics) ObserveQuery(o service.Outcome) {
	outcome := "ok"
	if o.ErrorKind != "" {
		outcome = string(o.ErrorKind)
	}
	m.queriesTotal.WithLabelValues(o.QueryType, outcome).Inc()
	m.queryLatency.WithLabelValues(o.QueryType).Observe(o.Elapsed.Seconds())
}

// ObserveGatewayCall records one upstream call. It matches
// dataflows.CallObserver.
func (m *Metrics) ObserveGatewayCall(function string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gatewayCalls.WithLabelValues(function, outcome).Inc()
	m.gatewayLatency.WithLabelValues(function).Observe(elapsed.Seconds())
}
