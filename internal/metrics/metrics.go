// Package metrics exposes Prometheus counters and gauges for the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/stockhome/internal/changefeed"
	"github.com/dukerupert/stockhome/internal/stock"
)

const namespace = "stockhome"

type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	items    *prometheus.GaugeVec
	changes  *prometheus.CounterVec
	alerts   *prometheus.CounterVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items",
			Help:      "Live items by stock status.",
		}, []string{"status"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_total",
			Help:      "Row changes published on the change feed.",
		}, []string{"table", "action"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Stock alert notifications created, by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.requests, m.latency, m.items, m.changes, m.alerts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware counts requests and observes latency. The route label is the
// matched mux pattern so path ids do not explode cardinality; it must wrap
// the mux directly for the pattern to be visible.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// SetItemCounts replaces the item status gauges.
func (m *Metrics) SetItemCounts(counts map[stock.Status]int) {
	for _, s := range []stock.Status{stock.StatusSufficient, stock.StatusLow, stock.StatusEmpty} {
		m.items.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

func (m *Metrics) AlertCreated(kind string) {
	m.alerts.WithLabelValues(kind).Inc()
}

// Observe counts every change on feed until the returned cancel is called.
func (m *Metrics) Observe(feed *changefeed.Feed) func() {
	return feed.Subscribe(changefeed.Filter{}, func(c changefeed.Change) {
		m.changes.WithLabelValues(c.Table, string(c.Action)).Inc()
	})
}
