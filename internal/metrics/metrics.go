// Package metrics exposes Prometheus collectors on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/KaramelBytes/surveylens/internal/cache"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "surveylens"

// Metrics groups the dashboard's collectors.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	DatasetLoads    *prometheus.CounterVec
	DatasetRows     prometheus.Gauge
	Lookups         *prometheus.CounterVec
}

// New registers every collector on a fresh registry, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		),
		DatasetLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dataset_loads_total",
				Help:      "Dataset loads by result",
			},
			[]string{"result"},
		),
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rows",
			Help:      "Rows in the most recently loaded dataset",
		}),
		Lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookups_total",
				Help:      "Respondent lookups by outcome",
			},
			[]string{"outcome"},
		),
	}
	m.registry.MustRegister(
		m.RequestCounter,
		m.RequestDuration,
		m.DatasetLoads,
		m.DatasetRows,
		m.Lookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveCache publishes cache counters read from stats at scrape time.
func (m *Metrics) ObserveCache(stats func() cache.Stats) {
	counter := func(name, help string, pick func(cache.Stats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(pick(stats())) })
	}
	m.registry.MustRegister(
		counter("hits_total", "Dataset cache hits", func(s cache.Stats) int64 { return s.Hits }),
		counter("misses_total", "Dataset cache misses", func(s cache.Stats) int64 { return s.Misses }),
	)
}

// Load records the outcome of a dataset load.
func (m *Metrics) Load(rows int, err error) {
	if err != nil {
		m.DatasetLoads.WithLabelValues("failure").Inc()
		return
	}
	m.DatasetLoads.WithLabelValues("success").Inc()
	m.DatasetRows.Set(float64(rows))
}

// Lookup records a lookup outcome such as "found" or "not_found".
func (m *Metrics) Lookup(outcome string) { m.Lookups.WithLabelValues(outcome).Inc() }

// Middleware counts and times requests by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
