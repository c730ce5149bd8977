// Package metrics exposes loader progress and HTTP traffic as Prometheus
// collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brunobiangulo/rdf2rest/loader"
)

const namespace = "rdf2rest"

// Metrics owns a private registry so that several instances can coexist in
// tests.
type Metrics struct {
	registry *prometheus.Registry

	storeBytes    prometheus.Gauge
	loading       prometheus.Gauge
	triplesMerged prometheus.Gauge
	loadEvents    *prometheus.CounterVec
	loadDuration  prometheus.Histogram

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		storeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_size_bytes",
			Help:      "Last observed on-disk size of the store directory",
		}),
		loading: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loader_loading",
			Help:      "1 while a dataset is being merged into the store",
		}),
		triplesMerged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loader_triples_merged",
			Help:      "Triples merged by the current or last load",
		}),
		loadEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_events_total",
			Help:      "Loader signals by kind",
		}, []string{"kind"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "loader_duration_seconds",
			Help:      "Wall time of completed loads",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.storeBytes,
		m.loading,
		m.triplesMerged,
		m.loadEvents,
		m.loadDuration,
		m.requests,
		m.requestDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Observe implements loader.Observer.
func (m *Metrics) Observe(ev loader.Event) {
	st := ev.Status
	m.loadEvents.WithLabelValues(string(ev.Kind)).Inc()
	m.storeBytes.Set(float64(st.Size))
	m.triplesMerged.Set(float64(st.Triples))
	if st.Loading {
		m.loading.Set(1)
	} else {
		m.loading.Set(0)
	}
	if ev.Kind == loader.EventFinished {
		m.loadDuration.Observe(st.Elapsed().Seconds())
	}
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}
