package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of the import pipeline and the query
// executor. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	importSeconds *prometheus.HistogramVec
	importRows    *prometheus.GaugeVec
	cacheLookups  *prometheus.CounterVec
	querySeconds  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		importSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "offsetdb",
			Name:      "import_duration_seconds",
			Help:      "Time to import one relation, from cache or source.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"relation"}),
		importRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "offsetdb",
			Name:      "relation_tuples",
			Help:      "Tuple count of each loaded relation.",
		}, []string{"relation"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "offsetdb",
			Name:      "cache_lookups_total",
			Help:      "Binary cache lookups per relation by result.",
		}, []string{"relation", "result"}),
		querySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "offsetdb",
			Name:      "query_duration_seconds",
			Help:      "Query execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"query"}),
	}
	reg.MustRegister(m.importSeconds, m.importRows, m.cacheLookups, m.querySeconds)
	return m
}

func (m *Metrics) ObserveImport(relation string, tuples int, d time.Duration) {
	if m == nil {
		return
	}
	m.importSeconds.WithLabelValues(relation).Observe(d.Seconds())
	m.importRows.WithLabelValues(relation).Set(float64(tuples))
}

func (m *Metrics) CacheLookup(relation string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(relation, result).Inc()
}

func (m *Metrics) ObserveQuery(query string, d time.Duration) {
	if m == nil {
		return
	}
	m.querySeconds.WithLabelValues(query).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }
