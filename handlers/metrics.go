package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the studio's Prometheus collectors on a private registry,
// so several module instances can be provisioned side by side.
type Metrics struct {
	registry *prometheus.Registry

	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram
	queryRows     prometheus.Histogram
	views         *prometheus.CounterVec
	exports       *prometheus.CounterVec
	cachedResults prometheus.GaugeFunc
}

// NewMetrics registers the studio collectors. cacheLen reports the number of
// cached result sets and may be nil.
func NewMetrics(cacheLen func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soql_studio",
			Name:      "queries_total",
			Help:      "Queries executed, by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "soql_studio",
			Name:      "query_duration_seconds",
			Help:      "Query execution time.",
			Buckets:   prometheus.DefBuckets,
		}),
		queryRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "soql_studio",
			Name:      "query_rows",
			Help:      "Rows returned per query.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		views: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soql_studio",
			Name:      "views_total",
			Help:      "Views computed, by outcome.",
		}, []string{"outcome"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soql_studio",
			Name:      "exports_total",
			Help:      "Exports produced, by format.",
		}, []string{"format"}),
	}

	m.registry.MustRegister(m.queries, m.queryDuration, m.queryRows, m.views, m.exports)
	if cacheLen != nil {
		m.cachedResults = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "soql_studio",
			Name:      "cached_results",
			Help:      "Result sets held in the result cache.",
		}, func() float64 { return float64(cacheLen()) })
		m.registry.MustRegister(m.cachedResults)
	}
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// ObserveQuery records one query execution.
func (m *Metrics) ObserveQuery(elapsed time.Duration, rows int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.queries.WithLabelValues("error").Inc()
		return
	}
	m.queries.WithLabelValues("ok").Inc()
	m.queryDuration.Observe(elapsed.Seconds())
	m.queryRows.Observe(float64(rows))
}

// ObserveView records one view computation.
func (m *Metrics) ObserveView(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.views.WithLabelValues(outcome).Inc()
}

// ObserveExport records one export in the given format.
func (m *Metrics) ObserveExport(format string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
