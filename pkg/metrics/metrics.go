package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_requests_total",
		Help: "Total number of API requests by route and status",
	}, []string{"route", "status"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "directory_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	EmptyResultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "directory_empty_results_total",
		Help: "Total number of list queries that matched nothing",
	})
	GeoScansTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "directory_geo_scans_total",
		Help: "Total full scans performed by radius/rectangle queries",
	})
	TreeExpansionLevels = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "directory_tree_expansion_levels",
		Help:    "Traversal depth of activity subtree expansions",
		Buckets: []float64{1, 2, 3, 4, 5},
	})
	EventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_events_published_total",
		Help: "Total mutation events published to the bus",
	}, []string{"entity", "action"})
	AuditWritesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "directory_audit_writes_total",
		Help: "Total events persisted to the audit log",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(EmptyResultsTotal)
	prometheus.MustRegister(GeoScansTotal)
	prometheus.MustRegister(TreeExpansionLevels)
	prometheus.MustRegister(EventsPublishedTotal)
	prometheus.MustRegister(AuditWritesTotal)
}

// Handler exposes the registered collectors for scraping; mounted at
// /metrics by the main entrypoint.
func Handler() http.Handler { return promhttp.Handler() }
