package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "locator"

// Metrics holds the Prometheus counters, histograms, and gauges for the locator service.
type Metrics struct {
	// Catalog metrics.
	CatalogRefreshes       *prometheus.CounterVec // labels: outcome={success,error}
	CatalogRefreshDuration prometheus.Histogram
	CatalogGroups          prometheus.Gauge
	CatalogSkippedRows     prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={forward,reverse,postal}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={forward,reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={forward,reverse,postal}
	StaleSuggestions   prometheus.Counter

	// Session metrics.
	ViewSessions  prometheus.Gauge
	AdminSessions prometheus.Gauge

	// Admin write metrics.
	AdminWrites  *prometheus.CounterVec // labels: entity, op, outcome={success,error}
	ChangeEvents *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := build()
	prometheus.MustRegister(
		m.CatalogRefreshes,
		m.CatalogRefreshDuration,
		m.CatalogGroups,
		m.CatalogSkippedRows,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.StaleSuggestions,
		m.ViewSessions,
		m.AdminSessions,
		m.AdminWrites,
		m.ChangeEvents,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return build()
}

func build() *Metrics {
	return &Metrics{
		CatalogRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_refreshes_total",
			Help:      "Catalog reloads from the store by outcome.",
		}, []string{"outcome"}),
		CatalogRefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_refresh_duration_seconds",
			Help:      "Duration of a fetch-and-normalize catalog reload.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		CatalogGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_groups",
			Help:      "Groups in the current catalog snapshot.",
		}),
		CatalogSkippedRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_skipped_rows",
			Help:      "Rows excluded from the current snapshot for lacking valid coordinates.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding provider requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		StaleSuggestions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_suggestions_total",
			Help:      "Suggestion responses dropped because a newer query superseded them.",
		}),
		ViewSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "view_sessions",
			Help:      "Open view sessions.",
		}),
		AdminSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "admin_sessions",
			Help:      "Signed-in admin sessions.",
		}),
		AdminWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_writes_total",
			Help:      "Admin inserts, updates and deletes by entity, op and outcome.",
		}, []string{"entity", "op", "outcome"}),
		ChangeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_total",
			Help:      "Change events published to Kafka by outcome.",
		}, []string{"outcome"}),
	}
}
