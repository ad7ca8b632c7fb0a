// Package metrics defines the Prometheus instruments shared by the binaries.
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anajobs_db_query_duration_seconds",
			Help:    "Duration of document store queries in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_name"},
	)
	PagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anajobs_pages_fetched_total",
			Help: "Pages fetched during career-page crawls, labeled by outcome.",
		},
		[]string{"outcome"},
	)
	OrganizationsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anajobs_organizations_processed_total",
			Help: "Organizations processed by the extraction pipeline, labeled by result.",
		},
		[]string{"result"},
	)
	OracleCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anajobs_oracle_calls_total",
			Help: "AI oracle calls, labeled by purpose.",
		},
		[]string{"purpose"},
	)
	TitlesExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "anajobs_titles_extracted_total",
			Help: "Total job titles written back to organization records.",
		},
	)
)

func init() {
	prometheus.MustRegister(DBQueryDuration)
	prometheus.MustRegister(PagesFetched)
	prometheus.MustRegister(OrganizationsProcessed)
	prometheus.MustRegister(OracleCalls)
	prometheus.MustRegister(TitlesExtracted)
}

func ExposeMetrics(addr string) {
	slog.Info("Exposing Prometheus metrics", "address", addr)
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("Failed to start Prometheus metrics server", "error", err)
	}
}
