// Package metrics declares the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImportRows counts rows at each pipeline stage: raw (parsed), normalized
	// (accepted by the normalizer) and aggregated (after deduplication).
	ImportRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gestionqr_import_rows_total",
			Help: "Rows seen by the spreadsheet import pipeline per stage",
		},
		[]string{"tipo", "stage"},
	)

	// ImportResults counts reconciled rows by outcome (inserted, updated).
	ImportResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gestionqr_import_results_total",
			Help: "Reconciled rows per outcome",
		},
		[]string{"tipo", "outcome"},
	)

	// ImportFailures counts aborted imports.
	ImportFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gestionqr_import_failures_total",
			Help: "Imports aborted by a parse or store error",
		},
		[]string{"tipo"},
	)

	// HTTPRequests counts API requests.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gestionqr_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration observes API latency.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gestionqr_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// LabelsRendered counts QR labels produced by the worker.
	LabelsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gestionqr_labels_rendered_total",
			Help: "QR labels rendered by the label worker",
		},
		[]string{"tipo"},
	)
)
