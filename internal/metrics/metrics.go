// Package metrics exposes Prometheus collectors for the matching job.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the job's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ShardsProcessed *prometheus.CounterVec
	RecordsScanned  *prometheus.CounterVec
	Matches         *prometheus.CounterVec
	Updates         *prometheus.CounterVec
	Errors          *prometheus.CounterVec
	ShardDuration   *prometheus.HistogramVec
	ListingsIndexed prometheus.Gauge
	UploadRows      *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ShardsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listing_match_shards_processed_total",
				Help: "Shards processed, by field",
			},
			[]string{"field"},
		),
		RecordsScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listing_match_records_scanned_total",
				Help: "Canonical records fetched for matching, by field",
			},
			[]string{"field"},
		),
		Matches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listing_match_matches_total",
				Help: "Accepted record/listing pairs, by field",
			},
			[]string{"field"},
		),
		Updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listing_match_updates_total",
				Help: "Rows written to the store, by field",
			},
			[]string{"field"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listing_match_errors_total",
				Help: "Shard failures, by field and stage",
			},
			[]string{"field", "stage"},
		),
		ShardDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "listing_match_shard_duration_seconds",
				Help:    "Time spent on one shard",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"field"},
		),
		ListingsIndexed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "listing_match_listings_indexed",
				Help: "Listings held in the in-memory index",
			},
		),
		UploadRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listing_match_upload_rows_total",
				Help: "Bulk upload rows, by outcome",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ShardsProcessed,
		m.RecordsScanned,
		m.Matches,
		m.Updates,
		m.Errors,
		m.ShardDuration,
		m.ListingsIndexed,
		m.UploadRows,
	)
	return m
}

// ObserveShard records the outcome of one shard.
func (m *Metrics) ObserveShard(field string, scanned, matched, updated int, d time.Duration) {
	if m == nil {
		return
	}
	m.ShardsProcessed.WithLabelValues(field).Inc()
	m.RecordsScanned.WithLabelValues(field).Add(float64(scanned))
	m.Matches.WithLabelValues(field).Add(float64(matched))
	m.Updates.WithLabelValues(field).Add(float64(updated))
	m.ShardDuration.WithLabelValues(field).Observe(d.Seconds())
}

// ObserveError counts one failure at stage (connect, fetch, apply).
func (m *Metrics) ObserveError(field, stage string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(field, stage).Inc()
}

// ObserveUpload counts bulk upload rows by outcome (updated, skipped, failed).
func (m *Metrics) ObserveUpload(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.UploadRows.WithLabelValues(outcome).Add(float64(n))
}

// SetIndexed records the index size.
func (m *Metrics) SetIndexed(n int) {
	if m == nil {
		return
	}
	m.ListingsIndexed.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
