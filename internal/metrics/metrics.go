// Package metrics bundles the Prometheus collectors for the scrape pipeline
// on a dedicated registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the pipeline's Prometheus collectors
type Metrics struct {
	Registry      *prometheus.Registry
	FetchAttempts *prometheus.CounterVec
	Retries       prometheus.Counter
	Blocked       *prometheus.CounterVec
	Extractions   *prometheus.CounterVec
	NewListings   prometheus.Counter
	CrawlDuration prometheus.Histogram
}

// New constructs and registers all metrics on a dedicated registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	fetchAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_fetch_attempts_total",
			Help: "HTTP fetch attempts issued, by registrable domain.",
		},
		[]string{"domain"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_retries_total",
			Help: "Retry attempts scheduled by the resilience layer.",
		},
	)
	blocked := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_blocked_total",
			Help: "Blocked responses detected, by registrable domain.",
		},
		[]string{"domain"},
	)
	extractions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_extractions_total",
			Help: "Extraction outcomes by strategy or failure type.",
		},
		[]string{"outcome"},
	)
	newListings := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_new_listings_total",
			Help: "New listings reported after deduplication.",
		},
	)
	crawlDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricewatch_crawl_duration_seconds",
			Help:    "Wall-clock duration of one watch crawl.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(fetchAttempts, retries, blocked, extractions, newListings, crawlDuration)

	return &Metrics{
		Registry:      registry,
		FetchAttempts: fetchAttempts,
		Retries:       retries,
		Blocked:       blocked,
		Extractions:   extractions,
		NewListings:   newListings,
		CrawlDuration: crawlDuration,
	}
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
