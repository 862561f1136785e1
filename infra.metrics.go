package main

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	MetadataLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_metadata_lookups_total",
			Help: "Total number of book metadata lookups by outcome",
		},
		[]string{"outcome"}, // "success", "not_found", "failure", "rejected"
	)

	MetadataBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_metadata_breaker_state",
			Help: "Metadata lookup circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	RatingSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_rating_submissions_total",
			Help: "Total number of rating value submissions by outcome",
		},
		[]string{"outcome"}, // "accepted", "rejected", "failed"
	)
)

// RecordHTTPRequest records one served request. The route is the
// registered path pattern to keep the label cardinality bounded.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
