package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_orders_created_total",
			Help: "Total number of delivery orders created",
		},
		[]string{"source"}, // source: api, import
	)

	BatchesPlanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_batches_planned_total",
			Help: "Total number of delivery batches created by allocation",
		},
	)

	MilestonesAdvanced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_milestones_advanced_total",
			Help: "Total number of milestones marked completed",
		},
		[]string{"outcome"}, // outcome: progress, on_time, delayed
	)

	RateLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_area_lookups_total",
			Help: "Area rate lookups by cache result",
		},
		[]string{"cache"}, // cache: hit, miss
	)
)

// RecordHTTPRequest records one handled request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
