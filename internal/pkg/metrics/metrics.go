// Package metrics provides Prometheus metrics definitions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pressroom"

var (
	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status_code"},
	)

	// DBPoolConnections tracks database connection pool state.
	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_connections",
			Help:      "Number of database connections by state",
		},
		[]string{"state"},
	)

	publishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "publishes_total",
			Help:      "Publish attempts by platform and outcome",
		},
		[]string{"platform", "outcome"},
	)

	publishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "publish_duration_seconds",
			Help:      "Time spent in the publisher gateway call",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"platform"},
	)

	quotaUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "daily_usage",
			Help:      "Successful publishes today by platform",
		},
		[]string{"platform"},
	)

	queueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "items",
			Help:      "Queue items by state",
		},
		[]string{"state"},
	)

	trialRatings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trial",
			Name:      "ratings_total",
			Help:      "Submitted trial ratings by decision",
		},
		[]string{"decision"},
	)
)

// RecordPublish records a publish attempt outcome.
func RecordPublish(platform, outcome string) {
	publishesTotal.WithLabelValues(platform, outcome).Inc()
}

// RecordPublishDuration records time spent in the gateway call.
func RecordPublishDuration(platform string, d time.Duration) {
	publishDuration.WithLabelValues(platform).Observe(d.Seconds())
}

// RecordQuotaUsage updates the daily usage gauge for a platform.
func RecordQuotaUsage(platform string, count int) {
	quotaUsage.WithLabelValues(platform).Set(float64(count))
}

// RecordQueueSize updates the queue size gauge for a state.
func RecordQueueSize(state string, count int) {
	queueSize.WithLabelValues(state).Set(float64(count))
}

// RecordRating records a submitted trial rating.
func RecordRating(decision string) {
	trialRatings.WithLabelValues(decision).Inc()
}
