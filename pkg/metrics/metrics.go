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

	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	CampaignCreatedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_created_count",
			Help: "Total number of campaigns created",
		},
	)

	ContributionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_contribution_count",
			Help: "Total number of accepted contributions",
		},
		[]string{"status"}, // status: accepted, rejected
	)

	FundsReleasedAmount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_funds_released_total",
			Help: "Total amount of funds released to creators, in minor units",
		},
	)

	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of slow database queries",
		},
		[]string{"sql"},
	)
)

// RecordHTTPRequestDuration records one HTTP request observation.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordMQConsumeLatency records how long one MQ message took to process.
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementCampaignCreated counts a created campaign.
func IncrementCampaignCreated() {
	CampaignCreatedCount.Inc()
}

// IncrementContribution counts a contribution attempt by outcome.
func IncrementContribution(status string) {
	ContributionCount.WithLabelValues(status).Inc()
}

// AddFundsReleased adds a released milestone amount to the running total.
func AddFundsReleased(amount int64) {
	FundsReleasedAmount.Add(float64(amount))
}

// IncrementSlowQuery counts a slow query occurrence.
func IncrementSlowQuery(sql string, _ time.Duration) {
	SlowQueryCount.WithLabelValues(sql).Inc()
}
