package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Ledger metrics
	MessagesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_messages_executed_total",
			Help: "Messages executed, by method and outcome",
		},
		[]string{"method", "outcome"}, // outcome: "ok" or an error kind
	)

	ExecuteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_execute_duration_seconds",
			Help:    "Time spent executing one message, commit included",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"method"},
	)

	// Settlement metrics. Amounts are converted to float and may lose
	// precision for very large values.
	SettledVolume = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_settled_volume_total",
			Help: "Sum of listing prices settled by purchases",
		},
		[]string{"denom"},
	)

	FeesCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_fees_collected_total",
			Help: "Sum of marketplace fees paid to the operator",
		},
		[]string{"denom"},
	)

	RecordsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_records_created_total",
			Help: "Agents and listings created",
		},
		[]string{"kind"}, // "agent" or "listing"
	)

	// Event webhook metrics
	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_webhook_deliveries_total",
			Help: "Event webhook deliveries, by outcome",
		},
		[]string{"outcome"}, // "delivered", "failed" or "dropped"
	)
)
