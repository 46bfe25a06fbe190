package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_operations_total",
			Help: "Total number of lottery operations by outcome",
		},
		[]string{"operation", "status"},
	)

	TicketsSoldTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raffle_tickets_sold_total",
			Help: "Total number of tickets sold across all rounds",
		},
	)

	CurrentRound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raffle_current_round",
			Help: "Round id of the live round",
		},
	)

	PotAmount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raffle_pot_amount",
			Help: "Escrowed pot of the live round in smallest token units",
		},
	)

	RandomnessRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_randomness_requests_total",
			Help: "Total number of randomness requests processed by the tracker",
		},
		[]string{"status"},
	)

	RandomnessFulfillmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raffle_randomness_fulfillment_duration_seconds",
			Help:    "Time from randomness request to callback delivery",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)
