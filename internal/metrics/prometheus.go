package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job metrics
	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_jobs_processed_total",
			Help: "Total number of arbitrage jobs processed",
		},
		[]string{"status"}, // status: COMPLETED|STOPPED|FAILED
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_job_duration_seconds",
			Help:    "Arbitrage job execution duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"status"},
	)

	JobsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hermes_jobs_running",
			Help: "Current number of running arbitrage jobs",
		},
	)

	// Slot metrics
	Slots = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_slots_total",
			Help: "Total number of execution slots by outcome",
		},
		[]string{"outcome"}, // outcome: filled|forced_cancel|abandoned
	)

	// Order metrics
	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_orders_placed_total",
			Help: "Total number of orders placed per venue",
		},
		[]string{"exchange", "side"},
	)

	OrdersCanceled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_orders_canceled_total",
			Help: "Total number of cancel requests per venue",
		},
		[]string{"exchange"},
	)

	PlacementRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_placement_retries_total",
			Help: "Total number of order placement retries per venue",
		},
		[]string{"exchange"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_kafka_messages_total",
			Help: "Total Kafka messages produced/consumed",
		},
		[]string{"topic", "direction", "status"}, // direction: produced|consumed
	)

	WebSocketReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_websocket_reconnects_total",
			Help: "Total number of market data WebSocket reconnections",
		},
		[]string{"exchange"},
	)
)

// Init registers all metrics with the default registry
func Init() {
	prometheus.MustRegister(JobsProcessed)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(JobsRunning)
	prometheus.MustRegister(Slots)
	prometheus.MustRegister(OrdersPlaced)
	prometheus.MustRegister(OrdersCanceled)
	prometheus.MustRegister(PlacementRetries)
	prometheus.MustRegister(KafkaMessages)
	prometheus.MustRegister(WebSocketReconnects)
}

// RegisterCollector registers an additional collector with the default registry
func RegisterCollector(c prometheus.Collector) error {
	return prometheus.Register(c)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordJob records a finished job run
func RecordJob(status string, duration time.Duration) {
	JobsProcessed.WithLabelValues(status).Inc()
	JobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordSlot records a slot outcome
func RecordSlot(outcome string) {
	Slots.WithLabelValues(outcome).Inc()
}

// RecordOrderPlaced records a successful order placement
func RecordOrderPlaced(exchange, side string) {
	OrdersPlaced.WithLabelValues(exchange, side).Inc()
}

// RecordOrderCanceled records a cancel request
func RecordOrderCanceled(exchange string) {
	OrdersCanceled.WithLabelValues(exchange).Inc()
}

// RecordWebSocketReconnect records a successful market data feed reconnect
func RecordWebSocketReconnect(exchange string) {
	WebSocketReconnects.WithLabelValues(exchange).Inc()
}

// RecordKafkaMessage records a produced or consumed Kafka message
func RecordKafkaMessage(topic, direction string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KafkaMessages.WithLabelValues(topic, direction, status).Inc()
}
