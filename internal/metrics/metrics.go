// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package metrics holds the Prometheus collectors for Signalcart. Collectors
// are registered on the default registry via promauto and exposed at /metrics.
// Callers use the Record* helpers rather than touching collectors directly.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalcart_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signalcart_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Interaction log

	InteractionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalcart_interactions_recorded_total",
			Help: "Interactions durably recorded, by kind",
		},
		[]string{"kind"},
	)

	InteractionRecordErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalcart_interaction_record_errors_total",
			Help: "Interaction recording failures, by class",
		},
		[]string{"class"},
	)

	LogBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signalcart_eventlog_batch_size",
			Help:    "Events committed per event log transaction",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512},
		},
	)

	LogBatchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signalcart_eventlog_batch_errors_total",
			Help: "Event log batch commits that failed",
		},
	)

	ExportRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signalcart_export_records_total",
			Help: "Interaction records yielded by exports",
		},
	)

	// Training

	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalcart_training_runs_total",
			Help: "Training runs by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	TrainingRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signalcart_training_rejected_total",
			Help: "Training requests rejected because a run was already in progress",
		},
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signalcart_training_duration_seconds",
			Help:    "Wall time of training runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		},
	)

	TrainingRecords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signalcart_training_records",
			Help:    "Records consumed per training run",
			Buckets: prometheus.ExponentialBuckets(10, 10, 7),
		},
	)

	ActiveModelTrainedAt = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "signalcart_active_model_trained_timestamp_seconds",
			Help: "Unix time the active model was trained",
		},
	)

	ActiveModelProducts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "signalcart_active_model_products",
			Help: "Distinct products known to the active model",
		},
	)

	// Serving

	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalcart_recommendations_total",
			Help: "Recommendation requests served, by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	RecommendationItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalcart_recommendation_items_total",
			Help: "Product IDs returned, by producing source",
		},
		[]string{"source"},
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signalcart_recommendation_duration_seconds",
			Help:    "Recommendation latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"strategy"},
	)

	RecommendationCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalcart_recommendation_cache_total",
			Help: "Recommendation cache lookups by result",
		},
		[]string{"result"},
	)

	FallbackErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalcart_fallback_errors_total",
			Help: "Fallback source failures",
		},
		[]string{"source"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signalcart_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CatalogSalesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signalcart_catalog_sales_dropped_total",
			Help: "Purchases dropped because the catalog writer queue was full",
		},
	)

	// Event bus

	BusMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalcart_bus_messages_total",
			Help: "Event bus messages by topic, direction and outcome",
		},
		[]string{"topic", "direction", "outcome"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "signalcart_websocket_clients",
			Help: "Connected websocket clients",
		},
	)
)

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordInteraction counts a recorded interaction.
func RecordInteraction(kind string) {
	InteractionsRecorded.WithLabelValues(kind).Inc()
}

// RecordInteractionError counts a failed recording by error class.
func RecordInteractionError(class string) {
	InteractionRecordErrors.WithLabelValues(class).Inc()
}

// RecordLogBatch records one event log commit.
func RecordLogBatch(size int, err error) {
	if err != nil {
		LogBatchErrors.Inc()
		return
	}
	LogBatchSize.Observe(float64(size))
}

// RecordExport adds n exported records.
func RecordExport(n int) {
	if n > 0 {
		ExportRecords.Add(float64(n))
	}
}

// RecordTrainingRun records a finished run.
func RecordTrainingRun(mode, outcome string, duration time.Duration, records int64) {
	TrainingRuns.WithLabelValues(mode, outcome).Inc()
	TrainingDuration.Observe(duration.Seconds())
	TrainingRecords.Observe(float64(records))
}

// RecordTrainingRejected counts a run rejected by the in-progress guard.
func RecordTrainingRejected() {
	TrainingRejected.Inc()
}

// SetActiveModel updates the active model gauges.
func SetActiveModel(trainedAt time.Time, products int) {
	ActiveModelTrainedAt.Set(float64(trainedAt.Unix()))
	ActiveModelProducts.Set(float64(products))
}

// RecordRecommendation records one served request.
func RecordRecommendation(strategy, outcome string, duration time.Duration) {
	RecommendationsServed.WithLabelValues(strategy, outcome).Inc()
	RecommendationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordRecommendationItems adds n items produced by source.
func RecordRecommendationItems(source string, n int) {
	if n > 0 {
		RecommendationItems.WithLabelValues(source).Add(float64(n))
	}
}

// RecordCacheLookup records a recommendation cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		RecommendationCache.WithLabelValues("hit").Inc()
		return
	}
	RecommendationCache.WithLabelValues("miss").Inc()
}

// RecordFallbackError counts a failed fallback source call.
func RecordFallbackError(source string) {
	FallbackErrors.WithLabelValues(source).Inc()
}

// SetCircuitBreakerState publishes a breaker state (0 closed, 1 half-open, 2 open).
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordBusMessage counts a bus message. direction is "publish" or "consume".
func RecordBusMessage(topic, direction, outcome string) {
	BusMessages.WithLabelValues(topic, direction, outcome).Inc()
}

// RecordCatalogDrop counts a purchase the catalog writer could not queue.
func RecordCatalogDrop() {
	CatalogSalesDropped.Inc()
}
