// Package metrics exposes the Prometheus collectors of the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook ingress
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unmonitarr_webhook_events_total",
			Help: "Webhook deliveries by result",
		},
		[]string{"result"}, // "queued", "ignored", "empty", "invalid", "unauthorized"
	)

	// Pipeline
	PipelineOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unmonitarr_pipeline_outcomes_total",
			Help: "Watch events processed by the sync pipeline by outcome",
		},
		[]string{"outcome"},
	)

	SyncResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unmonitarr_sync_results_total",
			Help: "Monitoring updates applied to library services",
		},
		[]string{"service", "action", "status"},
	)

	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unmonitarr_resolutions_total",
			Help: "Identity resolutions by service and tier that produced the match",
		},
		[]string{"service", "tier"},
	)

	DedupEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unmonitarr_dedup_entries",
			Help: "Events currently held by the dedup cache",
		},
	)

	DedupDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unmonitarr_dedup_dropped_total",
			Help: "Duplicate events dropped by the dedup cache",
		},
	)

	// Remote clients
	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unmonitarr_remote_request_duration_seconds",
			Help:    "Duration of requests to remote services",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"client", "method"},
	)

	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unmonitarr_remote_requests_total",
			Help: "Requests to remote services by result",
		},
		[]string{"client", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "unmonitarr_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unmonitarr_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Bulk reconciliation
	BulkSyncItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unmonitarr_bulk_sync_items_total",
			Help: "Items handled by bulk reconciliation runs",
		},
		[]string{"result"}, // "synced", "error"
	)

	BulkSyncRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unmonitarr_bulk_sync_running",
			Help: "1 while a bulk reconciliation run is active",
		},
	)
)
