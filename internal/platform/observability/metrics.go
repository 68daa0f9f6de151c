package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_items_enqueued_total",
		Help: "The total number of raw items accepted into the ingestion queue",
	}, []string{"source"})

	ItemsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intel_items_rejected_total",
		Help: "The total number of raw items rejected at enqueue validation",
	})

	PipelineProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_pipeline_processed_total",
		Help: "The total number of items that reached a terminal state",
	}, []string{"status"})

	PipelineBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intel_pipeline_backlog_size",
		Help: "Number of pending items in the ingestion queue",
	})

	DeadLetterSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intel_dead_letter_size",
		Help: "Number of items currently in the dead-letter state",
	})

	ItemProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intel_item_processing_seconds",
		Help:    "End-to-end processing duration per item",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	AdapterRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "intel_adapter_request_duration_seconds",
		Help:    "Duration of enrichment adapter requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"adapter"})

	AdapterDegradations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_adapter_degradations_total",
		Help: "Total number of adapter failures recovered by fallback substitution",
	}, []string{"adapter"})

	TimestampFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intel_timestamp_fallbacks_total",
		Help: "Total number of item timestamps that failed to parse and fell back to now",
	})

	DedupRechecks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intel_dedup_rechecks_total",
		Help: "Total number of dedup checks that ran against an unavailable store",
	})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_notifications_total",
		Help: "Total number of notifier calls by outcome",
	}, []string{"status"})

	FeedItemsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_feed_items_collected_total",
		Help: "Total number of items collected from configured feeds",
	}, []string{"feed"})
)
