// Package metrics holds the Prometheus collectors for the recommendation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LLM Metrics
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zappy_llm_requests_total",
			Help: "Total number of LLM completion requests",
		},
		[]string{"model", "outcome"}, // outcome: success, error, fallback
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zappy_llm_request_duration_seconds",
			Help:    "Duration of LLM completion requests in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"model"},
	)

	GenerationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zappy_generation_attempts_total",
			Help: "Recommendation generation attempts by result",
		},
		[]string{"result"}, // success, provider_error, malformed
	)

	ChatReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zappy_chat_replies_total",
			Help: "Assistant replies appended to conversations",
		},
		[]string{"result"}, // success, fallback
	)

	// Catalog Metrics
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zappy_catalog_requests_total",
			Help: "Requests sent to external media catalogs",
		},
		[]string{"catalog", "outcome"},
	)

	ImageResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zappy_image_resolutions_total",
			Help: "Poster lookups by the step that produced the image",
		},
		[]string{"catalog", "step"}, // step: smart, fallback, miss
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zappy_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Cache Metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zappy_cache_lookups_total",
			Help: "Cache lookups by cache and result",
		},
		[]string{"cache", "result"}, // result: hit, miss, error
	)
)
