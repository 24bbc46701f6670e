// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kbchat"

var (
	DependencyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dependency_duration_seconds",
			Help:      "Latency of calls to external collaborators",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"collaborator", "operation"},
	)

	DependencyErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_errors_total",
			Help:      "Failed calls to external collaborators",
		},
		[]string{"collaborator", "operation"},
	)

	GuardrailIntents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_intents_total",
			Help:      "Chat messages by detected conversational intent",
		},
		[]string{"intent"},
	)

	CascadeOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confidence_cascade_total",
			Help:      "Confidence tier that admitted the grounding, or refused",
		},
		[]string{"tier"},
	)

	RetrievalCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_candidates",
			Help:      "Candidates returned per retrieval channel",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"channel"},
	)

	EmbeddingCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	IngestedChunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_chunks_total",
			Help:      "Chunks stored by ingestion",
		},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter",
		},
	)
)

var registerOnce sync.Once

// Register registers every collector with the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			DependencyDuration,
			DependencyErrors,
			GuardrailIntents,
			CascadeOutcomes,
			RetrievalCandidates,
			EmbeddingCache,
			IngestedChunks,
			RateLimited,
		)
	})
}

// ObserveDependency records the latency of a collaborator call started at
// start, and counts it as an error when err is non-nil.
func ObserveDependency(collaborator, operation string, start time.Time, err error) {
	DependencyDuration.WithLabelValues(collaborator, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		DependencyErrors.WithLabelValues(collaborator, operation).Inc()
	}
}
