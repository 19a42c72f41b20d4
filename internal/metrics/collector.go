// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds the Prometheus instruments for the agent backend.
// A nil *Collector is valid and records nothing, so call sites do not
// need to guard against an unconfigured metrics layer.
type Collector struct {
	turnsTotal        *prometheus.CounterVec
	turnDuration      *prometheus.HistogramVec
	llmRequestsTotal  *prometheus.CounterVec
	llmRequestSeconds *prometheus.HistogramVec
	llmRetriesTotal   prometheus.Counter
	tokensUsed        *prometheus.CounterVec
	memoryMatches     prometheus.Histogram
	promptUtilization prometheus.Histogram

	logger *zap.Logger
}

// NewCollector registers the instruments under the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of conversation turns handled",
		},
		[]string{"context_mode", "status"},
	)

	c.turnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn handling duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"context_mode"},
	)

	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM provider calls",
		},
		[]string{"provider", "operation", "status"},
	)

	c.llmRequestSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM provider call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "operation"},
	)

	c.llmRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_retries_total",
			Help:      "Total number of retried LLM provider calls",
		},
	)

	c.tokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_used_total",
			Help:      "Total tokens consumed, by kind",
		},
		[]string{"kind"},
	)

	c.memoryMatches = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_matches_per_turn",
			Help:      "Number of retrieved memory summaries per turn",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)

	c.promptUtilization = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prompt_budget_utilization",
			Help:      "Fraction of the prompt token budget actually used",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	return c
}

// ObserveTurn records one handled turn.
func (c *Collector) ObserveTurn(contextMode string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.turnsTotal.WithLabelValues(contextMode, status).Inc()
	c.turnDuration.WithLabelValues(contextMode).Observe(duration.Seconds())
}

// ObserveLLMRequest records one provider call.
func (c *Collector) ObserveLLMRequest(provider, operation string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.llmRequestsTotal.WithLabelValues(provider, operation, status).Inc()
	c.llmRequestSeconds.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// IncRetry counts one retried provider call.
func (c *Collector) IncRetry() {
	if c == nil {
		return
	}
	c.llmRetriesTotal.Inc()
}

// AddTokens counts consumed tokens by kind ("prompt", "completion").
func (c *Collector) AddTokens(kind string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.tokensUsed.WithLabelValues(kind).Add(float64(n))
}

// ObserveMemoryMatches records how many summaries a retrieval returned.
func (c *Collector) ObserveMemoryMatches(n int) {
	if c == nil {
		return
	}
	c.memoryMatches.Observe(float64(n))
}

// ObservePromptUtilization records usedTokens/budget for one turn.
func (c *Collector) ObservePromptUtilization(usedTokens, budget int) {
	if c == nil || budget <= 0 {
		return
	}
	c.promptUtilization.Observe(float64(usedTokens) / float64(budget))
}
