package feedback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for requestsTotal.
const (
	outcomeSuccess       = "success"
	outcomeCached        = "cached"
	outcomeUpstreamError = "upstream_error"
	outcomeModelError    = "model_error"
	outcomeRefused       = "refused"
	outcomeEmpty         = "empty"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "renovate_initializr_feedback_requests_total",
		Help: "Feedback requests, by outcome.",
	}, []string{"outcome"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "renovate_initializr_feedback_retries_total",
		Help: "Feedback requests retried with a larger token budget after an incomplete response.",
	})

	upstreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "renovate_initializr_feedback_upstream_duration_seconds",
		Help:    "Latency of calls to the model provider.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	})
)
