package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "renovate_initializr_http_request_duration_seconds",
	Help:    "Duration of HTTP requests handled by the API router.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "status"})
