package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locomotion_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "locomotion_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	gateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locomotion_gate_decisions_total",
			Help: "Access gate decisions by outcome.",
		},
		[]string{"outcome"}, // allow, redirect_signin, redirect_home
	)
	profileResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locomotion_profile_resolutions_total",
			Help: "Profile resolution outcomes.",
		},
		[]string{"outcome"}, // ok, invalid_token, not_found, error
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, gateDecisionsTotal, profileResolutionsTotal)
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
