// Package metrics holds the API server's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "condofee_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "condofee_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	authLoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "condofee_auth_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"method", "status"}, // method: password/register, status: success/failure/blocked
	)

	authLoginDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "condofee_auth_login_duration_seconds",
			Help:    "Login request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method"},
	)

	authJWTValidatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "condofee_auth_jwt_validated_total",
			Help: "Total number of JWT validations",
		},
		[]string{"kind", "status"}, // kind: access/refresh, status: success/invalid/revoked
	)

	authRateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "condofee_auth_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
	)
)

// ObserveRequest records one served HTTP request
func ObserveRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLoginAttempt records a login attempt metric
func RecordLoginAttempt(method, status string, duration time.Duration) {
	authLoginAttemptsTotal.WithLabelValues(method, status).Inc()
	authLoginDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordJWTValidation records a JWT validation metric
func RecordJWTValidation(kind, status string) {
	authJWTValidatedTotal.WithLabelValues(kind, status).Inc()
}

// RecordRateLimitHit records a rate limit hit
func RecordRateLimitHit() {
	authRateLimitHitsTotal.Inc()
}
