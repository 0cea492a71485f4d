package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "condofee_client_auth_decisions_total",
			Help: "Per-request authorization decisions taken by the API client",
		},
		[]string{"outcome"},
	)

	tokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "condofee_client_token_refresh_total",
			Help: "Token refresh calls made by the API client",
		},
		[]string{"result"},
	)
)
