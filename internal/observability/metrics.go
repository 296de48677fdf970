package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Outgoing API metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Outgoing API request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of outgoing API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_unauthorized_retries_total",
			Help: "Requests replayed once after a token refresh",
		},
	)

	// Session lifecycle metrics
	SessionLogins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_logins_total",
			Help: "Login attempts by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	SessionRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_refreshes_total",
			Help: "Token refresh attempts by outcome",
		},
		[]string{"outcome"},
	)

	SessionLogouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_logouts_total",
			Help: "Total number of logouts",
		},
	)

	SessionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_state",
			Help: "Current session state (0 anonymous, 1 authenticating, 2 authenticated, 3 refreshing)",
		},
	)

	// Notification stream metrics
	NotifyEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_events_received_total",
			Help: "Status notification events received by type",
		},
		[]string{"type"},
	)
)
