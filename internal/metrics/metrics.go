// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WSConnections tracks currently open websocket connections.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dentalmentor_ws_connections",
		Help: "Number of open websocket connections.",
	})

	// DeltasApplied counts score deltas folded into leaderboard sessions.
	DeltasApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dentalmentor_score_deltas_applied_total",
		Help: "Score deltas applied to leaderboard sessions.",
	})

	// LeaderboardReplacements counts authoritative full-leaderboard overrides.
	LeaderboardReplacements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dentalmentor_leaderboard_replacements_total",
		Help: "Authoritative leaderboard_update overrides processed.",
	})

	// HTTPRequests counts REST requests by endpoint, method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dentalmentor_http_requests_total",
		Help: "REST requests by endpoint, method and status code.",
	}, []string{"endpoint", "method", "status"})
)

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
