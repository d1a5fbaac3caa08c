package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat_gateway",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat_gateway",
			Name:      "upstream_requests_total",
			Help:      "Calls made to third-party APIs by upstream and outcome",
		},
		[]string{"upstream", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chat_gateway",
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of third-party API calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"upstream"},
	)

	AuthEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat_gateway",
			Name:      "auth_events_total",
			Help:      "Registrations, logins and token checks by result",
		},
		[]string{"event", "result"},
	)
)

// ObserveUpstream records one call to a third-party API.
func ObserveUpstream(upstream string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(upstream, outcome).Inc()
	UpstreamDuration.WithLabelValues(upstream).Observe(seconds)
}

func AuthEvent(event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	AuthEventsTotal.WithLabelValues(event, result).Inc()
}
