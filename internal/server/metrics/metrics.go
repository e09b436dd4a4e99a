// Package metrics exposes Prometheus collectors for the HTTP surface, tool
// invocations and authentication events.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Authentication event labels.
const (
	AuthLoginOK      = "login_ok"
	AuthLoginFailed  = "login_failed"
	AuthTokenExpired = "token_expired"
	AuthTokenInvalid = "token_invalid"
	AuthDenied       = "denied"
)

// Tool invocation outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeDenied  = "denied"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
	OutcomeNoMatch = "no_match"
)

var (
	// RequestTotal counts HTTP requests by method and route.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passprotect_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "passprotect_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	// ToolInvocations counts gateway calls by tool and outcome.
	ToolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passprotect_tool_invocations_total",
			Help: "Total number of tool invocations",
		},
		[]string{"tool", "outcome"},
	)
	// AuthEvents counts logins, token failures and authorization denials.
	AuthEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passprotect_auth_events_total",
			Help: "Total number of authentication and authorization events",
		},
		[]string{"event"},
	)
)

// RecordTool increments the invocation counter for tool.
func RecordTool(tool, outcome string) {
	ToolInvocations.WithLabelValues(tool, outcome).Inc()
}

// RecordAuth increments the counter for an authentication event.
func RecordAuth(event string) {
	AuthEvents.WithLabelValues(event).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
