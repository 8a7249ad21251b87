// Package metrics registers the Prometheus metrics used by the gateway.
// Import this package (via blank import) from the server entry point to
// register all metrics before the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request-level counters and histograms.
var (
	// RequestsTotal counts completed requests labelled by provider, model, and
	// outcome ("success", "error", "rejected").
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of requests processed by the gateway.",
		},
		[]string{"provider", "model", "status"},
	)

	// RequestDuration observes end-to-end request latency in seconds.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "End-to-end request duration in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	// TokensInput counts total prompt tokens sent to providers.
	TokensInput = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_tokens_input_total",
			Help: "Total prompt tokens sent to providers.",
		},
		[]string{"provider", "model"},
	)

	// TokensOutput counts total completion tokens received from providers.
	TokensOutput = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_tokens_output_total",
			Help: "Total completion tokens received from providers.",
		},
		[]string{"provider", "model"},
	)

	// ProviderErrors counts errors broken down by provider and error type
	// ("provider_error", "circuit_open", "timeout").
	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_provider_errors_total",
			Help: "Total provider errors by type.",
		},
		[]string{"provider", "error_type"},
	)

	// CircuitBreakerState tracks per (provider, region) circuit breaker state
	// as a gauge: 0 = closed, 1 = open, 2 = half_open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_circuit_breaker_state",
			Help: "Circuit breaker state per provider/region (0=closed 1=open 2=half_open).",
		},
		[]string{"provider", "region"},
	)

	// RouterCandidatesConsidered observes how many candidates the Model
	// Router scored before selecting one, per request.
	RouterCandidatesConsidered = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "router_candidates_considered",
			Help:    "Number of (provider, model) candidates scored per routed request.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"outcome"},
	)

	// RouterAttemptsTotal counts fallback attempts by outcome
	// ("success", "failure", "skipped_breaker_open").
	RouterAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_attempts_total",
			Help: "Total candidate attempts made by the Model Router.",
		},
		[]string{"provider", "model", "outcome"},
	)

	// LedgerWritesTotal counts Ledger Entry writes by success flag.
	LedgerWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_writes_total",
			Help: "Total ledger entries written, labelled by success flag.",
		},
		[]string{"success"},
	)

	// RateLimitRejections is the rate-limit rejection counter, labelled by
	// key_type. The adapters' local token-bucket denials do not increment it.
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rate_limit_rejections_total",
			Help: "Total requests rejected by rate limiting.",
		},
		[]string{"key_type"},
	)
)
