package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects pipeline counters and latency histograms.
//
// Registered once at startup; the evaluate command exposes them on the
// configured metrics listener via promhttp.
type Metrics struct {
	// EvaluationsTotal counts entities reaching a terminal state.
	// Labels: status (succeeded|permanently_failed|skipped)
	EvaluationsTotal *prometheus.CounterVec

	// LLMRequestDuration measures provider call latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestsTotal counts provider calls.
	// Labels: provider, model, status (success|error)
	LLMRequestsTotal *prometheus.CounterVec

	// RetriesTotal counts retry sleeps by error reason.
	// Labels: reason (rate_limit|timeout|server_error|parse|unknown)
	RetriesTotal *prometheus.CounterVec

	// ParseFailuresTotal counts responses the parser could not use.
	// Labels: mode (clean|extracted|fallback|failed)
	ParseFailuresTotal *prometheus.CounterVec

	// CheckpointWritesTotal counts durable checkpoint appends.
	CheckpointWritesTotal prometheus.Counter

	// EntitiesInFlight tracks entities currently being evaluated.
	EntitiesInFlight prometheus.Gauge
}

// NewMetrics creates the metric set and registers it with reg.
// Passing prometheus.DefaultRegisterer wires the standard /metrics
// endpoint; tests pass a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riseval_evaluations_total",
				Help: "Entities that reached a terminal state, by status",
			},
			[]string{"status"},
		),
		LLMRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riseval_llm_request_duration_seconds",
				Help:    "Duration of LLM provider calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		LLMRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riseval_llm_requests_total",
				Help: "LLM provider calls by outcome",
			},
			[]string{"provider", "model", "status"},
		),
		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riseval_retries_total",
				Help: "Retry sleeps by error reason",
			},
			[]string{"reason"},
		),
		ParseFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riseval_parse_failures_total",
				Help: "Responses the parser could not convert to matches",
			},
			[]string{"mode"},
		),
		CheckpointWritesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "riseval_checkpoint_writes_total",
				Help: "Durable checkpoint appends",
			},
		),
		EntitiesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "riseval_entities_in_flight",
				Help: "Entities currently being evaluated",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.EvaluationsTotal,
			m.LLMRequestDuration,
			m.LLMRequestsTotal,
			m.RetriesTotal,
			m.ParseFailuresTotal,
			m.CheckpointWritesTotal,
			m.EntitiesInFlight,
		)
	}
	return m
}
