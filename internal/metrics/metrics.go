// Package metrics defines the Prometheus collectors forge exposes on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StepOutcomes counts agent step runs.
	// Labels: agent, outcome (success, degraded, failed)
	StepOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forge",
			Subsystem: "agent",
			Name:      "step_outcomes_total",
			Help:      "Total number of agent step runs by outcome",
		},
		[]string{"agent", "outcome"},
	)

	// GenerativeCallDuration tracks generative service round trips.
	// Labels: backend, result (ok, connectivity, generation)
	GenerativeCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "forge",
			Subsystem: "generative",
			Name:      "call_duration_seconds",
			Help:      "Duration of generative service calls in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"backend", "result"},
	)

	// GenerativeTokens counts tokens reported by the generative service.
	// Labels: direction (input, output)
	GenerativeTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forge",
			Subsystem: "generative",
			Name:      "tokens_total",
			Help:      "Total tokens exchanged with the generative service",
		},
		[]string{"direction"},
	)

	// LedgerEvents counts appended ledger events.
	// Labels: status (INFO, SUCCESS, WARNING, ERROR, CRITICAL)
	LedgerEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forge",
			Subsystem: "ledger",
			Name:      "events_total",
			Help:      "Total number of ledger events by status",
		},
		[]string{"status"},
	)

	// PipelineRuns counts orchestrator runs.
	// Labels: pipeline (assembly, provisioning), result (completed, degraded, aborted, halted)
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forge",
			Subsystem: "orchestrator",
			Name:      "runs_total",
			Help:      "Total number of orchestrator runs by result",
		},
		[]string{"pipeline", "result"},
	)
)

// RecordStep records the outcome of one agent step.
func RecordStep(agent, outcome string) {
	StepOutcomes.WithLabelValues(agent, outcome).Inc()
}

// RecordPipeline records the result of one orchestrator run.
func RecordPipeline(pipeline, result string) {
	PipelineRuns.WithLabelValues(pipeline, result).Inc()
}
