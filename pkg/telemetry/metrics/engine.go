package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks the request evaluation pipeline.
//
// Metrics:
//   - <ns>_evaluations_total: Total evaluations by outcome
//   - <ns>_evaluation_duration_seconds: Evaluation duration
//   - <ns>_triggers_total: Block reasons by initiating subsystem
//   - <ns>_config_reloads_total: Configuration reloads by result
//   - <ns>_config_generation: Generation of the active snapshot
//   - <ns>_audit_records_dropped_total: Audit records dropped by the recorder
type EngineMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	triggersTotal      *prometheus.CounterVec
	reloadsTotal       *prometheus.CounterVec
	configGeneration   prometheus.Gauge
	auditDroppedTotal  prometheus.Counter
}

// NewEngineMetrics creates and registers engine metrics on registry.
// The namespace prefixes every metric name.
func NewEngineMetrics(namespace string, registry *prometheus.Registry) *EngineMetrics {
	em := &EngineMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of request evaluations",
			},
			[]string{"outcome"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of one request evaluation in seconds",
				// evaluations are expected to stay under a few ms
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15),
			},
		),

		triggersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "triggers_total",
				Help:      "Total number of block reasons by initiating subsystem",
			},
			[]string{"initiator"},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of configuration reloads by result",
			},
			[]string{"result"},
		),

		configGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_generation",
				Help:      "Generation counter of the active configuration snapshot",
			},
		),

		auditDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_records_dropped_total",
				Help:      "Total number of audit records dropped by the recorder",
			},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.evaluationDuration,
		em.triggersTotal,
		em.reloadsTotal,
		em.configGeneration,
		em.auditDroppedTotal,
	)

	return em
}

// RecordEvaluation records one completed evaluation.
//
// Parameters:
//   - outcome: the resolved action kind ("pass", "skip", "monitor", "block")
//   - duration: wall time of the evaluation
func (em *EngineMetrics) RecordEvaluation(outcome string, duration time.Duration) {
	em.evaluationsTotal.WithLabelValues(outcome).Inc()
	em.evaluationDuration.Observe(duration.Seconds())
}

// RecordTrigger counts one block reason from the named subsystem.
func (em *EngineMetrics) RecordTrigger(initiator string) {
	em.triggersTotal.WithLabelValues(initiator).Inc()
}

// RecordReload records a configuration reload and, when it succeeded,
// the generation it published.
func (em *EngineMetrics) RecordReload(success bool, generation uint64) {
	if success {
		em.reloadsTotal.WithLabelValues("success").Inc()
		em.configGeneration.Set(float64(generation))
		return
	}
	em.reloadsTotal.WithLabelValues("failure").Inc()
}

// RecordAuditDrop counts one dropped audit record.
func (em *EngineMetrics) RecordAuditDrop() {
	em.auditDroppedTotal.Inc()
}
