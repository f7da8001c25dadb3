// Package metrics exposes the engine's Prometheus instrumentation:
// evaluation counts and latency, per-subsystem trigger counts,
// configuration reload outcomes and audit recorder drops. Metrics are
// registered on a caller-supplied registry so embedders control
// exposure.
package metrics
