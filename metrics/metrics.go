// Package metrics exposes prometheus collectors for threshold signing
// ceremonies. All methods are safe on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "tss"

// Metrics groups the collectors for one engine.
type Metrics struct {
	stages   *prometheus.CounterVec
	failures *prometheus.CounterVec
	proofs   *prometheus.HistogramVec
}

// New registers the collectors on reg under namespace ("tss" when empty).
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}

	m := &Metrics{
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_total",
			Help:      "Completed protocol stages.",
		}, []string{"stage"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Failed protocol stages by error code.",
		}, []string{"stage", "code"}),
		proofs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "zk_proof_seconds",
			Help:      "Time spent proving and verifying no-small-factors proofs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{m.stages, m.failures, m.proofs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// StageCompleted counts a successful stage.
func (m *Metrics) StageCompleted(stage string) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(stage).Inc()
}

// StageFailed counts a failed stage.
func (m *Metrics) StageFailed(stage, code string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(stage, code).Inc()
}

// ObserveProof records the duration of a proof operation started at start.
func (m *Metrics) ObserveProof(op string, start time.Time) {
	if m == nil {
		return
	}
	m.proofs.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Stages exposes the stage counter for tests and dashboards wiring.
func (m *Metrics) Stages() *prometheus.CounterVec { return m.stages }

// Failures exposes the failure counter.
func (m *Metrics) Failures() *prometheus.CounterVec { return m.failures }
