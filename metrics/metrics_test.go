package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg, "")
	require.NoError(t, err)

	m.StageCompleted("sign")
	m.StageCompleted("sign")
	m.StageFailed("sign", "NONCE_REUSE_DETECTED")
	m.ObserveProof("verify", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Stages().WithLabelValues("sign")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures().WithLabelValues("sign", "NONCE_REUSE_DETECTED")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.proofs, "tss_zk_proof_seconds"))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "tss_stage_total")
	assert.Contains(t, names, "tss_stage_failures_total")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.StageCompleted("sign")
		m.StageFailed("sign", "X")
		m.ObserveProof("prove", time.Now())
	})
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "dup")
	require.NoError(t, err)
	_, err = New(reg, "dup")
	require.Error(t, err)

	_, err = New(reg, "other")
	require.NoError(t, err)
}
