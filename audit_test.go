package tss

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/canopy-network/canopy/lib/tss/metrics"
)

// recordingAuditHandler keeps every event it receives.
type recordingAuditHandler struct {
	mu           sync.Mutex
	keygen       []*CeremonyEvent
	signing      []*CeremonyEvent
	verification []*AuditEvent
	validation   []*ValidationFailureEvent
	errors       []*AuditEvent
}

func (h *recordingAuditHandler) OnKeyGeneration(event *CeremonyEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keygen = append(h.keygen, event)
}

func (h *recordingAuditHandler) OnSigning(event *CeremonyEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.signing = append(h.signing, event)
}

func (h *recordingAuditHandler) OnVerificationFailure(event *AuditEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.verification = append(h.verification, event)
}

func (h *recordingAuditHandler) OnValidationFailure(event *ValidationFailureEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.validation = append(h.validation, event)
}

func (h *recordingAuditHandler) OnError(event *AuditEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, event)
}

func TestAuditEventBuilder(t *testing.T) {
	before := time.Now()
	event := NewAuditEventBuilder(AuditEventSign, ReasonCeremony).
		WithCurve("ed25519").
		WithParty(2).
		WithSession("abc").
		WithThreshold(2, 3).
		WithParticipants([]PartyIndex{1, 2}).
		WithMetadata("attempt", 1).
		Build()

	_, err := uuid.Parse(event.EventID)
	require.NoError(t, err)
	assert.False(t, event.Timestamp.Before(before))
	assert.Equal(t, AuditEventSign, event.EventType)
	assert.Equal(t, PartyIndex(2), event.Party)
	assert.Equal(t, "abc", event.SessionID)
	assert.Equal(t, 2, event.Threshold)
	assert.Equal(t, 3, event.NumShares)
	assert.Equal(t, []PartyIndex{1, 2}, event.Participants)
	assert.Equal(t, 1, event.Metadata["attempt"])
	assert.True(t, event.Success)

	failed := NewAuditEventBuilder(AuditEventSign, ReasonCeremony).WithError(ErrInsufficientSigners).Build()
	assert.False(t, failed.Success)
	assert.Contains(t, failed.Error, "INSUFFICIENT_SIGNERS")
	assert.NotEqual(t, event.EventID, failed.EventID)

	ceremony := NewAuditEventBuilder(AuditEventKeyShare, ReasonCeremony).BuildCeremony(time.Second, 3)
	assert.Equal(t, time.Second, ceremony.Duration)
	assert.Equal(t, 3, ceremony.Contributions)

	validation := NewAuditEventBuilder(AuditEventValidationFailure, ReasonValidationError).
		BuildValidationFailure("threshold", "INVALID_THRESHOLD", map[string]interface{}{"threshold": 0})
	assert.Equal(t, "threshold", validation.ValidationType)
	assert.Equal(t, 0, validation.InputValues["threshold"])
}

func TestEngineAuditTrail(t *testing.T) {
	handler := &recordingAuditHandler{}
	engine := newTestEngine(t, WithAuditHandler(handler))
	message := []byte("test-message")

	players := runKeygen(t, engine, 2, 3)
	require.Len(t, handler.keygen, 6, "three KeyShare and three KeyCombine events")
	for _, ev := range handler.keygen {
		assert.True(t, ev.Success)
		assert.Equal(t, "ed25519", ev.CurveName)
		_, err := uuid.Parse(ev.EventID)
		assert.NoError(t, err)
	}

	inbox := runNonces(t, engine, players, []PartyIndex{1, 2}, message)
	partial, err := engine.Sign(message, inbox[1])
	require.NoError(t, err)
	assert.Len(t, handler.signing, 3, "two SignShare and one Sign event")
	signEvent := handler.signing[len(handler.signing)-1]
	assert.Equal(t, AuditEventSign, signEvent.EventType)
	assert.Equal(t, localNonce(t, inbox[1]).Session().ID(), signEvent.SessionID)
	assert.Equal(t, []PartyIndex{1, 2}, signEvent.Participants)

	t.Run("NonceReuse", func(t *testing.T) {
		_, err := engine.Sign(message, inbox[1])
		require.ErrorIs(t, err, ErrNonceReuseDetected)
		require.NotEmpty(t, handler.verification)
		last := handler.verification[len(handler.verification)-1]
		assert.Equal(t, AuditEventNonceReuse, last.EventType)
		assert.Equal(t, ReasonSecurityViolation, last.Reason)
		assert.False(t, last.Success)
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		_, err := engine.KeyShare(1, 4, 3)
		require.ErrorIs(t, err, ErrInvalidThreshold)
		require.NotEmpty(t, handler.validation)
		last := handler.validation[len(handler.validation)-1]
		assert.Equal(t, StageKeyShare, last.ValidationType)
		assert.Equal(t, ErrInvalidThreshold.Code, last.FailureReason)
	})

	t.Run("VerificationFailure", func(t *testing.T) {
		before := len(handler.verification)
		sig := &Signature{PublicPoint: partial.PublicPoint, R: partial.R, Sigma: partial.Gamma}
		assert.False(t, engine.Verify(message, sig))
		require.Len(t, handler.verification, before+1)
		assert.Equal(t, AuditEventVerificationFailure, handler.verification[before].EventType)
	})
}

func TestEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg, "test")
	require.NoError(t, err)

	engine := newTestEngine(t, WithMetrics(m))
	message := []byte("test-message")
	players := runKeygen(t, engine, 2, 3)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Stages().WithLabelValues(StageKeyShare)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Stages().WithLabelValues(StageKeyCombine)))

	partials := runSigning(t, engine, players, []PartyIndex{2, 3}, message)
	sig, err := engine.SignCombine(partials)
	require.NoError(t, err)
	require.True(t, engine.Verify(message, sig))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Stages().WithLabelValues(StageSign)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Stages().WithLabelValues(StageSignCombine)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Stages().WithLabelValues(StageVerify)))

	_, err = engine.SignCombine(partials[:1])
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.Failures().WithLabelValues(StageSignCombine, ErrInsufficientSigners.Code)))
}

func TestKeyShareReportsPolicyWarnings(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	handler := &recordingAuditHandler{}
	engine := newTestEngine(t, WithLogger(zap.New(core)), WithAuditHandler(handler))

	_, err := engine.KeyShare(1, 1, 3)
	require.NoError(t, err)

	warnings := logs.FilterMessage("threshold policy warning")
	require.Equal(t, 2, warnings.Len())
	assert.Equal(t, StageKeyShare, warnings.All()[0].ContextMap()["stage"])

	require.Len(t, handler.keygen, 1)
	meta := handler.keygen[0].Metadata
	assert.Equal(t, SecurityLevelLow, meta["security_level"])
	assert.Len(t, meta["warnings"], 2)
	assert.Equal(t, 2, meta["fault_tolerance"])
	assert.Contains(t, meta["availability_risk"], "medium")

	_, err = engine.KeyShare(1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, logs.FilterMessage("threshold policy warning").Len(), "2-of-3 is within policy")
}
