package tss

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	engine, err := NewEngine(opts...)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return engine
}

// runKeygen performs KeyShare for every party and KeyCombine for every
// party, delivering each message to its recipient.
func runKeygen(t *testing.T, engine *Engine, threshold, numShares int) map[PartyIndex]Players {
	t.Helper()

	inbox := make(map[PartyIndex][]KeyShareMessage)
	for i := 1; i <= numShares; i++ {
		out, err := engine.KeyShare(PartyIndex(i), threshold, numShares)
		if err != nil {
			t.Fatalf("KeyShare failed for party %d: %v", i, err)
		}
		if len(out) != numShares {
			t.Fatalf("KeyShare returned %d messages, want %d", len(out), numShares)
		}
		for recipient, msg := range out {
			inbox[recipient] = append(inbox[recipient], msg)
		}
	}

	result := make(map[PartyIndex]Players, numShares)
	for i := 1; i <= numShares; i++ {
		players, err := engine.KeyCombine(inbox[PartyIndex(i)])
		if err != nil {
			t.Fatalf("KeyCombine failed for party %d: %v", i, err)
		}
		result[PartyIndex(i)] = players
	}
	return result
}

// runNonces performs SignShare for every signer and returns each
// signer's collected nonce messages from the whole signer set.
func runNonces(t *testing.T, engine *Engine, players map[PartyIndex]Players, signers []PartyIndex, message []byte) map[PartyIndex][]NonceMessage {
	t.Helper()

	inbox := make(map[PartyIndex][]NonceMessage, len(signers))
	for _, i := range signers {
		out, err := engine.SignShare(message, players[i])
		if err != nil {
			t.Fatalf("SignShare failed for party %d: %v", i, err)
		}
		for _, j := range signers {
			inbox[j] = append(inbox[j], out[j])
		}
	}
	return inbox
}

func runSigning(t *testing.T, engine *Engine, players map[PartyIndex]Players, signers []PartyIndex, message []byte) []*PartialSignature {
	t.Helper()

	inbox := runNonces(t, engine, players, signers, message)
	partials := make([]*PartialSignature, 0, len(signers))
	for _, i := range signers {
		partial, err := engine.Sign(message, inbox[i])
		if err != nil {
			t.Fatalf("Sign failed for party %d: %v", i, err)
		}
		partials = append(partials, partial)
	}
	return partials
}

func TestThresholdEdDSARoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	message := []byte("test-message")

	players := runKeygen(t, engine, 3, 5)

	var publicKey Point
	for i, p := range players {
		local, err := p.Local()
		if err != nil {
			t.Fatalf("party %d has no local player: %v", i, err)
		}
		if local.Index != i {
			t.Fatalf("party %d local index is %d", i, local.Index)
		}
		if publicKey == nil {
			publicKey = local.PublicPoint
		} else if !publicKey.Equal(local.PublicPoint) {
			t.Fatalf("party %d disagrees on the public key", i)
		}
		if got := len(p.Peers()); got != 4 {
			t.Fatalf("party %d has %d peer stubs, want 4", i, got)
		}
	}

	subsets := [][]PartyIndex{{1, 2, 3}, {1, 3, 5}, {2, 4, 5}, {3, 4, 5}}
	for _, signers := range subsets {
		partials := runSigning(t, engine, players, signers, message)

		sig, err := engine.SignCombine(partials)
		if err != nil {
			t.Fatalf("SignCombine failed for signers %v: %v", signers, err)
		}
		if !sig.PublicPoint.Equal(publicKey) {
			t.Fatalf("signature public key mismatch for signers %v", signers)
		}
		if !Verify(message, sig) {
			t.Fatalf("signature from signers %v did not verify", signers)
		}
		if !engine.Verify(message, sig) {
			t.Fatalf("engine rejected signature from signers %v", signers)
		}
		if Verify([]byte("other-message"), sig) {
			t.Fatalf("signature verified under a different message")
		}
	}
}

func TestCombinedSignatureIsStandardEd25519(t *testing.T) {
	engine := newTestEngine(t)
	message := []byte("interop")

	players := runKeygen(t, engine, 2, 3)
	sig, err := engine.SignCombine(runSigning(t, engine, players, []PartyIndex{1, 3}, message))
	require.NoError(t, err)

	pub := ed25519.PublicKey(sig.PublicPoint.Bytes())
	require.True(t, ed25519.Verify(pub, message, sig.Bytes()))

	tampered := sig.Bytes()
	tampered[40] ^= 0x01
	require.False(t, ed25519.Verify(pub, message, tampered))
}

func TestInsufficientSigners(t *testing.T) {
	engine := newTestEngine(t)
	message := []byte("test-message")
	players := runKeygen(t, engine, 3, 5)
	signers := []PartyIndex{1, 2}

	t.Run("Sign", func(t *testing.T) {
		inbox := runNonces(t, engine, players, signers, message)
		_, err := engine.Sign(message, inbox[1])
		if !errors.Is(err, ErrInsufficientSigners) {
			t.Fatalf("expected ErrInsufficientSigners, got %v", err)
		}
	})

	t.Run("SignCombine", func(t *testing.T) {
		partials := runSigning(t, engine, players, []PartyIndex{1, 2, 3}, message)
		for _, p := range partials {
			if p.Threshold != 3 {
				t.Fatalf("partial %d carries threshold %d, want 3", p.Index, p.Threshold)
			}
		}
		_, err := engine.SignCombine(partials[:2])
		if !errors.Is(err, ErrInsufficientSigners) {
			t.Fatalf("expected ErrInsufficientSigners, got %v", err)
		}
	})

	t.Run("ThresholdMismatch", func(t *testing.T) {
		partials := runSigning(t, engine, players, []PartyIndex{1, 2, 3}, message)
		lowered := *partials[2]
		lowered.Threshold = 2
		_, err := engine.SignCombine([]*PartialSignature{partials[0], partials[1], &lowered})
		if !errors.Is(err, ErrInconsistentShares) {
			t.Fatalf("expected ErrInconsistentShares, got %v", err)
		}
	})

	t.Run("NoPartials", func(t *testing.T) {
		_, err := engine.SignCombine(nil)
		if !errors.Is(err, ErrInsufficientSigners) {
			t.Fatalf("expected ErrInsufficientSigners, got %v", err)
		}
	})
}

func TestCorruptedGammaFailsVerification(t *testing.T) {
	engine := newTestEngine(t)
	message := []byte("test-message")
	players := runKeygen(t, engine, 3, 5)

	for b := 0; b < 32; b += 7 {
		partials := runSigning(t, engine, players, []PartyIndex{1, 2, 4}, message)

		raw := partials[1].Gamma.Bytes()
		raw[b] ^= 0x01
		corrupted, err := engine.Curve().ScalarFromUniformBytes(raw)
		require.NoError(t, err)
		partials[1].Gamma = corrupted

		sig, err := engine.SignCombine(partials)
		if err != nil {
			continue
		}
		if Verify(message, sig) {
			t.Fatalf("signature verified after corrupting byte %d of gamma", b)
		}
	}
}

func TestExtraPartialsMustAgree(t *testing.T) {
	engine := newTestEngine(t)
	message := []byte("test-message")
	players := runKeygen(t, engine, 2, 4)
	signers := []PartyIndex{1, 2, 3, 4}

	partials := runSigning(t, engine, players, signers, message)
	sig, err := engine.SignCombine(partials)
	require.NoError(t, err)
	require.True(t, Verify(message, sig))

	partials = runSigning(t, engine, players, signers, message)
	partials[3].Gamma = partials[3].Gamma.Add(engine.Curve().ScalarOne())
	_, err = engine.SignCombine(partials)
	require.ErrorIs(t, err, ErrInconsistentShares)
}

func TestSignCombineRejectsMismatchedPartials(t *testing.T) {
	engine := newTestEngine(t)
	message := []byte("test-message")
	players := runKeygen(t, engine, 2, 3)

	first := runSigning(t, engine, players, []PartyIndex{1, 2}, message)
	second := runSigning(t, engine, players, []PartyIndex{1, 2}, message)

	_, err := engine.SignCombine([]*PartialSignature{first[0], second[1]})
	require.ErrorIs(t, err, ErrInconsistentShares)

	_, err = engine.SignCombine([]*PartialSignature{first[0], first[0]})
	require.ErrorIs(t, err, ErrDuplicateParticipants)

	_, err = engine.SignCombine([]*PartialSignature{first[0], nil})
	require.ErrorIs(t, err, ErrInvalidMessage)
}

func TestSameMessageUsesIndependentNonces(t *testing.T) {
	engine := newTestEngine(t)
	message := []byte("test-message")
	players := runKeygen(t, engine, 2, 3)
	signers := []PartyIndex{2, 3}

	first, err := engine.SignCombine(runSigning(t, engine, players, signers, message))
	require.NoError(t, err)
	second, err := engine.SignCombine(runSigning(t, engine, players, signers, message))
	require.NoError(t, err)

	require.True(t, Verify(message, first))
	require.True(t, Verify(message, second))
	if first.R.Equal(second.R) {
		t.Fatal("two signing sessions produced the same nonce commitment")
	}
	if bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatal("two signing sessions produced identical signatures")
	}
}

func TestDeterministicReaderReplaysKeygen(t *testing.T) {
	ikm := []byte("ceremony replay input keying material")

	keygen := func() Point {
		engine := newTestEngine(t, WithRandom(DeterministicReader(ikm, []byte("salt"), []byte("keygen"))))
		players := runKeygen(t, engine, 2, 3)
		local, err := players[1].Local()
		require.NoError(t, err)
		return local.PublicPoint
	}

	first := keygen()
	second := keygen()
	require.True(t, first.Equal(second), "replayed ceremony produced a different key")

	other := newTestEngine(t, WithRandom(DeterministicReader(ikm, []byte("other salt"), []byte("keygen"))))
	local, err := runKeygen(t, other, 2, 3)[1].Local()
	require.NoError(t, err)
	require.False(t, first.Equal(local.PublicPoint))
}

func TestEngineNeverLogsSecrets(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	engine := newTestEngine(t, WithLogger(zap.New(core)))
	message := []byte("test-message")

	players := runKeygen(t, engine, 2, 3)
	partials := runSigning(t, engine, players, []PartyIndex{1, 2}, message)
	sig, err := engine.SignCombine(partials)
	require.NoError(t, err)
	require.True(t, engine.Verify(message, sig))

	_, err = engine.SignCombine(partials[:1])
	require.Error(t, err)

	var secrets []string
	for _, p := range players {
		local, err := p.Local()
		require.NoError(t, err)
		secrets = append(secrets,
			hex.EncodeToString(local.Secret.Bytes()),
			hex.EncodeToString(local.Secret.BigEndianBytes()),
			hex.EncodeToString(local.Prefix.Bytes()))
	}
	for _, partial := range partials {
		secrets = append(secrets, hex.EncodeToString(partial.Gamma.Bytes()))
	}

	require.NotZero(t, logs.Len())
	require.NotZero(t, logs.FilterMessage("stage failed").Len())
	for _, entry := range logs.All() {
		line := entry.Message
		for k, v := range entry.ContextMap() {
			line += " " + k + "=" + toString(v)
		}
		for _, secret := range secrets {
			require.NotContains(t, line, secret)
		}
	}
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	default:
		return ""
	}
}

func TestNewEngineOptions(t *testing.T) {
	_, err := NewEngine(WithRandom(nil))
	require.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewEngine(WithThresholdValidator(nil))
	require.ErrorIs(t, err, ErrInvalidConfiguration)

	bad := DefaultConfig()
	bad.Threshold.MaxParties = 0
	_, err = NewEngine(WithConfig(bad))
	require.ErrorIs(t, err, ErrInvalidConfiguration)

	cfg := DefaultConfig()
	cfg.Threshold.MinThreshold = 2
	engine, err := NewEngine(WithConfig(cfg), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	_, err = engine.KeyShare(1, 1, 3)
	require.ErrorIs(t, err, ErrInvalidThreshold)
}
