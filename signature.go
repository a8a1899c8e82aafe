package tss

import (
	"time"

	"go.uber.org/zap"

	"github.com/canopy-network/canopy/lib/tss/logging"
)

// SignatureSize is the length of an encoded signature, R || sigma.
const SignatureSize = 64

// Signature is a combined threshold signature. Its encoding is the
// RFC 8032 Ed25519 layout, so standard verifiers accept it under
// PublicPoint.
type Signature struct {
	PublicPoint Point
	R           Point
	Sigma       Scalar
}

// Bytes returns R || sigma with sigma little-endian.
func (s *Signature) Bytes() []byte {
	out := make([]byte, 0, SignatureSize)
	out = append(out, s.R.Bytes()...)
	return append(out, s.Sigma.Bytes()...)
}

// ParseSignature decodes a 32-byte public key and a 64-byte signature.
// Non-canonical sigma values and invalid point encodings are rejected.
func ParseSignature(publicKey, sig []byte) (*Signature, error) {
	curve := NewEd25519Curve()
	if len(publicKey) != curve.PointSize() {
		return nil, ErrInvalidSignature.WithDetails("public key length %d, want %d", len(publicKey), curve.PointSize())
	}
	if len(sig) != SignatureSize {
		return nil, ErrInvalidSignature.WithDetails("signature length %d, want %d", len(sig), SignatureSize)
	}
	y, err := curve.PointFromBytes(publicKey)
	if err != nil {
		return nil, ErrInvalidSignature.WithCause(err)
	}
	R, err := curve.PointFromBytes(sig[:32])
	if err != nil {
		return nil, ErrInvalidSignature.WithCause(err)
	}
	sigma, err := curve.ScalarFromBytes(sig[32:])
	if err != nil {
		return nil, ErrInvalidSignature.WithCause(err)
	}
	return &Signature{PublicPoint: y, R: R, Sigma: sigma}, nil
}

// challenge computes k = SHA-512(R || y || message) mod L.
func challenge(curve *Ed25519Curve, R, y Point, message []byte) (Scalar, error) {
	return hashToScalar(curve, R.Bytes(), y.Bytes(), message)
}

// Verify checks sigma*B == R + k*y. It returns false for any nil,
// zero-value or foreign-curve component.
func Verify(message []byte, sig *Signature) bool {
	if sig == nil || sig.PublicPoint == nil || sig.R == nil || sig.Sigma == nil {
		return false
	}
	y, ok := sig.PublicPoint.(*Ed25519Point)
	if !ok || y == nil || y.inner == nil {
		return false
	}
	R, ok := sig.R.(*Ed25519Point)
	if !ok || R == nil || R.inner == nil {
		return false
	}
	sigma, ok := sig.Sigma.(*Ed25519Scalar)
	if !ok || sigma == nil || sigma.inner == nil {
		return false
	}

	curve := NewEd25519Curve()
	k, err := challenge(curve, R, y, message)
	if err != nil {
		return false
	}

	lhs := curve.BasePoint().Mul(sigma)
	rhs := R.Add(y.Mul(k))
	return lhs.Equal(rhs)
}

// Verify checks sig like the package-level Verify and reports failures
// to the engine's logger, metrics and audit handler.
func (e *Engine) Verify(message []byte, sig *Signature) bool {
	start := time.Now()
	if !Verify(message, sig) {
		e.logger.Warn("signature rejected", logging.Stage(StageVerify))
		e.metrics.StageFailed(StageVerify, ErrSignatureVerificationFailed.Code)
		e.audit.OnVerificationFailure(NewAuditEventBuilder(AuditEventVerificationFailure, ReasonSecurityViolation).
			WithCurve(e.curve.Name()).
			WithError(ErrSignatureVerificationFailed).
			Build())
		return false
	}
	e.logger.Debug("signature verified", logging.Stage(StageVerify), zap.Duration("elapsed", time.Since(start)))
	e.metrics.StageCompleted(StageVerify)
	return true
}
