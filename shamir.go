package tss

import (
	"crypto/rand"
	"fmt"
	"io"
)

// MaxShares bounds n so that share indices fit the wire formats used by
// the wallet platform.
const MaxShares = 255

// SecretSharing implements (t, n) Shamir secret sharing over the scalar
// field of a curve. It holds no per-secret state and is safe for
// concurrent use.
type SecretSharing struct {
	curve Curve
	rand  io.Reader
}

// NewSecretSharing creates a secret sharing engine. A nil reader selects
// crypto/rand.
func NewSecretSharing(curve Curve, r io.Reader) *SecretSharing {
	if r == nil {
		r = rand.Reader
	}
	return &SecretSharing{curve: curve, rand: r}
}

// Curve returns the curve whose order defines the sharing field.
func (sss *SecretSharing) Curve() Curve {
	return sss.curve
}

func validateSharingParams(numShares, threshold int) error {
	if threshold < 1 {
		return ErrInvalidThreshold.WithDetails("threshold must be positive, got %d", threshold)
	}
	if numShares < threshold {
		return ErrInvalidThreshold.WithDetails("number of shares %d is below threshold %d", numShares, threshold)
	}
	if numShares > MaxShares {
		return ErrInvalidThreshold.WithDetails("number of shares %d exceeds %d", numShares, MaxShares)
	}
	return nil
}

// Deal shares secret among parties 1..numShares and returns the shares
// together with a Feldman commitment to the sharing polynomial. The
// caller's secret is left untouched; the polynomial is wiped.
func (sss *SecretSharing) Deal(secret Scalar, numShares, threshold int) (map[PartyIndex]Scalar, *PolynomialCommitment, error) {
	if secret == nil {
		return nil, nil, ErrInvalidShare.WithDetails("secret cannot be nil")
	}
	if err := validateSharingParams(numShares, threshold); err != nil {
		return nil, nil, err
	}

	constant := secret.Add(sss.curve.ScalarZero())
	polynomial, err := NewRandomPolynomial(sss.curve, sss.rand, threshold-1, constant)
	if err != nil {
		return nil, nil, ErrRandomnessGeneration.WithCause(err)
	}
	defer polynomial.Zeroize()

	shares := make(map[PartyIndex]Scalar, numShares)
	for i := 1; i <= numShares; i++ {
		index := PartyIndex(i)
		x, err := index.ToScalar(sss.curve)
		if err != nil {
			return nil, nil, ErrShareGenerationFailed.WithCause(err)
		}
		shares[index] = polynomial.Evaluate(x)
	}

	return shares, polynomial.Commit(), nil
}

// Split produces numShares fixed-width big-endian shares of secret such
// that any threshold of them reconstruct it.
func (sss *SecretSharing) Split(secret Scalar, numShares, threshold int) (map[PartyIndex][]byte, error) {
	shares, _, err := sss.Deal(secret, numShares, threshold)
	if err != nil {
		return nil, err
	}
	defer ZeroizeScalars(shares)

	encoded := make(map[PartyIndex][]byte, len(shares))
	for index, share := range shares {
		encoded[index] = share.BigEndianBytes()
	}
	return encoded, nil
}

// Combine reconstructs the secret from encoded shares. See CombineScalars.
func (sss *SecretSharing) Combine(shares map[PartyIndex][]byte, threshold int) (Scalar, error) {
	decoded := make(map[PartyIndex]Scalar, len(shares))
	defer ZeroizeScalars(decoded)

	for index, buf := range shares {
		if len(buf) != sss.curve.ScalarSize() {
			return nil, ErrInvalidShare.WithContext("index", index).
				WithDetails("share length %d, want %d", len(buf), sss.curve.ScalarSize())
		}
		value, err := sss.curve.ScalarFromBigEndian(buf)
		if err != nil {
			return nil, ErrInvalidShare.WithContext("index", index).WithCause(err)
		}
		decoded[index] = value
	}

	return sss.CombineScalars(decoded, threshold)
}

// CombineScalars interpolates the sharing polynomial at zero. The first
// threshold shares by index define the polynomial; every additional
// share must lie on it, otherwise ErrInconsistentShares is returned.
func (sss *SecretSharing) CombineScalars(shares map[PartyIndex]Scalar, threshold int) (Scalar, error) {
	if threshold < 1 {
		return nil, ErrInvalidThreshold.WithDetails("threshold must be positive, got %d", threshold)
	}
	if len(shares) < threshold {
		return nil, ErrInsufficientShares.
			WithContext("threshold", threshold).
			WithContext("received", len(shares))
	}

	indices := sortedIndices(shares)
	for _, index := range indices {
		if index == 0 {
			return nil, ErrInvalidIndex.WithDetails("share index cannot be zero")
		}
		if shares[index] == nil {
			return nil, ErrInvalidShare.WithContext("index", index)
		}
	}

	base := indices[:threshold]
	secret, err := sss.interpolate(shares, base, sss.curve.ScalarZero())
	if err != nil {
		return nil, err
	}

	for _, extra := range indices[threshold:] {
		x, err := extra.ToScalar(sss.curve)
		if err != nil {
			return nil, ErrInvalidIndex.WithCause(err)
		}
		expected, err := sss.interpolate(shares, base, x)
		if err != nil {
			return nil, err
		}
		if !expected.Equal(shares[extra]) {
			secret.Zeroize()
			return nil, ErrInconsistentShares.WithContext("index", extra)
		}
	}

	return secret, nil
}

// interpolate evaluates at x the polynomial through the shares at base.
func (sss *SecretSharing) interpolate(shares map[PartyIndex]Scalar, base []PartyIndex, x Scalar) (Scalar, error) {
	xs := make([]Scalar, len(base))
	for i, index := range base {
		xi, err := index.ToScalar(sss.curve)
		if err != nil {
			return nil, ErrInvalidIndex.WithCause(err)
		}
		xs[i] = xi
	}

	result := sss.curve.ScalarZero()
	for i := range base {
		numerator := sss.curve.ScalarOne()
		denominator := sss.curve.ScalarOne()
		for j := range base {
			if i == j {
				continue
			}
			numerator = numerator.Mul(x.Sub(xs[j]))
			denominator = denominator.Mul(xs[i].Sub(xs[j]))
		}

		denomInv, err := denominator.Invert()
		if err != nil {
			return nil, fmt.Errorf("failed to invert denominator: %w", err)
		}
		result = result.Add(shares[base[i]].Mul(numerator.Mul(denomInv)))
	}

	return result, nil
}
