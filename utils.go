package tss

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"io"
	"runtime"
	"sort"

	"golang.org/x/crypto/hkdf"
)

// PartyIndex identifies a participant. Indices are 1-based.
type PartyIndex uint32

// ToScalar converts the index to a field element. The same value is used
// as the Shamir x-coordinate on every curve.
func (pi PartyIndex) ToScalar(curve Curve) (Scalar, error) {
	bytes := make([]byte, curve.ScalarSize())
	binary.BigEndian.PutUint32(bytes[len(bytes)-4:], uint32(pi))
	return curve.ScalarFromBigEndian(bytes)
}

// Valid reports whether the index lies in [1, numShares].
func (pi PartyIndex) Valid(numShares int) bool {
	return pi >= 1 && int64(pi) <= int64(numShares)
}

// sortedIndices returns the keys of m in ascending order.
func sortedIndices[V any](m map[PartyIndex]V) []PartyIndex {
	indices := make([]PartyIndex, 0, len(m))
	for idx := range m {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}

// sortedParticipants returns an ascending copy of indices.
func sortedParticipants(indices []PartyIndex) []PartyIndex {
	out := append([]PartyIndex(nil), indices...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// hashToScalar computes SHA-512 over the concatenation of data and
// reduces the 64-byte digest modulo the Ed25519 group order, exactly as
// RFC 8032 does for nonces and challenges.
func hashToScalar(curve *Ed25519Curve, data ...[]byte) (Scalar, error) {
	hasher := sha512.New()
	for _, d := range data {
		hasher.Write(d)
	}
	digest := hasher.Sum(nil)
	defer ZeroizeBytes(digest)
	return curve.ScalarFromUniformBytes(digest)
}

// DeterministicReader returns an HKDF-SHA256 byte stream. Feeding it to
// WithRandom replays a ceremony bit for bit, which is how test vectors
// are produced. It must never be used with low-entropy input keying
// material in production.
func DeterministicReader(ikm, salt, info []byte) io.Reader {
	return hkdf.New(sha256.New, ikm, salt, info)
}

// ZeroizeBytes securely clears a byte slice
func ZeroizeBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
	runtime.KeepAlive(data)
}

// ZeroizeScalars clears every non-nil scalar in the map.
func ZeroizeScalars(scalars map[PartyIndex]Scalar) {
	for _, scalar := range scalars {
		if scalar != nil {
			scalar.Zeroize()
		}
	}
}
