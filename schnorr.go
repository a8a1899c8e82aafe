package tss

import (
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"
)

const schnorrDomain = "TSS_EDDSA_KEYGEN_POK_v1"

// SchnorrProof is a non-interactive proof of knowledge of the discrete
// log of a party's public point. KeyCombine rejects contributions whose
// proof fails, which rules out rogue public points chosen to cancel the
// other parties' contributions.
type SchnorrProof struct {
	Challenge Scalar
	Response  Scalar
}

// NewSchnorrProof proves knowledge of secret for publicKey = secret*B,
// bound to the prover's index.
func NewSchnorrProof(curve Curve, rand io.Reader, index PartyIndex, secret Scalar, publicKey Point) (*SchnorrProof, error) {
	nonce, err := curve.ScalarRandom(rand)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	defer nonce.Zeroize()

	commitment := curve.BasePoint().Mul(nonce)

	challenge, err := computeSchnorrChallenge(curve, index, publicKey, commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to compute challenge: %w", err)
	}

	// s = r + c*x
	response := nonce.Add(challenge.Mul(secret))

	return &SchnorrProof{
		Challenge: challenge,
		Response:  response,
	}, nil
}

// Verify verifies a Schnorr proof
func (sp *SchnorrProof) Verify(curve Curve, index PartyIndex, publicKey Point) bool {
	if sp == nil || sp.Challenge == nil || sp.Response == nil || publicKey == nil {
		return false
	}

	// R' = s*B - c*X
	commitment := curve.BasePoint().Mul(sp.Response).Sub(publicKey.Mul(sp.Challenge))

	expectedChallenge, err := computeSchnorrChallenge(curve, index, publicKey, commitment)
	if err != nil {
		return false
	}

	return sp.Challenge.Equal(expectedChallenge)
}

func computeSchnorrChallenge(curve Curve, index PartyIndex, publicKey, commitment Point) (Scalar, error) {
	hasher := sha512.New()
	hasher.Write([]byte(schnorrDomain))
	hasher.Write([]byte(curve.Name()))

	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(index))
	hasher.Write(idx[:])

	hasher.Write(commitment.Bytes())
	hasher.Write(publicKey.Bytes())

	challenge, err := curve.ScalarFromUniformBytes(hasher.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to convert challenge bytes to scalar: %w", err)
	}
	return challenge, nil
}
