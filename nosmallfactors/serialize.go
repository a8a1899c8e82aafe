package nosmallfactors

import (
	"encoding/hex"
	"math/big"
	"strings"
)

// SerializedProof is the wire form of a Proof: each field is a
// big-endian hex string, negative values prefixed with "-".
type SerializedProof struct {
	P   string `json:"P"`
	Q   string `json:"Q"`
	A   string `json:"A"`
	B   string `json:"B"`
	T   string `json:"T"`
	Rho string `json:"rho"`
	Z1  string `json:"z1"`
	Z2  string `json:"z2"`
	W1  string `json:"w1"`
	W2  string `json:"w2"`
	V   string `json:"v"`
}

func (pr *Proof) fields() []*big.Int {
	return []*big.Int{pr.P, pr.Q, pr.A, pr.B, pr.T, pr.Rho, pr.Z1, pr.Z2, pr.W1, pr.W2, pr.V}
}

func (sp *SerializedProof) fields() []*string {
	return []*string{&sp.P, &sp.Q, &sp.A, &sp.B, &sp.T, &sp.Rho, &sp.Z1, &sp.Z2, &sp.W1, &sp.W2, &sp.V}
}

// Serialize encodes the proof.
func (pr *Proof) Serialize() (*SerializedProof, error) {
	if reason := pr.checkPresent(); reason != "" {
		return nil, errorf("Serialize", ErrMalformedProof, "%s", reason)
	}
	out := &SerializedProof{}
	dst := out.fields()
	for i, v := range pr.fields() {
		*dst[i] = encodeSigned(v)
	}
	return out, nil
}

// Deserialize decodes a proof. Empty or non-hex fields are rejected.
func (sp *SerializedProof) Deserialize() (*Proof, error) {
	if sp == nil {
		return nil, errorf("Deserialize", ErrMalformedProof, "nil proof")
	}
	out := &Proof{}
	dst := []**big.Int{&out.P, &out.Q, &out.A, &out.B, &out.T, &out.Rho, &out.Z1, &out.Z2, &out.W1, &out.W2, &out.V}
	for i, s := range sp.fields() {
		v, err := decodeSigned(*s)
		if err != nil {
			return nil, errorf("Deserialize", ErrMalformedProof, "field %d: %v", i, err)
		}
		*dst[i] = v
	}
	return out, nil
}

func (pr *Proof) checkPresent() string {
	if pr == nil {
		return "nil proof"
	}
	for _, v := range pr.fields() {
		if v == nil {
			return "proof field missing"
		}
	}
	return ""
}

func encodeSigned(v *big.Int) string {
	mag := hex.EncodeToString(new(big.Int).Abs(v).Bytes())
	if mag == "" {
		mag = "00"
	}
	if v.Sign() < 0 {
		return "-" + mag
	}
	return mag
}

func decodeSigned(s string) (*big.Int, error) {
	neg := strings.HasPrefix(s, "-")
	mag, err := hex.DecodeString(strings.TrimPrefix(s, "-"))
	if err != nil {
		return nil, err
	}
	if len(mag) == 0 {
		return nil, hex.ErrLength
	}
	v := new(big.Int).SetBytes(mag)
	if neg {
		v.Neg(v)
	}
	return v, nil
}
