// Package adapters converts combined threshold signatures into the
// encodings that external verifiers expect.
package adapters

import (
	"crypto/ed25519"
	"fmt"

	"github.com/canopy-network/canopy/lib/tss"
)

// Format identifies a signature encoding
type Format string

// FormatEd25519 is the RFC 8032 encoding: 32-byte public key and a
// 64-byte R || S signature.
const FormatEd25519 Format = "ed25519"

// Ed25519Adapter encodes tss signatures as standard Ed25519 signatures.
type Ed25519Adapter struct{}

// NewEd25519Adapter creates a new adapter
func NewEd25519Adapter() *Ed25519Adapter {
	return &Ed25519Adapter{}
}

// Format returns the encoding this adapter produces
func (a *Ed25519Adapter) Format() Format {
	return FormatEd25519
}

// PublicKey returns the aggregate key of sig in crypto/ed25519 form.
func (a *Ed25519Adapter) PublicKey(sig *tss.Signature) (ed25519.PublicKey, error) {
	if sig == nil || sig.PublicPoint == nil {
		return nil, fmt.Errorf("signature has no public key")
	}
	return ed25519.PublicKey(sig.PublicPoint.Bytes()), nil
}

// Encode returns the 64-byte RFC 8032 signature.
func (a *Ed25519Adapter) Encode(sig *tss.Signature) ([]byte, error) {
	if sig == nil || sig.R == nil || sig.Sigma == nil {
		return nil, fmt.Errorf("signature is incomplete")
	}
	return sig.Bytes(), nil
}

// Decode parses an RFC 8032 public key and signature.
func (a *Ed25519Adapter) Decode(publicKey, signature []byte) (*tss.Signature, error) {
	return tss.ParseSignature(publicKey, signature)
}

// Verify checks an encoded signature with crypto/ed25519, the way any
// third-party verifier would.
func (a *Ed25519Adapter) Verify(publicKey ed25519.PublicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}
