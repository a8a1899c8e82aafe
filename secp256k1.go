package tss

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"runtime"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/canopy-network/canopy/lib/tss/logging"
)

// Secp256k1Curve implements the Curve interface for secp256k1. The
// secret sharing engine uses it for the companion ECDSA setup, where
// shares live in the secp256k1 scalar field.
type Secp256k1Curve struct{}

// NewSecp256k1Curve creates a new secp256k1 curve instance
func NewSecp256k1Curve() *Secp256k1Curve {
	return &Secp256k1Curve{}
}

func (c *Secp256k1Curve) Name() string    { return "secp256k1" }
func (c *Secp256k1Curve) ScalarSize() int { return 32 }
func (c *Secp256k1Curve) PointSize() int  { return 33 } // Compressed

// Order returns a copy of the secp256k1 group order n.
func (c *Secp256k1Curve) Order() *big.Int {
	return new(big.Int).Set(btcec.S256().Params().N)
}

// ScalarFromBytes parses a canonical 32-byte big-endian scalar.
func (c *Secp256k1Curve) ScalarFromBytes(data []byte) (Scalar, error) {
	if len(data) != 32 {
		return nil, ErrInvalidScalarLength
	}

	scalar := new(btcec.ModNScalar)
	if overflow := scalar.SetBytes((*[32]byte)(data)); overflow != 0 {
		return nil, ErrInvalidScalar
	}

	return &Secp256k1Scalar{inner: scalar}, nil
}

// ScalarFromBigEndian is ScalarFromBytes; secp256k1 scalars are big-endian natively.
func (c *Secp256k1Curve) ScalarFromBigEndian(data []byte) (Scalar, error) {
	return c.ScalarFromBytes(data)
}

// ScalarFromUniformBytes reduces 32 to 64 big-endian bytes modulo n.
func (c *Secp256k1Curve) ScalarFromUniformBytes(data []byte) (Scalar, error) {
	if len(data) < 32 || len(data) > 64 {
		return nil, fmt.Errorf("need 32 to 64 bytes for uniform scalar generation, got %d", len(data))
	}

	reduced := new(big.Int).SetBytes(data)
	reduced.Mod(reduced, btcec.S256().Params().N)

	var buf [32]byte
	reduced.FillBytes(buf[:])
	defer ZeroizeBytes(buf[:])

	scalar := new(btcec.ModNScalar)
	scalar.SetBytes(&buf)
	return &Secp256k1Scalar{inner: scalar}, nil
}

func (c *Secp256k1Curve) ScalarRandom(r io.Reader) (Scalar, error) {
	for {
		bytes, err := SecureRandom(r, 32)
		if err != nil {
			return nil, err
		}

		scalar := new(btcec.ModNScalar)
		overflow := scalar.SetBytes((*[32]byte)(bytes))
		ZeroizeBytes(bytes)
		if overflow == 0 {
			return &Secp256k1Scalar{inner: scalar}, nil
		}
		// If overflow, try again with new random bytes
	}
}

func (c *Secp256k1Curve) ScalarZero() Scalar {
	return &Secp256k1Scalar{inner: new(btcec.ModNScalar)}
}

func (c *Secp256k1Curve) ScalarOne() Scalar {
	scalar := new(btcec.ModNScalar)
	scalar.SetInt(1)
	return &Secp256k1Scalar{inner: scalar}
}

func (c *Secp256k1Curve) PointFromBytes(data []byte) (Point, error) {
	if len(data) != 33 && len(data) != 65 {
		return nil, ErrInvalidPointLength
	}

	pubKey, err := btcec.ParsePubKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}

	return &Secp256k1Point{inner: pubKey}, nil
}

func (c *Secp256k1Curve) BasePoint() Point {
	return &Secp256k1Point{inner: btcec.Generator()}
}

func (c *Secp256k1Curve) PointIdentity() Point {
	// Point at infinity
	return &Secp256k1Point{inner: nil}
}

// Secp256k1Scalar implements the Scalar interface
type Secp256k1Scalar struct {
	inner *btcec.ModNScalar
}

func (s *Secp256k1Scalar) Bytes() []byte {
	var bytes [32]byte
	s.inner.PutBytes(&bytes)
	return bytes[:]
}

func (s *Secp256k1Scalar) BigEndianBytes() []byte {
	return s.Bytes()
}

// String never renders the value; scalars may be secret.
func (s *Secp256k1Scalar) String() string {
	return "secp256k1.Scalar(" + logging.Placeholder() + ")"
}

func (s *Secp256k1Scalar) Add(other Scalar) Scalar {
	result := new(btcec.ModNScalar)
	result.Add2(s.inner, other.(*Secp256k1Scalar).inner)
	return &Secp256k1Scalar{inner: result}
}

func (s *Secp256k1Scalar) Sub(other Scalar) Scalar {
	negated := new(btcec.ModNScalar).NegateVal(other.(*Secp256k1Scalar).inner)
	result := new(btcec.ModNScalar)
	result.Add2(s.inner, negated)
	return &Secp256k1Scalar{inner: result}
}

func (s *Secp256k1Scalar) Mul(other Scalar) Scalar {
	result := new(btcec.ModNScalar)
	result.Mul2(s.inner, other.(*Secp256k1Scalar).inner)
	return &Secp256k1Scalar{inner: result}
}

func (s *Secp256k1Scalar) Negate() Scalar {
	result := new(btcec.ModNScalar)
	result.NegateVal(s.inner)
	return &Secp256k1Scalar{inner: result}
}

// Invert uses btcec's variable-time inversion. It is only applied to
// public values (Lagrange denominators over party indices).
func (s *Secp256k1Scalar) Invert() (Scalar, error) {
	if s.IsZero() {
		return nil, ErrScalarZero
	}

	result := new(btcec.ModNScalar)
	result.InverseValNonConst(s.inner)
	return &Secp256k1Scalar{inner: result}, nil
}

func (s *Secp256k1Scalar) Equal(other Scalar) bool {
	o, ok := other.(*Secp256k1Scalar)
	if !ok || o == nil {
		return false
	}
	return s.inner.Equals(o.inner)
}

func (s *Secp256k1Scalar) IsZero() bool {
	return s.inner.IsZero()
}

func (s *Secp256k1Scalar) Zeroize() {
	s.inner.Zero()
	runtime.KeepAlive(s)
}

// Secp256k1Point implements the Point interface. A nil inner key is the
// point at infinity.
type Secp256k1Point struct {
	inner *btcec.PublicKey
}

func (p *Secp256k1Point) Bytes() []byte {
	if p.inner == nil {
		return make([]byte, 33)
	}
	return p.inner.SerializeCompressed()
}

func (p *Secp256k1Point) String() string {
	return hex.EncodeToString(p.Bytes())
}

func (p *Secp256k1Point) Add(other Point) Point {
	o := other.(*Secp256k1Point)
	if p.inner == nil {
		return o
	}
	if o.inner == nil {
		return p
	}

	var lhs, rhs, result btcec.JacobianPoint
	p.inner.AsJacobian(&lhs)
	o.inner.AsJacobian(&rhs)
	btcec.AddNonConst(&lhs, &rhs, &result)

	return fromJacobian(&result)
}

func (p *Secp256k1Point) Sub(other Point) Point {
	return p.Add(other.Negate())
}

func (p *Secp256k1Point) Mul(scalar Scalar) Point {
	if p.inner == nil {
		return p
	}

	var pointJac, result btcec.JacobianPoint
	p.inner.AsJacobian(&pointJac)
	btcec.ScalarMultNonConst(scalar.(*Secp256k1Scalar).inner, &pointJac, &result)

	return fromJacobian(&result)
}

func (p *Secp256k1Point) Negate() Point {
	if p.inner == nil {
		return p
	}

	var jac btcec.JacobianPoint
	p.inner.AsJacobian(&jac)
	jac.Y.Normalize().Negate(1).Normalize()
	jac.ToAffine()

	return &Secp256k1Point{inner: btcec.NewPublicKey(&jac.X, &jac.Y)}
}

func (p *Secp256k1Point) Equal(other Point) bool {
	o, ok := other.(*Secp256k1Point)
	if !ok || o == nil {
		return false
	}
	if p.inner == nil || o.inner == nil {
		return p.inner == nil && o.inner == nil
	}
	return p.inner.IsEqual(o.inner)
}

func (p *Secp256k1Point) IsIdentity() bool {
	return p.inner == nil
}

// fromJacobian converts a Jacobian result back to affine form, mapping
// the point at infinity to the nil representation.
func fromJacobian(result *btcec.JacobianPoint) *Secp256k1Point {
	if (result.X.IsZero() && result.Y.IsZero()) || result.Z.IsZero() {
		return &Secp256k1Point{inner: nil}
	}
	result.ToAffine()
	return &Secp256k1Point{inner: btcec.NewPublicKey(&result.X, &result.Y)}
}
