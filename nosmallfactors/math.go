package nosmallfactors

import (
	"errors"
	"math/big"
)

var errNotInvertible = errors.New("base not invertible modulo nHat")

// Isqrt returns the floor square root of n by Newton iteration from an
// upper bound, stopping at the first non-decreasing step.
func Isqrt(n *big.Int) (*big.Int, error) {
	if n == nil || n.Sign() < 0 {
		return nil, errorf("Isqrt", ErrInvalidParameter, "square root of a negative number")
	}
	if n.Cmp(big.NewInt(2)) < 0 {
		return new(big.Int).Set(n), nil
	}

	x := new(big.Int).Lsh(one, uint(n.BitLen()+1)/2)
	y := new(big.Int)
	for {
		y.Quo(n, x)
		y.Add(y, x)
		y.Rsh(y, 1)
		if y.Cmp(x) >= 0 {
			return x, nil
		}
		x.Set(y)
	}
}

// modPow computes base^exp mod m. Negative exponents use the modular
// inverse of base.
func modPow(base, exp, m *big.Int) (*big.Int, error) {
	z := new(big.Int).Exp(base, exp, m)
	if z == nil {
		return nil, errNotInvertible
	}
	return z, nil
}

// pedersen computes g^a * h^b mod m.
func pedersen(g, a, h, b, m *big.Int) (*big.Int, error) {
	ga, err := modPow(g, a, m)
	if err != nil {
		return nil, err
	}
	hb, err := modPow(h, b, m)
	if err != nil {
		return nil, err
	}
	ga.Mul(ga, hb)
	return ga.Mod(ga, m), nil
}

// wipe overwrites the limbs of each value before resetting it.
func wipe(values ...*big.Int) {
	for _, v := range values {
		if v == nil {
			continue
		}
		clear(v.Bits())
		v.SetInt64(0)
	}
}

// inUnitRange reports 0 < v < m and gcd(v, m) == 1.
func inUnitRange(v, m *big.Int) bool {
	if v.Sign() <= 0 || v.Cmp(m) >= 0 {
		return false
	}
	return new(big.Int).GCD(nil, nil, v, m).Cmp(one) == 0
}

// checkStatement validates the public inputs shared by prover and
// verifier. It returns an empty string when they are well formed.
func checkStatement(n0, w, nHat, s, t *big.Int) string {
	switch {
	case n0 == nil || w == nil || nHat == nil || s == nil || t == nil:
		return "missing public input"
	case n0.Cmp(one) <= 0 || n0.Bit(0) == 0:
		return "n0 must be an odd integer greater than one"
	case nHat.Cmp(one) <= 0:
		return "nHat must be greater than one"
	case !inUnitRange(s, nHat):
		return "s must be a unit modulo nHat"
	case !inUnitRange(t, nHat):
		return "t must be a unit modulo nHat"
	case big.Jacobi(w, n0) != -1:
		return "w must have Jacobi symbol -1 modulo n0"
	}
	return ""
}

// check validates the shape of a received proof.
func (pr *Proof) check(nHat *big.Int) string {
	if reason := pr.checkPresent(); reason != "" {
		return reason
	}
	for _, v := range []*big.Int{pr.P, pr.Q, pr.A, pr.B, pr.T} {
		if v.Sign() <= 0 || v.Cmp(nHat) >= 0 {
			return "commitment outside [1, nHat)"
		}
	}
	return ""
}
