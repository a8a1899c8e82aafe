package nosmallfactors

import (
	"crypto/rand"
	"io"
	"math/big"
)

// maxSampleAttempts bounds rejection sampling; half of all candidates
// succeed when n0 is not a perfect square.
const maxSampleAttempts = 256

// AuxParams are the verifier's auxiliary modulus and generators.
type AuxParams struct {
	NHat *big.Int
	S    *big.Int
	T    *big.Int
}

// SampleW draws w in [1, n0) with Jacobi symbol -1 modulo n0.
func SampleW(r io.Reader, n0 *big.Int) (*big.Int, error) {
	if n0 == nil || n0.Cmp(one) <= 0 || n0.Bit(0) == 0 {
		return nil, errorf("SampleW", ErrInvalidParameter, "n0 must be an odd integer greater than one")
	}
	if r == nil {
		r = rand.Reader
	}
	for i := 0; i < maxSampleAttempts; i++ {
		w, err := rand.Int(r, n0)
		if err != nil {
			return nil, errorf("SampleW", ErrInvalidParameter, "%v", err)
		}
		if w.Sign() > 0 && big.Jacobi(w, n0) == -1 {
			return w, nil
		}
	}
	return nil, errorf("SampleW", ErrInvalidParameter, "no w with Jacobi symbol -1 found; is n0 a square?")
}

// NewAuxParams derives (nHat, s, t) from the primes of nHat: t = f^2
// and s = t^lambda for random f and lambda. The primes are not retained.
func NewAuxParams(r io.Reader, p, q *big.Int) (*AuxParams, error) {
	if p == nil || q == nil || p.Cmp(big.NewInt(2)) <= 0 || q.Cmp(big.NewInt(2)) <= 0 || p.Cmp(q) == 0 {
		return nil, errorf("NewAuxParams", ErrInvalidParameter, "need two distinct odd primes")
	}
	if r == nil {
		r = rand.Reader
	}

	nHat := new(big.Int).Mul(p, q)
	phi := new(big.Int).Mul(new(big.Int).Sub(p, one), new(big.Int).Sub(q, one))
	defer wipe(phi)

	for i := 0; i < maxSampleAttempts; i++ {
		f, err := rand.Int(r, nHat)
		if err != nil {
			return nil, errorf("NewAuxParams", ErrInvalidParameter, "%v", err)
		}
		if !inUnitRange(f, nHat) {
			continue
		}
		t := new(big.Int).Exp(f, big.NewInt(2), nHat)
		wipe(f)
		if t.Cmp(one) == 0 {
			continue
		}

		lambda, err := rand.Int(r, phi)
		if err != nil {
			return nil, errorf("NewAuxParams", ErrInvalidParameter, "%v", err)
		}
		if lambda.Sign() == 0 {
			continue
		}
		s := new(big.Int).Exp(t, lambda, nHat)
		wipe(lambda)
		if s.Cmp(one) == 0 {
			continue
		}
		return &AuxParams{NHat: nHat, S: s, T: t}, nil
	}
	return nil, errorf("NewAuxParams", ErrInvalidParameter, "failed to sample generators")
}

// GenerateAuxParams draws two random primes of the given size and
// derives auxiliary parameters from them.
func GenerateAuxParams(r io.Reader, primeBits int) (*AuxParams, error) {
	if primeBits < 16 {
		return nil, errorf("GenerateAuxParams", ErrInvalidParameter, "prime size %d too small", primeBits)
	}
	if r == nil {
		r = rand.Reader
	}
	p, err := rand.Prime(r, primeBits)
	if err != nil {
		return nil, errorf("GenerateAuxParams", ErrInvalidParameter, "%v", err)
	}
	q, err := rand.Prime(r, primeBits)
	if err != nil {
		return nil, errorf("GenerateAuxParams", ErrInvalidParameter, "%v", err)
	}
	for p.Cmp(q) == 0 {
		if q, err = rand.Prime(r, primeBits); err != nil {
			return nil, errorf("GenerateAuxParams", ErrInvalidParameter, "%v", err)
		}
	}
	defer wipe(p, q)
	return NewAuxParams(r, p, q)
}
