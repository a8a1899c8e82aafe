// Package nosmallfactors implements the Fiat-Shamir "no small factors"
// proof of CGGMP20 (eprint 2020/492, section B.4): a prover who knows
// primes p and q convinces a verifier that n0 = p*q has no factor
// smaller than about 2^ell, using Pedersen-style commitments under an
// auxiliary modulus nHat with generators s and t.
//
// Basic usage:
//
//	aux, err := nosmallfactors.GenerateAuxParams(rand.Reader, 1024)
//	w, err := nosmallfactors.SampleW(rand.Reader, n0)
//	proto := nosmallfactors.New()
//	proof, err := proto.Prove(p, q, w, aux.NHat, aux.S, aux.T)
//	...
//	err = proto.Verify(n0, w, aux.NHat, aux.S, aux.T, proof)
//
// Verify returns an error wrapping ErrProofVerificationFailed when the
// proof is rejected. There is no boolean result to ignore.
package nosmallfactors
