package nosmallfactors

import (
	"crypto/rand"
	"io"
	"math/big"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/canopy-network/canopy/lib/tss/logging"
	"github.com/canopy-network/canopy/lib/tss/metrics"
)

var one = big.NewInt(1)

// Proof carries the public commitments and responses. p, q and every
// blinding value except rho stay with the prover.
type Proof struct {
	P, Q, A, B, T *big.Int
	Rho           *big.Int
	Z1, Z2        *big.Int
	W1, W2        *big.Int
	V             *big.Int
}

// Protocol proves and verifies no-small-factors statements under fixed
// Params. It is safe for concurrent use.
type Protocol struct {
	params  Params
	rand    io.Reader
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithParams overrides DefaultParams.
func WithParams(params Params) Option {
	return func(p *Protocol) { p.params = params }
}

// WithRandom sets the source of blinding values. Defaults to crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(p *Protocol) { p.rand = r }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Protocol) { p.logger = logger }
}

// WithMetrics records prove and verify durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Protocol) { p.metrics = m }
}

// New creates a Protocol.
func New(opts ...Option) *Protocol {
	p := &Protocol{
		params: DefaultParams(),
		rand:   rand.Reader,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rand == nil {
		p.rand = rand.Reader
	}
	if p.logger == nil {
		p.logger = logging.Nop()
	}
	p.logger = p.logger.Named("nosmallfactors")
	return p
}

// Params returns the protocol parameters.
func (p *Protocol) Params() Params {
	return p.params
}

// Challenge derives e from SHAKE256(n0 || "$" || w || "$"). The first
// output byte only selects the sign; the rest is reduced modulo the
// challenge order.
func (p *Protocol) Challenge(n0, w *big.Int) *big.Int {
	order := p.params.ChallengeOrder

	h := sha3.NewShake256()
	h.Write(n0.Bytes())
	h.Write([]byte("$"))
	h.Write(w.Bytes())
	h.Write([]byte("$"))

	digest := make([]byte, 1+(order.BitLen()+7)/8)
	h.Read(digest)

	e := new(big.Int).SetBytes(digest[1:])
	e.Mod(e, order)
	if digest[0]&1 == 1 {
		e.Neg(e)
	}
	return e
}

// bounds returns sqrt(n0)*2^(ell+eps), nHat*n0*2^ell and nHat*n0*2^(ell+eps).
func (p *Protocol) bounds(n0, nHat *big.Int) (sqrtBound, rhoBound, rBound *big.Int, err error) {
	sqrtN0, err := Isqrt(n0)
	if err != nil {
		return nil, nil, nil, err
	}
	wide := p.params.Ell + p.params.Epsilon
	sqrtBound = new(big.Int).Lsh(sqrtN0, wide)

	nn := new(big.Int).Mul(nHat, n0)
	rhoBound = new(big.Int).Lsh(nn, p.params.Ell)
	rBound = new(big.Int).Lsh(nn, wide)
	return sqrtBound, rhoBound, rBound, nil
}

// randSigned draws uniformly from [-bound, bound].
func (p *Protocol) randSigned(bound *big.Int) (*big.Int, error) {
	width := new(big.Int).Lsh(bound, 1)
	width.Add(width, one)
	v, err := rand.Int(p.rand, width)
	if err != nil {
		return nil, err
	}
	return v.Sub(v, bound), nil
}

// Prove shows that n0 = p*q has no small factors. w must have Jacobi
// symbol -1 modulo n0; nHat, s and t are the verifier's auxiliary
// parameters.
func (p *Protocol) Prove(pp, qq, w, nHat, s, t *big.Int) (*Proof, error) {
	start := time.Now()
	defer p.metrics.ObserveProof("prove", start)

	if err := p.params.Validate(); err != nil {
		return nil, err
	}
	if pp == nil || qq == nil || pp.Cmp(one) <= 0 || qq.Cmp(one) <= 0 {
		return nil, errorf("Prove", ErrInvalidParameter, "factors must be greater than one")
	}
	n0 := new(big.Int).Mul(pp, qq)
	if reason := checkStatement(n0, w, nHat, s, t); reason != "" {
		return nil, errorf("Prove", ErrInvalidParameter, "%s", reason)
	}

	e := p.Challenge(n0, w)
	sqrtBound, rhoBound, rBound, err := p.bounds(n0, nHat)
	if err != nil {
		return nil, err
	}
	ellBound := new(big.Int).Lsh(one, p.params.Ell)
	wideBound := new(big.Int).Lsh(one, p.params.Ell+p.params.Epsilon)

	var alpha, beta, rho, mu, nu, x, y, r *big.Int
	draws := []struct {
		dst   **big.Int
		bound *big.Int
	}{
		{&alpha, sqrtBound},
		{&beta, sqrtBound},
		{&rho, rhoBound},
		{&mu, ellBound},
		{&nu, ellBound},
		{&x, wideBound},
		{&y, wideBound},
		{&r, rBound},
	}
	for _, d := range draws {
		v, err := p.randSigned(d.bound)
		if err != nil {
			return nil, errorf("Prove", ErrInvalidParameter, "sample blinding value: %v", err)
		}
		*d.dst = v
	}
	defer wipe(alpha, beta, mu, nu, x, y, r)

	commit := func(a, b *big.Int) (*big.Int, error) {
		return pedersen(s, a, t, b, nHat)
	}
	P, err := commit(pp, mu)
	if err != nil {
		return nil, err
	}
	Q, err := commit(qq, nu)
	if err != nil {
		return nil, err
	}
	A, err := commit(alpha, x)
	if err != nil {
		return nil, err
	}
	B, err := commit(beta, y)
	if err != nil {
		return nil, err
	}
	T, err := pedersen(Q, alpha, t, r, nHat)
	if err != nil {
		return nil, err
	}

	rhoHat := new(big.Int).Mul(nu, pp)
	rhoHat.Sub(rho, rhoHat)
	defer wipe(rhoHat)

	// z = blind + e*secret
	respond := func(blind, secret *big.Int) *big.Int {
		z := new(big.Int).Mul(e, secret)
		return z.Add(z, blind)
	}

	proof := &Proof{
		P: P, Q: Q, A: A, B: B, T: T,
		Rho: rho,
		Z1:  respond(alpha, pp),
		Z2:  respond(beta, qq),
		W1:  respond(x, mu),
		W2:  respond(y, nu),
		V:   respond(r, rhoHat),
	}

	p.logger.Debug("proof generated",
		zap.Int("n0_bits", n0.BitLen()),
		zap.Int("nhat_bits", nHat.BitLen()),
		zap.Duration("elapsed", time.Since(start)))
	return proof, nil
}

// Verify checks proof for the statement (n0, w) under (nHat, s, t). It
// returns nil only when all three commitment identities and both range
// checks hold.
func (p *Protocol) Verify(n0, w, nHat, s, t *big.Int, proof *Proof) error {
	start := time.Now()
	defer p.metrics.ObserveProof("verify", start)

	if err := p.verify(n0, w, nHat, s, t, proof); err != nil {
		p.logger.Warn("proof rejected", zap.Error(err))
		return err
	}
	p.logger.Debug("proof verified", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *Protocol) verify(n0, w, nHat, s, t *big.Int, proof *Proof) error {
	if err := p.params.Validate(); err != nil {
		return err
	}
	if reason := checkStatement(n0, w, nHat, s, t); reason != "" {
		return errorf("Verify", ErrMalformedProof, "%s", reason)
	}
	if reason := proof.check(nHat); reason != "" {
		return errorf("Verify", ErrMalformedProof, "%s", reason)
	}

	e := p.Challenge(n0, w)
	sqrtBound, _, _, err := p.bounds(n0, nHat)
	if err != nil {
		return errorf("Verify", ErrMalformedProof, "%v", err)
	}

	R, err := pedersen(s, n0, t, proof.Rho, nHat)
	if err != nil {
		return errorf("Verify", ErrProofVerificationFailed, "reconstruct R: %v", err)
	}

	identities := []struct {
		name                  string
		base1, exp1, exp2     *big.Int
		commitment, statement *big.Int
	}{
		{"s^z1 t^w1 = A P^e", s, proof.Z1, proof.W1, proof.A, proof.P},
		{"s^z2 t^w2 = B Q^e", s, proof.Z2, proof.W2, proof.B, proof.Q},
		{"Q^z1 t^v = T R^e", proof.Q, proof.Z1, proof.V, proof.T, R},
	}
	for _, id := range identities {
		lhs, err := pedersen(id.base1, id.exp1, t, id.exp2, nHat)
		if err != nil {
			return errorf("Verify", ErrProofVerificationFailed, "%s: %v", id.name, err)
		}
		rhs, err := pedersen(id.commitment, one, id.statement, e, nHat)
		if err != nil {
			return errorf("Verify", ErrProofVerificationFailed, "%s: %v", id.name, err)
		}
		if lhs.Cmp(rhs) != 0 {
			return errorf("Verify", ErrProofVerificationFailed, "%s does not hold", id.name)
		}
	}

	if new(big.Int).Abs(proof.Z1).Cmp(sqrtBound) > 0 {
		return errorf("Verify", ErrProofVerificationFailed, "z1 out of range")
	}
	if new(big.Int).Abs(proof.Z2).Cmp(sqrtBound) > 0 {
		return errorf("Verify", ErrProofVerificationFailed, "z2 out of range")
	}

	return nil
}
