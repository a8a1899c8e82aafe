package nosmallfactors

import (
	"math/big"

	"github.com/canopy-network/canopy/lib/tss"
)

const (
	// DefaultEll is the bit length below which n0 provably has no factor.
	DefaultEll = 256
	// DefaultEpsilon is the statistical hiding slack, 2*ell.
	DefaultEpsilon = 2 * DefaultEll
)

// Params fixes the challenge group order and the soundness/hiding widths.
type Params struct {
	ChallengeOrder *big.Int
	Ell            uint
	Epsilon        uint
}

// DefaultParams reduces challenges modulo the ed25519 group order.
func DefaultParams() Params {
	return Params{
		ChallengeOrder: tss.NewEd25519Curve().Order(),
		Ell:            DefaultEll,
		Epsilon:        DefaultEpsilon,
	}
}

// Secp256k1Params reduces challenges modulo the secp256k1 group order,
// matching proofs produced for the ECDSA auxiliary setup.
func Secp256k1Params() Params {
	return Params{
		ChallengeOrder: tss.NewSecp256k1Curve().Order(),
		Ell:            DefaultEll,
		Epsilon:        DefaultEpsilon,
	}
}

// ParamsFromConfig builds Params from a node configuration section.
func ParamsFromConfig(cfg tss.ProofConfig) (Params, error) {
	params := DefaultParams()
	if cfg.ChallengeCurve != "" {
		curve, err := tss.NewCurve(cfg.ChallengeCurve)
		if err != nil {
			return Params{}, errorf("ParamsFromConfig", ErrInvalidParameter, "%v", err)
		}
		params.ChallengeOrder = curve.Order()
	}
	if cfg.Ell != 0 {
		params.Ell = cfg.Ell
	}
	if cfg.Epsilon != 0 {
		params.Epsilon = cfg.Epsilon
	}
	return params, params.Validate()
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	if p.ChallengeOrder == nil || p.ChallengeOrder.Sign() <= 0 {
		return errorf("Params", ErrInvalidParameter, "challenge order must be positive")
	}
	if p.Ell == 0 {
		return errorf("Params", ErrInvalidParameter, "ell must be positive")
	}
	if p.Epsilon < p.Ell {
		return errorf("Params", ErrInvalidParameter, "epsilon %d below ell %d", p.Epsilon, p.Ell)
	}
	return nil
}
