package tss

import (
	"fmt"
	"io"
)

// Polynomial represents a polynomial over a scalar field
type Polynomial struct {
	curve        Curve
	coefficients []Scalar
}

// NewRandomPolynomial creates a new random polynomial with given degree and constant term
func NewRandomPolynomial(curve Curve, rand io.Reader, degree int, constantTerm Scalar) (*Polynomial, error) {
	if degree < 0 {
		return nil, fmt.Errorf("degree must be non-negative")
	}

	coefficients := make([]Scalar, degree+1)
	coefficients[0] = constantTerm

	for i := 1; i <= degree; i++ {
		coeff, err := curve.ScalarRandom(rand)
		if err != nil {
			return nil, fmt.Errorf("failed to generate coefficient %d: %w", i, err)
		}
		coefficients[i] = coeff
	}

	return &Polynomial{
		curve:        curve,
		coefficients: coefficients,
	}, nil
}

// Evaluate evaluates the polynomial at a given point
func (p *Polynomial) Evaluate(x Scalar) Scalar {
	// Horner: f(x) = a0 + x(a1 + x(a2 + ...)). Starting from zero keeps
	// the result distinct from the coefficients, which Zeroize clears.
	result := p.curve.ScalarZero()
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		result = result.Mul(x).Add(p.coefficients[i])
	}

	return result
}

// Commit returns the Feldman commitment a_j*B for every coefficient.
func (p *Polynomial) Commit() *PolynomialCommitment {
	points := make([]Point, len(p.coefficients))
	base := p.curve.BasePoint()
	for i, coeff := range p.coefficients {
		points[i] = base.Mul(coeff)
	}
	return &PolynomialCommitment{curve: p.curve, points: points}
}

// Degree returns the degree of the polynomial
func (p *Polynomial) Degree() int {
	return len(p.coefficients) - 1
}

// Zeroize clears every coefficient, including the constant term.
func (p *Polynomial) Zeroize() {
	for i, coeff := range p.coefficients {
		if coeff != nil {
			coeff.Zeroize()
		}
		p.coefficients[i] = nil
	}
	p.coefficients = nil
}
