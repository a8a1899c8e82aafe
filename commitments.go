package tss

import (
	"errors"
	"fmt"
)

// PolynomialCommitment is a Feldman commitment to a sharing polynomial:
// points[j] = a_j*B. points[0] is the public image of the shared secret.
type PolynomialCommitment struct {
	curve  Curve
	points []Point
}

// NewPolynomialCommitment rebuilds a commitment received from a peer.
func NewPolynomialCommitment(curve Curve, points []Point) (*PolynomialCommitment, error) {
	if curve == nil {
		return nil, fmt.Errorf("curve cannot be nil")
	}
	if len(points) == 0 {
		return nil, errors.New("no commitments available")
	}
	for i, p := range points {
		if p == nil {
			return nil, fmt.Errorf("commitment %d is nil", i)
		}
	}
	cp := make([]Point, len(points))
	copy(cp, points)
	return &PolynomialCommitment{curve: curve, points: cp}, nil
}

// Constant returns the commitment to the constant term.
func (pc *PolynomialCommitment) Constant() Point {
	return pc.points[0]
}

// Threshold is the number of shares the committed polynomial needs.
func (pc *PolynomialCommitment) Threshold() int {
	return len(pc.points)
}

// Points returns a defensive copy of the coefficient commitments
func (pc *PolynomialCommitment) Points() []Point {
	result := make([]Point, len(pc.points))
	copy(result, pc.points)
	return result
}

// Verify checks share*B == sum_j points[j]*index^j.
func (pc *PolynomialCommitment) Verify(index PartyIndex, share Scalar) (bool, error) {
	if share == nil {
		return false, fmt.Errorf("share cannot be nil")
	}
	if index == 0 {
		return false, fmt.Errorf("share index cannot be zero")
	}
	if len(pc.points) == 0 {
		return false, errors.New("no commitments available")
	}

	x, err := index.ToScalar(pc.curve)
	if err != nil {
		return false, err
	}

	expected := pc.curve.PointIdentity()
	xPower := pc.curve.ScalarOne()
	for _, point := range pc.points {
		expected = expected.Add(point.Mul(xPower))
		xPower = xPower.Mul(x)
	}

	return expected.Equal(pc.curve.BasePoint().Mul(share)), nil
}
