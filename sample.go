package shapemc

import (
	"errors"
	"math"
)

var (
	// ErrInvalidRank reports a non-positive shape model rank.
	ErrInvalidRank = errors.New("shapemc: model rank must be positive")

	// ErrDimensionMismatch reports a coefficient vector whose length does not
	// match the rank a component was built for.
	ErrDimensionMismatch = errors.New("shapemc: coefficient dimension mismatch")
)

// Vec3 is a point or direction in 3-space. It doubles as a triple of Euler
// angles when used as a rotation.
type Vec3 [3]float64

// Add returns v + w componentwise.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Sub returns v - w componentwise.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Scale returns v scaled by c.
func (v Vec3) Scale(c float64) Vec3 {
	return Vec3{c * v[0], c * v[1], c * v[2]}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Parameters is one point in the sampled state space: a rigid pose plus the
// shape coefficients of a statistical shape model.
//
// Layout:
//   - Translation: rigid offset (world units)
//   - Rotation:    Euler angles around x, y, z (radians)
//   - Coefficients: shape model weights, one per principal component;
//     a standard-normal prior over these is the usual regularizer
//
// Parameters is a value type. Copy() deep-copies the coefficient slice, and
// everything that mutates parameters (proposal generators, mean computation)
// works on a copy, never in place.
type Parameters struct {
	Translation  Vec3
	Rotation     Vec3
	Coefficients []float64
}

// NewParameters builds a Parameters value with its own copy of coefficients.
func NewParameters(translation, rotation Vec3, coefficients []float64) Parameters {
	p := Parameters{
		Translation: translation,
		Rotation:    rotation,
	}
	if len(coefficients) > 0 {
		p.Coefficients = make([]float64, len(coefficients))
		copy(p.Coefficients, coefficients)
	}
	return p
}

// ZeroParameters returns the identity pose with rank zero-valued coefficients,
// the mean shape of a rank-dimensional model. A non-positive rank yields an
// empty coefficient vector.
func ZeroParameters(rank int) Parameters {
	if rank < 0 {
		rank = 0
	}
	return Parameters{Coefficients: make([]float64, rank)}
}

// Rank returns the number of shape coefficients.
func (p Parameters) Rank() int {
	return len(p.Coefficients)
}

// Copy returns a deep copy of p. The coefficient slice is cloned so the copy
// can be mutated without aliasing.
func (p Parameters) Copy() Parameters {
	return NewParameters(p.Translation, p.Rotation, p.Coefficients)
}

// Sample is one element of a chain: parameters plus the bookkeeping the
// algorithm needs around them.
//
// Provenance names the proposal generator that produced the sample (or the
// caller-chosen label of the initial sample). Acceptance statistics are
// grouped by this label, and mixtures use it to recover which component
// produced a sample when scoring reverse transitions.
//
// RotationCenter is the fixed point the Euler angles rotate around. Proposal
// generators never touch it; every sample derived from an initial sample
// carries the same center, so log-densities stay comparable along the chain.
type Sample struct {
	Provenance     string
	Parameters     Parameters
	RotationCenter Vec3
}

// NewSample builds a sample with its own copy of the parameters.
func NewSample(provenance string, parameters Parameters, rotationCenter Vec3) Sample {
	return Sample{
		Provenance:     provenance,
		Parameters:     parameters.Copy(),
		RotationCenter: rotationCenter,
	}
}

// WithParameters derives a new sample from s: fresh parameters, fresh
// provenance, same rotation center. This is the only way proposal generators
// construct candidates, which is what keeps the center invariant.
func (s Sample) WithParameters(provenance string, parameters Parameters) Sample {
	return Sample{
		Provenance:     provenance,
		Parameters:     parameters,
		RotationCenter: s.RotationCenter,
	}
}
