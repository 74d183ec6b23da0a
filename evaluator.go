package shapemc

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrNilEvaluator reports a nil evaluator passed where one is required.
	ErrNilEvaluator = errors.New("shapemc: evaluator must not be nil")

	// ErrNoEvaluators reports a product built from zero factors.
	ErrNoEvaluators = errors.New("shapemc: product needs at least one evaluator")
)

// Evaluator scores a sample with the logarithm of an unnormalized density.
//
// The contract:
//   - Deterministic: the same sample always scores the same value. Caching
//     and the acceptance rule both lean on this.
//   - Unnormalized: only differences of log-values ever matter, so constant
//     offsets are free. Skip normalization work you don't need.
//   - -Inf is a legal score. It marks zero density (a hard constraint
//     violation) and makes the candidate carrying it impossible to accept.
//   - Errors are failures, not scores. An evaluator that cannot compute
//     (a collaborator failed, a dimension was wrong) returns a non-nil
//     error and the chain stops; it never smuggles the problem into the
//     log-value.
type Evaluator interface {
	LogValue(s Sample) (float64, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
//
// Example:
//
//	flat := shapemc.EvaluatorFunc(func(shapemc.Sample) (float64, error) {
//	    return 0, nil // improper flat density
//	})
type EvaluatorFunc func(s Sample) (float64, error)

// LogValue calls f(s).
func (f EvaluatorFunc) LogValue(s Sample) (float64, error) {
	return f(s)
}

// ProductEvaluator multiplies densities by summing their log-values.
//
// This is how a posterior is assembled from parts:
//
//	posterior = prior × likelihood
//	log posterior = log prior + log likelihood
//
// Factors are evaluated left to right and the first error aborts the sum.
// A -Inf factor does NOT short-circuit: the remaining factors still run, so
// a later factor still gets the chance to fail loudly instead of being
// masked by a hard constraint.
type ProductEvaluator struct {
	factors []Evaluator
}

// NewProductEvaluator combines one or more evaluators into their product.
func NewProductEvaluator(factors ...Evaluator) (*ProductEvaluator, error) {
	if len(factors) == 0 {
		return nil, ErrNoEvaluators
	}
	for i, f := range factors {
		if f == nil {
			return nil, fmt.Errorf("%w: factor %d", ErrNilEvaluator, i)
		}
	}
	return &ProductEvaluator{factors: factors}, nil
}

// LogValue returns the sum of the factor log-values.
func (e *ProductEvaluator) LogValue(s Sample) (float64, error) {
	var sum float64
	for i, f := range e.factors {
		v, err := f.LogValue(s)
		if err != nil {
			return 0, fmt.Errorf("product factor %d: %w", i, err)
		}
		sum += v
	}
	return sum, nil
}

// ShapePriorEvaluator scores shape coefficients under independent standard
// normals, the natural prior of a statistical shape model: coefficients are
// expressed in units of standard deviation along each principal component,
// so N(0,1) per coefficient is the model's own training distribution.
//
// The score is
//
//	log p(c) = Σ_i log φ(c_i)
//
// with φ the standard normal density. Pose parameters are ignored; combine
// with a likelihood via ProductEvaluator to form a posterior.
type ShapePriorEvaluator struct {
	rank int
}

// NewShapePriorEvaluator builds the prior for a rank-dimensional model.
func NewShapePriorEvaluator(rank int) (*ShapePriorEvaluator, error) {
	if rank <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRank, rank)
	}
	return &ShapePriorEvaluator{rank: rank}, nil
}

// LogValue sums standard normal log-densities over the coefficients.
// A sample whose coefficient count differs from the configured rank is a
// wiring bug and reports ErrDimensionMismatch.
func (e *ShapePriorEvaluator) LogValue(s Sample) (float64, error) {
	if got := s.Parameters.Rank(); got != e.rank {
		return 0, fmt.Errorf("%w: have %d coefficients, want %d", ErrDimensionMismatch, got, e.rank)
	}
	var sum float64
	for _, c := range s.Parameters.Coefficients {
		sum += distuv.UnitNormal.LogProb(c)
	}
	return sum, nil
}
