package shapemc

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrNilModelFunc reports a nil model collaborator (instance or marginal
	// function) passed to a likelihood constructor.
	ErrNilModelFunc = errors.New("shapemc: model function must not be nil")

	// ErrNoCorrespondences reports a likelihood built without observations.
	ErrNoCorrespondences = errors.New("shapemc: at least one correspondence required")

	// ErrNilNoiseModel reports a correspondence without a noise model.
	ErrNilNoiseModel = errors.New("shapemc: noise model must not be nil")
)

// PointID identifies a landmark on the shape model, stable across parameter
// values: the same ID always names the same anatomical location.
type PointID int

// NoiseModel scores an observation residual, the vector from a predicted
// model point to the observed target.
type NoiseModel interface {
	// LogPDF returns the log-density of the residual. -Inf is legal and
	// means the residual is impossible under this noise.
	LogPDF(residual Vec3) float64
}

// IsotropicGaussianNoise is the standard observation model: the three
// residual components are independent zero-mean Gaussians with a shared
// standard deviation. Stddev must be positive.
//
//	log p(r) = Σ_k log φ(r_k / σ) - 3 log σ
type IsotropicGaussianNoise struct {
	Stddev float64
}

// LogPDF scores the residual under the isotropic Gaussian.
func (n IsotropicGaussianNoise) LogPDF(residual Vec3) float64 {
	norm := distuv.Normal{Mu: 0, Sigma: n.Stddev}
	return norm.LogProb(residual[0]) + norm.LogProb(residual[1]) + norm.LogProb(residual[2])
}

// Correspondence pairs a model landmark with an observed target position and
// the noise model explaining their discrepancy.
type Correspondence struct {
	ID     PointID
	Target Vec3
	Noise  NoiseModel
}

// PointFunc reports the position of one landmark on a concrete shape
// instance. An unknown ID is an error.
type PointFunc func(id PointID) (Vec3, error)

// InstanceFunc realizes a shape model at given parameters and hands back a
// PointFunc for querying landmark positions on that instance. Building the
// instance once per sample lets implementations hoist per-sample work
// (matrix assembly, pose composition) out of the per-landmark loop.
type InstanceFunc func(p Parameters) (PointFunc, error)

// MarginalFunc predicts the positions of a fixed set of landmarks directly
// from parameters, without materializing a full instance. The result must
// have one position per requested ID, in order.
//
// This is the cheap path when the model can restrict itself to the observed
// landmarks up front; a full instance builds every model point only to read
// back a handful.
type MarginalFunc func(p Parameters, ids []PointID) ([]Vec3, error)

// CorrespondenceEvaluator scores samples by how well the shape instance they
// describe explains a set of observed landmarks:
//
//	log p(obs | s) = Σ_j noise_j.LogPDF(target_j - predicted_j)
//
// Independence across landmarks is assumed, hence the sum.
type CorrespondenceEvaluator struct {
	instance        InstanceFunc
	correspondences []Correspondence
}

// NewCorrespondenceEvaluator builds the likelihood over the given
// observations. The correspondence slice is copied.
func NewCorrespondenceEvaluator(instance InstanceFunc, correspondences []Correspondence) (*CorrespondenceEvaluator, error) {
	if instance == nil {
		return nil, ErrNilModelFunc
	}
	if err := checkCorrespondences(correspondences); err != nil {
		return nil, err
	}
	cs := make([]Correspondence, len(correspondences))
	copy(cs, correspondences)
	return &CorrespondenceEvaluator{instance: instance, correspondences: cs}, nil
}

// LogValue realizes the instance at the sample's parameters and sums residual
// log-densities over all correspondences. A failing collaborator aborts the
// evaluation with its error.
func (e *CorrespondenceEvaluator) LogValue(s Sample) (float64, error) {
	points, err := e.instance(s.Parameters)
	if err != nil {
		return 0, fmt.Errorf("building shape instance: %w", err)
	}
	var sum float64
	for _, c := range e.correspondences {
		predicted, err := points(c.ID)
		if err != nil {
			return 0, fmt.Errorf("point %d: %w", c.ID, err)
		}
		sum += c.Noise.LogPDF(c.Target.Sub(predicted))
	}
	return sum, nil
}

// MarginalCorrespondenceEvaluator is the marginalized twin of
// CorrespondenceEvaluator: same observations, same noise models, same
// log-value, but landmark positions come from a MarginalFunc in one call
// instead of a full instance. Swapping one for the other must not change
// the sampled distribution, only the cost per evaluation.
type MarginalCorrespondenceEvaluator struct {
	marginal        MarginalFunc
	correspondences []Correspondence
	ids             []PointID
}

// NewMarginalCorrespondenceEvaluator builds the marginalized likelihood.
// The landmark ID list is extracted once, in correspondence order.
func NewMarginalCorrespondenceEvaluator(marginal MarginalFunc, correspondences []Correspondence) (*MarginalCorrespondenceEvaluator, error) {
	if marginal == nil {
		return nil, ErrNilModelFunc
	}
	if err := checkCorrespondences(correspondences); err != nil {
		return nil, err
	}
	cs := make([]Correspondence, len(correspondences))
	copy(cs, correspondences)
	ids := make([]PointID, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return &MarginalCorrespondenceEvaluator{marginal: marginal, correspondences: cs, ids: ids}, nil
}

// LogValue queries all landmark positions in one call and sums residual
// log-densities.
func (e *MarginalCorrespondenceEvaluator) LogValue(s Sample) (float64, error) {
	predicted, err := e.marginal(s.Parameters, e.ids)
	if err != nil {
		return 0, fmt.Errorf("marginal prediction: %w", err)
	}
	if len(predicted) != len(e.correspondences) {
		return 0, fmt.Errorf("marginal prediction: got %d positions for %d points", len(predicted), len(e.ids))
	}
	var sum float64
	for i, c := range e.correspondences {
		sum += c.Noise.LogPDF(c.Target.Sub(predicted[i]))
	}
	return sum, nil
}

func checkCorrespondences(cs []Correspondence) error {
	if len(cs) == 0 {
		return ErrNoCorrespondences
	}
	for i, c := range cs {
		if c.Noise == nil {
			return fmt.Errorf("%w: correspondence %d (point %d)", ErrNilNoiseModel, i, c.ID)
		}
	}
	return nil
}
