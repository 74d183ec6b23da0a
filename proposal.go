package shapemc

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInvalidStepSize reports a non-positive random-walk step size.
	ErrInvalidStepSize = errors.New("shapemc: step size must be positive")

	// ErrNilGenerator reports a nil proposal generator where one is required.
	ErrNilGenerator = errors.New("shapemc: proposal generator must not be nil")

	// ErrNoComponents reports a mixture built without components.
	ErrNoComponents = errors.New("shapemc: mixture needs at least one component")

	// ErrInvalidWeights reports mixture weights outside (0,1] or not summing
	// to 1.
	ErrInvalidWeights = errors.New("shapemc: mixture weights must be in (0,1] and sum to 1")

	// ErrDuplicateLabel reports two mixture components sharing a name, which
	// would make provenance-based transition lookup ambiguous.
	ErrDuplicateLabel = errors.New("shapemc: duplicate proposal label in mixture")
)

// weightTolerance bounds how far mixture weights may sum from 1.
const weightTolerance = 1e-9

// ProposalGenerator produces candidate samples and scores transition
// directions for the Metropolis-Hastings correction.
//
// The contract:
//   - Propose draws all randomness from the rng it is handed, never from a
//     global source. Same rng state, same current sample, same candidate.
//   - Propose constructs a new sample and labels it with the generator's
//     Name; the current sample is never mutated.
//   - LogTransitionProbability(from, to) is the log-density of proposing
//     `to` when standing at `from`. It is deterministic and may be -Inf for
//     a transition this generator cannot make.
//   - Name is a stable label. Acceptance statistics are grouped by it and
//     mixtures use it to route transition lookups, so two distinct
//     generators in one mixture must not share a name.
type ProposalGenerator interface {
	Propose(rng *rand.Rand, current Sample) (Sample, error)
	LogTransitionProbability(from, to Sample) float64
	Name() string
}

// paramBlock selects which sub-vector of Parameters a random walk perturbs.
type paramBlock int

const (
	blockShape paramBlock = iota
	blockRotation
	blockTranslation
)

// RandomWalkProposal perturbs exactly one block of Parameters (coefficients,
// rotation angles, or translation) with independent zero-mean Gaussian steps
// of a fixed standard deviation; the other blocks are copied unchanged.
//
// The kernel is symmetric: the density of a step x equals the density of -x,
// so LogTransitionProbability(from, to) == LogTransitionProbability(to, from)
// and the Hastings correction cancels when the kernel is used alone.
//
// Block proposals are the workhorses of pose+shape sampling. Each block
// lives on its own scale (coefficients are unitless standard deviations,
// angles are radians, translations are world units), so each gets its own
// step size instead of one σ stretched over all of them.
type RandomWalkProposal struct {
	block  paramBlock
	stddev float64
	rank   int // Shape block only: expected coefficient count
	name   string
}

// NewShapeUpdateProposal builds a random walk over the shape coefficients of
// a rank-dimensional model with step size stddev.
func NewShapeUpdateProposal(rank int, stddev float64) (*RandomWalkProposal, error) {
	if rank <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRank, rank)
	}
	if err := checkStepSize(stddev); err != nil {
		return nil, err
	}
	return &RandomWalkProposal{
		block:  blockShape,
		stddev: stddev,
		rank:   rank,
		name:   fmt.Sprintf("shape-update(σ=%g)", stddev),
	}, nil
}

// NewRotationUpdateProposal builds a random walk over the three Euler angles
// with step size stddev (radians).
func NewRotationUpdateProposal(stddev float64) (*RandomWalkProposal, error) {
	if err := checkStepSize(stddev); err != nil {
		return nil, err
	}
	return &RandomWalkProposal{
		block:  blockRotation,
		stddev: stddev,
		name:   fmt.Sprintf("rotation-update(σ=%g)", stddev),
	}, nil
}

// NewTranslationUpdateProposal builds a random walk over the translation
// vector with step size stddev (world units).
func NewTranslationUpdateProposal(stddev float64) (*RandomWalkProposal, error) {
	if err := checkStepSize(stddev); err != nil {
		return nil, err
	}
	return &RandomWalkProposal{
		block:  blockTranslation,
		stddev: stddev,
		name:   fmt.Sprintf("translation-update(σ=%g)", stddev),
	}, nil
}

func checkStepSize(stddev float64) error {
	if !(stddev > 0) || math.IsInf(stddev, 1) {
		return fmt.Errorf("%w: got %g", ErrInvalidStepSize, stddev)
	}
	return nil
}

// Name returns the kernel's label, e.g. "shape-update(σ=0.1)".
func (g *RandomWalkProposal) Name() string {
	return g.name
}

// Propose returns a candidate whose perturbed block is current's plus an
// independent N(0, σ²) draw per coordinate. The candidate carries this
// generator's name as provenance and the current sample's rotation center.
func (g *RandomWalkProposal) Propose(rng *rand.Rand, current Sample) (Sample, error) {
	if rng == nil {
		return Sample{}, ErrNilRandomSource
	}
	p := current.Parameters.Copy()
	step := distuv.Normal{Mu: 0, Sigma: g.stddev, Src: rng}

	switch g.block {
	case blockShape:
		if got := p.Rank(); got != g.rank {
			return Sample{}, fmt.Errorf("%w: have %d coefficients, want %d", ErrDimensionMismatch, got, g.rank)
		}
		for i := range p.Coefficients {
			p.Coefficients[i] += step.Rand()
		}
	case blockRotation:
		for i := range p.Rotation {
			p.Rotation[i] += step.Rand()
		}
	case blockTranslation:
		for i := range p.Translation {
			p.Translation[i] += step.Rand()
		}
	}
	return current.WithParameters(g.name, p), nil
}

// LogTransitionProbability evaluates the Gaussian step density at (to - from)
// restricted to the perturbed block; the other blocks do not contribute.
// Shape kernels return -Inf when the two coefficient vectors disagree in
// length, since no step of theirs connects such samples.
func (g *RandomWalkProposal) LogTransitionProbability(from, to Sample) float64 {
	step := distuv.Normal{Mu: 0, Sigma: g.stddev}
	var sum float64

	switch g.block {
	case blockShape:
		fc, tc := from.Parameters.Coefficients, to.Parameters.Coefficients
		if len(fc) != len(tc) {
			return math.Inf(-1)
		}
		for i := range tc {
			sum += step.LogProb(tc[i] - fc[i])
		}
	case blockRotation:
		for i := range to.Parameters.Rotation {
			sum += step.LogProb(to.Parameters.Rotation[i] - from.Parameters.Rotation[i])
		}
	case blockTranslation:
		for i := range to.Parameters.Translation {
			sum += step.LogProb(to.Parameters.Translation[i] - from.Parameters.Translation[i])
		}
	}
	return sum
}

// MixtureComponent pairs a proposal generator with its selection weight.
type MixtureComponent struct {
	Weight    float64
	Generator ProposalGenerator
}

// MixtureProposal dispatches each Propose call to one of its components,
// chosen with probability equal to the component's weight. The candidate
// keeps the chosen component's provenance, which is what makes per-component
// acceptance statistics possible downstream.
//
// Example:
//
//	generator, err := shapemc.NewMixtureProposal(
//	    shapemc.MixtureComponent{Weight: 0.6, Generator: shapeUpdate},
//	    shapemc.MixtureComponent{Weight: 0.2, Generator: rotationUpdate},
//	    shapemc.MixtureComponent{Weight: 0.2, Generator: translationUpdate},
//	)
//
// LogTransitionProbability routes by provenance: the component whose name
// matches to.Provenance scores the transition, since that component produced
// `to`. When no component claims `to` (the chain's initial sample carries a
// caller-chosen label), the component named by from.Provenance scores it
// instead; with neither label known the transition is impossible, -Inf.
// This single-component lookup is an approximation of the full weighted
// mixture density. For block kernels acting on disjoint sub-vectors it is
// the standard choice, and it keeps reverse lookups O(1) in the number of
// components.
type MixtureProposal struct {
	components []MixtureComponent
	cumulative []float64
	name       string
}

// NewMixtureProposal validates weights and labels and builds the mixture.
// Weights must each lie in (0,1] and sum to 1 within a small tolerance;
// component names must be distinct.
func NewMixtureProposal(components ...MixtureComponent) (*MixtureProposal, error) {
	if len(components) == 0 {
		return nil, ErrNoComponents
	}

	seen := make(map[string]struct{}, len(components))
	labels := make([]string, 0, len(components))
	var sum float64
	for i, c := range components {
		if c.Generator == nil {
			return nil, fmt.Errorf("%w: component %d", ErrNilGenerator, i)
		}
		if !(c.Weight > 0) || c.Weight > 1 {
			return nil, fmt.Errorf("%w: component %d has weight %g", ErrInvalidWeights, i, c.Weight)
		}
		name := c.Generator.Name()
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, name)
		}
		seen[name] = struct{}{}
		labels = append(labels, fmt.Sprintf("%g*%s", c.Weight, name))
		sum += c.Weight
	}
	if math.Abs(sum-1) > weightTolerance {
		return nil, fmt.Errorf("%w: sum is %g", ErrInvalidWeights, sum)
	}

	m := &MixtureProposal{
		components: make([]MixtureComponent, len(components)),
		cumulative: make([]float64, len(components)),
		name:       fmt.Sprintf("mixture(%s)", strings.Join(labels, " + ")),
	}
	copy(m.components, components)
	acc := 0.0
	for i, c := range m.components {
		acc += c.Weight
		m.cumulative[i] = acc
	}
	m.cumulative[len(m.cumulative)-1] = 1 // Absorb rounding
	return m, nil
}

// Name returns a label listing the weighted components.
func (m *MixtureProposal) Name() string {
	return m.name
}

// Propose draws a component by inverse CDF over the weights, then delegates.
// The dispatch draw and the component's own draws all come from rng, so a
// fixed seed reproduces both the component choice and the step.
func (m *MixtureProposal) Propose(rng *rand.Rand, current Sample) (Sample, error) {
	if rng == nil {
		return Sample{}, ErrNilRandomSource
	}
	u := rng.Float64()
	idx := sort.Search(len(m.cumulative), func(i int) bool { return u < m.cumulative[i] })
	if idx == len(m.components) {
		idx = len(m.components) - 1 // Unreachable once cumulative ends at 1
	}
	return m.components[idx].Generator.Propose(rng, current)
}

// LogTransitionProbability delegates to the component named by to.Provenance,
// falling back to the one named by from.Provenance, else -Inf.
func (m *MixtureProposal) LogTransitionProbability(from, to Sample) float64 {
	if c, ok := m.componentNamed(to.Provenance); ok {
		return c.LogTransitionProbability(from, to)
	}
	if c, ok := m.componentNamed(from.Provenance); ok {
		return c.LogTransitionProbability(from, to)
	}
	return math.Inf(-1)
}

func (m *MixtureProposal) componentNamed(label string) (ProposalGenerator, bool) {
	for _, c := range m.components {
		if c.Generator.Name() == label {
			return c.Generator, true
		}
	}
	return nil, false
}
