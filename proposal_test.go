package shapemc

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"
)

func proposalFixtureSample() Sample {
	return NewSample("init",
		NewParameters(Vec3{1, 2, 3}, Vec3{0.1, 0.2, 0.3}, []float64{0.5, -0.5}),
		Vec3{10, 0, 0})
}

// TestRandomWalkProposal_Validation verifies construction rejects bad step
// sizes and ranks.
func TestRandomWalkProposal_Validation(t *testing.T) {
	for _, stddev := range []float64{0, -0.5, math.NaN(), math.Inf(1)} {
		if _, err := NewShapeUpdateProposal(2, stddev); !errors.Is(err, ErrInvalidStepSize) {
			t.Errorf("❌ Shape σ=%v: want ErrInvalidStepSize, got %v", stddev, err)
		}
		if _, err := NewRotationUpdateProposal(stddev); !errors.Is(err, ErrInvalidStepSize) {
			t.Errorf("❌ Rotation σ=%v: want ErrInvalidStepSize, got %v", stddev, err)
		}
		if _, err := NewTranslationUpdateProposal(stddev); !errors.Is(err, ErrInvalidStepSize) {
			t.Errorf("❌ Translation σ=%v: want ErrInvalidStepSize, got %v", stddev, err)
		}
	}
	for _, rank := range []int{0, -2} {
		if _, err := NewShapeUpdateProposal(rank, 0.1); !errors.Is(err, ErrInvalidRank) {
			t.Errorf("❌ Shape rank=%d: want ErrInvalidRank, got %v", rank, err)
		}
	}
	t.Logf("✓ Step sizes must be positive and finite, ranks positive")
}

// TestRandomWalkProposal_PerturbsOnlyItsBlock verifies each kernel touches
// exactly one sub-vector and copies the rest bit-for-bit.
func TestRandomWalkProposal_PerturbsOnlyItsBlock(t *testing.T) {
	shape, err := NewShapeUpdateProposal(2, 0.1)
	if err != nil {
		t.Fatalf("Failed to build shape kernel: %v", err)
	}
	rotation, err := NewRotationUpdateProposal(0.05)
	if err != nil {
		t.Fatalf("Failed to build rotation kernel: %v", err)
	}
	translation, err := NewTranslationUpdateProposal(0.5)
	if err != nil {
		t.Fatalf("Failed to build translation kernel: %v", err)
	}

	current := proposalFixtureSample()
	rng := rand.New(rand.NewPCG(7, 0))

	cand, err := shape.Propose(rng, current)
	if err != nil {
		t.Fatalf("Shape propose failed: %v", err)
	}
	if cand.Parameters.Translation != current.Parameters.Translation ||
		cand.Parameters.Rotation != current.Parameters.Rotation {
		t.Errorf("❌ Shape kernel touched pose: %+v", cand.Parameters)
	}
	if cand.Parameters.Coefficients[0] == current.Parameters.Coefficients[0] &&
		cand.Parameters.Coefficients[1] == current.Parameters.Coefficients[1] {
		t.Errorf("❌ Shape kernel left coefficients unchanged")
	}
	if cand.RotationCenter != current.RotationCenter {
		t.Errorf("❌ Shape kernel moved the rotation center")
	}
	if cand.Provenance != shape.Name() {
		t.Errorf("❌ Provenance = %q, want %q", cand.Provenance, shape.Name())
	}

	cand, err = rotation.Propose(rng, current)
	if err != nil {
		t.Fatalf("Rotation propose failed: %v", err)
	}
	if cand.Parameters.Translation != current.Parameters.Translation {
		t.Errorf("❌ Rotation kernel touched translation")
	}
	if cand.Parameters.Rotation == current.Parameters.Rotation {
		t.Errorf("❌ Rotation kernel left angles unchanged")
	}
	if cand.Parameters.Coefficients[0] != current.Parameters.Coefficients[0] {
		t.Errorf("❌ Rotation kernel touched coefficients")
	}

	cand, err = translation.Propose(rng, current)
	if err != nil {
		t.Fatalf("Translation propose failed: %v", err)
	}
	if cand.Parameters.Translation == current.Parameters.Translation {
		t.Errorf("❌ Translation kernel left translation unchanged")
	}
	if cand.Parameters.Rotation != current.Parameters.Rotation {
		t.Errorf("❌ Translation kernel touched rotation")
	}

	// The source sample must never move
	if current.Parameters.Coefficients[0] != 0.5 || current.Parameters.Translation != (Vec3{1, 2, 3}) {
		t.Errorf("❌ Propose mutated the current sample: %+v", current.Parameters)
	}
	t.Logf("✓ Each kernel perturbs exactly its block and copies the rest")
}

// TestRandomWalkProposal_Deterministic verifies equal seeds give equal
// candidates.
func TestRandomWalkProposal_Deterministic(t *testing.T) {
	shape, err := NewShapeUpdateProposal(2, 0.1)
	if err != nil {
		t.Fatalf("Failed to build shape kernel: %v", err)
	}
	current := proposalFixtureSample()

	a, err := shape.Propose(rand.New(rand.NewPCG(99, 1)), current)
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	b, err := shape.Propose(rand.New(rand.NewPCG(99, 1)), current)
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}

	if !sameSample(a, b) {
		t.Errorf("❌ Same seed produced different candidates:\n  %v\n  %v", a.Parameters, b.Parameters)
	} else {
		t.Logf("✓ Same seed, same candidate: coefficients %v", a.Parameters.Coefficients)
	}
}

// TestRandomWalkProposal_RankMismatch verifies the shape kernel refuses
// samples of the wrong rank.
func TestRandomWalkProposal_RankMismatch(t *testing.T) {
	shape, err := NewShapeUpdateProposal(5, 0.1)
	if err != nil {
		t.Fatalf("Failed to build shape kernel: %v", err)
	}
	rng := rand.New(rand.NewPCG(1, 0))

	if _, err := shape.Propose(rng, proposalFixtureSample()); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("❌ Rank-2 sample through rank-5 kernel: got %v", err)
	} else {
		t.Logf("✓ Rank mismatch rejected: %v", err)
	}

	if _, err := shape.Propose(nil, proposalFixtureSample()); !errors.Is(err, ErrNilRandomSource) {
		t.Errorf("❌ Nil rng: got %v", err)
	}
}

// TestRandomWalkProposal_TransitionClosedForm verifies the transition
// density against the Gaussian written out by hand.
func TestRandomWalkProposal_TransitionClosedForm(t *testing.T) {
	shape, err := NewShapeUpdateProposal(1, 0.5)
	if err != nil {
		t.Fatalf("Failed to build shape kernel: %v", err)
	}

	from := NewSample("a", NewParameters(Vec3{}, Vec3{}, []float64{1.0}), Vec3{})
	to := NewSample("b", NewParameters(Vec3{}, Vec3{}, []float64{1.3}), Vec3{})

	got := shape.LogTransitionProbability(from, to)
	d := 0.3
	want := -d*d/(2*0.25) - math.Log(0.5*math.Sqrt(2*math.Pi))

	if math.Abs(got-want) > 1e-12 {
		t.Errorf("❌ logT = %.15f, want %.15f", got, want)
	} else {
		t.Logf("✓ logT(δ=0.3, σ=0.5) = %.9f matches N(0, σ²) density", got)
	}
}

// TestRandomWalkProposal_TransitionIgnoresOtherBlocks verifies the density
// is restricted to the kernel's own sub-vector.
func TestRandomWalkProposal_TransitionIgnoresOtherBlocks(t *testing.T) {
	shape, err := NewShapeUpdateProposal(1, 0.5)
	if err != nil {
		t.Fatalf("Failed to build shape kernel: %v", err)
	}

	from := NewSample("a", NewParameters(Vec3{}, Vec3{}, []float64{1.0}), Vec3{})
	toSameBlock := NewSample("b", NewParameters(Vec3{}, Vec3{}, []float64{1.3}), Vec3{})
	toMovedPose := NewSample("b", NewParameters(Vec3{9, 9, 9}, Vec3{1, 1, 1}, []float64{1.3}), Vec3{})

	a := shape.LogTransitionProbability(from, toSameBlock)
	b := shape.LogTransitionProbability(from, toMovedPose)
	if a != b {
		t.Errorf("❌ Pose leaked into shape transition density: %.12f vs %.12f", a, b)
	} else {
		t.Logf("✓ Shape transition density ignores pose blocks")
	}
}

// TestRandomWalkProposal_Symmetry verifies all three kernels are symmetric,
// the property that cancels the Hastings correction.
func TestRandomWalkProposal_Symmetry(t *testing.T) {
	shape, err := NewShapeUpdateProposal(2, 0.1)
	if err != nil {
		t.Fatalf("Failed to build shape kernel: %v", err)
	}
	rotation, err := NewRotationUpdateProposal(0.05)
	if err != nil {
		t.Fatalf("Failed to build rotation kernel: %v", err)
	}
	translation, err := NewTranslationUpdateProposal(0.5)
	if err != nil {
		t.Fatalf("Failed to build translation kernel: %v", err)
	}

	from := proposalFixtureSample()
	to := NewSample("x",
		NewParameters(Vec3{1.2, 1.8, 3.3}, Vec3{0.15, 0.1, 0.35}, []float64{0.4, -0.8}),
		Vec3{10, 0, 0})

	AssertSymmetricTransitions(t, shape, from, to, 1e-12)
	AssertSymmetricTransitions(t, rotation, from, to, 1e-12)
	AssertSymmetricTransitions(t, translation, from, to, 1e-12)
}

// TestRandomWalkProposal_TransitionRankMismatch verifies impossible shape
// transitions score -Inf.
func TestRandomWalkProposal_TransitionRankMismatch(t *testing.T) {
	shape, err := NewShapeUpdateProposal(2, 0.1)
	if err != nil {
		t.Fatalf("Failed to build shape kernel: %v", err)
	}

	from := NewSample("a", ZeroParameters(2), Vec3{})
	to := NewSample("b", ZeroParameters(3), Vec3{})

	if got := shape.LogTransitionProbability(from, to); !math.IsInf(got, -1) {
		t.Errorf("❌ Cross-rank transition scored %v, want -Inf", got)
	} else {
		t.Logf("✓ Cross-rank transition is impossible: -Inf")
	}
}

// TestMixtureProposal_WeightFidelity verifies empirical dispatch frequencies
// track the configured weights.
func TestMixtureProposal_WeightFidelity(t *testing.T) {
	shape, err := NewShapeUpdateProposal(2, 0.1)
	if err != nil {
		t.Fatalf("Failed to build shape kernel: %v", err)
	}
	rotation, err := NewRotationUpdateProposal(0.05)
	if err != nil {
		t.Fatalf("Failed to build rotation kernel: %v", err)
	}
	translation, err := NewTranslationUpdateProposal(0.5)
	if err != nil {
		t.Fatalf("Failed to build translation kernel: %v", err)
	}

	weights := map[string]float64{
		shape.Name():       0.6,
		rotation.Name():    0.2,
		translation.Name(): 0.2,
	}
	mixture, err := NewMixtureProposal(
		MixtureComponent{Weight: 0.6, Generator: shape},
		MixtureComponent{Weight: 0.2, Generator: rotation},
		MixtureComponent{Weight: 0.2, Generator: translation},
	)
	if err != nil {
		t.Fatalf("Failed to build mixture: %v", err)
	}

	const n = 10000
	rng := rand.New(rand.NewPCG(2024, 0))
	current := proposalFixtureSample()
	counts := make(map[string]int)
	for i := 0; i < n; i++ {
		cand, err := mixture.Propose(rng, current)
		if err != nil {
			t.Fatalf("Propose %d failed: %v", i, err)
		}
		counts[cand.Provenance]++
	}

	const tolerance = 0.02
	for label, want := range weights {
		got := float64(counts[label]) / n
		if math.Abs(got-want) > tolerance {
			t.Errorf("❌ %s drawn %.4f of the time, want %.2f ± %.2f", label, got, want, tolerance)
		} else {
			t.Logf("✓ %s: %.4f (want %.2f ± %.2f)", label, got, want, tolerance)
		}
	}
}

// TestMixtureProposal_Deterministic verifies the dispatch draw shares the
// seeded stream.
func TestMixtureProposal_Deterministic(t *testing.T) {
	shape, err := NewShapeUpdateProposal(2, 0.1)
	if err != nil {
		t.Fatalf("Failed to build shape kernel: %v", err)
	}
	translation, err := NewTranslationUpdateProposal(0.5)
	if err != nil {
		t.Fatalf("Failed to build translation kernel: %v", err)
	}
	mixture, err := NewMixtureProposal(
		MixtureComponent{Weight: 0.5, Generator: shape},
		MixtureComponent{Weight: 0.5, Generator: translation},
	)
	if err != nil {
		t.Fatalf("Failed to build mixture: %v", err)
	}

	run := func() []Sample {
		rng := rand.New(rand.NewPCG(5, 5))
		current := proposalFixtureSample()
		out := make([]Sample, 50)
		for i := range out {
			cand, err := mixture.Propose(rng, current)
			if err != nil {
				t.Fatalf("Propose failed: %v", err)
			}
			out[i] = cand
		}
		return out
	}

	AssertSameSamples(t, run(), run())
}

// TestMixtureProposal_TransitionRouting verifies provenance-based delegation
// and its fallbacks.
func TestMixtureProposal_TransitionRouting(t *testing.T) {
	shape, err := NewShapeUpdateProposal(2, 0.1)
	if err != nil {
		t.Fatalf("Failed to build shape kernel: %v", err)
	}
	rotation, err := NewRotationUpdateProposal(0.05)
	if err != nil {
		t.Fatalf("Failed to build rotation kernel: %v", err)
	}
	mixture, err := NewMixtureProposal(
		MixtureComponent{Weight: 0.7, Generator: shape},
		MixtureComponent{Weight: 0.3, Generator: rotation},
	)
	if err != nil {
		t.Fatalf("Failed to build mixture: %v", err)
	}

	seed := proposalFixtureSample() // Label "init", unknown to the mixture
	rng := rand.New(rand.NewPCG(3, 0))
	cand, err := shape.Propose(rng, seed)
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}

	// Forward: to was produced by the shape component
	if got, want := mixture.LogTransitionProbability(seed, cand), shape.LogTransitionProbability(seed, cand); got != want {
		t.Errorf("❌ Forward routing: mixture %.12f, component %.12f", got, want)
	}

	// Backward: to is the unlabeled seed, from names the shape component
	if got, want := mixture.LogTransitionProbability(cand, seed), shape.LogTransitionProbability(cand, seed); got != want {
		t.Errorf("❌ Backward fallback routing: mixture %.12f, component %.12f", got, want)
	}

	// Neither label known: impossible
	foreign := NewSample("somebody-else", ZeroParameters(2), Vec3{})
	if got := mixture.LogTransitionProbability(seed, foreign); !math.IsInf(got, -1) {
		t.Errorf("❌ Unknown labels scored %v, want -Inf", got)
	}

	t.Logf("✓ Routing: to-label first, from-label fallback, -Inf otherwise")
}

// TestNewMixtureProposal_Validation verifies weight and label checks.
func TestNewMixtureProposal_Validation(t *testing.T) {
	shape, err := NewShapeUpdateProposal(2, 0.1)
	if err != nil {
		t.Fatalf("Failed to build shape kernel: %v", err)
	}
	rotation, err := NewRotationUpdateProposal(0.05)
	if err != nil {
		t.Fatalf("Failed to build rotation kernel: %v", err)
	}

	if _, err := NewMixtureProposal(); !errors.Is(err, ErrNoComponents) {
		t.Errorf("❌ Empty mixture: got %v", err)
	}
	if _, err := NewMixtureProposal(MixtureComponent{Weight: 1}); !errors.Is(err, ErrNilGenerator) {
		t.Errorf("❌ Nil generator: got %v", err)
	}
	if _, err := NewMixtureProposal(
		MixtureComponent{Weight: 0.5, Generator: shape},
		MixtureComponent{Weight: 0.3, Generator: rotation},
	); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("❌ Sum 0.8: got %v", err)
	}
	if _, err := NewMixtureProposal(
		MixtureComponent{Weight: 0, Generator: shape},
		MixtureComponent{Weight: 1, Generator: rotation},
	); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("❌ Zero weight: got %v", err)
	}
	if _, err := NewMixtureProposal(
		MixtureComponent{Weight: 1.2, Generator: shape},
	); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("❌ Weight above 1: got %v", err)
	}
	if _, err := NewMixtureProposal(
		MixtureComponent{Weight: 0.5, Generator: shape},
		MixtureComponent{Weight: 0.5, Generator: shape},
	); !errors.Is(err, ErrDuplicateLabel) {
		t.Errorf("❌ Duplicate label: got %v", err)
	}

	mixture, err := NewMixtureProposal(
		MixtureComponent{Weight: 0.7, Generator: shape},
		MixtureComponent{Weight: 0.3, Generator: rotation},
	)
	if err != nil {
		t.Fatalf("Valid mixture rejected: %v", err)
	}
	if !strings.HasPrefix(mixture.Name(), "mixture(") {
		t.Errorf("❌ Mixture name = %q", mixture.Name())
	}
	t.Logf("✓ Mixture validation: %s", mixture.Name())
}
