package shapemc

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

// CountingEvaluator wraps an evaluator and counts LogValue calls. It is the
// instrument for pinning down evaluation cost: wrap the posterior, run the
// chain, and the counter tells you exactly how many scores were computed.
type CountingEvaluator struct {
	wrapped Evaluator
	calls   uint64
}

// NewCountingEvaluator wraps e, which must not be nil.
func NewCountingEvaluator(e Evaluator) *CountingEvaluator {
	return &CountingEvaluator{wrapped: e}
}

// LogValue counts the call and delegates.
func (c *CountingEvaluator) LogValue(s Sample) (float64, error) {
	c.calls++
	return c.wrapped.LogValue(s)
}

// Calls returns the number of LogValue calls so far.
func (c *CountingEvaluator) Calls() uint64 {
	return c.calls
}

// AssertAcceptanceRatio verifies one provenance label's acceptance ratio.
//
// Mathematical property:
//
//	|α - want| ≤ tolerance, α = accepted / (accepted + rejected)
func AssertAcceptanceRatio(t *testing.T, tracker *AcceptanceTracker, label string, want, tolerance float64) {
	t.Helper()

	ratio, ok := tracker.Ratio(label)
	if !ok {
		t.Errorf("No observations for label %q (observed: %v)", label, tracker.Labels())
		return
	}

	if math.Abs(ratio-want) > tolerance {
		counts, _ := tracker.Counts(label)
		t.Errorf("Acceptance ratio off for %q: α = %.4f (want %.4f ± %.4f, %d accepted / %d rejected)",
			label, ratio, want, tolerance, counts.Accepted, counts.Rejected)
		return
	}

	t.Logf("✓ Acceptance ratio %q: α = %.4f (want %.4f ± %.4f)", label, ratio, want, tolerance)
}

// AssertAcceptanceBetween verifies a label's acceptance ratio falls in
// [lo, hi], the tuning check for random-walk kernels: below lo the steps
// are too bold, above hi too timid.
func AssertAcceptanceBetween(t *testing.T, tracker *AcceptanceTracker, label string, lo, hi float64) {
	t.Helper()

	ratio, ok := tracker.Ratio(label)
	if !ok {
		t.Errorf("No observations for label %q (observed: %v)", label, tracker.Labels())
		return
	}

	if ratio < lo || ratio > hi {
		t.Errorf("Acceptance ratio out of band for %q: α = %.4f (want [%.2f, %.2f])\n"+
			"Below the band the step size is too large, above it too small.",
			label, ratio, lo, hi)
		return
	}

	t.Logf("✓ Acceptance ratio %q: α = %.4f ∈ [%.2f, %.2f]", label, ratio, lo, hi)
}

// AssertSymmetricTransitions verifies a kernel's transition density is
// direction-free for the given pair.
//
// Mathematical property:
//
//	logT(from → to) == logT(to → from)
//
// This is what lets the Hastings correction cancel for pure random walks.
func AssertSymmetricTransitions(t *testing.T, generator ProposalGenerator, from, to Sample, tolerance float64) {
	t.Helper()

	forward := generator.LogTransitionProbability(from, to)
	backward := generator.LogTransitionProbability(to, from)

	if math.IsInf(forward, -1) && math.IsInf(backward, -1) {
		t.Logf("✓ Symmetric (both directions impossible) for %q", generator.Name())
		return
	}
	if math.Abs(forward-backward) > tolerance {
		t.Errorf("Asymmetric kernel %q: logT(from→to) = %.9f, logT(to→from) = %.9f (Δ = %.3g)",
			generator.Name(), forward, backward, forward-backward)
		return
	}

	t.Logf("✓ Symmetric kernel %q: logT = %.6f both ways", generator.Name(), forward)
}

// AssertStationaryMoments verifies the empirical mean and variance of a
// scalar series against the target distribution's moments. This is the
// end-to-end correctness check: a chain sampling the right density lands
// on the right moments once burned in.
func AssertStationaryMoments(t *testing.T, series []float64, wantMean, meanTol, wantVariance, varTol float64) {
	t.Helper()

	if len(series) == 0 {
		t.Fatalf("Empty series: nothing to check moments on")
	}

	mean, variance := stat.MeanVariance(series, nil)

	if math.Abs(mean-wantMean) > meanTol {
		t.Errorf("Mean off target: μ = %.4f (want %.4f ± %.4f over %d samples)",
			mean, wantMean, meanTol, len(series))
	} else {
		t.Logf("✓ Mean: μ = %.4f (want %.4f ± %.4f)", mean, wantMean, meanTol)
	}

	if math.Abs(variance-wantVariance) > varTol {
		t.Errorf("Variance off target: σ² = %.4f (want %.4f ± %.4f over %d samples)",
			variance, wantVariance, varTol, len(series))
	} else {
		t.Logf("✓ Variance: σ² = %.4f (want %.4f ± %.4f)", variance, wantVariance, varTol)
	}
}

// AssertSameSamples verifies two runs produced bit-identical sequences:
// same length, and per position the same provenance, pose, coefficients
// and rotation center. This is the reproducibility contract of a seeded
// chain.
func AssertSameSamples(t *testing.T, a, b []Sample) {
	t.Helper()

	if len(a) != len(b) {
		t.Fatalf("Sequence lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !sameSample(a[i], b[i]) {
			t.Errorf("Sequences diverge at step %d:\n  a: %q %v %v\n  b: %q %v %v",
				i, a[i].Provenance, a[i].Parameters.Translation, a[i].Parameters.Coefficients,
				b[i].Provenance, b[i].Parameters.Translation, b[i].Parameters.Coefficients)
			return
		}
	}

	t.Logf("✓ Reproducible: %d samples, bit-identical", len(a))
}

func sameSample(a, b Sample) bool {
	if a.Provenance != b.Provenance ||
		a.RotationCenter != b.RotationCenter ||
		a.Parameters.Translation != b.Parameters.Translation ||
		a.Parameters.Rotation != b.Parameters.Rotation ||
		len(a.Parameters.Coefficients) != len(b.Parameters.Coefficients) {
		return false
	}
	for i := range a.Parameters.Coefficients {
		// Bitwise, not numeric: reproducibility means identical bits,
		// and NaN == NaN must hold here.
		if math.Float64bits(a.Parameters.Coefficients[i]) != math.Float64bits(b.Parameters.Coefficients[i]) {
			return false
		}
	}
	return true
}

// PrintAcceptanceReport outputs per-label acceptance statistics to the test
// log, with a tuning interpretation per label.
func PrintAcceptanceReport(t *testing.T, tracker *AcceptanceTracker) {
	t.Helper()

	labels := tracker.Labels()
	t.Logf("\n=== Acceptance Report ===")
	t.Logf("Steps observed: %d across %d labels", tracker.Steps(), len(labels))

	t.Logf("\n  %-40s %9s %9s %7s", "label", "accepted", "rejected", "α")
	t.Logf("  %-40s %9s %9s %7s", "-----", "--------", "--------", "-----")
	for _, label := range labels {
		c, _ := tracker.Counts(label)
		t.Logf("  %-40s %9d %9d %7.3f", label, c.Accepted, c.Rejected, c.Ratio())
	}

	t.Logf("\nInterpretation:")
	for _, label := range labels {
		ratio, _ := tracker.Ratio(label)
		switch {
		case ratio < 0.1:
			t.Logf("  ✗ %s: α = %.3f - step size too large, chain barely moves", label, ratio)
		case ratio < 0.2:
			t.Logf("  ⚠ %s: α = %.3f - on the bold side", label, ratio)
		case ratio <= 0.5:
			t.Logf("  ✓ %s: α = %.3f - healthy random-walk range", label, ratio)
		case ratio <= 0.8:
			t.Logf("  ⚠ %s: α = %.3f - on the timid side", label, ratio)
		default:
			t.Logf("  ✗ %s: α = %.3f - step size too small, chain creeps", label, ratio)
		}
	}
}
