package shapemc

import (
	"errors"
	"strings"
	"testing"
)

func summaryFixture() []Sample {
	return []Sample{
		NewSample("a", NewParameters(Vec3{1, 2, 3}, Vec3{0.1, 0, 0}, []float64{1, 4}), Vec3{}),
		NewSample("b", NewParameters(Vec3{3, 2, 1}, Vec3{0.3, 0, 0}, []float64{3, 0}), Vec3{}),
	}
}

// TestSeries_ExtractsInOrder verifies the scalar bridge preserves sample
// order.
func TestSeries_ExtractsInOrder(t *testing.T) {
	samples := summaryFixture()
	series := Series(samples, func(s Sample) float64 { return s.Parameters.Translation[0] })

	if len(series) != 2 || series[0] != 1 || series[1] != 3 {
		t.Fatalf("Series = %v, want [1 3]", series)
	}
	t.Logf("✓ One scalar per sample, chain order preserved")
}

func TestCoefficientSeries_Extracts(t *testing.T) {
	samples := summaryFixture()

	series, err := CoefficientSeries(samples, 1)
	if err != nil {
		t.Fatalf("CoefficientSeries failed: %v", err)
	}
	if series[0] != 4 || series[1] != 0 {
		t.Errorf("❌ Coefficient 1 series = %v, want [4 0]", series)
	}
	t.Logf("✓ Coefficient series: %v", series)
}

// TestCoefficientSeries_IndexOutOfRange verifies the error names the
// offending sample.
func TestCoefficientSeries_IndexOutOfRange(t *testing.T) {
	samples := summaryFixture()

	for _, i := range []int{-1, 2, 17} {
		_, err := CoefficientSeries(samples, i)
		if !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("❌ Index %d: error = %v, want ErrDimensionMismatch", i, err)
		}
	}

	_, err := CoefficientSeries(samples, 2)
	if !strings.Contains(err.Error(), "sample 0") {
		t.Errorf("❌ Error does not name the sample: %v", err)
	}
	t.Logf("✓ Out-of-range coefficient rejected: %v", err)
}

// TestMeanParameters_Averages verifies the componentwise posterior mean on
// an exact fixture.
func TestMeanParameters_Averages(t *testing.T) {
	mean, err := MeanParameters(summaryFixture())
	if err != nil {
		t.Fatalf("MeanParameters failed: %v", err)
	}

	if mean.Translation != (Vec3{2, 2, 2}) {
		t.Errorf("❌ Mean translation = %v, want {2 2 2}", mean.Translation)
	}
	if mean.Rotation != (Vec3{0.2, 0, 0}) {
		t.Errorf("❌ Mean rotation = %v, want {0.2 0 0}", mean.Rotation)
	}
	if len(mean.Coefficients) != 2 || mean.Coefficients[0] != 2 || mean.Coefficients[1] != 2 {
		t.Errorf("❌ Mean coefficients = %v, want [2 2]", mean.Coefficients)
	}
	t.Logf("✓ Componentwise mean: τ=%v θ=%v α=%v", mean.Translation, mean.Rotation, mean.Coefficients)
}

func TestMeanParameters_Empty(t *testing.T) {
	_, err := MeanParameters(nil)
	if !errors.Is(err, ErrNoSamples) {
		t.Fatalf("Error = %v, want ErrNoSamples", err)
	}
	t.Logf("✓ Empty input rejected: %v", err)
}

// TestMeanParameters_RaggedRanks verifies samples of mixed rank are refused
// rather than silently truncated.
func TestMeanParameters_RaggedRanks(t *testing.T) {
	samples := []Sample{
		NewSample("a", ZeroParameters(2), Vec3{}),
		NewSample("b", ZeroParameters(3), Vec3{}),
	}

	_, err := MeanParameters(samples)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("Error = %v, want ErrDimensionMismatch", err)
	}
	if !strings.Contains(err.Error(), "sample 1") {
		t.Errorf("❌ Error does not name the ragged sample: %v", err)
	}
	t.Logf("✓ Ragged ranks rejected: %v", err)
}

// TestThin_KeepsEveryKth verifies thinning starts at the first sample.
func TestThin_KeepsEveryKth(t *testing.T) {
	samples := make([]Sample, 7)
	for i := range samples {
		samples[i] = NewSample("walk", NewParameters(Vec3{}, Vec3{}, []float64{float64(i)}), Vec3{})
	}

	thinned := Thin(samples, 3)
	if len(thinned) != 3 {
		t.Fatalf("Thinned length = %d, want 3", len(thinned))
	}
	for i, want := range []float64{0, 3, 6} {
		if got := thinned[i].Parameters.Coefficients[0]; got != want {
			t.Errorf("❌ Thinned[%d] came from sample %v, want %v", i, got, want)
		}
	}
	t.Logf("✓ Every 3rd sample kept: indices 0, 3, 6")
}

// TestThin_SmallKCopies verifies k <= 1 returns a fresh copy, not the input
// slice.
func TestThin_SmallKCopies(t *testing.T) {
	samples := summaryFixture()

	for _, k := range []int{1, 0, -2} {
		out := Thin(samples, k)
		if len(out) != len(samples) {
			t.Fatalf("Thin(k=%d) length = %d, want %d", k, len(out), len(samples))
		}
		out[0] = Sample{}
		if samples[0].Provenance != "a" {
			t.Fatalf("Thin(k=%d) aliases the input slice", k)
		}
	}
	t.Logf("✓ k <= 1 copies; caller may reorder freely")
}
