package shapemc

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrNoSamples reports a reduction over an empty sample slice.
var ErrNoSamples = errors.New("shapemc: no samples")

// Series extracts one scalar per sample, in order. It is the bridge from a
// chain run to scalar statistics:
//
//	coeff0 := shapemc.Series(samples, func(s shapemc.Sample) float64 {
//	    return s.Parameters.Coefficients[0]
//	})
//	mean, variance := stat.MeanVariance(coeff0, nil)
func Series(samples []Sample, f func(Sample) float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = f(s)
	}
	return out
}

// CoefficientSeries extracts the i-th shape coefficient from every sample.
func CoefficientSeries(samples []Sample, i int) ([]float64, error) {
	out := make([]float64, len(samples))
	for j, s := range samples {
		if i < 0 || i >= s.Parameters.Rank() {
			return nil, fmt.Errorf("%w: coefficient %d of sample %d (rank %d)", ErrDimensionMismatch, i, j, s.Parameters.Rank())
		}
		out[j] = s.Parameters.Coefficients[i]
	}
	return out, nil
}

// MeanParameters averages pose and coefficients componentwise over the
// samples, the posterior-mean point estimate. Rotation angles are averaged
// arithmetically, which is fine for the concentrated posteriors a fitted
// chain produces but meaningless for angles spread over the full circle.
func MeanParameters(samples []Sample) (Parameters, error) {
	if len(samples) == 0 {
		return Parameters{}, ErrNoSamples
	}

	rank := samples[0].Parameters.Rank()
	var translation, rotation Vec3
	coefficients := make([]float64, rank)

	for i, s := range samples {
		if s.Parameters.Rank() != rank {
			return Parameters{}, fmt.Errorf("%w: sample %d has rank %d, sample 0 has rank %d", ErrDimensionMismatch, i, s.Parameters.Rank(), rank)
		}
		translation = translation.Add(s.Parameters.Translation)
		rotation = rotation.Add(s.Parameters.Rotation)
		floats.Add(coefficients, s.Parameters.Coefficients)
	}

	n := float64(len(samples))
	floats.Scale(1/n, coefficients)
	return Parameters{
		Translation:  translation.Scale(1 / n),
		Rotation:     rotation.Scale(1 / n),
		Coefficients: coefficients,
	}, nil
}

// Thin keeps every k-th sample starting with the first, the usual
// autocorrelation-reducing subsample. k <= 1 copies the input. The result
// is always a fresh slice.
func Thin(samples []Sample, k int) []Sample {
	if k <= 1 {
		out := make([]Sample, len(samples))
		copy(out, samples)
		return out
	}
	out := make([]Sample, 0, (len(samples)+k-1)/k)
	for i := 0; i < len(samples); i += k {
		out = append(out, samples[i])
	}
	return out
}
