// Package stats provides statistical tests used for data drift detection.
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

var ErrNoObservation = errors.New("stats: no observation")

type KSResult struct {
	// Kolmogorov-Smirnov statistic: the largest distance of the empirical CDFs
	Statistic float64

	// asymptotic p-value for the null hypothesis "both samples share a distribution"
	PValue float64
}

// KolmogorovSmirnov runs the two-sample Kolmogorov-Smirnov test.
//
// NaNs are ignored. Inputs are not modified.
func KolmogorovSmirnov(a, b []float64) (KSResult, error) {
	x := sortedObservations(a)
	y := sortedObservations(b)
	if len(x) == 0 || len(y) == 0 {
		return KSResult{}, ErrNoObservation
	}

	d := stat.KolmogorovSmirnov(x, nil, y, nil)

	n, m := float64(len(x)), float64(len(y))
	en := math.Sqrt(n * m / (n + m))
	return KSResult{
		Statistic: d,
		PValue:    kolmogorovQ((en + 0.12 + 0.11/en) * d),
	}, nil
}

func sortedObservations(v []float64) []float64 {
	out := make([]float64, 0, len(v))
	for _, f := range v {
		if !math.IsNaN(f) {
			out = append(out, f)
		}
	}
	sort.Float64s(out)
	return out
}

// kolmogorovQ is the survival function of the Kolmogorov distribution,
//
//	Q(λ) = 2 Σ_{j=1}^{∞} (-1)^{j-1} exp(-2 j² λ²)
func kolmogorovQ(lambda float64) float64 {
	if lambda < 1e-3 {
		return 1
	}
	const eps1, eps2 = 1e-6, 1e-16
	a2 := -2 * lambda * lambda
	fac := 2.0
	sum := 0.0
	prev := 0.0
	for j := 1; j <= 100; j++ {
		term := fac * math.Exp(a2*float64(j*j))
		sum += term
		if math.Abs(term) <= eps1*prev || math.Abs(term) <= eps2*sum {
			return math.Min(math.Max(sum, 0), 1)
		}
		fac = -fac
		prev = math.Abs(term)
	}
	// not converged: λ is so small that the samples can not be distinguished
	return 1
}

// Mean of non-NaN values. When there are no such values, it returns (0, false).
func Mean(v []float64) (float64, bool) {
	obs := make([]float64, 0, len(v))
	for _, f := range v {
		if !math.IsNaN(f) {
			obs = append(obs, f)
		}
	}
	if len(obs) == 0 {
		return 0, false
	}
	return stat.Mean(obs, nil), true
}
