package stats_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/opst/backorder/pkg/stats"
	"github.com/opst/backorder/pkg/utils/try"
	"gonum.org/v1/gonum/stat/distuv"
)

// evenly spaced quantiles of N(mu, 1), shuffled
func normal(n int, mu float64, seed int64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = distuv.UnitNormal.Quantile((float64(i)+0.5)/float64(n)) + mu
	}
	rand.New(rand.NewSource(seed)).Shuffle(n, func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func TestKolmogorovSmirnov(t *testing.T) {
	t.Run("samples from the same distribution are not distinguished", func(t *testing.T) {
		res := try.To(stats.KolmogorovSmirnov(normal(500, 0, 1), normal(400, 0, 2))).OrFatal(t)
		if res.PValue <= 0.05 {
			t.Errorf("p-value too small: %+v", res)
		}
	})

	t.Run("shifted distribution is detected", func(t *testing.T) {
		res := try.To(stats.KolmogorovSmirnov(normal(500, 0, 1), normal(400, 1, 2))).OrFatal(t)
		if 0.05 < res.PValue {
			t.Errorf("p-value too large: %+v", res)
		}
		if res.Statistic < 0.2 {
			t.Errorf("statistic too small: %+v", res)
		}
	})

	t.Run("identical samples have statistic 0 and p-value 1", func(t *testing.T) {
		a := []float64{3, 1, 2}
		res := try.To(stats.KolmogorovSmirnov(a, []float64{1, 2, 3})).OrFatal(t)
		if res.Statistic != 0 || res.PValue != 1 {
			t.Errorf("unexpected result: %+v", res)
		}
		if a[0] != 3 {
			t.Errorf("input is modified: %v", a)
		}
	})

	t.Run("NaNs are ignored", func(t *testing.T) {
		res := try.To(stats.KolmogorovSmirnov(
			[]float64{1, math.NaN(), 2}, []float64{1, 2, math.NaN()},
		)).OrFatal(t)
		if res.Statistic != 0 {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("no observation is an error", func(t *testing.T) {
		if _, err := stats.KolmogorovSmirnov([]float64{math.NaN()}, []float64{1}); !errors.Is(err, stats.ErrNoObservation) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestMean(t *testing.T) {
	if m, ok := stats.Mean([]float64{1, math.NaN(), 3}); !ok || m != 2 {
		t.Errorf("unexpected mean: (%v, %v)", m, ok)
	}
	if _, ok := stats.Mean([]float64{math.NaN()}); ok {
		t.Error("mean of no observation is reported")
	}
}
