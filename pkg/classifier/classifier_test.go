package classifier_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/opst/backorder/pkg/classifier"
	"github.com/opst/backorder/pkg/utils/cmp"
	"github.com/opst/backorder/pkg/utils/try"
	"gonum.org/v1/gonum/mat"
)

func TestAccuracy(t *testing.T) {
	for name, testcase := range map[string]struct {
		truth, pred []string
		expected    float64
	}{
		"all correct": {[]string{"Yes", "No"}, []string{"Yes", "No"}, 1},
		"half":        {[]string{"Yes", "No", "No", "No"}, []string{"Yes", "Yes", "No", "Yes"}, 0.5},
		"none":        {[]string{"Yes"}, []string{"No"}, 0},
	} {
		t.Run(name, func(t *testing.T) {
			got := try.To(classifier.Accuracy(testcase.truth, testcase.pred)).OrFatal(t)
			if got != testcase.expected {
				t.Errorf("(actual, expected) = (%v, %v)", got, testcase.expected)
			}
		})
	}

	t.Run("it rejects length mismatch", func(t *testing.T) {
		if _, err := classifier.Accuracy([]int{1}, []int{1, 0}); !errors.Is(err, classifier.ErrInvalidInput) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it rejects empty input", func(t *testing.T) {
		if _, err := classifier.Accuracy([]int{}, []int{}); !errors.Is(err, classifier.ErrInvalidInput) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

// two well separated blobs: class 1 iff x0 + x1 > 1
func separable(n int, seed int64) (*mat.Dense, []int) {
	rnd := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 3, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		a, b := rnd.Float64(), rnd.Float64()
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		X.Set(i, 2, rnd.Float64()) // noise
		if 1 < a+b {
			y[i] = 1
		}
	}
	return X, y
}

func TestForestLearner(t *testing.T) {
	conf := classifier.DefaultForestConfig()
	conf.Trees = 15
	conf.MaxFeatures = -1

	t.Run("it learns a separable problem", func(t *testing.T) {
		X, y := separable(300, 1)
		model := try.To(classifier.NewForestLearner(conf).Fit(X, y)).OrFatal(t)

		Xt, yt := separable(200, 2)
		acc := try.To(classifier.Accuracy(yt, model.Predict(Xt))).OrFatal(t)
		if acc < 0.9 {
			t.Errorf("accuracy too low: %v", acc)
		}
	})

	t.Run("it is deterministic for a fixed seed", func(t *testing.T) {
		X, y := separable(200, 3)
		a := try.To(classifier.NewForestLearner(conf).Fit(X, y)).OrFatal(t)
		b := try.To(classifier.NewForestLearner(conf).Fit(X, y)).OrFatal(t)

		Xt, _ := separable(100, 4)
		if !cmp.SliceEq(a.Predict(Xt), b.Predict(Xt)) {
			t.Error("predictions differ between fits with the same seed")
		}
	})

	t.Run("single class data predicts the class", func(t *testing.T) {
		X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
		y := []int{1, 1, 1, 1}
		model := try.To(classifier.NewForestLearner(conf).Fit(X, y)).OrFatal(t)
		if got := model.Predict(X); !cmp.SliceEq(got, y) {
			t.Errorf("unexpected prediction: %v", got)
		}
	})

	for name, when := range map[string]struct {
		X *mat.Dense
		y []int
	}{
		"label length mismatch": {mat.NewDense(2, 1, []float64{0, 1}), []int{0}},
		"negative label":        {mat.NewDense(2, 1, []float64{0, 1}), []int{0, -1}},
	} {
		t.Run("it rejects "+name, func(t *testing.T) {
			if _, err := classifier.NewForestLearner(conf).Fit(when.X, when.y); !errors.Is(err, classifier.ErrInvalidInput) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestTree_Predict(t *testing.T) {
	tree := classifier.Tree{Nodes: []classifier.Node{
		{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
		{Feature: -1, Class: 0},
		{Feature: -1, Class: 1},
	}}
	X := mat.NewDense(3, 1, []float64{0.1, 0.5, 0.9})
	if got := tree.Predict(X); !cmp.SliceEq(got, []int{0, 0, 1}) {
		t.Errorf("unexpected prediction: %v", got)
	}
}
