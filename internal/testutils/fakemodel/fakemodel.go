// Package fakemodel provides classifiers with scripted predictions for tests.
package fakemodel

import (
	"github.com/opst/backorder/pkg/bundle"
	"github.com/opst/backorder/pkg/classifier"
	"github.com/opst/backorder/pkg/preprocess"
	"gonum.org/v1/gonum/mat"
)

// Scripted predicts by the first feature of each row, which is expected to be a row id.
type Scripted struct {
	Predictions map[float64]int

	// class of rows not in Predictions
	Default int
}

var _ classifier.Model = &Scripted{}

func init() {
	bundle.RegisterModel(&Scripted{})
}

func (m *Scripted) Predict(X mat.Matrix) []int {
	r, _ := X.Dims()
	out := make([]int, r)
	for i := range out {
		c, ok := m.Predictions[X.At(i, 0)]
		if !ok {
			c = m.Default
		}
		out[i] = c
	}
	return out
}

// Hitting predicts class 0 for ids in [0, hits) and class 1 for others.
func Hitting(hits int) *Scripted {
	m := &Scripted{Predictions: map[float64]int{}, Default: 1}
	for i := 0; i < hits; i++ {
		m.Predictions[float64(i)] = 0
	}
	return m
}

// Learner returns Model, or fails with Err.
type Learner struct {
	Model classifier.Model
	Err   error
}

var _ classifier.Learner = Learner{}

func (l Learner) Fit(mat.Matrix, []int) (classifier.Model, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Model, nil
}

// Identity is a fitted transformer passing numeric columns through as they are.
func Identity(columns ...string) *preprocess.FittedFeatures {
	f := &preprocess.FittedFeatures{}
	for _, c := range columns {
		f.Numeric = append(f.Numeric, preprocess.NumericScaler{Column: c, Mean: 0, Min: 0, Max: 1})
	}
	return f
}

// Bundle is a bundle of Hitting(hits) over an "id" column, with classes "No" and "Yes".
//
// It knows "sku" and "y" as input columns other than the feature.
func Bundle(hits int) bundle.Bundle {
	return bundle.Bundle{
		Model:    Hitting(hits),
		Features: Identity("id").Know("sku", "y"),
		Target:   &preprocess.LabelEncoder{Classes: []string{"No", "Yes"}},
	}
}
