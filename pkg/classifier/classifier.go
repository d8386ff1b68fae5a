// Package classifier provides classification models over encoded feature matrices.
//
// Class labels are integers in [0, number of classes).
package classifier

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var ErrInvalidInput = errors.New("classifier: invalid input")

// Model predicts class labels for each row of a feature matrix.
type Model interface {
	Predict(X mat.Matrix) []int
}

// Learner fits a Model to a feature matrix and class labels.
type Learner interface {
	Fit(X mat.Matrix, y []int) (Model, error)
}

// Accuracy is the fraction of predictions equal to the truth.
func Accuracy[T comparable](truth []T, pred []T) (float64, error) {
	if len(truth) != len(pred) {
		return 0, fmt.Errorf("%w: %d truths for %d predictions", ErrInvalidInput, len(truth), len(pred))
	}
	if len(truth) == 0 {
		return 0, fmt.Errorf("%w: no samples", ErrInvalidInput)
	}
	hit := 0
	for i := range truth {
		if truth[i] == pred[i] {
			hit += 1
		}
	}
	return float64(hit) / float64(len(truth)), nil
}

func rowsOf(X mat.Matrix) [][]float64 {
	r, _ := X.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}
	return rows
}
