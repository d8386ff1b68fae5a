package preprocess

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Stack appends class codes y as the last column of X.
func Stack(X mat.Matrix, y []int) (*mat.Dense, error) {
	r, c := X.Dims()
	if r != len(y) {
		return nil, fmt.Errorf("%d rows for %d labels", r, len(y))
	}
	out := mat.NewDense(r, c+1, nil)
	out.Slice(0, r, 0, c).(*mat.Dense).Copy(X)
	for i, v := range y {
		out.Set(i, c, float64(v))
	}
	return out, nil
}

// Unstack splits a stacked matrix into features and class codes.
func Unstack(m *mat.Dense) (*mat.Dense, []int, error) {
	r, c := m.Dims()
	if c < 2 {
		return nil, nil, fmt.Errorf("stacked matrix needs 2 or more columns, has %d", c)
	}
	X := mat.DenseCopyOf(m.Slice(0, r, 0, c-1))
	y := make([]int, r)
	for i := range y {
		y[i] = int(m.At(i, c-1))
	}
	return X, y, nil
}
