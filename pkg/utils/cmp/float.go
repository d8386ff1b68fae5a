package cmp

import "math"

// Approx returns a BiPredicator telling |a - b| <= tolerance.
//
// NaN is approximately equal only to NaN.
func Approx(tolerance float64) BiPredicator[float64, float64] {
	return func(a, b float64) bool {
		if math.IsNaN(a) || math.IsNaN(b) {
			return math.IsNaN(a) && math.IsNaN(b)
		}
		return math.Abs(a-b) <= tolerance
	}
}
