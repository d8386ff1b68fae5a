// Package cmp compares slices, maps and floats in tests.
package cmp

import "slices"

type BiPredicator[V any, U any] func(a V, b U) bool

// SliceEq tells a and b have equal elements in the same order.
func SliceEq[T comparable](a []T, b []T) bool {
	return slices.Equal(a, b)
}

// SliceEqWith is SliceEq with an equivalence pred.
func SliceEqWith[T any, U any](a []T, b []U, pred BiPredicator[T, U]) bool {
	return slices.EqualFunc(a, b, func(x T, y U) bool { return pred(x, y) })
}

// SliceContentEq tells a and b have the same elements as multisets, ignoring order.
//
//	SliceContentEq([]string{"a", "b", "c"}, []string{"c", "b", "a"})       // ==> true
//	SliceContentEq([]string{"a", "b", "c", "c"}, []string{"a", "b", "c"})  // ==> false
func SliceContentEq[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	count := map[T]int{}
	for _, v := range a {
		count[v] += 1
	}
	for _, v := range b {
		if count[v] == 0 {
			return false
		}
		count[v] -= 1
	}
	return true
}
