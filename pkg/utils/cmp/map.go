package cmp

import "maps"

func MapEq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	return maps.Equal(a, b)
}
