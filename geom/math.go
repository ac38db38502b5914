package geom

import (
	"golang.org/x/exp/constraints"
)

// Clamp limits v to the closed range [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Abs returns the absolute value of v.
func Abs[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// approxEq compares floats with a fixed epsilon suitable for transform
// classification.
func approxEq(a, b float32) bool {
	const eps = 1e-5
	return Abs(a-b) <= eps
}
