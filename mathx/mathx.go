// Package mathx holds the small generic numeric helpers shared by the
// compensation pipeline and the fan mapping.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Fraction maps v in [lo, hi] onto [0, 1], clamping outside the range.
// A degenerate range (lo >= hi) is a step at hi.
func Fraction[T constraints.Float](v, lo, hi T) T {
	if lo >= hi {
		if v < hi {
			return 0
		}
		return 1
	}
	return Clamp((v-lo)/(hi-lo), 0, 1)
}
