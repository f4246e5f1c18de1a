// Package vector provides similarity helpers for embedding vectors.
package vector

import "math"

// InnerProduct returns the dot product of a and b, or 0 when their lengths differ or are zero.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Cosine returns dot(a,b)/sqrt(|a|²|b|²). It is 0 when either vector has zero
// magnitude or the lengths differ, and never NaN. Parallel vectors score
// exactly equal, so one square root is taken over the product of the norms.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, sa, sb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		sa += x * x
		sb += y * y
	}
	if sa == 0 || sb == 0 {
		return 0
	}
	s := dot / math.Sqrt(sa*sb)
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(-1, math.Min(1, s))
}
