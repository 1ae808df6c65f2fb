// Package preemphasis implements the first-order high-frequency boost
// filter y[n] = x[n] - alpha*x[n-1].
package preemphasis

const DefaultAlpha = 0.97

// Apply returns the pre-emphasized copy of x; the first sample is passed
// through as is. x is never modified.
func Apply(x []float64, alpha float64) []float64 {
	y := make([]float64, len(x))
	if len(x) == 0 {
		return y
	}
	y[0] = x[0]
	for n := 1; n < len(x); n++ {
		y[n] = x[n] - alpha*x[n-1]
	}
	return y
}
