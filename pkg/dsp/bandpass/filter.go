package bandpass

import (
	"fmt"
)

// steadyState returns the initial conditions of every section for a
// unit step input, so that the cascade starts as if the first sample had
// been applied forever.
func (f *Filter) steadyState() [][2]float64 {
	zi := make([][2]float64, len(f.Sections))
	scale := 1.0
	for idx, s := range f.Sections {
		sumB := s.B[0] + s.B[1] + s.B[2]
		sumA := s.A[0] + s.A[1] + s.A[2]
		dcGain := sumB / sumA
		z1 := s.B[2] - s.A[2]*dcGain
		z0 := s.B[1] - s.A[1]*dcGain + z1
		zi[idx] = [2]float64{z0 * scale, z1 * scale}
		scale *= dcGain
	}
	return zi
}

// filterInPlace runs the cascade (transposed direct form II) over x with
// the initial conditions zi multiplied by x0.
func (f *Filter) filterInPlace(x []float64, zi [][2]float64, x0 float64) {
	for idx, s := range f.Sections {
		z0 := zi[idx][0] * x0
		z1 := zi[idx][1] * x0
		b0, b1, b2 := s.B[0], s.B[1], s.B[2]
		a1, a2 := s.A[1], s.A[2]
		for n, in := range x {
			out := b0*in + z0
			z0 = b1*in - a1*out + z1
			z1 = b2*in - a2*out
			x[n] = out
		}
	}
}

// Filter applies the cascade causally, starting from a zero state.
func (f *Filter) Filter(x []float64) []float64 {
	y := make([]float64, len(x))
	copy(y, x)
	f.filterInPlace(y, make([][2]float64, len(f.Sections)), 0)
	return y
}

func (f *Filter) padLength(inputLength int) int {
	padLen := 3 * (2*len(f.Sections) + 1)
	if padLen > inputLength-1 {
		padLen = inputLength - 1
	}
	if padLen < 0 {
		padLen = 0
	}
	return padLen
}

// FilterZeroPhase applies the filter forward and then backward, which
// cancels the phase shift and squares the magnitude response. The input is
// extended by odd reflection at both ends to reduce edge transients.
//
// The output always has the same length as the input.
func (f *Filter) FilterZeroPhase(x []float64) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	padLen := f.padLength(len(x))
	ext := oddExtend(x, padLen)
	zi := f.steadyState()

	f.filterInPlace(ext, zi, ext[0])
	reverse(ext)
	f.filterInPlace(ext, zi, ext[0])
	reverse(ext)

	y := make([]float64, len(x))
	copy(y, ext[padLen:padLen+len(x)])
	return y
}

func oddExtend(x []float64, padLen int) []float64 {
	n := len(x)
	ext := make([]float64, n+2*padLen)
	first, last := x[0], x[n-1]
	for i := 0; i < padLen; i++ {
		ext[i] = 2*first - x[padLen-i]
		ext[padLen+n+i] = 2*last - x[n-2-i]
	}
	copy(ext[padLen:], x)
	return ext
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

// Apply designs a band-pass filter for the given sample rate and cutoffs
// and applies it with zero phase.
func Apply(
	x []float64,
	sampleRate float64,
	lowHz, highHz float64,
	order int,
) ([]float64, error) {
	low, high := NormalizeCutoffs(sampleRate, lowHz, highHz)
	f, err := Design(order, low, high)
	if err != nil {
		return nil, fmt.Errorf("unable to design a filter for %v-%vHz at %vHz: %w", lowHz, highHz, sampleRate, err)
	}
	return f.FilterZeroPhase(x), nil
}
