package bandpass

import (
	"fmt"
	"math"
	"math/cmplx"
)

const (
	DefaultLowCutHz  = 800
	DefaultHighCutHz = 6000
	DefaultOrder     = 4

	minNormalizedCutoff = 0.001
	maxNormalizedCutoff = 0.999
)

// Section is a second-order IIR section:
//
//	H(z) = (B[0] + B[1]/z + B[2]/z²) / (A[0] + A[1]/z + A[2]/z²)
//
// with A[0] always equal to 1.
type Section struct {
	B [3]float64
	A [3]float64
}

// Filter is a cascade of second-order sections.
type Filter struct {
	Sections []Section
}

// NormalizeCutoffs converts the cutoffs to fractions of the Nyquist
// frequency and clamps them into [0.001, 0.999]. If the clamped lower
// cutoff is not below the upper one, the upper one is forced to 0.999.
func NormalizeCutoffs(sampleRate float64, lowHz, highHz float64) (float64, float64) {
	nyquist := sampleRate / 2
	low := clampCutoff(lowHz / nyquist)
	high := clampCutoff(highHz / nyquist)
	if low >= high {
		high = maxNormalizedCutoff
	}
	return low, high
}

func clampCutoff(v float64) float64 {
	switch {
	case v < minNormalizedCutoff:
		return minNormalizedCutoff
	case v > maxNormalizedCutoff:
		return maxNormalizedCutoff
	}
	return v
}

// Design builds a digital Butterworth band-pass filter of the given order
// with cutoffs normalized to the Nyquist frequency. The result has
// exactly `order` sections.
//
// The filter is derived from the analog prototype through the low-pass to
// band-pass transformation followed by the bilinear transformation (with
// pre-warped cutoffs).
func Design(order int, low, high float64) (*Filter, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: the order should be positive, but it is %d", ErrFilterDesign, order)
	}
	if math.IsNaN(low) || math.IsNaN(high) || math.IsInf(low, 0) || math.IsInf(high, 0) {
		return nil, fmt.Errorf("%w: non-finite cutoffs: %v, %v", ErrFilterDesign, low, high)
	}
	if low <= 0 || high >= 1 {
		return nil, fmt.Errorf("%w: the cutoffs should be within (0, 1): %v, %v", ErrFilterDesign, low, high)
	}
	if low >= high {
		return nil, fmt.Errorf("%w: the lower cutoff (%v) is not below the upper cutoff (%v)", ErrFilterDesign, low, high)
	}

	// fs=2 after the normalization, so 2*fs == 4
	const fs2 = 4
	w1 := fs2 * math.Tan(math.Pi*low/2)
	w2 := fs2 * math.Tan(math.Pi*high/2)
	bw := w2 - w1
	wo := complex(math.Sqrt(w1*w2), 0)

	toBandPass := func(p complex128) (complex128, complex128) {
		pLP := p * complex(bw/2, 0)
		d := cmplx.Sqrt(pLP*pLP - wo*wo)
		return pLP + d, pLP - d
	}
	bilinear := func(p complex128) complex128 {
		return (fs2 + p) / (fs2 - p)
	}

	var (
		sections  []Section
		analogDen = complex(1, 0)
	)
	addSection := func(p0, p1 complex128) error {
		analogDen *= (fs2 - p0) * (fs2 - p1)
		z0, z1 := bilinear(p0), bilinear(p1)
		for _, z := range []complex128{z0, z1} {
			if cmplx.IsNaN(z) || cmplx.IsInf(z) {
				return fmt.Errorf("%w: got a non-finite pole", ErrFilterDesign)
			}
			if cmplx.Abs(z) >= 1 {
				return fmt.Errorf("%w: unstable pole %v (|p| = %v)", ErrFilterDesign, z, cmplx.Abs(z))
			}
		}
		sections = append(sections, Section{
			B: [3]float64{1, 0, -1},
			A: [3]float64{1, -real(z0 + z1), real(z0 * z1)},
		})
		return nil
	}

	for i := 0; i < order/2; i++ {
		m := float64(-order + 1 + 2*i)
		p := -cmplx.Exp(complex(0, math.Pi*m/float64(2*order)))
		pa, pb := toBandPass(p)
		if err := addSection(pa, cmplx.Conj(pa)); err != nil {
			return nil, err
		}
		if err := addSection(pb, cmplx.Conj(pb)); err != nil {
			return nil, err
		}
	}
	if order%2 == 1 {
		// the real pole of the prototype
		pa, pb := toBandPass(-1)
		if err := addSection(pa, pb); err != nil {
			return nil, err
		}
	}

	gain := math.Pow(bw, float64(order)) * real(complex(math.Pow(fs2, float64(order)), 0)/analogDen)
	if math.IsNaN(gain) || math.IsInf(gain, 0) || gain == 0 {
		return nil, fmt.Errorf("%w: invalid gain: %v", ErrFilterDesign, gain)
	}
	for idx := range sections[0].B {
		sections[0].B[idx] *= gain
	}

	return &Filter{Sections: sections}, nil
}
