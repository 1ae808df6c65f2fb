// Package spectrum provides coarse spectral diagnostics of sample buffers.
package spectrum

import (
	"fmt"
	"math"

	"github.com/brettbuddin/fourier"
	"github.com/xaionaro-go/speechfilter/pkg/audio"
)

const (
	// MaxWindowSize is the maximum amount of samples per FFT frame.
	MaxWindowSize = 4096

	MinRequiredSamples = 4
)

// SpeechBand is the telephone speech band.
var SpeechBand = Band{LowHz: 300, HighHz: 3400}

type Band struct {
	LowHz  float64
	HighHz float64
}

func (b Band) String() string {
	return fmt.Sprintf("%.0f-%.0fHz", b.LowHz, b.HighHz)
}

type BandEnergy struct {
	Band
	Energy float64

	// Ratio is Energy divided by the energy of the whole spectrum.
	Ratio float64
}

type Report struct {
	WindowSize  int
	Frames      int
	TotalEnergy float64
	Bands       []BandEnergy
}

// Analyze splits the samples into non-overlapping Hann-windowed frames,
// averages their power spectra and sums up the power within each band.
// Bins are included if LowHz <= f < HighHz.
func Analyze(
	samples []float64,
	sampleRate audio.SampleRate,
	bands ...Band,
) (*Report, error) {
	if len(samples) < MinRequiredSamples {
		return nil, fmt.Errorf("not enough samples: %d < %d", len(samples), MinRequiredSamples)
	}
	if sampleRate == 0 {
		return nil, fmt.Errorf("the sample rate is not set")
	}

	n := largestPowerOfTwo(min(len(samples), MaxWindowSize))
	window := hann(n)
	power := make([]float64, n/2+1)
	coeffs := make([]complex128, n)
	frames := 0
	for offset := 0; offset+n <= len(samples); offset += n {
		for i, v := range samples[offset : offset+n] {
			coeffs[i] = complex(v*window[i], 0)
		}
		if err := fourier.Forward(coeffs); err != nil {
			return nil, fmt.Errorf("unable to perform FFT: %w", err)
		}
		for k := range power {
			c := coeffs[k]
			power[k] += real(c)*real(c) + imag(c)*imag(c)
		}
		frames++
	}

	report := &Report{
		WindowSize: n,
		Frames:     frames,
	}
	for k := range power {
		power[k] /= float64(frames)
		report.TotalEnergy += power[k]
	}

	binWidth := float64(sampleRate) / float64(n)
	for _, band := range bands {
		e := BandEnergy{Band: band}
		for k, p := range power {
			freq := float64(k) * binWidth
			if freq >= band.LowHz && freq < band.HighHz {
				e.Energy += p
			}
		}
		if report.TotalEnergy > 0 {
			e.Ratio = e.Energy / report.TotalEnergy
		}
		report.Bands = append(report.Bands, e)
	}
	return report, nil
}

func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func largestPowerOfTwo(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
