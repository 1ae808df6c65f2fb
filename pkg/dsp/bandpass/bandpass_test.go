package bandpass

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/mjibson/go-dsp/fft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tone(sampleRate, freq float64, length int) []float64 {
	result := make([]float64, length)
	for idx := range result {
		result[idx] = 0.5 * math.Sin(2*math.Pi*freq*float64(idx)/sampleRate)
	}
	return result
}

// toneMagnitude expects len(x) to be equal to the sample rate, so that
// every bin is exactly 1Hz wide.
func toneMagnitude(x []float64, freq int) float64 {
	return cmplx.Abs(fft.FFTReal(x)[freq])
}

func TestNormalizeCutoffs(t *testing.T) {
	t.Run("44100Hz_defaults", func(t *testing.T) {
		low, high := NormalizeCutoffs(44100, DefaultLowCutHz, DefaultHighCutHz)
		assert.InDelta(t, 0.0363, low, 1e-4)
		assert.InDelta(t, 0.272, high, 1e-3)
		assert.Equal(t, float64(DefaultLowCutHz)/22050, low)
		assert.Equal(t, float64(DefaultHighCutHz)/22050, high)
	})

	t.Run("clamping", func(t *testing.T) {
		low, high := NormalizeCutoffs(44100, 1, 30000)
		assert.Equal(t, minNormalizedCutoff, low)
		assert.Equal(t, maxNormalizedCutoff, high)
	})

	t.Run("1200Hz_degenerate", func(t *testing.T) {
		low, high := NormalizeCutoffs(1200, DefaultLowCutHz, DefaultHighCutHz)
		assert.Equal(t, maxNormalizedCutoff, low)
		assert.Equal(t, maxNormalizedCutoff, high)

		_, err := Design(DefaultOrder, low, high)
		require.ErrorIs(t, err, ErrFilterDesign)
	})

	t.Run("inverted_cutoffs", func(t *testing.T) {
		low, high := NormalizeCutoffs(44100, 6000, 800)
		assert.Equal(t, float64(6000)/22050, low)
		assert.Equal(t, maxNormalizedCutoff, high)
	})
}

func TestDesign(t *testing.T) {
	t.Run("errors", func(t *testing.T) {
		for name, args := range map[string]struct {
			order     int
			low, high float64
		}{
			"zero_order":     {0, 0.1, 0.2},
			"negative_order": {-1, 0.1, 0.2},
			"NaN":            {4, math.NaN(), 0.2},
			"Inf":            {4, 0.1, math.Inf(1)},
			"equal":          {4, 0.2, 0.2},
			"inverted":       {4, 0.3, 0.2},
			"out_of_range":   {4, 0.1, 1.2},
		} {
			t.Run(name, func(t *testing.T) {
				_, err := Design(args.order, args.low, args.high)
				require.ErrorIs(t, err, ErrFilterDesign)
			})
		}
	})

	t.Run("stable_sections", func(t *testing.T) {
		low, high := NormalizeCutoffs(44100, DefaultLowCutHz, DefaultHighCutHz)
		for order := 1; order <= 10; order++ {
			f, err := Design(order, low, high)
			require.NoError(t, err, "order=%d", order)
			require.Len(t, f.Sections, order)
			for idx, s := range f.Sections {
				// a stable biquad has both roots of z²+a1*z+a2 inside the unit circle
				assert.Less(t, math.Abs(s.A[2]), 1.0, "order=%d section=%d: %s", order, idx, spew.Sdump(s))
				assert.Less(t, math.Abs(s.A[1]), 1+s.A[2], "order=%d section=%d: %s", order, idx, spew.Sdump(s))
			}
		}
	})
}

func TestFilterZeroPhase(t *testing.T) {
	t.Run("length_is_preserved", func(t *testing.T) {
		low, high := NormalizeCutoffs(44100, DefaultLowCutHz, DefaultHighCutHz)
		rng := rand.New(rand.NewSource(0))
		for order := 1; order <= 8; order++ {
			f, err := Design(order, low, high)
			require.NoError(t, err)
			for _, length := range []int{0, 1, 2, 3, 10, 26, 27, 28, 100, 1000} {
				x := make([]float64, length)
				for idx := range x {
					x[idx] = rng.Float64()*2 - 1
				}
				y := f.FilterZeroPhase(x)
				require.NotNil(t, y)
				require.Len(t, y, length, "order=%d", order)
				for _, v := range y {
					require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "order=%d length=%d", order, length)
				}
			}
		}
	})

	t.Run("44100_samples", func(t *testing.T) {
		x := tone(44100, 440, 44100)
		y, err := Apply(x, 44100, DefaultLowCutHz, DefaultHighCutHz, DefaultOrder)
		require.NoError(t, err)
		require.Len(t, y, 44100)
	})

	t.Run("passband_has_no_phase_shift", func(t *testing.T) {
		x := tone(44100, 3000, 44100)
		y, err := Apply(x, 44100, DefaultLowCutHz, DefaultHighCutHz, DefaultOrder)
		require.NoError(t, err)

		assert.InDelta(t, 1, toneMagnitude(y, 3000)/toneMagnitude(x, 3000), 0.01)
		for idx := len(x) / 4; idx < 3*len(x)/4; idx++ {
			require.InDelta(t, x[idx], y[idx], 1e-3, "idx=%d", idx)
		}
	})

	t.Run("stopband", func(t *testing.T) {
		for _, freq := range []int{100, 15000} {
			x := tone(44100, float64(freq), 44100)
			y, err := Apply(x, 44100, DefaultLowCutHz, DefaultHighCutHz, DefaultOrder)
			require.NoError(t, err)
			assert.Less(t, toneMagnitude(y, freq)/toneMagnitude(x, freq), 0.01, "freq=%d", freq)
		}
	})

	t.Run("input_is_not_modified", func(t *testing.T) {
		x := tone(16000, 1000, 256)
		orig := append([]float64(nil), x...)
		_, err := Apply(x, 16000, DefaultLowCutHz, DefaultHighCutHz, DefaultOrder)
		require.NoError(t, err)
		require.Equal(t, orig, x)
	})

	t.Run("degenerate_sample_rate", func(t *testing.T) {
		_, err := Apply(tone(1200, 100, 1200), 1200, DefaultLowCutHz, DefaultHighCutHz, DefaultOrder)
		require.ErrorIs(t, err, ErrFilterDesign)
	})
}

func TestFilterCausal(t *testing.T) {
	low, high := NormalizeCutoffs(44100, DefaultLowCutHz, DefaultHighCutHz)
	f, err := Design(DefaultOrder, low, high)
	require.NoError(t, err)

	impulse := make([]float64, 4096)
	impulse[0] = 1
	y := f.Filter(impulse)
	require.Len(t, y, len(impulse))

	// the response decays and has no DC
	var sum float64
	for _, v := range y {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-3)
	assert.InDelta(t, 0, y[len(y)-1], 1e-6)
}

func BenchmarkFilterZeroPhase(b *testing.B) {
	low, high := NormalizeCutoffs(44100, DefaultLowCutHz, DefaultHighCutHz)
	f, err := Design(DefaultOrder, low, high)
	require.NoError(b, err)
	x := tone(44100, 440, 44100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.FilterZeroPhase(x)
	}
}
