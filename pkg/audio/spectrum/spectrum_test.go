package spectrum

import (
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tone(sampleRate, freq float64, length int) []float64 {
	result := make([]float64, length)
	for idx := range result {
		result[idx] = math.Sin(2 * math.Pi * freq * float64(idx) / sampleRate)
	}
	return result
}

func TestAnalyze(t *testing.T) {
	highBand := Band{LowHz: 6000, HighHz: 22050}

	t.Run("speech_tone", func(t *testing.T) {
		report, err := Analyze(tone(44100, 1000, 44100), 44100, SpeechBand, highBand)
		require.NoError(t, err)
		require.Len(t, report.Bands, 2, spew.Sdump(report))
		assert.Equal(t, MaxWindowSize, report.WindowSize)
		assert.Equal(t, 44100/MaxWindowSize, report.Frames)
		assert.Greater(t, report.Bands[0].Ratio, 0.99)
		assert.Less(t, report.Bands[1].Ratio, 0.01)
	})

	t.Run("high_tone", func(t *testing.T) {
		report, err := Analyze(tone(44100, 9000, 44100), 44100, SpeechBand, highBand)
		require.NoError(t, err)
		assert.Less(t, report.Bands[0].Ratio, 0.01)
		assert.Greater(t, report.Bands[1].Ratio, 0.99)
	})

	t.Run("short_input", func(t *testing.T) {
		report, err := Analyze(tone(16000, 1000, 100), 16000, SpeechBand)
		require.NoError(t, err)
		assert.Equal(t, 64, report.WindowSize)
		assert.Equal(t, 1, report.Frames)
	})

	t.Run("silence", func(t *testing.T) {
		report, err := Analyze(make([]float64, 1000), 16000, SpeechBand)
		require.NoError(t, err)
		assert.Zero(t, report.TotalEnergy)
		assert.Zero(t, report.Bands[0].Ratio)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := Analyze([]float64{1, 2}, 16000)
		require.Error(t, err)
		_, err = Analyze(make([]float64, 100), 0)
		require.Error(t, err)
	})
}

func TestLargestPowerOfTwo(t *testing.T) {
	for in, out := range map[int]int{1: 1, 2: 2, 3: 2, 1000: 512, 1024: 1024, 4097: 4096} {
		assert.Equal(t, out, largestPowerOfTwo(in), "in=%d", in)
	}
}
