package voiceenhancement

import (
	"context"
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/speechfilter/pkg/audio"
	"github.com/xaionaro-go/speechfilter/pkg/dsp/bandpass"
	"github.com/xaionaro-go/speechfilter/pkg/dsp/preemphasis"
)

func chirp(sampleRate float64, length int, phase float64) []float64 {
	result := make([]float64, length)
	for idx := range result {
		t := float64(idx) / sampleRate
		result[idx] = 0.3*math.Sin(2*math.Pi*(200+2000*t)*t+phase) + 0.1*math.Sin(2*math.Pi*50*t)
	}
	return result
}

func singleChannel(t *testing.T, samples []float64, sampleRate float64, cfg Config) []float64 {
	filtered, err := bandpass.Apply(preemphasis.Apply(samples, cfg.Alpha), sampleRate, cfg.LowCutHz, cfg.HighCutHz, cfg.Order)
	require.NoError(t, err)
	return filtered
}

func TestEnhance(t *testing.T) {
	ctx := context.Background()
	e := New()
	cfg := DefaultConfig()

	left := chirp(44100, 44100, 0)
	right := chirp(44100, 44100, 1)
	expectedLeft := singleChannel(t, left, 44100, cfg)
	expectedRight := singleChannel(t, right, 44100, cfg)

	for _, layout := range []audio.Layout{audio.LayoutInterleaved, audio.LayoutPlanar} {
		t.Run("channel_independence_"+layout.String(), func(t *testing.T) {
			in, err := audio.NewSampleBufferFromChannels(44100, layout, [][]float64{left, right})
			require.NoError(t, err)

			out, err := e.Enhance(ctx, in, cfg)
			require.NoError(t, err)
			require.Equal(t, in.SampleRate, out.SampleRate)
			require.Equal(t, in.Channels, out.Channels)
			require.Equal(t, layout, out.Layout)
			require.Equal(t, in.Length(), out.Length())

			channelData, err := out.ChannelData()
			require.NoError(t, err)
			require.Equal(t, expectedLeft, channelData[0])
			require.Equal(t, expectedRight, channelData[1])
		})
	}

	t.Run("order_of_stages", func(t *testing.T) {
		in := &audio.SampleBuffer{SampleRate: 44100, Channels: 1, Samples: left}
		out, err := e.Enhance(ctx, in, cfg)
		require.NoError(t, err)

		bandpassFirst, err := bandpass.Apply(left, 44100, cfg.LowCutHz, cfg.HighCutHz, cfg.Order)
		require.NoError(t, err)
		bandpassFirst = preemphasis.Apply(bandpassFirst, cfg.Alpha)
		assert.Equal(t, expectedLeft, out.Samples)

		// edge handling differs, so the stages do not commute
		assert.NotEqual(t, bandpassFirst, out.Samples)
	})

	t.Run("input_is_not_modified", func(t *testing.T) {
		samples := chirp(16000, 1000, 0)
		in := &audio.SampleBuffer{SampleRate: 16000, Channels: 1, Samples: append([]float64(nil), samples...)}
		_, err := e.Enhance(ctx, in, cfg)
		require.NoError(t, err)
		require.Equal(t, samples, in.Samples)
	})

	t.Run("empty", func(t *testing.T) {
		in := &audio.SampleBuffer{SampleRate: 44100, Channels: 2, Samples: []float64{}}
		out, err := e.Enhance(ctx, in, cfg)
		require.NoError(t, err)
		require.Equal(t, 0, out.Length())
	})

	t.Run("invalid_config", func(t *testing.T) {
		in := &audio.SampleBuffer{SampleRate: 44100, Channels: 1, Samples: left[:100]}
		for _, cfg := range []Config{
			{Alpha: -0.1, Order: 4, LowCutHz: 800, HighCutHz: 6000},
			{Alpha: 1, Order: 4, LowCutHz: 800, HighCutHz: 6000},
			{Alpha: 0.97, Order: 0, LowCutHz: 800, HighCutHz: 6000},
		} {
			_, err := e.Enhance(ctx, in, cfg)
			require.ErrorIs(t, err, ErrInvalidConfig, spew.Sdump(cfg))
		}
	})

	t.Run("degenerate_cutoffs", func(t *testing.T) {
		in := &audio.SampleBuffer{SampleRate: 1200, Channels: 1, Samples: left[:1200]}
		_, err := e.Enhance(ctx, in, cfg)
		require.ErrorIs(t, err, bandpass.ErrFilterDesign)
	})

	t.Run("invalid_buffer", func(t *testing.T) {
		in := &audio.SampleBuffer{SampleRate: 44100, Channels: 2, Samples: left[:3]}
		_, err := e.Enhance(ctx, in, cfg)
		require.Error(t, err)
	})
}
