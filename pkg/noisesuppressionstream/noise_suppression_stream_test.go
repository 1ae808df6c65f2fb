package noisesuppressionstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/speechfilter/pkg/audio"
	"github.com/xaionaro-go/speechfilter/pkg/audio/resampler"
	"github.com/xaionaro-go/speechfilter/pkg/noisesuppression"
)

type halvingSuppression struct {
	*noisesuppression.Dummy
	locker sync.Mutex
	chunks [][]float32
	failAt int
}

func (s *halvingSuppression) SuppressChunk(ctx context.Context, chunk []float32) ([]float32, error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.chunks = append(s.chunks, append([]float32(nil), chunk...))
	if s.failAt > 0 && len(s.chunks) == s.failAt {
		return nil, fmt.Errorf("deliberate failure")
	}
	result := make([]float32, len(chunk))
	for idx, v := range chunk {
		result[idx] = v / 2
	}
	return result, nil
}

func pcm(t *testing.T, format audio.PCMFormat, length int) ([]float64, []byte) {
	samples := make([]float64, length)
	for idx := range samples {
		samples[idx] = 0.8 * math.Sin(float64(idx)/10)
	}
	data, err := resampler.EncodePCM(format, samples)
	require.NoError(t, err)
	return samples, data
}

func TestNoiseSuppressionStream(t *testing.T) {
	ctx := context.Background()

	t.Run("identity_f32le", func(t *testing.T) {
		_, data := pcm(t, audio.PCMFormatFloat32LE, 1000)
		s, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(data), noisesuppression.NewDummy(16000, 1, 128), audio.PCMFormatFloat32LE, 4096, 4096)
		require.NoError(t, err)
		defer s.Close()

		out, err := io.ReadAll(s)
		require.NoError(t, err)
		require.Equal(t, data, out)
	})

	t.Run("ordered_chunks_with_padding", func(t *testing.T) {
		samples, data := pcm(t, audio.PCMFormatS16LE, 300)
		ns := &halvingSuppression{Dummy: noisesuppression.NewDummy(16000, 1, 128)}
		s, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(data), ns, audio.PCMFormatS16LE, 1024, 1024)
		require.NoError(t, err)
		defer s.Close()

		out, err := io.ReadAll(s)
		require.NoError(t, err)
		require.Len(t, out, len(data))

		require.Len(t, ns.chunks, 3)
		for idx, v := range ns.chunks[2][300-256:] {
			require.Zero(t, v, "padding sample %d", idx)
		}
		decoded, err := resampler.DecodePCM(audio.PCMFormatS16LE, out)
		require.NoError(t, err)
		for idx, v := range decoded {
			require.InDelta(t, samples[idx]/2, v, 1e-4, "sample %d", idx)
		}
		// the chunks arrived in order
		assert.InDelta(t, samples[128], ns.chunks[1][0], 1e-4)
		assert.InDelta(t, samples[256], ns.chunks[2][0], 1e-4)
	})

	t.Run("one_byte_reads_and_small_buffers", func(t *testing.T) {
		_, data := pcm(t, audio.PCMFormatFloat32LE, 1000)
		s, err := NewNoiseSuppressionStream(ctx, iotest.OneByteReader(bytes.NewReader(data)), noisesuppression.NewDummy(16000, 1, 32), audio.PCMFormatFloat32LE, 256, 256)
		require.NoError(t, err)
		defer s.Close()

		out, err := io.ReadAll(iotest.OneByteReader(s))
		require.NoError(t, err)
		require.Equal(t, data, out)
	})

	t.Run("stereo", func(t *testing.T) {
		_, data := pcm(t, audio.PCMFormatFloat32LE, 2*333)
		s, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(data), noisesuppression.NewDummy(16000, 2, 64), audio.PCMFormatFloat32LE, 4096, 4096)
		require.NoError(t, err)
		defer s.Close()

		out, err := io.ReadAll(s)
		require.NoError(t, err)
		require.Equal(t, data, out)
	})

	t.Run("empty", func(t *testing.T) {
		s, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(nil), noisesuppression.NewDummy(16000, 1, 128), audio.PCMFormatFloat32LE, 4096, 4096)
		require.NoError(t, err)
		defer s.Close()

		out, err := io.ReadAll(s)
		require.NoError(t, err)
		require.Empty(t, out)
	})

	t.Run("suppression_error", func(t *testing.T) {
		_, data := pcm(t, audio.PCMFormatS16LE, 1000)
		ns := &halvingSuppression{Dummy: noisesuppression.NewDummy(16000, 1, 128), failAt: 2}
		s, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(data), ns, audio.PCMFormatS16LE, 4096, 4096)
		require.NoError(t, err)
		defer s.Close()

		_, err = io.ReadAll(s)
		require.Error(t, err)
	})

	t.Run("truncated_sample", func(t *testing.T) {
		_, data := pcm(t, audio.PCMFormatS16LE, 100)
		s, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(data[:len(data)-1]), noisesuppression.NewDummy(16000, 1, 128), audio.PCMFormatS16LE, 4096, 4096)
		require.NoError(t, err)
		defer s.Close()

		_, err = io.ReadAll(s)
		require.Error(t, err)
	})

	t.Run("reader_error", func(t *testing.T) {
		s, err := NewNoiseSuppressionStream(ctx, iotest.ErrReader(fmt.Errorf("broken pipe")), noisesuppression.NewDummy(16000, 1, 128), audio.PCMFormatS16LE, 4096, 4096)
		require.NoError(t, err)
		defer s.Close()

		_, err = io.ReadAll(s)
		require.ErrorContains(t, err, "broken pipe")
	})

	t.Run("invalid_arguments", func(t *testing.T) {
		_, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(nil), noisesuppression.NewDummy(16000, 1, 128), audio.PCMFormatFloat32LE, 512, 4096)
		require.Error(t, err)
		_, err = NewNoiseSuppressionStream(ctx, bytes.NewReader(nil), noisesuppression.NewDummy(16000, 1, 128), audio.PCMFormatUndefined, 4096, 4096)
		require.Error(t, err)
		_, err = NewNoiseSuppressionStream(ctx, bytes.NewReader(nil), noisesuppression.NewDummy(16000, 1, 0), audio.PCMFormatFloat32LE, 4096, 4096)
		require.Error(t, err)
	})
}
