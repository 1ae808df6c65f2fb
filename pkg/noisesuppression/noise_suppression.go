package noisesuppression

import (
	"context"
	"errors"
	"io"

	"github.com/xaionaro-go/speechfilter/pkg/audio"
)

var (
	ErrSampleRateMismatch = errors.New("the audio format does not match the one of the model")
	ErrStateMissing       = errors.New("a recurrent state tensor is missing")
)

type NoiseSuppression interface {
	io.Closer

	SampleRate() audio.SampleRate
	Channels() audio.Channel

	// ChunkSize is the amount of samples per channel consumed by a single
	// SuppressChunk call.
	ChunkSize() uint

	// SuppressChunk processes exactly ChunkSize samples, continuing from
	// the state left by the previous call.
	SuppressChunk(ctx context.Context, chunk []float32) ([]float32, error)

	// Process denoises a whole buffer; the result has the same length.
	Process(ctx context.Context, in *audio.SampleBuffer) (*audio.SampleBuffer, error)

	// ResetState forgets everything learned from previously processed
	// samples.
	ResetState()
}
