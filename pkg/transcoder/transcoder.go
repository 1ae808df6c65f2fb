package transcoder

import (
	"context"
	"errors"

	"github.com/xaionaro-go/speechfilter/pkg/audio"
)

var (
	ErrExtraction = errors.New("unable to extract the audio track")
	ErrRemux      = errors.New("unable to remux the audio track")
)

type ExtractRequest struct {
	MediaPath string

	// WorkDir is a directory for intermediate files, owned by the caller.
	WorkDir string

	SampleRate audio.SampleRate
	Channels   audio.Channel
}

type RemuxRequest struct {
	OriginalMediaPath string
	OutputPath        string
	WorkDir           string
	Samples           *audio.SampleBuffer
}

// SampleIO moves audio between media containers and sample buffers.
type SampleIO interface {
	// Extract decodes the first audio track of the media file, converted
	// to the requested sample rate and amount of channels.
	Extract(ctx context.Context, req ExtractRequest) (*audio.SampleBuffer, error)

	// Remux writes a copy of the original media file with the audio track
	// replaced by the samples.
	Remux(ctx context.Context, req RemuxRequest) error
}
