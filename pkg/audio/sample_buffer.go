package audio

import (
	"fmt"

	"github.com/xaionaro-go/speechfilter/pkg/audio/planar"
)

type Layout int

const (
	LayoutInterleaved = Layout(iota)
	LayoutPlanar
)

func (l Layout) String() string {
	switch l {
	case LayoutInterleaved:
		return "interleaved"
	case LayoutPlanar:
		return "planar"
	default:
		return fmt.Sprintf("unknown_layout_%d", int(l))
	}
}

// SampleBuffer is a fully decoded multichannel audio track.
//
// Samples are normalized to [-1, 1]. With LayoutInterleaved samples of
// different channels alternate (L R L R ...), with LayoutPlanar every
// channel is stored as a contiguous block (L L ... R R ...).
type SampleBuffer struct {
	SampleRate SampleRate
	Channels   Channel
	Layout     Layout
	Samples    []float64
}

// Length returns the amount of samples per channel.
func (b *SampleBuffer) Length() int {
	if b == nil || b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / int(b.Channels)
}

func (b *SampleBuffer) Validate() error {
	if b == nil {
		return fmt.Errorf("the sample buffer is nil")
	}
	if b.SampleRate == 0 {
		return fmt.Errorf("the sample rate is not set")
	}
	if b.Channels == 0 {
		return fmt.Errorf("the amount of channels is not set")
	}
	if len(b.Samples)%int(b.Channels) != 0 {
		return fmt.Errorf("the amount of samples (%d) is not a multiple of the amount of channels (%d)", len(b.Samples), b.Channels)
	}
	switch b.Layout {
	case LayoutInterleaved, LayoutPlanar:
	default:
		return fmt.Errorf("unknown layout: %v", b.Layout)
	}
	return nil
}

// ChannelData returns a copy of the samples split per channel, regardless
// of the layout of the buffer.
func (b *SampleBuffer) ChannelData() ([][]float64, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	planarSamples := make([]float64, len(b.Samples))
	switch b.Layout {
	case LayoutPlanar:
		copy(planarSamples, b.Samples)
	case LayoutInterleaved:
		if err := planar.Planarize(b.Channels, planarSamples, b.Samples); err != nil {
			return nil, fmt.Errorf("unable to planarize: %w", err)
		}
	}
	return planar.Split(b.Channels, planarSamples)
}

// NewSampleBufferFromChannels assembles a buffer of the given layout from
// per-channel sample slices of equal length.
func NewSampleBufferFromChannels(
	sampleRate SampleRate,
	layout Layout,
	channelData [][]float64,
) (*SampleBuffer, error) {
	joined, err := planar.Join(channelData)
	if err != nil {
		return nil, fmt.Errorf("unable to join the channels: %w", err)
	}

	buf := &SampleBuffer{
		SampleRate: sampleRate,
		Channels:   Channel(len(channelData)),
		Layout:     layout,
		Samples:    joined,
	}
	switch layout {
	case LayoutPlanar:
	case LayoutInterleaved:
		buf.Samples = make([]float64, len(joined))
		if err := planar.Unplanarize(buf.Channels, buf.Samples, joined); err != nil {
			return nil, fmt.Errorf("unable to unplanarize: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown layout: %v", layout)
	}
	return buf, buf.Validate()
}
