package noisesuppression

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/speechfilter/pkg/audio"
)

type Dummy struct {
	SampleRateValue audio.SampleRate
	ChannelsValue   audio.Channel
	ChunkSizeValue  uint
}

var _ NoiseSuppression = (*Dummy)(nil)

func NewDummy(
	sampleRate audio.SampleRate,
	channels audio.Channel,
	chunkSize uint,
) *Dummy {
	return &Dummy{
		SampleRateValue: sampleRate,
		ChannelsValue:   channels,
		ChunkSizeValue:  chunkSize,
	}
}

func (s *Dummy) Close() error {
	return nil
}

func (s *Dummy) SampleRate() audio.SampleRate {
	return s.SampleRateValue
}

func (s *Dummy) Channels() audio.Channel {
	return s.ChannelsValue
}

func (s *Dummy) ChunkSize() uint {
	return s.ChunkSizeValue
}

func (s *Dummy) SuppressChunk(_ context.Context, chunk []float32) ([]float32, error) {
	if uint(len(chunk)) != s.ChunkSizeValue*uint(s.ChannelsValue) {
		return nil, fmt.Errorf("expected a chunk of %d samples, but received %d", s.ChunkSizeValue*uint(s.ChannelsValue), len(chunk))
	}
	return append([]float32(nil), chunk...), nil
}

func (s *Dummy) Process(_ context.Context, in *audio.SampleBuffer) (*audio.SampleBuffer, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.SampleRate != s.SampleRateValue || in.Channels != s.ChannelsValue {
		return nil, fmt.Errorf("%w: %dHz/%dch != %dHz/%dch", ErrSampleRateMismatch, in.SampleRate, in.Channels, s.SampleRateValue, s.ChannelsValue)
	}
	out := *in
	out.Samples = append([]float64(nil), in.Samples...)
	return &out, nil
}

func (*Dummy) ResetState() {}
