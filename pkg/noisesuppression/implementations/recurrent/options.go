package recurrent

import (
	"github.com/xaionaro-go/speechfilter/pkg/audio"
	"github.com/xaionaro-go/speechfilter/pkg/audio/resampler"
)

const DefaultSampleRate = audio.SampleRate(16000)

// Resampler converts buffers that do not match the format of the model.
type Resampler interface {
	Resample(in *audio.SampleBuffer, outFormat resampler.Format) (*audio.SampleBuffer, error)
}

type config struct {
	SampleRate audio.SampleRate
	Resampler  Resampler
}

type Option interface {
	apply(*config)
}

type Options []Option

func (s Options) config() config {
	cfg := config{
		SampleRate: DefaultSampleRate,
	}
	for _, opt := range s {
		opt.apply(&cfg)
	}
	return cfg
}

// OptionSampleRate sets the native sample rate of the model.
type OptionSampleRate audio.SampleRate

func (opt OptionSampleRate) apply(cfg *config) {
	cfg.SampleRate = audio.SampleRate(opt)
}

// OptionResampler enables processing of buffers of any format: they are
// converted to the model format and back.
type OptionResampler struct {
	Resampler
}

func (opt OptionResampler) apply(cfg *config) {
	cfg.Resampler = opt.Resampler
}
