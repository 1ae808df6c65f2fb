package voiceenhancement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/speechfilter/pkg/audio"
	"github.com/xaionaro-go/speechfilter/pkg/dsp/bandpass"
	"github.com/xaionaro-go/speechfilter/pkg/dsp/preemphasis"
)

var ErrInvalidConfig = errors.New("invalid voice enhancement config")

type Config struct {
	Alpha     float64 `yaml:"alpha"`
	Order     int     `yaml:"order"`
	LowCutHz  float64 `yaml:"low_cut_hz"`
	HighCutHz float64 `yaml:"high_cut_hz"`
}

func DefaultConfig() Config {
	return Config{
		Alpha:     preemphasis.DefaultAlpha,
		Order:     bandpass.DefaultOrder,
		LowCutHz:  bandpass.DefaultLowCutHz,
		HighCutHz: bandpass.DefaultHighCutHz,
	}
}

func (cfg Config) Validate() error {
	if cfg.Alpha < 0 || cfg.Alpha >= 1 {
		return fmt.Errorf("%w: alpha should be within [0, 1), but it is %v", ErrInvalidConfig, cfg.Alpha)
	}
	if cfg.Order < 1 {
		return fmt.Errorf("%w: the order should be positive, but it is %d", ErrInvalidConfig, cfg.Order)
	}
	return nil
}

// Engine applies pre-emphasis followed by a zero-phase band-pass filter
// to every channel of a buffer. It has no state, so a single Engine may
// be used concurrently.
type Engine struct{}

func New() *Engine {
	return &Engine{}
}

// Enhance returns a new buffer of the same format and length as the
// input one. Channels are processed independently of each other.
func (e *Engine) Enhance(
	ctx context.Context,
	in *audio.SampleBuffer,
	cfg Config,
) (_ret *audio.SampleBuffer, _err error) {
	logger.Tracef(ctx, "Enhance")
	defer func() { logger.Tracef(ctx, "/Enhance: %v", _err) }()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	channelData, err := in.ChannelData()
	if err != nil {
		return nil, fmt.Errorf("unable to get the samples per channel: %w", err)
	}

	low, high := bandpass.NormalizeCutoffs(float64(in.SampleRate), cfg.LowCutHz, cfg.HighCutHz)
	logger.Debugf(ctx, "normalized cutoffs: %v %v", low, high)
	filter, err := bandpass.Design(cfg.Order, low, high)
	if err != nil {
		return nil, fmt.Errorf("unable to design a filter for %v-%vHz at %dHz: %w", cfg.LowCutHz, cfg.HighCutHz, in.SampleRate, err)
	}

	var wg sync.WaitGroup
	for ch, samples := range channelData {
		wg.Add(1)
		observability.Go(ctx, func(ctx context.Context) {
			defer wg.Done()
			channelData[ch] = enhanceChannel(samples, cfg.Alpha, filter)
		})
	}
	wg.Wait()

	return audio.NewSampleBufferFromChannels(in.SampleRate, in.Layout, channelData)
}

func enhanceChannel(
	samples []float64,
	alpha float64,
	filter *bandpass.Filter,
) []float64 {
	return filter.FilterZeroPhase(preemphasis.Apply(samples, alpha))
}
