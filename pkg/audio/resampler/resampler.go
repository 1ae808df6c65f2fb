package resampler

import (
	"fmt"
	"math"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
	"github.com/xaionaro-go/speechfilter/pkg/audio"
)

type Format struct {
	Channels   audio.Channel
	SampleRate audio.SampleRate
}

// Resampler converts whole sample buffers between sample rates and
// channel counts.
type Resampler struct {
	Quality resampling.QualitySpec

	locker sync.Mutex
	delays map[ratePair]int
}

func New() *Resampler {
	return &Resampler{
		Quality: resampling.QualitySpec{Preset: resampling.QualityHigh},
	}
}

// Resample returns a copy of the buffer in the output format. The layout
// of the input buffer is preserved.
//
// Channels are converted the same way regardless of the sample rate:
// N->1 averages all channels, 1->N repeats the only channel; any other
// combination is rejected.
func (r *Resampler) Resample(
	in *audio.SampleBuffer,
	outFormat Format,
) (*audio.SampleBuffer, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input buffer: %w", err)
	}
	if outFormat.Channels == 0 || outFormat.SampleRate == 0 {
		return nil, fmt.Errorf("invalid output format: %#+v", outFormat)
	}

	channelData, err := in.ChannelData()
	if err != nil {
		return nil, fmt.Errorf("unable to split the channels: %w", err)
	}

	channelData, err = convertChannels(channelData, outFormat.Channels)
	if err != nil {
		return nil, err
	}

	if in.SampleRate != outFormat.SampleRate {
		for ch, samples := range channelData {
			channelData[ch], err = r.resampleChannel(samples, in.SampleRate, outFormat.SampleRate)
			if err != nil {
				return nil, fmt.Errorf("unable to resample channel %d from %d to %d: %w", ch, in.SampleRate, outFormat.SampleRate, err)
			}
		}
	}

	return audio.NewSampleBufferFromChannels(outFormat.SampleRate, in.Layout, channelData)
}

func convertChannels(
	channelData [][]float64,
	outChannels audio.Channel,
) ([][]float64, error) {
	inChannels := audio.Channel(len(channelData))
	switch {
	case inChannels == outChannels:
		return channelData, nil
	case outChannels == 1:
		numAvg := float64(inChannels)
		mixed := make([]float64, len(channelData[0]))
		for _, samples := range channelData {
			for idx, v := range samples {
				mixed[idx] += v
			}
		}
		for idx := range mixed {
			mixed[idx] /= numAvg
		}
		return [][]float64{mixed}, nil
	case inChannels == 1:
		result := make([][]float64, outChannels)
		for ch := range result {
			result[ch] = make([]float64, len(channelData[0]))
			copy(result[ch], channelData[0])
		}
		return result, nil
	default:
		return nil, fmt.Errorf("do not know how to convert %d channels to %d", inChannels, outChannels)
	}
}

func (r *Resampler) resampleChannel(
	samples []float64,
	inRate, outRate audio.SampleRate,
) ([]float64, error) {
	expectedLength := int(math.Round(float64(len(samples)) * float64(outRate) / float64(inRate)))
	if len(samples) == 0 {
		return []float64{}, nil
	}

	delay, err := r.delay(inRate, outRate)
	if err != nil {
		return nil, err
	}

	output, err := r.process(samples, inRate, outRate)
	if err != nil {
		return nil, err
	}

	result := make([]float64, expectedLength)
	if delay < len(output) {
		copy(result, output[delay:])
	}
	return result, nil
}

func (r *Resampler) process(
	samples []float64,
	inRate, outRate audio.SampleRate,
) ([]float64, error) {
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(inRate),
		OutputRate: float64(outRate),
		Channels:   1,
		Quality:    r.Quality,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	// the filter holds back a tail of samples, push it out with silence
	tailPadding := int(inRate)/10 + 1024
	input := make([]float64, len(samples)+tailPadding)
	copy(input, samples)

	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	return output, nil
}

type ratePair struct {
	In  audio.SampleRate
	Out audio.SampleRate
}

// delay returns how many leading output samples the filters of the
// conversion inRate->outRate shift the signal by. It is measured on an
// impulse at the first sample, which lands exactly on the output grid.
func (r *Resampler) delay(inRate, outRate audio.SampleRate) (int, error) {
	key := ratePair{In: inRate, Out: outRate}
	r.locker.Lock()
	delay, ok := r.delays[key]
	r.locker.Unlock()
	if ok {
		return delay, nil
	}

	response, err := r.process([]float64{1}, inRate, outRate)
	if err != nil {
		return 0, fmt.Errorf("unable to measure the delay of %d->%d: %w", inRate, outRate, err)
	}
	peak := 0.0
	for idx, v := range response {
		if math.Abs(v) > peak {
			peak = math.Abs(v)
			delay = idx
		}
	}

	r.locker.Lock()
	defer r.locker.Unlock()
	if r.delays == nil {
		r.delays = map[ratePair]int{}
	}
	r.delays[key] = delay
	return delay, nil
}
