package recurrent

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/speechfilter/pkg/audio"
	"github.com/xaionaro-go/speechfilter/pkg/audio/resampler"
	"github.com/xaionaro-go/speechfilter/pkg/inference"
	"github.com/xaionaro-go/speechfilter/pkg/noisesuppression"
)

const (
	StateInputPrefix  = "inp_state_"
	StateOutputPrefix = "out_state_"
)

// ModelState maps a state input name to its current value.
type ModelState map[string]*inference.Tensor

func (s ModelState) Clone() ModelState {
	result := make(ModelState, len(s))
	for name, tensor := range s {
		result[name] = tensor.Clone()
	}
	return result
}

// Suppressor runs a recurrent denoising model chunk by chunk, feeding the
// state produced by every chunk into the next one.
//
// A Suppressor represents a single session: everything it processes is
// treated as a continuation of the same stream until ResetState is called.
type Suppressor struct {
	locker     sync.Mutex
	graph      inference.Graph
	sampleRate audio.SampleRate
	resampler  Resampler
	chunkSize  int

	// inputStates[inputIdx] is the state name of the input, or "" for the
	// audio input.
	inputStates []string

	// outputStates maps an output index to the state it updates.
	outputStates     map[int]string
	audioOutputIndex int

	state ModelState

	// brokenErr is set if the state became inconsistent.
	brokenErr error
}

var _ noisesuppression.NoiseSuppression = (*Suppressor)(nil)

// New prepares a session on top of the graph. The graph is owned by the
// Suppressor from now on.
func New(
	ctx context.Context,
	graph inference.Graph,
	opts ...Option,
) (_ret *Suppressor, _err error) {
	logger.Tracef(ctx, "New")
	defer func() { logger.Tracef(ctx, "/New: %v", _err) }()

	cfg := Options(opts).config()
	if cfg.SampleRate == 0 {
		return nil, fmt.Errorf("%w: the sample rate is not set", inference.ErrModelLoad)
	}

	s := &Suppressor{
		graph:            graph,
		sampleRate:       cfg.SampleRate,
		resampler:        cfg.Resampler,
		outputStates:     map[int]string{},
		audioOutputIndex: -1,
		state:            ModelState{},
	}

	audioInputIndex := -1
	for idx, info := range graph.Inputs() {
		if strings.HasPrefix(info.Name, StateInputPrefix) {
			if len(info.Shape) == 0 || !info.IsStatic() {
				return nil, fmt.Errorf("%w: the state input %s has no fixed shape", inference.ErrModelLoad, info)
			}
			if _, ok := s.state[info.Name]; ok {
				return nil, fmt.Errorf("%w: duplicate state input '%s'", inference.ErrModelLoad, info.Name)
			}
			s.state[info.Name] = inference.NewTensor(info.Shape)
			s.inputStates = append(s.inputStates, info.Name)
			continue
		}

		if audioInputIndex >= 0 {
			return nil, fmt.Errorf("%w: more than one audio input: %s and %s", inference.ErrModelLoad, graph.Inputs()[audioInputIndex], info)
		}
		if len(info.Shape) != 2 || info.Shape[0] != 1 || info.Shape[1] <= 0 {
			return nil, fmt.Errorf("%w: the audio input %s is expected to have shape [1, chunkSize]", inference.ErrModelLoad, info)
		}
		if info.Shape[1] > math.MaxInt32 {
			return nil, fmt.Errorf("%w: the chunk size of %s is too large", inference.ErrModelLoad, info)
		}
		audioInputIndex = idx
		s.chunkSize = int(info.Shape[1])
		s.inputStates = append(s.inputStates, "")
	}
	if audioInputIndex < 0 {
		return nil, fmt.Errorf("%w: no audio input among %v", inference.ErrModelLoad, graph.Inputs())
	}

	for idx, info := range graph.Outputs() {
		if strings.HasPrefix(info.Name, StateOutputPrefix) {
			stateName := StateInputPrefix + strings.TrimPrefix(info.Name, StateOutputPrefix)
			if _, ok := s.state[stateName]; !ok {
				return nil, fmt.Errorf("%w: output '%s' has no matching input '%s'", inference.ErrModelLoad, info.Name, stateName)
			}
			s.outputStates[idx] = stateName
			continue
		}

		if s.audioOutputIndex >= 0 {
			return nil, fmt.Errorf("%w: more than one audio output: %s and %s", inference.ErrModelLoad, graph.Outputs()[s.audioOutputIndex], info)
		}
		s.audioOutputIndex = idx
	}
	if s.audioOutputIndex < 0 {
		return nil, fmt.Errorf("%w: no audio output among %v", inference.ErrModelLoad, graph.Outputs())
	}

	updated := map[string]struct{}{}
	for _, stateName := range s.outputStates {
		updated[stateName] = struct{}{}
	}
	for _, stateName := range s.StateNames() {
		if _, ok := updated[stateName]; !ok {
			logger.Warnf(ctx, "state '%s' is never updated by the model", stateName)
		}
	}

	logger.Debugf(ctx, "chunk size: %d; sample rate: %d; states: %v", s.chunkSize, s.sampleRate, s.StateNames())
	return s, nil
}

func (s *Suppressor) Close() error {
	return s.graph.Close()
}

func (s *Suppressor) SampleRate() audio.SampleRate {
	return s.sampleRate
}

func (*Suppressor) Channels() audio.Channel {
	return 1
}

func (s *Suppressor) ChunkSize() uint {
	return uint(s.chunkSize)
}

// StateNames returns the names of the state inputs in the sorted order.
func (s *Suppressor) StateNames() []string {
	names := make([]string, 0, len(s.state))
	for name := range s.state {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// State returns a copy of the current state.
func (s *Suppressor) State() ModelState {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.state.Clone()
}

// ResetState zeroes every state tensor and recovers the session after
// a failure.
func (s *Suppressor) ResetState() {
	s.locker.Lock()
	defer s.locker.Unlock()
	for _, tensor := range s.state {
		clear(tensor.Data)
	}
	s.brokenErr = nil
}

func (s *Suppressor) SuppressChunk(
	ctx context.Context,
	chunk []float32,
) ([]float32, error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.suppressChunk(ctx, chunk)
}

func (s *Suppressor) suppressChunk(
	ctx context.Context,
	chunk []float32,
) ([]float32, error) {
	if s.brokenErr != nil {
		return nil, fmt.Errorf("the session is broken (ResetState is required): %w", s.brokenErr)
	}
	if len(chunk) != s.chunkSize {
		return nil, fmt.Errorf("expected a chunk of %d samples, but received %d", s.chunkSize, len(chunk))
	}

	result, err := s.runChunk(ctx, chunk)
	if err != nil {
		s.brokenErr = err
		return nil, err
	}
	return result, nil
}

// runChunk either updates the whole state and returns the cleaned
// samples, or returns an error and leaves the state as is.
func (s *Suppressor) runChunk(
	ctx context.Context,
	chunk []float32,
) ([]float32, error) {
	inputs := make([]*inference.Tensor, len(s.inputStates))
	for idx, stateName := range s.inputStates {
		if stateName == "" {
			inputs[idx] = &inference.Tensor{
				Shape: []int64{1, int64(s.chunkSize)},
				Data:  chunk,
			}
			continue
		}
		tensor, ok := s.state[stateName]
		if !ok || tensor == nil {
			return nil, fmt.Errorf("%w: '%s'", noisesuppression.ErrStateMissing, stateName)
		}
		inputs[idx] = tensor
	}

	outputs, err := s.graph.Run(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", inference.ErrInference, err)
	}
	if len(outputs) != len(s.graph.Outputs()) {
		return nil, fmt.Errorf("%w: expected %d outputs, but received %d", inference.ErrInference, len(s.graph.Outputs()), len(outputs))
	}

	cleaned := outputs[s.audioOutputIndex]
	if cleaned == nil || len(cleaned.Data) != s.chunkSize {
		return nil, fmt.Errorf("%w: unexpected shape of the audio output: %s", inference.ErrInference, describeTensor(cleaned))
	}
	for idx, stateName := range s.outputStates {
		out := outputs[idx]
		if out == nil {
			return nil, fmt.Errorf("%w: the model did not return '%s'", noisesuppression.ErrStateMissing, s.graph.Outputs()[idx].Name)
		}
		if len(out.Data) != len(s.state[stateName].Data) {
			return nil, fmt.Errorf("%w: unexpected shape of '%s': %s, expected %v", inference.ErrInference, s.graph.Outputs()[idx].Name, describeTensor(out), s.state[stateName].Shape)
		}
	}

	for idx, stateName := range s.outputStates {
		copy(s.state[stateName].Data, outputs[idx].Data)
	}
	return append([]float32(nil), cleaned.Data...), nil
}

func describeTensor(t *inference.Tensor) string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v (%d elements)", t.Shape, len(t.Data))
}

// Process denoises a whole buffer chunk by chunk in the order of the
// samples. The tail is padded with silence up to a whole chunk and the
// result is cut back to the original length.
//
// The context is checked only between chunks.
func (s *Suppressor) Process(
	ctx context.Context,
	in *audio.SampleBuffer,
) (_ret *audio.SampleBuffer, _err error) {
	logger.Tracef(ctx, "Process")
	defer func() { logger.Tracef(ctx, "/Process: %v", _err) }()

	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input buffer: %w", err)
	}
	if in.SampleRate == s.sampleRate && in.Channels == 1 {
		return s.processMono(ctx, in)
	}

	if s.resampler == nil {
		return nil, fmt.Errorf("%w: received %dHz/%dch, but the model requires %dHz/1ch", noisesuppression.ErrSampleRateMismatch, in.SampleRate, in.Channels, s.sampleRate)
	}
	logger.Debugf(ctx, "converting %dHz/%dch to %dHz/1ch", in.SampleRate, in.Channels, s.sampleRate)
	mono, err := s.resampler.Resample(in, resampler.Format{Channels: 1, SampleRate: s.sampleRate})
	if err != nil {
		return nil, fmt.Errorf("unable to convert the input to the model format: %w", err)
	}
	cleaned, err := s.processMono(ctx, mono)
	if err != nil {
		return nil, err
	}
	out, err := s.resampler.Resample(cleaned, resampler.Format{Channels: in.Channels, SampleRate: in.SampleRate})
	if err != nil {
		return nil, fmt.Errorf("unable to convert the output back to the input format: %w", err)
	}
	return fitLength(out, in.Length())
}

func (s *Suppressor) processMono(
	ctx context.Context,
	in *audio.SampleBuffer,
) (*audio.SampleBuffer, error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	if s.brokenErr != nil {
		return nil, fmt.Errorf("the session is broken (ResetState is required): %w", s.brokenErr)
	}

	originalLength := len(in.Samples)
	chunkCount := (originalLength + s.chunkSize - 1) / s.chunkSize
	padded := make([]float32, chunkCount*s.chunkSize)
	for idx, v := range in.Samples {
		padded[idx] = float32(v)
	}
	logger.Debugf(ctx, "processing %d samples as %d chunks of %d", originalLength, chunkCount, s.chunkSize)

	cleaned := make([]float64, 0, len(padded))
	for chunkIdx := 0; chunkIdx < chunkCount; chunkIdx++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("interrupted before chunk %d of %d: %w", chunkIdx, chunkCount, err)
		}
		offset := chunkIdx * s.chunkSize
		out, err := s.suppressChunk(ctx, padded[offset:offset+s.chunkSize])
		if err != nil {
			return nil, fmt.Errorf("unable to process chunk %d of %d: %w", chunkIdx, chunkCount, err)
		}
		for _, v := range out {
			cleaned = append(cleaned, float64(v))
		}
	}

	return &audio.SampleBuffer{
		SampleRate: s.sampleRate,
		Channels:   1,
		Layout:     in.Layout,
		Samples:    cleaned[:originalLength],
	}, nil
}

func fitLength(buf *audio.SampleBuffer, length int) (*audio.SampleBuffer, error) {
	if buf.Length() == length {
		return buf, nil
	}
	channelData, err := buf.ChannelData()
	if err != nil {
		return nil, err
	}
	for ch, samples := range channelData {
		fitted := make([]float64, length)
		copy(fitted, samples)
		channelData[ch] = fitted
	}
	return audio.NewSampleBufferFromChannels(buf.SampleRate, buf.Layout, channelData)
}
