package filter

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/speechfilter/pkg/audio/resampler"
	"github.com/xaionaro-go/speechfilter/pkg/inference"
	"github.com/xaionaro-go/speechfilter/pkg/inference/implementations/onnx"
	"github.com/xaionaro-go/speechfilter/pkg/noisesuppression"
	"github.com/xaionaro-go/speechfilter/pkg/noisesuppression/implementations/recurrent"
)

// SuppressorFactory creates a new session of noise suppression. Every
// call must return an independent session.
type SuppressorFactory func(ctx context.Context, cfg NeuralConfig) (noisesuppression.NoiseSuppression, error)

// ONNXSuppressorFactory loads the model with onnxruntime.
func ONNXSuppressorFactory(ctx context.Context, cfg NeuralConfig) (noisesuppression.NoiseSuppression, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !onnx.IsAvailable(cfg.SharedLibraryPath) {
		return nil, fmt.Errorf("%w: onnxruntime cannot be loaded (shared library path: '%s')", inference.ErrModelUnavailable, cfg.SharedLibraryPath)
	}

	graph, err := onnx.Load(ctx, cfg.ModelPath, onnx.Options{
		Device:            onnx.Device(cfg.Device),
		SharedLibraryPath: cfg.SharedLibraryPath,
	})
	if err != nil {
		return nil, err
	}

	opts := []recurrent.Option{
		recurrent.OptionResampler{Resampler: resampler.New()},
	}
	if cfg.SampleRate != 0 {
		opts = append(opts, recurrent.OptionSampleRate(cfg.SampleRate))
	}
	s, err := recurrent.New(ctx, graph, opts...)
	if err != nil {
		graph.Close()
		return nil, err
	}
	return s, nil
}
