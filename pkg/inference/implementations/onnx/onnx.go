//go:build cgo
// +build cgo

package onnx

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/speechfilter/pkg/inference"
	ort "github.com/yalue/onnxruntime_go"
)

type Graph struct {
	locker  sync.Mutex
	session *ort.DynamicAdvancedSession
	inputs  []inference.TensorInfo
	outputs []inference.TensorInfo
}

var _ inference.Graph = (*Graph)(nil)

var environmentLocker sync.Mutex

// initEnvironment loads the runtime library once per process; the
// environment is never destroyed since sessions may be created at any
// moment.
func initEnvironment(sharedLibraryPath string) error {
	environmentLocker.Lock()
	defer environmentLocker.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if sharedLibraryPath == "" {
		sharedLibraryPath = os.Getenv(EnvSharedLibraryPath)
	}
	if sharedLibraryPath != "" {
		ort.SetSharedLibraryPath(sharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: unable to initialize onnxruntime: %w", inference.ErrModelUnavailable, err)
	}
	return nil
}

// IsAvailable returns true if the onnxruntime library could be loaded.
func IsAvailable(sharedLibraryPath string) bool {
	return initEnvironment(sharedLibraryPath) == nil
}

// Load opens an ONNX model and prepares a session on the requested device.
func Load(
	ctx context.Context,
	modelPath string,
	opts Options,
) (_ret *Graph, _err error) {
	logger.Tracef(ctx, "Load(%s, %#+v)", modelPath, opts)
	defer func() { logger.Tracef(ctx, "/Load(%s, %#+v): %v", modelPath, opts, _err) }()

	if err := initEnvironment(opts.SharedLibraryPath); err != nil {
		return nil, err
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %w", inference.ErrModelLoad, err)
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to get the inputs/outputs of '%s': %w", inference.ErrModelLoad, modelPath, err)
	}

	g := &Graph{}
	var inputNames, outputNames []string
	for _, info := range inputsInfo {
		g.inputs = append(g.inputs, convertInfo(info))
		inputNames = append(inputNames, info.Name)
	}
	for _, info := range outputsInfo {
		g.outputs = append(g.outputs, convertInfo(info))
		outputNames = append(outputNames, info.Name)
	}
	logger.Debugf(ctx, "inputs: %v; outputs: %v", g.inputs, g.outputs)

	sessionOptions, err := newSessionOptions(opts.Device)
	if err != nil {
		return nil, err
	}
	defer sessionOptions.Destroy()

	g.session, err = ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, sessionOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to create a session for '%s': %w", inference.ErrModelLoad, modelPath, err)
	}
	return g, nil
}

func newSessionOptions(device Device) (*ort.SessionOptions, error) {
	sessionOptions, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to create session options: %w", inference.ErrModelLoad, err)
	}

	switch Device(strings.ToLower(string(device))) {
	case DeviceUndefined, DeviceCPU:
		return sessionOptions, nil
	case DeviceCUDA:
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			sessionOptions.Destroy()
			return nil, fmt.Errorf("%w: unable to create CUDA options: %w", inference.ErrModelLoad, err)
		}
		defer cudaOptions.Destroy()
		if err := sessionOptions.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			sessionOptions.Destroy()
			return nil, fmt.Errorf("%w: unable to enable CUDA: %w", inference.ErrModelLoad, err)
		}
		return sessionOptions, nil
	default:
		sessionOptions.Destroy()
		return nil, fmt.Errorf("%w: unknown device '%s'", inference.ErrModelLoad, device)
	}
}

func convertInfo(info ort.InputOutputInfo) inference.TensorInfo {
	return inference.TensorInfo{
		Name:  info.Name,
		Shape: append([]int64(nil), info.Dimensions...),
	}
}

func (g *Graph) Inputs() []inference.TensorInfo {
	return g.inputs
}

func (g *Graph) Outputs() []inference.TensorInfo {
	return g.outputs
}

func (g *Graph) Run(
	ctx context.Context,
	inputs []*inference.Tensor,
) (_ret []*inference.Tensor, _err error) {
	logger.Tracef(ctx, "Run")
	defer func() { logger.Tracef(ctx, "/Run: %v", _err) }()

	if len(inputs) != len(g.inputs) {
		return nil, fmt.Errorf("%w: expected %d inputs, but received %d", inference.ErrInference, len(g.inputs), len(inputs))
	}

	g.locker.Lock()
	defer g.locker.Unlock()
	if g.session == nil {
		return nil, fmt.Errorf("%w: the graph is closed", inference.ErrInference)
	}

	inputValues := make([]ort.Value, len(inputs))
	outputValues := make([]ort.Value, len(g.outputs))
	defer func() {
		for _, v := range append(inputValues, outputValues...) {
			if v != nil {
				v.Destroy()
			}
		}
	}()
	for idx, in := range inputs {
		if in == nil {
			return nil, fmt.Errorf("%w: input '%s' is nil", inference.ErrInference, g.inputs[idx].Name)
		}
		tensor, err := ort.NewTensor(ort.NewShape(in.Shape...), in.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: unable to create tensor '%s': %w", inference.ErrInference, g.inputs[idx].Name, err)
		}
		inputValues[idx] = tensor
	}

	// nil outputs are allocated by the runtime
	if err := g.session.Run(inputValues, outputValues); err != nil {
		return nil, fmt.Errorf("%w: %w", inference.ErrInference, err)
	}

	result := make([]*inference.Tensor, len(outputValues))
	for idx, v := range outputValues {
		tensor, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("%w: output '%s' is not a float32 tensor: %T", inference.ErrInference, g.outputs[idx].Name, v)
		}
		result[idx] = &inference.Tensor{
			Shape: append([]int64(nil), tensor.GetShape()...),
			Data:  append([]float32(nil), tensor.GetData()...),
		}
	}
	return result, nil
}

func (g *Graph) Close() error {
	g.locker.Lock()
	defer g.locker.Unlock()
	if g.session == nil {
		return fmt.Errorf("double-free attempt")
	}
	err := g.session.Destroy()
	g.session = nil
	return err
}
