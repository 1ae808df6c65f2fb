package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/speechfilter/pkg/audio"
	"github.com/xaionaro-go/speechfilter/pkg/inference"
	"github.com/xaionaro-go/speechfilter/pkg/inference/implementations/onnx"
	"github.com/xaionaro-go/speechfilter/pkg/noisesuppression/implementations/recurrent"
	"github.com/xaionaro-go/speechfilter/pkg/noisesuppressionstream"
)

func main() {
	loggerLevel := logger.LevelDebug
	pflag.Var(&loggerLevel, "log-level", "Log level")
	formatFlag := pflag.String("format", audio.PCMFormatFloat32LE.String(), "PCM format of the input and the output")
	modelPath := pflag.String("model", "", "path to the ONNX noise suppression model")
	device := pflag.String("device", string(onnx.DeviceCPU), "inference device: cpu or cuda")
	onnxLibPath := pflag.String("onnxruntime-lib", "", "path to the onnxruntime shared library")
	sampleRate := pflag.Uint32("sample-rate", uint32(recurrent.DefaultSampleRate), "sample rate of the input (mono) and of the model")
	dummyChunkSize := pflag.Int64("dummy", 0, "if non-zero, use a pass-through model with this chunk size instead of loading one")
	bufferSize := pflag.Uint("buffer-size", 1<<20, "size of the input and output buffers, in bytes")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()

	if pflag.NArg() != 2 {
		panic(fmt.Errorf("expected exactly two arguments: <input-file> <output-file>"))
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	format, err := audio.ParsePCMFormat(*formatFlag)
	assertNoError(err)

	var graph inference.Graph
	if *dummyChunkSize != 0 {
		graph = inference.NewDummy(*dummyChunkSize)
	} else {
		graph, err = onnx.Load(ctx, *modelPath, onnx.Options{
			Device:            onnx.Device(*device),
			SharedLibraryPath: *onnxLibPath,
		})
		assertNoError(err)
	}

	noiseSuppress, err := recurrent.New(ctx, graph, recurrent.OptionSampleRate(audio.SampleRate(*sampleRate)))
	if err != nil {
		graph.Close()
		panic(err)
	}
	logger.Debugf(ctx, "chunk size: %d; states: %v", noiseSuppress.ChunkSize(), noiseSuppress.StateNames())

	input, err := os.Open(pflag.Arg(0))
	assertNoError(err)
	defer input.Close()

	output, err := os.OpenFile(pflag.Arg(1), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	assertNoError(err)
	defer output.Close()

	stream, err := noisesuppressionstream.NewNoiseSuppressionStream(
		ctx,
		datacounter.NewReaderCounter(input),
		noiseSuppress,
		format,
		*bufferSize,
		*bufferSize,
	)
	if err != nil {
		noiseSuppress.Close()
		panic(err)
	}
	defer stream.Close()

	wc := datacounter.NewWriterCounter(output)
	_, err = io.Copy(wc, stream)
	assertNoError(err)
	logger.Infof(ctx, "written: %d bytes", wc.Count())
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
