package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/speechfilter/pkg/config"
	"github.com/xaionaro-go/speechfilter/pkg/filter"
	"github.com/xaionaro-go/speechfilter/pkg/transcoder/implementations/ffmpeg"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	configPath := pflag.String("config", "", "path to a YAML config file")
	filterName := pflag.String("filter", string(filter.NameVoiceEnhancement), "one of: "+joinNames(filter.Names()))
	alpha := pflag.Float64("alpha", 0, "pre-emphasis coefficient")
	order := pflag.Int("order", 0, "band-pass filter order")
	lowCut := pflag.Float64("low-cut", 0, "band-pass low cutoff, Hz")
	highCut := pflag.Float64("high-cut", 0, "band-pass high cutoff, Hz")
	modelPath := pflag.String("model", "", "path to the ONNX noise suppression model")
	device := pflag.String("device", "", "inference device: cpu or cuda")
	onnxLibPath := pflag.String("onnxruntime-lib", "", "path to the onnxruntime shared library")
	ffmpegPath := pflag.String("ffmpeg", "", "path to the ffmpeg binary")
	tempDir := pflag.String("temp-dir", "", "parent directory for intermediate files")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()

	if pflag.NArg() != 2 {
		panic(fmt.Errorf("expected exactly two arguments: <input-video> <output-video>"))
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

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		assertNoError(err)
	}

	flags := pflag.CommandLine
	if flags.Changed("filter") || *configPath == "" {
		cfg.Filter = filter.Name(*filterName)
	}
	if flags.Changed("alpha") {
		cfg.VoiceEnhancement.Alpha = *alpha
	}
	if flags.Changed("order") {
		cfg.VoiceEnhancement.Order = *order
	}
	if flags.Changed("low-cut") {
		cfg.VoiceEnhancement.LowCutHz = *lowCut
	}
	if flags.Changed("high-cut") {
		cfg.VoiceEnhancement.HighCutHz = *highCut
	}
	if flags.Changed("model") {
		cfg.NoiseSuppression.ModelPath = *modelPath
	}
	if flags.Changed("device") {
		cfg.NoiseSuppression.Device = *device
	}
	if flags.Changed("onnxruntime-lib") {
		cfg.NoiseSuppression.SharedLibraryPath = *onnxLibPath
	}
	if flags.Changed("ffmpeg") {
		cfg.FFmpeg.BinaryPath = *ffmpegPath
	}
	if flags.Changed("temp-dir") {
		cfg.TempDir = *tempDir
	}
	assertNoError(cfg.Validate())
	logger.Debugf(ctx, "config: %#+v", cfg)

	transcoder := ffmpeg.New(cfg.FFmpeg.BinaryPath)
	if cfg.FFmpeg.AudioCodec != "" {
		transcoder.AudioCodec = cfg.FFmpeg.AudioCodec
	}
	assertNoError(transcoder.CheckAvailable(ctx))

	dispatcher := filter.New(transcoder, filter.ONNXSuppressorFactory)
	dispatcher.TempDir = cfg.TempDir

	success, message := dispatcher.Dispatch(ctx, string(cfg.Filter), pflag.Arg(0), pflag.Arg(1), cfg.FilterConfig())
	if !success {
		logger.Errorf(ctx, "%s", message)
		belt.Flush(ctx)
		os.Exit(1)
	}
	logger.Infof(ctx, "%s", message)
}

func joinNames(names []filter.Name) string {
	s := make([]string, 0, len(names))
	for _, name := range names {
		s = append(s, string(name))
	}
	return strings.Join(s, ", ")
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
