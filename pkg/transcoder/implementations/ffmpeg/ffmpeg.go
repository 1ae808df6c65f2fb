package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/speechfilter/pkg/audio"
	"github.com/xaionaro-go/speechfilter/pkg/audio/resampler"
	"github.com/xaionaro-go/speechfilter/pkg/transcoder"
)

const (
	DefaultBinaryPath = "ffmpeg"
	DefaultAudioCodec = "aac"

	ExtractedFileName = "extracted_audio.f32"
	ProcessedFileName = "processed_audio.f32"

	pcmFormat     = audio.PCMFormatFloat32LE
	pcmFormatName = "f32le"
)

type FFmpeg struct {
	BinaryPath string
	AudioCodec string
}

var _ transcoder.SampleIO = (*FFmpeg)(nil)

func New(binaryPath string) *FFmpeg {
	if binaryPath == "" {
		binaryPath = DefaultBinaryPath
	}
	return &FFmpeg{
		BinaryPath: binaryPath,
		AudioCodec: DefaultAudioCodec,
	}
}

// CheckAvailable returns an error if the ffmpeg binary cannot be executed.
func (f *FFmpeg) CheckAvailable(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, f.BinaryPath, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg is not available at '%s': %w", f.BinaryPath, err)
	}
	return nil
}

// run executes ffmpeg and returns its stderr.
func (f *FFmpeg) run(ctx context.Context, args ...string) (string, error) {
	args = append([]string{"-hide_banner", "-nostdin", "-y"}, args...)
	logger.Debugf(ctx, "running %s %s", f.BinaryPath, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, f.BinaryPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stderr.String(), fmt.Errorf("ffmpeg %v: %w: %s", args, err, strings.TrimSpace(stderr.String()))
	}
	return stderr.String(), nil
}

func (f *FFmpeg) Extract(
	ctx context.Context,
	req transcoder.ExtractRequest,
) (_ret *audio.SampleBuffer, _err error) {
	logger.Tracef(ctx, "Extract(%#+v)", req)
	defer func() { logger.Tracef(ctx, "/Extract(%#+v): %v", req, _err) }()

	if req.SampleRate == 0 || req.Channels == 0 {
		return nil, fmt.Errorf("%w: invalid format: %dHz/%dch", transcoder.ErrExtraction, req.SampleRate, req.Channels)
	}

	extractedPath := filepath.Join(req.WorkDir, ExtractedFileName)
	if _, err := f.run(ctx,
		"-i", req.MediaPath,
		"-vn",
		"-ac", fmt.Sprint(req.Channels),
		"-ar", fmt.Sprint(req.SampleRate),
		"-f", pcmFormatName,
		extractedPath,
	); err != nil {
		return nil, fmt.Errorf("%w: %w", transcoder.ErrExtraction, err)
	}

	file, err := os.Open(extractedPath)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to open '%s': %w", transcoder.ErrExtraction, extractedPath, err)
	}
	defer file.Close()

	rc := datacounter.NewReaderCounter(file)
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read '%s': %w", transcoder.ErrExtraction, extractedPath, err)
	}
	logger.Debugf(ctx, "extracted %d bytes", rc.Count())

	samples, err := resampler.DecodePCM(pcmFormat, data)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to decode '%s': %w", transcoder.ErrExtraction, extractedPath, err)
	}

	buf := &audio.SampleBuffer{
		SampleRate: req.SampleRate,
		Channels:   req.Channels,
		Layout:     audio.LayoutInterleaved,
		Samples:    samples,
	}
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", transcoder.ErrExtraction, err)
	}
	return buf, nil
}

func (f *FFmpeg) Remux(
	ctx context.Context,
	req transcoder.RemuxRequest,
) (_err error) {
	logger.Tracef(ctx, "Remux(%s -> %s)", req.OriginalMediaPath, req.OutputPath)
	defer func() { logger.Tracef(ctx, "/Remux(%s -> %s): %v", req.OriginalMediaPath, req.OutputPath, _err) }()

	processedPath := filepath.Join(req.WorkDir, ProcessedFileName)
	if err := writeSamples(ctx, processedPath, req.Samples); err != nil {
		return fmt.Errorf("%w: %w", transcoder.ErrRemux, err)
	}

	if _, err := f.run(ctx,
		"-i", req.OriginalMediaPath,
		"-f", pcmFormatName,
		"-ar", fmt.Sprint(req.Samples.SampleRate),
		"-ac", fmt.Sprint(req.Samples.Channels),
		"-i", processedPath,
		"-c:v", "copy",
		"-c:a", f.AudioCodec,
		"-map", "0:v:0",
		"-map", "1:a:0",
		req.OutputPath,
	); err != nil {
		return fmt.Errorf("%w: %w", transcoder.ErrRemux, err)
	}
	return nil
}

func writeSamples(
	ctx context.Context,
	path string,
	buf *audio.SampleBuffer,
) (_err error) {
	if err := buf.Validate(); err != nil {
		return err
	}

	interleaved := buf.Samples
	if buf.Layout != audio.LayoutInterleaved {
		channelData, err := buf.ChannelData()
		if err != nil {
			return err
		}
		converted, err := audio.NewSampleBufferFromChannels(buf.SampleRate, audio.LayoutInterleaved, channelData)
		if err != nil {
			return err
		}
		interleaved = converted.Samples
	}

	data, err := resampler.EncodePCM(pcmFormat, interleaved)
	if err != nil {
		return fmt.Errorf("unable to encode the samples: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", path, err)
	}
	defer func() {
		if err := file.Close(); err != nil && _err == nil {
			_err = fmt.Errorf("unable to close '%s': %w", path, err)
		}
	}()

	wc := datacounter.NewWriterCounter(file)
	if _, err := wc.Write(data); err != nil {
		return fmt.Errorf("unable to write '%s': %w", path, err)
	}
	logger.Debugf(ctx, "written %d bytes to '%s'", wc.Count(), path)
	return nil
}
