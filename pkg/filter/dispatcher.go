package filter

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/speechfilter/pkg/audio"
	"github.com/xaionaro-go/speechfilter/pkg/audio/spectrum"
	"github.com/xaionaro-go/speechfilter/pkg/transcoder"
	"github.com/xaionaro-go/speechfilter/pkg/voiceenhancement"
)

type Result struct {
	Success bool
	Message string
}

// Dispatcher applies a named audio filter to a media file.
//
// It has no mutable state, so one Dispatcher may serve concurrent calls;
// every neural suppression call gets its own session.
type Dispatcher struct {
	SampleIO         transcoder.SampleIO
	VoiceEnhancement *voiceenhancement.Engine
	NewSuppressor    SuppressorFactory

	// TempDir is the parent directory of the per-call work directories;
	// empty means os.TempDir().
	TempDir string
}

func New(
	sampleIO transcoder.SampleIO,
	newSuppressor SuppressorFactory,
) *Dispatcher {
	return &Dispatcher{
		SampleIO:         sampleIO,
		VoiceEnhancement: voiceenhancement.New(),
		NewSuppressor:    newSuppressor,
	}
}

// Dispatch is Apply with the result unpacked.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	filterName string,
	inputPath string,
	outputPath string,
	cfg Config,
) (bool, string) {
	r := d.Apply(ctx, filterName, inputPath, outputPath, cfg)
	return r.Success, r.Message
}

// Apply processes the audio track of inputPath with the filter and writes
// the result to outputPath. Errors are reported through the Result only.
func (d *Dispatcher) Apply(
	ctx context.Context,
	filterName string,
	inputPath string,
	outputPath string,
	cfg Config,
) (_ret Result) {
	sessionID := uuid.New().String()
	ctx = belt.WithField(ctx, "session_id", sessionID)
	logger.Debugf(ctx, "Apply(%s, %s, %s)", filterName, inputPath, outputPath)
	defer func() { logger.Debugf(ctx, "/Apply(%s, %s, %s): %#+v", filterName, inputPath, outputPath, _ret) }()

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf(ctx, "got panic: %v", r)
			_ret = Result{
				Success: false,
				Message: fmt.Sprintf("%s filter failed: %v", filterName, r),
			}
		}
	}()

	if err := d.apply(ctx, Name(filterName), inputPath, outputPath, cfg); err != nil {
		logger.Errorf(ctx, "unable to apply filter '%s' to '%s': %v", filterName, inputPath, err)
		return Result{
			Success: false,
			Message: err.Error(),
		}
	}

	return Result{
		Success: true,
		Message: successMessage(Name(filterName)),
	}
}

func successMessage(name Name) string {
	switch name {
	case NameAINoiseSuppression:
		return "AI noise suppression filter applied successfully"
	default:
		return "Voice enhancement filter applied successfully"
	}
}

func (d *Dispatcher) apply(
	ctx context.Context,
	name Name,
	inputPath string,
	outputPath string,
	cfg Config,
) (_err error) {
	if !name.IsKnown() {
		return fmt.Errorf("%w: %q", ErrUnknownFilter, string(name))
	}
	if _, err := os.Stat(inputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputNotFound, inputPath)
		}
		return fmt.Errorf("unable to access the input file '%s': %w", inputPath, err)
	}

	workDir, err := os.MkdirTemp(d.TempDir, "speechfilter-*")
	if err != nil {
		return fmt.Errorf("unable to create a work directory: %w", err)
	}
	logger.Debugf(ctx, "work directory: %s", workDir)

	outputTouched, succeeded := false, false
	defer func() {
		var result *multierror.Error
		if err := os.RemoveAll(workDir); err != nil {
			result = multierror.Append(result, fmt.Errorf("unable to remove '%s': %w", workDir, err))
		}
		if !succeeded && outputTouched {
			if err := os.Remove(outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				result = multierror.Append(result, fmt.Errorf("unable to remove the partial output '%s': %w", outputPath, err))
			}
		}
		if err := result.ErrorOrNil(); err != nil {
			logger.Errorf(ctx, "%v", fmt.Errorf("%w: %w", ErrCleanup, err))
		}
	}()

	var processed *audio.SampleBuffer
	switch name {
	case NameVoiceEnhancement, NamePreemphasis:
		processed, err = d.applyVoiceEnhancement(ctx, inputPath, workDir, cfg)
	case NameAINoiseSuppression:
		processed, err = d.applyNoiseSuppression(ctx, inputPath, workDir, cfg)
	}
	if err != nil {
		return err
	}

	outputTouched = true
	if err := d.SampleIO.Remux(ctx, transcoder.RemuxRequest{
		OriginalMediaPath: inputPath,
		OutputPath:        outputPath,
		WorkDir:           workDir,
		Samples:           processed,
	}); err != nil {
		return err
	}
	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("%w: output file was not created: %w", ErrRemux, err)
	}
	succeeded = true
	return nil
}

func (d *Dispatcher) applyVoiceEnhancement(
	ctx context.Context,
	inputPath string,
	workDir string,
	cfg Config,
) (*audio.SampleBuffer, error) {
	buf, err := d.SampleIO.Extract(ctx, transcoder.ExtractRequest{
		MediaPath:  inputPath,
		WorkDir:    workDir,
		SampleRate: DSPSampleRate,
		Channels:   DSPChannels,
	})
	if err != nil {
		return nil, err
	}
	logSpectrum(ctx, "extracted", buf)

	processed, err := d.VoiceEnhancement.Enhance(ctx, buf, cfg.VoiceEnhancement)
	if err != nil {
		return nil, fmt.Errorf("voice enhancement failed: %w", err)
	}
	logSpectrum(ctx, "enhanced", processed)
	return processed, nil
}

func (d *Dispatcher) applyNoiseSuppression(
	ctx context.Context,
	inputPath string,
	workDir string,
	cfg Config,
) (*audio.SampleBuffer, error) {
	if d.NewSuppressor == nil {
		return nil, fmt.Errorf("%w: noise suppression is not configured", ErrModelUnavailable)
	}
	suppressor, err := d.NewSuppressor(ctx, cfg.Neural)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the noise suppression: %w", err)
	}
	defer func() {
		if err := suppressor.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the noise suppression: %v", err)
		}
	}()

	buf, err := d.SampleIO.Extract(ctx, transcoder.ExtractRequest{
		MediaPath:  inputPath,
		WorkDir:    workDir,
		SampleRate: suppressor.SampleRate(),
		Channels:   suppressor.Channels(),
	})
	if err != nil {
		return nil, err
	}
	logSpectrum(ctx, "extracted", buf)

	processed, err := suppressor.Process(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("noise suppression failed: %w", err)
	}
	logSpectrum(ctx, "denoised", processed)
	return processed, nil
}

func logSpectrum(ctx context.Context, stage string, buf *audio.SampleBuffer) {
	if logger.FromCtx(ctx).Level() < logger.LevelDebug {
		return
	}
	channelData, err := buf.ChannelData()
	if err != nil || len(channelData) == 0 {
		return
	}
	report, err := spectrum.Analyze(channelData[0], buf.SampleRate, spectrum.SpeechBand)
	if err != nil {
		logger.Debugf(ctx, "%s: unable to analyze the spectrum: %v", stage, err)
		return
	}
	logger.Debugf(ctx, "%s: %d samples/channel; %s energy ratio: %.3f", stage, buf.Length(), spectrum.SpeechBand, report.Bands[0].Ratio)
}
