package noisesuppressionstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/speechfilter/pkg/audio"
	"github.com/xaionaro-go/speechfilter/pkg/audio/resampler"
	"github.com/xaionaro-go/speechfilter/pkg/noisesuppression"
)

// NoiseSuppressionStream is an io.Reader of denoised PCM, reading the
// noisy PCM from another io.Reader.
//
// Chunks are passed to the noise suppression strictly in order. The last
// incomplete chunk is padded with silence, and the padding is cut off
// from the output, so the output has exactly the same length as the
// input.
type NoiseSuppressionStream struct {
	noisesuppression.NoiseSuppression
	format      audio.PCMFormat
	channels    audio.Channel
	frameSize   uint
	sampleSize  uint
	cancelFunc  context.CancelFunc
	readCtx     context.Context
	closeOnce   sync.Once
	closeResult error

	inputBufferLocker sync.Mutex
	inputBuffer       *circular.Buffer
	inputEOF          bool

	outputBufferLocker sync.Mutex
	outputBuffer       *circular.Buffer
	outputEOF          bool
	resultError        error

	readProgressedCh                   chan struct{}
	noiseSuppressionInputProgressedCh  chan struct{}
	noiseSuppressionOutputProgressedCh chan struct{}
	outputProgressedCh                 chan struct{}
}

var _ io.ReadCloser = (*NoiseSuppressionStream)(nil)

func NewNoiseSuppressionStream(
	ctx context.Context,
	input io.Reader,
	noiseSuppression noisesuppression.NoiseSuppression,
	format audio.PCMFormat,
	inputBufferSize uint,
	outputBufferSize uint,
) (*NoiseSuppressionStream, error) {
	if !format.IsValid() {
		return nil, fmt.Errorf("invalid PCM format: %v", format)
	}
	channels := noiseSuppression.Channels()
	sampleSize := uint(format.Size()) * uint(channels)
	frameSize := noiseSuppression.ChunkSize() * sampleSize
	if frameSize == 0 {
		return nil, fmt.Errorf("the noise suppression has zero chunk size")
	}
	if inputBufferSize < 2*frameSize || outputBufferSize < 2*frameSize {
		return nil, fmt.Errorf("the buffers (%d and %d) should be at least twice as large as a chunk (%d)", inputBufferSize, outputBufferSize, frameSize)
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	s := &NoiseSuppressionStream{
		NoiseSuppression: noiseSuppression,
		format:           format,
		channels:         channels,
		frameSize:        frameSize,
		sampleSize:       sampleSize,
		cancelFunc:       cancelFunc,
		readCtx:          ctx,
		inputBuffer:      circular.NewBuffer(int(inputBufferSize)),
		outputBuffer:     circular.NewBuffer(int(outputBufferSize)),

		readProgressedCh:                   make(chan struct{}),
		noiseSuppressionInputProgressedCh:  make(chan struct{}),
		noiseSuppressionOutputProgressedCh: make(chan struct{}),
		outputProgressedCh:                 make(chan struct{}),
	}
	readBufSize := min(65536, inputBufferSize/2)
	observability.Go(ctx, func(ctx context.Context) {
		err := s.readerLoop(ctx, input, readBufSize)
		if err != nil {
			s.setError(fmt.Errorf("got an error from the reader loop: %w", err))
		}
	})
	observability.Go(ctx, func(ctx context.Context) {
		err := s.noiseSuppressionLoop(ctx)
		if err != nil {
			s.setError(fmt.Errorf("got an error from the noise suppressor loop: %w", err))
		}
	})
	return s, nil
}

func notify(ch *chan struct{}) {
	var oldCh chan struct{}
	oldCh, *ch = *ch, make(chan struct{})
	close(oldCh)
}

func (s *NoiseSuppressionStream) setError(err error) {
	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	if s.resultError == nil {
		s.resultError = err
	}
	notify(&s.noiseSuppressionOutputProgressedCh)
}

func (s *NoiseSuppressionStream) readerLoop(
	ctx context.Context,
	input io.Reader,
	readBufSize uint,
) (_err error) {
	logger.Tracef(ctx, "readerLoop")
	defer func() { logger.Tracef(ctx, "/readerLoop: %v", _err) }()

	readBuf := make([]byte, readBufSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logger.Tracef(ctx, "readerLoop: Read()")
		n, readErr := input.Read(readBuf)
		logger.Tracef(ctx, "/readerLoop: Read(): %v %v", n, readErr)
		if n < 0 || n > len(readBuf) {
			return fmt.Errorf("received invalid value of received bytes: %d", n)
		}
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("unable to read the input: %w", readErr)
		}
		isEOF := readErr != nil

		if err := func() error {
			s.inputBufferLocker.Lock()
			defer s.inputBufferLocker.Unlock()
			for n > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				w, err := s.inputBuffer.Write(readBuf[:n])
				if err != nil {
					if errors.Is(err, circular.ErrNoSpace) {
						s.waitForNoiseSuppressionInputProgressed(ctx)
						continue
					}
					return fmt.Errorf("unable to write to the circular buffer: %w", err)
				}
				if w != n {
					return fmt.Errorf("wrote != read: %d != %d", w, n)
				}
				break
			}
			if isEOF {
				s.inputEOF = true
			}
			logger.Tracef(ctx, "closing readProgressedCh")
			notify(&s.readProgressedCh)
			return nil
		}(); err != nil {
			return err
		}
		if isEOF {
			return nil
		}
	}
}

func (s *NoiseSuppressionStream) waitForNoiseSuppressionInputProgressed(ctx context.Context) {
	logger.Tracef(ctx, "waitForNoiseSuppressionInputProgressed")
	defer logger.Tracef(ctx, "/waitForNoiseSuppressionInputProgressed")

	ch := s.noiseSuppressionInputProgressedCh
	s.inputBufferLocker.Unlock()
	defer s.inputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
		logger.Tracef(ctx, "waitForNoiseSuppressionInputProgressed: received an event")
	}
}

// readFrame fills buf from the input buffer. A short count is returned
// only at the end of the input.
func (s *NoiseSuppressionStream) readFrame(ctx context.Context, buf []byte) (int, error) {
	receivedCount := 0
	for {
		var (
			waitCh chan struct{}
			isEOF  bool
		)
		if err := func() error {
			s.inputBufferLocker.Lock()
			defer s.inputBufferLocker.Unlock()
			progressed := false
			for receivedCount < len(buf) {
				n, err := s.inputBuffer.Read(buf[receivedCount:])
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("unable to read from the circular buffer: %w", err)
				}
				if n < 0 {
					return fmt.Errorf("received a negative count: %d", n)
				}
				if n == 0 {
					break
				}
				receivedCount += n
				progressed = true
			}
			waitCh = s.readProgressedCh
			isEOF = s.inputEOF
			if progressed {
				logger.Tracef(ctx, "closing noiseSuppressionInputProgressedCh")
				notify(&s.noiseSuppressionInputProgressedCh)
			}
			return nil
		}(); err != nil {
			return receivedCount, err
		}
		if receivedCount >= len(buf) || isEOF {
			return receivedCount, nil
		}
		select {
		case <-ctx.Done():
			return receivedCount, ctx.Err()
		case <-waitCh:
			logger.Tracef(ctx, "noiseSuppressionLoop: received a read event")
		}
	}
}

func (s *NoiseSuppressionStream) noiseSuppressionLoop(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "noiseSuppressionLoop")
	defer func() { logger.Tracef(ctx, "/noiseSuppressionLoop: %v", _err) }()

	logger.Debugf(ctx, "frameSize: %d", s.frameSize)
	inputBuf := make([]byte, s.frameSize)
	chunk := make([]float32, s.frameSize/uint(s.format.Size()))
	for {
		receivedCount, err := s.readFrame(ctx, inputBuf)
		if err != nil {
			return err
		}
		isLast := receivedCount < len(inputBuf)
		if receivedCount%int(s.sampleSize) != 0 {
			return fmt.Errorf("the input ended in the middle of a sample: %d %% %d != 0", receivedCount, s.sampleSize)
		}

		if receivedCount > 0 {
			clear(inputBuf[receivedCount:])
			outputBuf, err := s.suppressFrame(ctx, inputBuf, chunk)
			if err != nil {
				return err
			}
			if err := s.writeOutput(ctx, outputBuf[:receivedCount]); err != nil {
				return err
			}
		}

		if isLast {
			s.outputBufferLocker.Lock()
			s.outputEOF = true
			notify(&s.noiseSuppressionOutputProgressedCh)
			s.outputBufferLocker.Unlock()
			return nil
		}
	}
}

func (s *NoiseSuppressionStream) suppressFrame(
	ctx context.Context,
	inputBuf []byte,
	chunk []float32,
) ([]byte, error) {
	samples, err := resampler.DecodePCM(s.format, inputBuf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode the input: %w", err)
	}
	for idx, v := range samples {
		chunk[idx] = float32(v)
	}

	logger.Tracef(ctx, "s.NoiseSuppression.SuppressChunk")
	cleaned, err := s.NoiseSuppression.SuppressChunk(ctx, chunk)
	logger.Tracef(ctx, "/s.NoiseSuppression.SuppressChunk: %v", err)
	if err != nil {
		return nil, fmt.Errorf("unable to noise-suppress: %w", err)
	}
	if len(cleaned) != len(samples) {
		return nil, fmt.Errorf("the noise suppression returned %d samples instead of %d", len(cleaned), len(samples))
	}
	for idx, v := range cleaned {
		samples[idx] = float64(v)
	}
	return resampler.EncodePCM(s.format, samples)
}

func (s *NoiseSuppressionStream) writeOutput(ctx context.Context, data []byte) error {
	logger.Tracef(ctx, "s.outputBufferLocker.Lock()")
	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	logger.Tracef(ctx, "/s.outputBufferLocker.Lock()")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		w, err := s.outputBuffer.Write(data)
		if err != nil {
			if errors.Is(err, circular.ErrNoSpace) {
				s.waitForOutput(ctx)
				continue
			}
			return fmt.Errorf("unable to write to the circular buffer: %w", err)
		}
		if w != len(data) {
			return fmt.Errorf("wrote != read: %d != %d", w, len(data))
		}
		logger.Tracef(ctx, "closing noiseSuppressionOutputProgressedCh")
		notify(&s.noiseSuppressionOutputProgressedCh)
		return nil
	}
}

func (s *NoiseSuppressionStream) waitForOutput(ctx context.Context) {
	logger.Tracef(ctx, "waitForOutput")
	defer logger.Tracef(ctx, "/waitForOutput")

	ch := s.outputProgressedCh
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
		logger.Tracef(ctx, "waitForOutput: received an event")
	}
}

func (s *NoiseSuppressionStream) Read(pcm []byte) (_ret int, _err error) {
	logger.Tracef(s.readCtx, "Read, len:%d", len(pcm))
	defer func() { logger.Tracef(s.readCtx, "/Read, len:%d: %d, %v", len(pcm), _ret, _err) }()

	if len(pcm) == 0 {
		return 0, nil
	}

	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	for {
		logger.Tracef(s.readCtx, "Read: s.outputBuffer.Read()")
		n, err := s.outputBuffer.Read(pcm)
		logger.Tracef(s.readCtx, "/Read: s.outputBuffer.Read(): %v %v", n, err)
		if err != nil && !errors.Is(err, io.EOF) {
			return n, err
		}
		if n > 0 {
			notify(&s.outputProgressedCh)
			return n, nil
		}
		if s.resultError != nil {
			return 0, s.resultError
		}
		if s.outputEOF {
			return 0, io.EOF
		}
		if err := s.readCtx.Err(); err != nil {
			return 0, err
		}
		s.waitForNoiseSuppressionOutputProgressed(s.readCtx)
	}
}

func (s *NoiseSuppressionStream) waitForNoiseSuppressionOutputProgressed(ctx context.Context) {
	logger.Tracef(ctx, "waitForNoiseSuppressionOutputProgressed")
	defer logger.Tracef(ctx, "/waitForNoiseSuppressionOutputProgressed")

	ch := s.noiseSuppressionOutputProgressedCh
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
		logger.Tracef(ctx, "waitForNoiseSuppressionOutputProgressed: received an event")
	}
}

// Close stops the processing and closes the noise suppression.
func (s *NoiseSuppressionStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancelFunc()
		s.closeResult = s.NoiseSuppression.Close()
	})
	return s.closeResult
}
