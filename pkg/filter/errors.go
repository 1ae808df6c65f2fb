package filter

import (
	"errors"

	"github.com/xaionaro-go/speechfilter/pkg/dsp/bandpass"
	"github.com/xaionaro-go/speechfilter/pkg/inference"
	"github.com/xaionaro-go/speechfilter/pkg/noisesuppression"
	"github.com/xaionaro-go/speechfilter/pkg/transcoder"
	"github.com/xaionaro-go/speechfilter/pkg/voiceenhancement"
)

var (
	ErrInputNotFound = errors.New("input file not found")
	ErrUnknownFilter = errors.New("unknown audio filter")

	// ErrCleanup is never returned, it is only logged.
	ErrCleanup = errors.New("unable to clean up")
)

var (
	ErrExtraction         = transcoder.ErrExtraction
	ErrRemux              = transcoder.ErrRemux
	ErrSampleRateMismatch = noisesuppression.ErrSampleRateMismatch
	ErrStateMissing       = noisesuppression.ErrStateMissing
	ErrModelLoad          = inference.ErrModelLoad
	ErrModelUnavailable   = inference.ErrModelUnavailable
	ErrInference          = inference.ErrInference
	ErrFilterDesign       = bandpass.ErrFilterDesign
	ErrInvalidConfig      = voiceenhancement.ErrInvalidConfig
)
