package bandpass

import (
	"errors"
)

var ErrFilterDesign = errors.New("unable to design the band-pass filter")
