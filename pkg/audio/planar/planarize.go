package planar

import (
	"fmt"

	"github.com/xaionaro-go/speechfilter/pkg/audio/types"
)

// Planarize converts interleaved samples (L R L R ...) into planar ones
// (L L ... R R ...).
func Planarize[T any](channels types.Channel, output, input []T) error {
	if err := checkLengths(channels, output, input); err != nil {
		return err
	}

	samplesPerChan := len(input) / int(channels)
	for ch := 0; ch < int(channels); ch++ {
		outOffset := ch * samplesPerChan
		for samplePos := 0; samplePos < samplesPerChan; samplePos++ {
			output[outOffset+samplePos] = input[samplePos*int(channels)+ch]
		}
	}
	return nil
}

// Unplanarize is the reverse of Planarize.
func Unplanarize[T any](channels types.Channel, output, input []T) error {
	if err := checkLengths(channels, output, input); err != nil {
		return err
	}

	samplesPerChan := len(input) / int(channels)
	for ch := 0; ch < int(channels); ch++ {
		inOffset := ch * samplesPerChan
		for samplePos := 0; samplePos < samplesPerChan; samplePos++ {
			output[samplePos*int(channels)+ch] = input[inOffset+samplePos]
		}
	}
	return nil
}

// Split returns a separate slice per channel of a planar buffer.
// The returned slices share memory with input.
func Split[T any](channels types.Channel, input []T) ([][]T, error) {
	if channels == 0 {
		return nil, fmt.Errorf("the amount of channels must be positive")
	}
	if len(input)%int(channels) != 0 {
		return nil, fmt.Errorf("expected a message length that is a multiple of %d, but received %d", channels, len(input))
	}
	samplesPerChan := len(input) / int(channels)
	result := make([][]T, channels)
	for ch := range result {
		result[ch] = input[ch*samplesPerChan : (ch+1)*samplesPerChan : (ch+1)*samplesPerChan]
	}
	return result, nil
}

// Join concatenates equally sized channel slices into a planar buffer.
func Join[T any](channelData [][]T) ([]T, error) {
	if len(channelData) == 0 {
		return nil, fmt.Errorf("no channels provided")
	}
	samplesPerChan := len(channelData[0])
	result := make([]T, 0, samplesPerChan*len(channelData))
	for ch, data := range channelData {
		if len(data) != samplesPerChan {
			return nil, fmt.Errorf("channel %d has %d samples, while channel 0 has %d", ch, len(data), samplesPerChan)
		}
		result = append(result, data...)
	}
	return result, nil
}

func checkLengths[T any](channels types.Channel, output, input []T) error {
	if channels == 0 {
		return fmt.Errorf("the amount of channels must be positive")
	}
	if len(input)%int(channels) != 0 {
		return fmt.Errorf("expected a message length that is a multiple of %d, but received %d", channels, len(input))
	}
	if len(input) != len(output) {
		return fmt.Errorf("the lengths of input and output are not equal: %d != %d", len(input), len(output))
	}
	return nil
}
