package filter

import (
	"fmt"

	"github.com/xaionaro-go/speechfilter/pkg/audio"
	"github.com/xaionaro-go/speechfilter/pkg/voiceenhancement"
)

type Name string

const (
	NameVoiceEnhancement   = Name("voice_enhancement")
	NamePreemphasis        = Name("preemphasis")
	NameAINoiseSuppression = Name("ai_noise_suppression")
)

func (n Name) IsKnown() bool {
	switch n {
	case NameVoiceEnhancement, NamePreemphasis, NameAINoiseSuppression:
		return true
	}
	return false
}

func Names() []Name {
	return []Name{NameVoiceEnhancement, NamePreemphasis, NameAINoiseSuppression}
}

const (
	DSPSampleRate = audio.SampleRate(44100)
	DSPChannels   = audio.Channel(2)
)

type NeuralConfig struct {
	ModelPath         string `yaml:"model_path"`
	Device            string `yaml:"device"`
	SharedLibraryPath string `yaml:"shared_library_path"`

	// SampleRate is the native sample rate of the model; zero means
	// the default one.
	SampleRate audio.SampleRate `yaml:"sample_rate"`
}

func (cfg NeuralConfig) Validate() error {
	if cfg.ModelPath == "" {
		return fmt.Errorf("%w: the model path is not set", ErrInvalidConfig)
	}
	switch cfg.Device {
	case "", "cpu", "cuda":
	default:
		return fmt.Errorf("%w: unknown device '%s'", ErrInvalidConfig, cfg.Device)
	}
	return nil
}

// Config is passed to every Apply call; no filter settings are kept
// between calls.
type Config struct {
	VoiceEnhancement voiceenhancement.Config
	Neural           NeuralConfig
}

func DefaultConfig() Config {
	return Config{
		VoiceEnhancement: voiceenhancement.DefaultConfig(),
		Neural: NeuralConfig{
			Device: "cpu",
		},
	}
}
