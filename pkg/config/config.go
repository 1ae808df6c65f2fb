package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/xaionaro-go/speechfilter/pkg/filter"
	"github.com/xaionaro-go/speechfilter/pkg/transcoder/implementations/ffmpeg"
	"github.com/xaionaro-go/speechfilter/pkg/voiceenhancement"
)

var ErrInvalidConfig = voiceenhancement.ErrInvalidConfig

type FFmpeg struct {
	BinaryPath string `yaml:"binary_path"`
	AudioCodec string `yaml:"audio_codec"`
}

type Config struct {
	Filter           filter.Name             `yaml:"filter"`
	VoiceEnhancement voiceenhancement.Config `yaml:"voice_enhancement"`
	NoiseSuppression filter.NeuralConfig     `yaml:"noise_suppression"`
	FFmpeg           FFmpeg                  `yaml:"ffmpeg"`

	// TempDir is where the per-call work directories are created.
	TempDir string `yaml:"temp_dir"`
}

func Default() Config {
	filterCfg := filter.DefaultConfig()
	return Config{
		Filter:           filter.NameVoiceEnhancement,
		VoiceEnhancement: filterCfg.VoiceEnhancement,
		NoiseSuppression: filterCfg.Neural,
		FFmpeg: FFmpeg{
			BinaryPath: ffmpeg.DefaultBinaryPath,
			AudioCodec: ffmpeg.DefaultAudioCodec,
		},
	}
}

// Load reads the YAML file at path on top of Default(). A missing file
// yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse '%s': %w", path, err)
	}
	return cfg, nil
}

func (cfg Config) Save(path string) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to serialize the config: %w", err)
	}
	if err := os.WriteFile(path, b, 0640); err != nil {
		return fmt.Errorf("unable to write '%s': %w", path, err)
	}
	return nil
}

func (cfg Config) Validate() error {
	if !cfg.Filter.IsKnown() {
		return fmt.Errorf("%w: unknown filter '%s', expected one of %v", ErrInvalidConfig, cfg.Filter, filter.Names())
	}
	if err := cfg.VoiceEnhancement.Validate(); err != nil {
		return err
	}
	if cfg.Filter == filter.NameAINoiseSuppression {
		if err := cfg.NoiseSuppression.Validate(); err != nil {
			return err
		}
	}
	if cfg.FFmpeg.BinaryPath == "" {
		return fmt.Errorf("%w: the ffmpeg binary path is empty", ErrInvalidConfig)
	}
	return nil
}

// FilterConfig returns the part of the config passed to every
// filter.Dispatcher call.
func (cfg Config) FilterConfig() filter.Config {
	return filter.Config{
		VoiceEnhancement: cfg.VoiceEnhancement,
		Neural:           cfg.NoiseSuppression,
	}
}
