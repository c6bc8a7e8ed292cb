package bodymovin

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the playback settings of a composition.
type Config struct {
	// FrameRate overrides the manifest frame rate when > 0.
	FrameRate float64 `yaml:"frame_rate"`
	// FontSizes are the bitmap sizes text may be rasterised at.
	FontSizes     []float64   `yaml:"font_sizes"`
	RendererScale float64     `yaml:"renderer_scale"`
	Media         MediaConfig `yaml:"media"`
	LogLevel      string      `yaml:"log_level"`
	// Debug enables per-frame timing logs.
	Debug bool `yaml:"debug"`
	// Loop restarts playback at the composition's in point.
	Loop bool `yaml:"loop"`
}

// MediaConfig tunes media synchronisation.
type MediaConfig struct {
	RateEpsilon   float64 `yaml:"rate_epsilon"`
	SeekTolerance float64 `yaml:"seek_tolerance"`
}

// DefaultConfig returns the settings used when no configuration is given.
func DefaultConfig() Config {
	return Config{
		FontSizes:     []float64{12, 16, 24, 32, 48, 64, 96, 128, 192, 256},
		RendererScale: 1,
		Media: MediaConfig{
			RateEpsilon:   defaultRateEpsilon,
			SeekTolerance: defaultSeekTolerance,
		},
		LogLevel: "info",
	}
}

// LoadConfig parses YAML over DefaultConfig. Keys absent from data keep
// their defaults.
func LoadConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("bodymovin: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	var errs []error
	if c.FrameRate < 0 {
		errs = append(errs, fmt.Errorf("frame_rate must not be negative, got %v", c.FrameRate))
	}
	if c.RendererScale < 0 {
		errs = append(errs, fmt.Errorf("renderer_scale must not be negative, got %v", c.RendererScale))
	}
	for _, s := range c.FontSizes {
		if s <= 0 {
			errs = append(errs, fmt.Errorf("font_sizes must be positive, got %v", s))
			break
		}
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("bodymovin: invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	l, _ := parseLogLevel(c.LogLevel)
	return l
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
	}
}

// mediaOptions converts the media settings for NewMediaSync.
func (c Config) mediaOptions(frameRate float64, logger *slog.Logger) MediaSyncOptions {
	return MediaSyncOptions{
		FrameRate:     frameRate,
		RateEpsilon:   c.Media.RateEpsilon,
		SeekTolerance: c.Media.SeekTolerance,
		Logger:        logger,
	}
}
