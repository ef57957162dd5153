package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete canvas configuration
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Renderer RendererConfig `yaml:"renderer"`
	Shaders  ShadersConfig  `yaml:"shaders"`
	Media    MediaConfig    `yaml:"media"`
	Depth    DepthConfig    `yaml:"depth"`
	View     ViewConfig     `yaml:"view"`
	Log      LogConfig      `yaml:"log"`
}

// WindowConfig contains window settings
type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// RendererConfig contains GPU and dispatch settings
type RendererConfig struct {
	Mode                 string `yaml:"mode"`         // shader, image, video, depthMerge
	PresentMode          string `yaml:"present_mode"` // vsync, uncapped
	ForceFallbackAdapter bool   `yaml:"force_fallback_adapter"`
}

// ShadersConfig contains WGSL source paths; empty selects the embedded shader
type ShadersConfig struct {
	Galaxy      string `yaml:"galaxy"`
	Passthrough string `yaml:"passthrough"`
}

// MediaConfig contains media input paths; empty disables the input
type MediaConfig struct {
	Image           string `yaml:"image"`
	PrimaryVideo    string `yaml:"primary_video"`
	BackgroundVideo string `yaml:"background_video"`
}

// DepthConfig contains depth estimator settings
type DepthConfig struct {
	// Enabled is the starting state of the D toggle; the estimator is loaded either way.
	Enabled bool `yaml:"enabled"`
	Workers int  `yaml:"workers"`
}

// ViewConfig contains the initial zoom and pan
type ViewConfig struct {
	Zoom float32 `yaml:"zoom"`
	PanX float32 `yaml:"pan_x"`
	PanY float32 `yaml:"pan_y"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SlogLevel parses Level.
//
// Returns:
//   - slog.Level: the parsed level
//   - error: an error if Level names no slog level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "oxy-canvas",
			Width:  800,
			Height: 600,
		},
		Renderer: RendererConfig{
			Mode:        "shader",
			PresentMode: "vsync",
		},
		Depth: DepthConfig{
			Enabled: true,
			Workers: 4,
		},
		View: ViewConfig{
			Zoom: 1.0,
			PanX: 0.5,
			PanY: 0.5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads and parses a YAML configuration file. Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate configuration
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
