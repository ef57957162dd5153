package config

import (
	"fmt"
	"strings"
)

var (
	validModes        = []string{"shader", "image", "video", "depthmerge"}
	validPresentModes = []string{"vsync", "uncapped"}
)

// View ranges offered by the UI.
const (
	MinZoom = 0.5
	MaxZoom = 2.0
	MinPan  = 0.0
	MaxPan  = 2.0
)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	// Validate window
	if cfg.Window.Width <= 0 || cfg.Window.Height <= 0 {
		return fmt.Errorf("window size must be > 0, got %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Window.Title == "" {
		cfg.Window.Title = "oxy-canvas"
	}

	// Validate renderer
	if !oneOf(cfg.Renderer.Mode, validModes) {
		return fmt.Errorf("renderer.mode must be one of shader, image, video, depthMerge, got %q", cfg.Renderer.Mode)
	}
	if cfg.Renderer.PresentMode == "" {
		cfg.Renderer.PresentMode = "vsync"
	}
	if !oneOf(cfg.Renderer.PresentMode, validPresentModes) {
		return fmt.Errorf("renderer.present_mode must be vsync or uncapped, got %q", cfg.Renderer.PresentMode)
	}

	// Validate depth
	if cfg.Depth.Workers <= 0 {
		cfg.Depth.Workers = 4 // default
	}

	// Validate view
	if cfg.View.Zoom < MinZoom || cfg.View.Zoom > MaxZoom {
		return fmt.Errorf("view.zoom must be within [%.1f, %.1f], got %v", MinZoom, MaxZoom, cfg.View.Zoom)
	}
	if cfg.View.PanX < MinPan || cfg.View.PanX > MaxPan || cfg.View.PanY < MinPan || cfg.View.PanY > MaxPan {
		return fmt.Errorf("view.pan_x and view.pan_y must be within [%.1f, %.1f]", MinPan, MaxPan)
	}

	// Validate log
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if _, err := cfg.Log.SlogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

func oneOf(s string, options []string) bool {
	for _, o := range options {
		if strings.EqualFold(s, o) {
			return true
		}
	}
	return false
}
