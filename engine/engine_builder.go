package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-canvas/engine/depth"
	"github.com/Carmen-Shannon/oxy-canvas/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the tick rate used when the engine runs without a window.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithWindow sets the window that provides the surface and the input callbacks.
//
// Parameters:
//   - w: a created Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithBackendFactory replaces the wgpu backend bootstrap.
//
// Parameters:
//   - f: the factory called in the first Init phase
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithBackendFactory(f BackendFactory) EngineBuilderOption {
	return func(e *engine) {
		if f != nil {
			e.newBackend = f
		}
	}
}

// WithPipelineFactory replaces shader loading and pipeline linking.
//
// Parameters:
//   - f: the factory called in the pipelines Init phase
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPipelineFactory(f PipelineFactory) EngineBuilderOption {
	return func(e *engine) {
		if f != nil {
			e.newPipeline = f
		}
	}
}

// WithSourceOpener replaces the video decoder used for the primary and background videos.
//
// Parameters:
//   - f: the opener called once per configured video path
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSourceOpener(f SourceOpener) EngineBuilderOption {
	return func(e *engine) {
		if f != nil {
			e.openVideo = f
		}
	}
}

// WithDepthModel sets the depth network. The default is depth.LuminanceModel.
//
// Parameters:
//   - m: the model; nil disables depth estimation
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithDepthModel(m depth.Model) EngineBuilderOption {
	return func(e *engine) {
		e.model = m
	}
}

// WithClock sets the time source for the Ready timestamp and window-driven ticks.
//
// Parameters:
//   - now: the clock
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithClock(now func() time.Time) EngineBuilderOption {
	return func(e *engine) {
		if now != nil {
			e.now = now
		}
	}
}
