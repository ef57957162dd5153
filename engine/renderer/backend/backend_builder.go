package backend

import (
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// BackendBuilderOption is a functional option applied to the wgpu backend during NewWGPURendererBackend.
type BackendBuilderOption func(*wgpuRendererBackendImpl)

// WithPresentMode sets the surface present mode used when the surface is configured.
//
// Parameters:
//   - mode: the PresentMode to use
//
// Returns:
//   - BackendBuilderOption: a function that applies the present mode option to the backend
func WithPresentMode(mode PresentMode) BackendBuilderOption {
	return func(b *wgpuRendererBackendImpl) {
		switch mode {
		case PresentModeUncapped:
			b.presentMode = wgpu.PresentModeImmediate
		default:
			b.presentMode = wgpu.PresentModeFifo
		}
	}
}

// WithForceFallbackAdapter forces the adapter request to return a software (fallback) adapter.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - BackendBuilderOption: a function that applies the fallback option to the backend
func WithForceFallbackAdapter(force bool) BackendBuilderOption {
	return func(b *wgpuRendererBackendImpl) {
		b.forceFallbackAdapter = force
	}
}

// ParsePresentMode maps a configuration string to a PresentMode. Anything other than "uncapped"
// (in any case) selects VSync.
//
// Parameters:
//   - s: "vsync" or "uncapped"
//
// Returns:
//   - PresentMode: the parsed mode
func ParsePresentMode(s string) PresentMode {
	if strings.EqualFold(s, "uncapped") {
		return PresentModeUncapped
	}
	return PresentModeVSync
}
