package renderer

import (
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/bind_group_cache"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithClearColor sets the color every frame is cleared to before drawing. Defaults to opaque black.
//
// Parameters:
//   - c: the clear color
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear color option to a renderer
func WithClearColor(c wgpu.Color) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}

// WithDepthSize sets the edge length of the square depth map texture. Defaults to DefaultDepthSize.
// Depth maps of any other size are treated as absent.
//
// Parameters:
//   - size: the edge length in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the depth size option to a renderer
func WithDepthSize(size uint32) RendererBuilderOption {
	return func(r *renderer) {
		if size > 0 {
			r.depthSize = size
		}
	}
}

// WithBindGroupCache replaces the renderer's bind group cache.
//
// Parameters:
//   - c: the cache to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the cache option to a renderer
func WithBindGroupCache(c bind_group_cache.Cache) RendererBuilderOption {
	return func(r *renderer) {
		r.cache = c
	}
}
