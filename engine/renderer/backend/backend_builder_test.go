package backend

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestParsePresentMode(t *testing.T) {
	assert.Equal(t, PresentModeUncapped, ParsePresentMode("uncapped"))
	assert.Equal(t, PresentModeUncapped, ParsePresentMode("Uncapped"))
	assert.Equal(t, PresentModeVSync, ParsePresentMode("vsync"))
	assert.Equal(t, PresentModeVSync, ParsePresentMode(""))
}

func TestBuilderOptions(t *testing.T) {
	b := &wgpuRendererBackendImpl{}
	WithPresentMode(PresentModeUncapped)(b)
	assert.Equal(t, wgpu.PresentModeImmediate, b.presentMode)
	WithPresentMode(PresentModeVSync)(b)
	assert.Equal(t, wgpu.PresentModeFifo, b.presentMode)

	WithForceFallbackAdapter(true)(b)
	assert.True(t, b.forceFallbackAdapter)
}
