// Package backend abstracts the GPU device behind a small set of handle interfaces.
// The wgpu implementation owns the real device, queue and surface; backendtest provides a
// recording stand-in so the rest of the renderer can be exercised without a GPU.
package backend

import (
	"github.com/Carmen-Shannon/oxy-canvas/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// Texture is a GPU-resident 2D texture together with the view used to bind it.
type Texture interface {
	Label() string
	Width() uint32
	Height() uint32
	Release()
}

// Sampler is an immutable GPU sampler.
type Sampler interface {
	Release()
}

// Buffer is a GPU buffer of fixed size.
type Buffer interface {
	Size() uint64
	Release()
}

// BindGroupLayout is a layout created from a pipeline's reflected bind group descriptor.
type BindGroupLayout interface {
	Release()
}

// BindGroup binds concrete resources to the slots of a BindGroupLayout.
type BindGroup interface {
	Release()
}

// RenderPipeline is a linked render pipeline and the bind group layouts it was created with.
type RenderPipeline interface {
	// BindGroupLayout returns the layout for a bind group index.
	//
	// Parameters:
	//   - group: the @group index declared in the shader
	//
	// Returns:
	//   - BindGroupLayout: the layout for the group
	//   - bool: false if the pipeline declares no such group
	BindGroupLayout(group int) (BindGroupLayout, bool)
	Release()
}

// TextureDescriptor describes a sampled 2D texture that can be written from the CPU.
type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	// Format defaults to wgpu.TextureFormatRGBA8UnormSrgb when zero.
	Format wgpu.TextureFormat
}

// RenderPipelineDescriptor carries everything needed to link a full-screen render pipeline whose
// vertex and fragment stages live in the same WGSL module. Pipelines have no vertex buffers and no
// depth attachment; the single color target uses the surface format.
type RenderPipelineDescriptor struct {
	Label              string
	Source             string
	VertexEntryPoint   string
	FragmentEntryPoint string
	Topology           wgpu.PrimitiveTopology
	FrontFace          wgpu.FrontFace
	CullMode           wgpu.CullMode
	WriteMask          wgpu.ColorWriteMask
	BindGroupLayouts   map[int]wgpu.BindGroupLayoutDescriptor
}

// BindGroupEntry binds exactly one of Buffer, Sampler or Texture to a binding index.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
	Sampler Sampler
	Texture Texture
}

// RendererBackend is the GPU device seen by the renderer. All methods are called from the
// single render thread.
type RendererBackend interface {
	// SurfaceFormat returns the presentation format chosen when the surface was last configured.
	SurfaceFormat() wgpu.TextureFormat

	// SurfaceSize returns the configured surface size in pixels.
	//
	// Returns:
	//   - width: the surface width
	//   - height: the surface height
	SurfaceSize() (width, height int)

	// ConfigureSurface is a wrapper for boilerplate logic required when calling Configure on a surface.
	// This is required when the surface size changes, such as when the window is resized.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode. Takes effect on the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// CreateTexture allocates a sampled texture that can be written with WriteTexture.
	//
	// Parameters:
	//   - desc: the texture size, format and label
	//
	// Returns:
	//   - Texture: the new texture
	//   - error: an error if the texture or its view could not be created
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// WriteTexture uploads tightly packed RGBA pixels covering the whole texture.
	//
	// Parameters:
	//   - t: the destination texture
	//   - data: the staged pixels; Width and Height must match the texture
	//
	// Returns:
	//   - error: an error if the staging size does not match the texture
	WriteTexture(t Texture, data common.TextureStagingData) error

	// CreateSampler creates a sampler from staging data; zero fields use linear clamp-to-edge defaults.
	//
	// Parameters:
	//   - label: the debug label
	//   - data: the sampler configuration
	//
	// Returns:
	//   - Sampler: the new sampler
	//   - error: an error if the sampler could not be created
	CreateSampler(label string, data common.SamplerStagingData) (Sampler, error)

	// CreateUniformBuffer creates a uniform buffer that can be written with WriteBuffer.
	//
	// Parameters:
	//   - label: the debug label
	//   - size: the buffer size in bytes
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: an error if the buffer could not be created
	CreateUniformBuffer(label string, size uint64) (Buffer, error)

	// WriteBuffer queues a write of data into the buffer at offset.
	//
	// Parameters:
	//   - b: the destination buffer
	//   - offset: the byte offset to write at
	//   - data: the bytes to write
	WriteBuffer(b Buffer, offset uint64, data []byte)

	// CreateRenderPipeline compiles the descriptor's source and links a render pipeline targeting the
	// surface format.
	//
	// Parameters:
	//   - desc: the pipeline descriptor
	//
	// Returns:
	//   - RenderPipeline: the linked pipeline
	//   - error: an error if a shader module, layout or the pipeline could not be created
	CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error)

	// CreateBindGroup creates a bind group from a layout and concrete resources.
	//
	// Parameters:
	//   - label: the debug label
	//   - layout: the bind group layout, obtained from RenderPipeline.BindGroupLayout
	//   - entries: one entry per binding in the layout
	//
	// Returns:
	//   - BindGroup: the new bind group
	//   - error: an error if an entry is empty or the bind group could not be created
	CreateBindGroup(label string, layout BindGroupLayout, entries []BindGroupEntry) (BindGroup, error)

	// BeginFrame acquires the next surface texture, creates a command encoder and begins
	// the frame's single render pass, clearing to the given color.
	// Must be paired with EndFrame.
	//
	// Parameters:
	//   - clear: the clear color for the pass
	//
	// Returns:
	//   - error: an error if the surface texture or the encoder could not be acquired
	BeginFrame(clear wgpu.Color) error

	// Draw encodes a non-indexed, single-instance draw in the current pass with bind group 0 set.
	//
	// Parameters:
	//   - p: the pipeline to draw with
	//   - bg: the bind group to set at index 0
	//   - vertexCount: the number of vertices to draw
	Draw(p RenderPipeline, bg BindGroup, vertexCount uint32)

	// EndFrame ends the render pass and submits the frame's command buffer.
	// Does not present the surface; call Present after EndFrame.
	//
	// Returns:
	//   - error: an error if the command buffer could not be finished
	EndFrame() error

	// Present presents the surface and releases the frame's surface texture.
	// Safe to call when no frame is held.
	Present()

	// Release releases the device, surface and instance.
	Release()
}
