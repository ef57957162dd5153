package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// pipeline is the implementation of the Pipeline interface.
// It holds the validated shader, the fixed primitive state and, once built, the linked backend pipeline.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for labels and lookups
	pipelineKey string

	// shader holds both the vertex and fragment entry points along with the reflected layouts
	shader shader.Shader

	// renderPipeline is nil until Build succeeds and again after Release
	renderPipeline backend.RenderPipeline

	// vertexCount is the number of vertices generated in the vertex stage from vertex_index.
	// Full-screen pipelines have no vertex buffers.
	vertexCount uint32

	cullMode  wgpu.CullMode
	topology  wgpu.PrimitiveTopology
	frontFace wgpu.FrontFace
	writeMask wgpu.ColorWriteMask
}

// Pipeline is a full-screen render pipeline: one WGSL module, a fixed topology and vertex count, and the
// bind group layouts reflected from the shader. The color target always uses the surface format.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for labels and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader returns the validated shader this pipeline links.
	//
	// Returns:
	//   - shader.Shader: the pipeline's shader
	Shader() shader.Shader

	// VertexCount returns the number of vertices a single draw with this pipeline emits.
	//
	// Returns:
	//   - uint32: the vertex count
	VertexCount() uint32

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode for this pipeline (e.g., wgpu.CullModeNone, wgpu.CullModeBack)
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology for this pipeline (e.g., wgpu.PrimitiveTopologyTriangleStrip)
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	//
	// Returns:
	//   - wgpu.FrontFace: the front face winding order for this pipeline (e.g., wgpu.FrontFaceCCW)
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	//
	// Returns:
	//   - wgpu.ColorWriteMask: the color write mask for this pipeline
	WriteMask() wgpu.ColorWriteMask

	// Descriptor assembles the backend descriptor used to link this pipeline.
	//
	// Returns:
	//   - backend.RenderPipelineDescriptor: the descriptor
	Descriptor() backend.RenderPipelineDescriptor

	// Build links the pipeline on the backend. Calling Build on a built pipeline is a no-op.
	//
	// Parameters:
	//   - b: the backend that owns the device
	//
	// Returns:
	//   - error: an error if the backend could not link the pipeline
	Build(b backend.RendererBackend) error

	// RenderPipeline returns the linked backend pipeline, or nil if Build has not succeeded.
	//
	// Returns:
	//   - backend.RenderPipeline: the linked pipeline
	RenderPipeline() backend.RenderPipeline

	// BindGroupLayout returns the linked layout for a bind group index.
	//
	// Parameters:
	//   - group: the @group index
	//
	// Returns:
	//   - backend.BindGroupLayout: the layout
	//   - bool: false if the pipeline is not built or declares no such group
	BindGroupLayout(group int) (backend.BindGroupLayout, bool)

	// Release releases the linked pipeline and its layouts. Safe to call more than once.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline. The pipeline is not linked until Build is called.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - s: the validated shader providing the vs and fs entry points
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
func NewPipeline(pipelineKey string, s shader.Shader, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey: pipelineKey,
		shader:      s,
		vertexCount: 3,
		cullMode:    wgpu.CullModeNone,
		topology:    wgpu.PrimitiveTopologyTriangleList,
		frontFace:   wgpu.FrontFaceCCW,
		writeMask:   wgpu.ColorWriteMaskAll,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader() shader.Shader {
	return p.shader
}

func (p *pipeline) VertexCount() uint32 {
	return p.vertexCount
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) Descriptor() backend.RenderPipelineDescriptor {
	return backend.RenderPipelineDescriptor{
		Label:              p.pipelineKey + " render pipeline",
		Source:             p.shader.Source(),
		VertexEntryPoint:   p.shader.EntryPoint(shader.ShaderTypeVertex),
		FragmentEntryPoint: p.shader.EntryPoint(shader.ShaderTypeFragment),
		Topology:           p.topology,
		FrontFace:          p.frontFace,
		CullMode:           p.cullMode,
		WriteMask:          p.writeMask,
		BindGroupLayouts:   p.shader.BindGroupLayoutDescriptors(),
	}
}

func (p *pipeline) Build(b backend.RendererBackend) error {
	if p.renderPipeline != nil {
		return nil
	}
	rp, err := b.CreateRenderPipeline(p.Descriptor())
	if err != nil {
		return fmt.Errorf("link %s pipeline: %w", p.pipelineKey, err)
	}
	p.renderPipeline = rp
	return nil
}

func (p *pipeline) RenderPipeline() backend.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) BindGroupLayout(group int) (backend.BindGroupLayout, bool) {
	if p.renderPipeline == nil {
		return nil, false
	}
	return p.renderPipeline.BindGroupLayout(group)
}

func (p *pipeline) Release() {
	if p.renderPipeline == nil {
		return
	}
	p.renderPipeline.Release()
	p.renderPipeline = nil
}
