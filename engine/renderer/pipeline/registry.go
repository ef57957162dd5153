package pipeline

import (
	"os"

	"github.com/Carmen-Shannon/oxy-canvas/assets"
	"github.com/Carmen-Shannon/oxy-canvas/common"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// GalaxyKey identifies the procedural background pipeline.
	GalaxyKey = "galaxy"

	// PassthroughKey identifies the textured quad pipeline used by the image, video and depth merge paths.
	PassthroughKey = "passthrough"

	// GalaxyVertexCount is two triangles emitted as a triangle list.
	GalaxyVertexCount uint32 = 6

	// PassthroughVertexCount is one quad emitted as a triangle strip.
	PassthroughVertexCount uint32 = 4
)

// Sources holds the WGSL source of each pipeline.
type Sources struct {
	Galaxy      string
	Passthrough string
}

// Set holds the two pipelines the renderer draws with.
type Set struct {
	Galaxy      Pipeline
	Passthrough Pipeline
}

// Release releases both pipelines. Nil members are skipped.
func (s *Set) Release() {
	if s == nil {
		return
	}
	if s.Galaxy != nil {
		s.Galaxy.Release()
	}
	if s.Passthrough != nil {
		s.Passthrough.Release()
	}
}

// DefaultSources returns the shader sources embedded in the binary.
//
// Returns:
//   - Sources: the bundled galaxy and passthrough WGSL
func DefaultSources() Sources {
	return Sources{
		Galaxy:      assets.GalaxyWGSL,
		Passthrough: assets.PassthroughWGSL,
	}
}

// LoadSources reads the shader sources from disk. An empty path selects the embedded source for that pipeline.
//
// Parameters:
//   - galaxyPath: the path to the galaxy WGSL file, or empty
//   - passthroughPath: the path to the passthrough WGSL file, or empty
//
// Returns:
//   - Sources: the loaded sources
//   - error: a *common.AssetLoadError naming the file that could not be read
func LoadSources(galaxyPath, passthroughPath string) (Sources, error) {
	src := DefaultSources()
	if galaxyPath != "" {
		data, err := os.ReadFile(galaxyPath)
		if err != nil {
			return Sources{}, &common.AssetLoadError{Asset: galaxyPath, Err: err}
		}
		src.Galaxy = string(data)
	}
	if passthroughPath != "" {
		data, err := os.ReadFile(passthroughPath)
		if err != nil {
			return Sources{}, &common.AssetLoadError{Asset: passthroughPath, Err: err}
		}
		src.Passthrough = string(data)
	}
	return src, nil
}

// BuildPipelines validates both shaders and links the galaxy and passthrough pipelines.
// Any failure aborts construction; pipelines linked before the failure are released.
//
// Parameters:
//   - b: the backend that owns the device
//   - src: the WGSL sources
//
// Returns:
//   - *Set: the linked pipelines
//   - error: a *common.ShaderCompileError naming the shader, or the backend's link error
func BuildPipelines(b backend.RendererBackend, src Sources) (*Set, error) {
	set := &Set{}

	galaxy, err := buildOne(b, GalaxyKey, src.Galaxy,
		WithTopology(wgpu.PrimitiveTopologyTriangleList),
		WithVertexCount(GalaxyVertexCount),
	)
	if err != nil {
		return nil, err
	}
	set.Galaxy = galaxy

	passthrough, err := buildOne(b, PassthroughKey, src.Passthrough,
		WithTopology(wgpu.PrimitiveTopologyTriangleStrip),
		WithVertexCount(PassthroughVertexCount),
	)
	if err != nil {
		set.Release()
		return nil, err
	}
	set.Passthrough = passthrough

	common.Logger().Info("pipelines built", "galaxy", GalaxyVertexCount, "passthrough", PassthroughVertexCount)
	return set, nil
}

func buildOne(b backend.RendererBackend, key, source string, opts ...PipelineBuilderOption) (Pipeline, error) {
	s, err := shader.NewShader(key, source)
	if err != nil {
		return nil, err
	}
	p := NewPipeline(key, s, opts...)
	if err := p.Build(b); err != nil {
		return nil, &common.ShaderCompileError{Shader: key, Err: err}
	}
	return p, nil
}
