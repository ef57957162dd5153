package renderer

import (
	"errors"
	"fmt"
	"image"

	"github.com/Carmen-Shannon/oxy-canvas/common"
	"github.com/Carmen-Shannon/oxy-canvas/engine/media"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/bind_group_cache"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// Bind group cache keys, one per distinct set of bound resources.
const (
	BindGroupGalaxy                = "galaxy"
	BindGroupPassthroughImage      = "passthrough/image"
	BindGroupPassthroughVideo      = "passthrough/video"
	BindGroupPassthroughDepthMerge = "passthrough/depth_merge"
)

// DefaultDepthSize is the edge length of the square depth map texture.
const DefaultDepthSize uint32 = 256

// Variable names the renderer binds by in group 0 of galaxy.wgsl.
const (
	galaxyVarUniforms = "uniforms"
	galaxyVarSampler  = "texSampler"
	galaxyVarTexture  = "videoTex"
)

// Variable names the renderer binds by in group 0 of passthrough.wgsl.
const (
	passthroughVarSampler    = "texSampler"
	passthroughVarSource     = "sourceTex"
	passthroughVarParams     = "params"
	passthroughVarBackground = "backgroundTex"
	passthroughVarDepth      = "depthTex"
)

// galaxyBindings are the binding indices resolved from the galaxy shader.
type galaxyBindings struct {
	uniforms uint32
	sampler  uint32
	texture  uint32
}

// passthroughBindings are the binding indices resolved from the passthrough shader.
type passthroughBindings struct {
	sampler    uint32
	source     uint32
	params     uint32
	background uint32
	depth      uint32
}

// slotBindGroups lists the cached bind groups that sample each video slot.
var slotBindGroups = map[resource.VideoSlot][]string{
	resource.VideoSlotPrimary:    {BindGroupGalaxy, BindGroupPassthroughVideo, BindGroupPassthroughDepthMerge},
	resource.VideoSlotBackground: {BindGroupPassthroughDepthMerge},
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	backend   backend.RendererBackend
	pipelines *pipeline.Set
	resources resource.Manager
	cache     bind_group_cache.Cache

	galaxy      galaxyBindings
	passthrough passthroughBindings

	clearColor wgpu.Color
	depthSize  uint32

	lastPath DrawPath
}

// drawPlan is the outcome of path selection for one tick.
type drawPlan struct {
	path     DrawPath
	pipeline pipeline.Pipeline
	key      string
	uniform  resource.UniformKind
	values   [4]float32
	bindings []bind_group_cache.Binding
}

// Renderer is the per-tick frame dispatcher. It refreshes media textures, selects one of the draw
// paths, writes its uniforms, resolves its bind group through the cache and submits a single pass.
// All methods must be called from the render thread.
type Renderer interface {
	// Render draws one frame. It never panics and never returns an error; failures are logged and the
	// frame is dropped.
	//
	// Parameters:
	//   - in: the media, view parameters and pass for this tick
	//
	// Returns:
	//   - DrawPath: the path that was drawn, DrawPathNone if nothing was drawn
	Render(in FrameInput) DrawPath

	// LoadImage decodes and uploads the still image used by RenderModeImage. Once it succeeds, later
	// calls are no-ops.
	//
	// Parameters:
	//   - data: the encoded image bytes
	//
	// Returns:
	//   - error: a *common.AssetLoadError if the image could not be decoded or uploaded
	LoadImage(data []byte) error

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// A call to Resize is required after changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode backend.PresentMode)

	// Resources returns the resource manager.
	Resources() resource.Manager

	// Cache returns the bind group cache.
	Cache() bind_group_cache.Cache

	// LastPath returns the path drawn by the most recent Render call.
	LastPath() DrawPath

	// Release releases bind groups, pipelines and resources. The backend is left to its owner.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer assembles a Renderer from an initialized backend, the linked pipelines and the resource
// manager. The bind group cache is created empty; bind groups are built on first use.
//
// Parameters:
//   - b: the backend that owns the device
//   - pipelines: the galaxy and passthrough pipelines
//   - resources: the resource manager
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if a required dependency is nil or a shader lacks a binding the renderer uses
func NewRenderer(b backend.RendererBackend, pipelines *pipeline.Set, resources resource.Manager, options ...RendererBuilderOption) (Renderer, error) {
	if b == nil || resources == nil {
		return nil, fmt.Errorf("renderer needs a backend and a resource manager")
	}
	if pipelines == nil || pipelines.Galaxy == nil || pipelines.Passthrough == nil {
		return nil, fmt.Errorf("renderer needs both the galaxy and passthrough pipelines")
	}

	r := &renderer{
		backend:    b,
		pipelines:  pipelines,
		resources:  resources,
		clearColor: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		depthSize:  DefaultDepthSize,
	}
	if err := r.resolveBindings(); err != nil {
		return nil, err
	}
	for _, opt := range options {
		opt(r)
	}
	if r.cache == nil {
		r.cache = bind_group_cache.NewCache(b, bind_group_cache.WithOnRebuild(func(key string, n int) {
			common.Logger().Debug("bind group built", "key", key, "builds", n)
		}))
	}
	return r, nil
}

// resolveBindings looks up every binding index the renderer uses by its WGSL variable name.
func (r *renderer) resolveBindings() error {
	var errs []error
	bind := func(p pipeline.Pipeline, name string) uint32 {
		if s := p.Shader(); s != nil {
			if b, ok := s.BindGroupFromVarName(0, name); ok {
				return uint32(b)
			}
		}
		errs = append(errs, fmt.Errorf("%s shader declares no %q binding in group 0", p.PipelineKey(), name))
		return 0
	}

	g, pt := r.pipelines.Galaxy, r.pipelines.Passthrough
	r.galaxy = galaxyBindings{
		uniforms: bind(g, galaxyVarUniforms),
		sampler:  bind(g, galaxyVarSampler),
		texture:  bind(g, galaxyVarTexture),
	}
	r.passthrough = passthroughBindings{
		sampler:    bind(pt, passthroughVarSampler),
		source:     bind(pt, passthroughVarSource),
		params:     bind(pt, passthroughVarParams),
		background: bind(pt, passthroughVarBackground),
		depth:      bind(pt, passthroughVarDepth),
	}
	return errors.Join(errs...)
}

func (r *renderer) Render(in FrameInput) DrawPath {
	r.lastPath = r.render(in)
	return r.lastPath
}

func (r *renderer) render(in FrameInput) DrawPath {
	primaryFrame := in.PrimaryFrame
	if primaryFrame == nil {
		primaryFrame = latestFrame(in.Primary)
	}
	primary, hasPrimary := r.refreshVideo(resource.VideoSlotPrimary, primaryFrame)

	var plan *drawPlan
	switch pass := in.Pass.(type) {
	case ShaderPass:
		plan = r.galaxyPlan(pass, in.View, primary, hasPrimary)
	case ImagePass:
		if img, ok := r.resources.ImageTexture(); ok {
			plan = r.passthroughPlan(DrawPathImage, BindGroupPassthroughImage, img, img, r.resources.PlaceholderTexture())
		} else {
			common.Logger().Debug("image path skipped", "error", common.ErrNotReady)
		}
	case VideoPass:
		plan = r.videoPlan(primary, hasPrimary)
	case DepthMergePass:
		background, hasBackground := r.refreshVideo(resource.VideoSlotBackground, latestFrame(pass.Background))
		depthTex, hasDepth := r.refreshDepth(pass.Depth)
		if hasPrimary && hasBackground && hasDepth {
			plan = r.passthroughPlan(DrawPathDepthMerge, BindGroupPassthroughDepthMerge, primary, background, depthTex)
		} else {
			common.Logger().Debug("depth merge falling back to video",
				"primary", hasPrimary, "background", hasBackground, "depth", hasDepth)
			plan = r.videoPlan(primary, hasPrimary)
		}
	default:
		common.Logger().Debug("frame without a pass", "pass", fmt.Sprintf("%T", in.Pass))
	}

	var bg backend.BindGroup
	if plan != nil {
		r.resources.WriteUniforms(plan.uniform, plan.values)
		layout, ok := plan.pipeline.BindGroupLayout(0)
		if !ok {
			common.Logger().Warn("pipeline has no bind group 0", "pipeline", plan.pipeline.PipelineKey())
			plan = nil
		} else {
			var err error
			bg, err = r.cache.GetOrRebuild(plan.key, layout, plan.bindings)
			if err != nil {
				common.Logger().Warn("bind group unavailable, skipping draw", "key", plan.key, "error", err)
				plan = nil
			}
		}
	}

	if err := r.backend.BeginFrame(r.clearColor); err != nil {
		common.Logger().Debug("frame dropped", "stage", "begin", "error", err)
		return DrawPathNone
	}

	path := DrawPathNone
	if plan != nil {
		r.backend.Draw(plan.pipeline.RenderPipeline(), bg, plan.pipeline.VertexCount())
		path = plan.path
	}

	if err := r.backend.EndFrame(); err != nil {
		common.Logger().Warn("frame dropped", "error", &common.SubmissionError{Err: err})
		return DrawPathNone
	}
	r.backend.Present()
	return path
}

// latestFrame reads the source's current frame, nil when it has none.
func latestFrame(src media.Source) *image.RGBA {
	if src == nil || !src.Ready() {
		return nil
	}
	frame, ok := src.Frame()
	if !ok {
		return nil
	}
	return frame
}

// refreshVideo sizes the slot's texture to frame and uploads it. A reallocation releases the cached
// bind groups that sampled the old texture before it is used again.
func (r *renderer) refreshVideo(slot resource.VideoSlot, frame *image.RGBA) (*resource.Texture, bool) {
	if frame == nil {
		return nil, false
	}
	b := frame.Bounds()
	tex, changed, err := r.resources.EnsureVideoTexture(slot, uint32(b.Dx()), uint32(b.Dy()))
	if err != nil {
		common.Logger().Debug("video texture unavailable", "slot", slot, "error", err)
		return nil, false
	}
	if changed {
		common.Logger().Info("video texture allocated", "slot", slot, "width", tex.Width, "height", tex.Height, "generation", tex.Generation)
		for _, key := range slotBindGroups[slot] {
			r.cache.Invalidate(key)
		}
	}
	r.resources.UploadFrame(tex, frame)
	return tex, true
}

// refreshDepth uploads the depth map. A missing or wrongly sized map counts as absent.
func (r *renderer) refreshDepth(depth image.Image) (*resource.Texture, bool) {
	if depth == nil {
		return nil, false
	}
	tex, err := r.resources.EnsureDepthTexture(r.depthSize)
	if err != nil {
		common.Logger().Debug("depth texture unavailable", "error", err)
		return nil, false
	}
	if !r.resources.UploadImage(tex, depth) {
		common.Logger().Debug("depth map rejected", "bounds", depth.Bounds(), "size", tex.Width)
		return nil, false
	}
	return tex, true
}

func (r *renderer) galaxyPlan(pass ShaderPass, view ViewParams, video *resource.Texture, hasVideo bool) *drawPlan {
	tex := r.resources.PlaceholderTexture()
	if hasVideo {
		tex = video
	}
	uniforms := r.resources.Uniform(resource.UniformGalaxy)
	sampler := r.resources.Sampler()
	return &drawPlan{
		path:     DrawPathGalaxy,
		pipeline: r.pipelines.Galaxy,
		key:      BindGroupGalaxy,
		uniform:  resource.UniformGalaxy,
		values:   [4]float32{float32(pass.Elapsed.Seconds()), view.Zoom, view.PanX, view.PanY},
		bindings: []bind_group_cache.Binding{
			{Slot: r.galaxy.uniforms, Generation: uniforms.Generation, Resource: uniforms.Entry(r.galaxy.uniforms)},
			{Slot: r.galaxy.sampler, Generation: sampler.Generation, Resource: sampler.Entry(r.galaxy.sampler)},
			{Slot: r.galaxy.texture, Generation: tex.Generation, Resource: tex.Entry(r.galaxy.texture)},
		},
	}
}

func (r *renderer) videoPlan(video *resource.Texture, hasVideo bool) *drawPlan {
	if !hasVideo {
		common.Logger().Debug("video path skipped", "error", common.ErrNotReady)
		return nil
	}
	return r.passthroughPlan(DrawPathVideo, BindGroupPassthroughVideo, video, video, r.resources.PlaceholderTexture())
}

// passthroughPlan binds source over background weighted by depth. The image and video paths pass the
// source as its own background with the white placeholder as depth, which samples as plain passthrough.
func (r *renderer) passthroughPlan(path DrawPath, key string, source, background, depth *resource.Texture) *drawPlan {
	w, h := r.backend.SurfaceSize()
	params := r.resources.Uniform(resource.UniformPassthrough)
	sampler := r.resources.Sampler()
	slots := r.passthrough
	return &drawPlan{
		path:     path,
		pipeline: r.pipelines.Passthrough,
		key:      key,
		uniform:  resource.UniformPassthrough,
		values:   [4]float32{float32(w), float32(h), float32(source.Width), float32(source.Height)},
		bindings: []bind_group_cache.Binding{
			{Slot: slots.sampler, Generation: sampler.Generation, Resource: sampler.Entry(slots.sampler)},
			{Slot: slots.source, Generation: source.Generation, Resource: source.Entry(slots.source)},
			{Slot: slots.params, Generation: params.Generation, Resource: params.Entry(slots.params)},
			{Slot: slots.background, Generation: background.Generation, Resource: background.Entry(slots.background)},
			{Slot: slots.depth, Generation: depth.Generation, Resource: depth.Entry(slots.depth)},
		},
	}
}

func (r *renderer) LoadImage(data []byte) error {
	_, err := r.resources.EnsureImageTexture(data)
	return err
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode backend.PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Resources() resource.Manager {
	return r.resources
}

func (r *renderer) Cache() bind_group_cache.Cache {
	return r.cache
}

func (r *renderer) LastPath() DrawPath {
	return r.lastPath
}

func (r *renderer) Release() {
	r.cache.Release()
	r.pipelines.Release()
	r.resources.Release()
}
