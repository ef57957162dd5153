package renderer

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubShader stands in for a compiled shader so dispatch can be tested without the WGSL compiler.
// names[i] is the variable declared at group 0, binding i.
type stubShader struct {
	key   string
	names []string
}

// Binding indices of the stubs built by newHarness, in the order galaxy.wgsl and passthrough.wgsl declare them.
const (
	galaxyBindingUniforms uint32 = 0
	galaxyBindingSampler  uint32 = 1
	galaxyBindingTexture  uint32 = 2

	passthroughBindingSampler    uint32 = 0
	passthroughBindingSource     uint32 = 1
	passthroughBindingParams     uint32 = 2
	passthroughBindingBackground uint32 = 3
	passthroughBindingDepth      uint32 = 4
)

var (
	galaxyNames      = []string{galaxyVarUniforms, galaxyVarSampler, galaxyVarTexture}
	passthroughNames = []string{passthroughVarSampler, passthroughVarSource, passthroughVarParams, passthroughVarBackground, passthroughVarDepth}
)

func (s stubShader) Key() string    { return s.key }
func (s stubShader) Source() string { return "// " + s.key }
func (s stubShader) EntryPoint(stage shader.ShaderType) string {
	if stage == shader.ShaderTypeVertex {
		return "vs_main"
	}
	return "fs_main"
}
func (s stubShader) BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor {
	return s.BindGroupLayoutDescriptors()[group]
}
func (s stubShader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	entries := make([]wgpu.BindGroupLayoutEntry, len(s.names))
	for i := range entries {
		entries[i].Binding = uint32(i)
	}
	return map[int]wgpu.BindGroupLayoutDescriptor{0: {Label: s.key, Entries: entries}}
}
func (s stubShader) BindGroupFromVarName(group int, varName string) (int, bool) {
	if group != 0 {
		return -1, false
	}
	for i, name := range s.names {
		if name == varName {
			return i, true
		}
	}
	return -1, false
}

// videoSource is a media.Source whose current frame the test controls.
type videoSource struct {
	frame *image.RGBA
	reads int
}

func (v *videoSource) Frame() (*image.RGBA, bool) {
	v.reads++
	return v.frame, v.frame != nil
}
func (v *videoSource) Width() int {
	if v.frame == nil {
		return 0
	}
	return v.frame.Bounds().Dx()
}
func (v *videoSource) Height() int {
	if v.frame == nil {
		return 0
	}
	return v.frame.Bounds().Dy()
}
func (v *videoSource) Ready() bool  { return v.frame != nil }
func (v *videoSource) Close() error { return nil }

func frameOf(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func floats(b []byte) [4]float32 {
	var out [4]float32
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

type harness struct {
	backend *backendtest.Backend
	r       Renderer
}

func newHarness(t *testing.T) harness {
	t.Helper()
	b, set := newPipelines(t, galaxyNames, passthroughNames)
	res, err := resource.NewManager(b)
	require.NoError(t, err)
	r, err := NewRenderer(b, set, res)
	require.NoError(t, err)
	return harness{backend: b, r: r}
}

func newPipelines(t *testing.T, galaxyVars, passthroughVars []string) (*backendtest.Backend, *pipeline.Set) {
	t.Helper()
	b := backendtest.New()
	galaxy := pipeline.NewPipeline(pipeline.GalaxyKey, stubShader{key: "galaxy", names: galaxyVars},
		pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleList),
		pipeline.WithVertexCount(pipeline.GalaxyVertexCount))
	passthrough := pipeline.NewPipeline(pipeline.PassthroughKey, stubShader{key: "passthrough", names: passthroughVars},
		pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleStrip),
		pipeline.WithVertexCount(pipeline.PassthroughVertexCount))
	require.NoError(t, galaxy.Build(b))
	require.NoError(t, passthrough.Build(b))
	return b, &pipeline.Set{Galaxy: galaxy, Passthrough: passthrough}
}

func (h harness) lastDraw(t *testing.T) backendtest.DrawCall {
	t.Helper()
	d, ok := h.backend.LastDraw()
	require.True(t, ok, "expected a draw")
	require.Equal(t, h.backend.FramesBegun, d.Frame, "draw belongs to the latest frame")
	return d
}

var defaultView = ViewParams{Zoom: 1, PanX: 0.5, PanY: 0.5}

func TestShaderModeWithoutMedia(t *testing.T) {
	h := newHarness(t)

	path := h.r.Render(FrameInput{View: defaultView, Pass: ShaderPass{Elapsed: 2 * time.Second}})
	assert.Equal(t, DrawPathGalaxy, path)

	d := h.lastDraw(t)
	assert.Equal(t, uint32(6), d.VertexCount)
	assert.Equal(t, pipeline.GalaxyKey+" render pipeline", d.Pipeline.Desc.Label)
	assert.Equal(t, [4]float32{2, 1, 0.5, 0.5}, floats(d.Uniforms[galaxyBindingUniforms]))
	assert.Same(t, h.r.Resources().PlaceholderTexture().Handle, d.Textures[galaxyBindingTexture])

	assert.Equal(t, 1, h.backend.FramesSubmitted)
	assert.Equal(t, 1, h.backend.FramesPresented)
	assert.Equal(t, DrawPathGalaxy, h.r.LastPath())
}

func TestShaderModeSamplesPrimaryVideo(t *testing.T) {
	h := newHarness(t)
	video := &videoSource{frame: frameOf(4, 2, color.RGBA{R: 9, A: 255})}

	h.r.Render(FrameInput{Primary: video, View: defaultView, Pass: ShaderPass{}})
	d := h.lastDraw(t)
	tex, ok := h.r.Resources().VideoTexture(resource.VideoSlotPrimary)
	require.True(t, ok)
	assert.Same(t, tex.Handle, d.Textures[galaxyBindingTexture])
	assert.Equal(t, byte(9), d.Textures[galaxyBindingTexture].Pixels[0])
}

func TestShaderUniformsStableAcrossModeSwitches(t *testing.T) {
	h := newHarness(t)
	video := &videoSource{frame: frameOf(8, 8, color.RGBA{A: 255})}
	require.NoError(t, h.r.LoadImage(encodePNG(t, frameOf(2, 2, color.RGBA{G: 255, A: 255}))))

	shaderIn := FrameInput{Primary: video, View: ViewParams{Zoom: 1.5, PanX: 0.2, PanY: 1.8}, Pass: ShaderPass{Elapsed: 1500 * time.Millisecond}}

	h.r.Render(shaderIn)
	before := h.lastDraw(t)

	assert.Equal(t, DrawPathImage, h.r.Render(FrameInput{Primary: video, View: defaultView, Pass: ImagePass{}}))
	assert.Equal(t, DrawPathVideo, h.r.Render(FrameInput{Primary: video, View: defaultView, Pass: VideoPass{}}))
	assert.Equal(t, DrawPathVideo, h.r.Render(FrameInput{Primary: video, View: defaultView, Pass: DepthMergePass{}}))

	h.r.Render(shaderIn)
	after := h.lastDraw(t)

	assert.Equal(t, before.Uniforms[galaxyBindingUniforms], after.Uniforms[galaxyBindingUniforms])
	assert.Equal(t, [4]float32{1.5, 1.5, 0.2, 1.8}, floats(after.Uniforms[galaxyBindingUniforms]))
	assert.Same(t, before.BindGroup, after.BindGroup)
	assert.Equal(t, 1, h.r.Cache().Rebuilds(BindGroupGalaxy))
}

func TestImageModeWithoutImageSkipsDraw(t *testing.T) {
	h := newHarness(t)

	path := h.r.Render(FrameInput{View: defaultView, Pass: ImagePass{}})
	assert.Equal(t, DrawPathNone, path)
	assert.Empty(t, h.backend.Draws)
	assert.Equal(t, 1, h.backend.FramesPresented, "the cleared frame is still presented")
}

func TestImageMode(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.r.LoadImage(encodePNG(t, frameOf(320, 200, color.RGBA{B: 200, A: 255}))))

	assert.Equal(t, DrawPathImage, h.r.Render(FrameInput{View: defaultView, Pass: ImagePass{}}))
	d := h.lastDraw(t)
	assert.Equal(t, uint32(4), d.VertexCount)
	assert.Equal(t, [4]float32{800, 600, 320, 200}, floats(d.Uniforms[passthroughBindingParams]))

	img, _ := h.r.Resources().ImageTexture()
	assert.Same(t, img.Handle, d.Textures[passthroughBindingSource])
	assert.Same(t, img.Handle, d.Textures[passthroughBindingBackground])
	assert.Same(t, h.r.Resources().PlaceholderTexture().Handle, d.Textures[passthroughBindingDepth])
	assert.Equal(t, BindGroupPassthroughImage, d.BindGroup.Label)
}

func TestVideoModeWithoutVideoSkipsDraw(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, DrawPathNone, h.r.Render(FrameInput{Primary: &videoSource{}, View: defaultView, Pass: VideoPass{}}))
	assert.Empty(t, h.backend.Draws)
}

func TestVideoResolutionChange(t *testing.T) {
	h := newHarness(t)
	video := &videoSource{frame: frameOf(640, 360, color.RGBA{R: 1, A: 255})}
	in := FrameInput{Primary: video, View: defaultView, Pass: VideoPass{}}

	for i := 0; i < 3; i++ {
		require.Equal(t, DrawPathVideo, h.r.Render(in))
	}
	first := h.lastDraw(t)
	assert.Equal(t, [4]float32{800, 600, 640, 360}, floats(first.Uniforms[passthroughBindingParams]))
	assert.Equal(t, 1, h.r.Cache().Rebuilds(BindGroupPassthroughVideo))

	video.frame = frameOf(1280, 720, color.RGBA{R: 2, A: 255})
	for i := 0; i < 3; i++ {
		require.Equal(t, DrawPathVideo, h.r.Render(in))
	}
	second := h.lastDraw(t)

	assert.Equal(t, [4]float32{800, 600, 1280, 720}, floats(second.Uniforms[passthroughBindingParams]))
	assert.Equal(t, 2, h.r.Cache().Rebuilds(BindGroupPassthroughVideo), "rebuilt exactly once for the new texture")
	assert.NotSame(t, first.BindGroup, second.BindGroup)
	assert.True(t, first.BindGroup.Released)
	assert.Equal(t, byte(2), second.Textures[passthroughBindingSource].Pixels[0])

	videoTextures := h.backend.TexturesLabeled("video")
	require.Len(t, videoTextures, 2)
	assert.True(t, videoTextures[0].Released, "640x360 texture released")
	assert.False(t, videoTextures[1].Released)
	assert.Equal(t, uint32(1280), videoTextures[1].Width())

	// the galaxy bind group built against the old texture is rebuilt before its next use
	require.Equal(t, DrawPathGalaxy, h.r.Render(FrameInput{Primary: video, View: defaultView, Pass: ShaderPass{}}))
	assert.Same(t, videoTextures[1], h.lastDraw(t).Textures[galaxyBindingTexture])
}

func TestVideoReallocationReleasesDependentBindGroups(t *testing.T) {
	h := newHarness(t)
	video := &videoSource{frame: frameOf(640, 360, color.RGBA{R: 1, A: 255})}
	bg := &videoSource{frame: frameOf(32, 32, color.RGBA{B: 1, A: 255})}
	depthMap := image.NewGray(image.Rect(0, 0, 256, 256))

	require.Equal(t, DrawPathGalaxy, h.r.Render(FrameInput{Primary: video, View: defaultView, Pass: ShaderPass{}}))
	galaxy := h.lastDraw(t).BindGroup
	require.Equal(t, DrawPathDepthMerge, h.r.Render(FrameInput{
		Primary: video, View: defaultView, Pass: DepthMergePass{Background: bg, Depth: depthMap},
	}))
	merged := h.lastDraw(t).BindGroup

	// only the video path is drawn after the primary changes size
	video.frame = frameOf(1280, 720, color.RGBA{R: 2, A: 255})
	require.Equal(t, DrawPathVideo, h.r.Render(FrameInput{Primary: video, View: defaultView, Pass: VideoPass{}}))

	assert.True(t, galaxy.Released, "galaxy group sampled the old primary texture")
	assert.True(t, merged.Released, "composite group sampled the old primary texture")
	assert.Equal(t, 1, h.r.Cache().Rebuilds(BindGroupGalaxy), "released, not rebuilt, until the galaxy path runs")

	videoTextures := h.backend.TexturesLabeled("video")
	require.Len(t, videoTextures, 2)
	assert.True(t, videoTextures[0].Released)
	for _, tex := range h.backend.LiveTextures() {
		assert.NotSame(t, videoTextures[0], tex)
	}

	videoGroups := h.backend.BindGroupsLabeled(BindGroupPassthroughVideo)
	require.Len(t, videoGroups, 1)
	assert.False(t, videoGroups[0].Released, "the group built for the new texture stays cached")
}

func TestBackgroundReallocationReleasesCompositeOnly(t *testing.T) {
	h := newHarness(t)
	primary := &videoSource{frame: frameOf(16, 16, color.RGBA{R: 1, A: 255})}
	bg := &videoSource{frame: frameOf(16, 16, color.RGBA{B: 1, A: 255})}
	depthMap := image.NewGray(image.Rect(0, 0, 256, 256))
	merge := FrameInput{Primary: primary, View: defaultView, Pass: DepthMergePass{Background: bg, Depth: depthMap}}

	require.Equal(t, DrawPathVideo, h.r.Render(FrameInput{Primary: primary, View: defaultView, Pass: VideoPass{}}))
	video := h.lastDraw(t).BindGroup
	require.Equal(t, DrawPathDepthMerge, h.r.Render(merge))
	merged := h.lastDraw(t).BindGroup

	bg.frame = frameOf(48, 48, color.RGBA{B: 2, A: 255})
	require.Equal(t, DrawPathDepthMerge, h.r.Render(merge))

	assert.True(t, merged.Released)
	assert.False(t, video.Released, "the video group never sampled the background")
	assert.Equal(t, 2, h.r.Cache().Rebuilds(BindGroupPassthroughDepthMerge))
}

func TestBindingsResolvedByVariableName(t *testing.T) {
	// the same variables declared in a different order
	b, set := newPipelines(t,
		[]string{galaxyVarTexture, galaxyVarUniforms, galaxyVarSampler},
		[]string{passthroughVarDepth, passthroughVarBackground, passthroughVarParams, passthroughVarSource, passthroughVarSampler})
	res, err := resource.NewManager(b)
	require.NoError(t, err)
	r, err := NewRenderer(b, set, res)
	require.NoError(t, err)

	video := &videoSource{frame: frameOf(8, 4, color.RGBA{R: 7, A: 255})}
	require.Equal(t, DrawPathGalaxy, r.Render(FrameInput{Primary: video, View: defaultView, Pass: ShaderPass{Elapsed: time.Second}}))
	d, ok := b.LastDraw()
	require.True(t, ok)
	tex, _ := res.VideoTexture(resource.VideoSlotPrimary)
	assert.Same(t, tex.Handle, d.Textures[0])
	assert.Equal(t, [4]float32{1, 1, 0.5, 0.5}, floats(d.Uniforms[1]))

	require.Equal(t, DrawPathVideo, r.Render(FrameInput{Primary: video, View: defaultView, Pass: VideoPass{}}))
	d, _ = b.LastDraw()
	assert.Same(t, res.PlaceholderTexture().Handle, d.Textures[0])
	assert.Same(t, tex.Handle, d.Textures[1])
	assert.Equal(t, [4]float32{800, 600, 8, 4}, floats(d.Uniforms[2]))
	assert.Same(t, tex.Handle, d.Textures[3])
}

func TestNewRendererRejectsMissingBinding(t *testing.T) {
	b, set := newPipelines(t, galaxyNames, []string{passthroughVarSampler, passthroughVarSource, passthroughVarParams, "bgTex", passthroughVarDepth})
	res, err := resource.NewManager(b)
	require.NoError(t, err)

	_, err = NewRenderer(b, set, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), passthroughVarBackground)
}

func TestPrimaryFrameReadOncePerRender(t *testing.T) {
	h := newHarness(t)
	primary := &videoSource{frame: frameOf(16, 16, color.RGBA{R: 3, A: 255})}
	bg := &videoSource{frame: frameOf(16, 16, color.RGBA{B: 3, A: 255})}
	depthMap := image.NewGray(image.Rect(0, 0, 256, 256))

	require.Equal(t, DrawPathDepthMerge, h.r.Render(FrameInput{
		Primary: primary, View: defaultView, Pass: DepthMergePass{Background: bg, Depth: depthMap},
	}))
	assert.Equal(t, 1, primary.reads)
	assert.Equal(t, 1, bg.reads)

	// a frame read by the caller is uploaded as given
	held := frameOf(16, 16, color.RGBA{R: 99, A: 255})
	require.Equal(t, DrawPathVideo, h.r.Render(FrameInput{Primary: primary, PrimaryFrame: held, View: defaultView, Pass: VideoPass{}}))
	assert.Equal(t, 1, primary.reads)
	assert.Equal(t, byte(99), h.lastDraw(t).Textures[passthroughBindingSource].Pixels[0])
}

func TestDepthMergeComposite(t *testing.T) {
	h := newHarness(t)
	primary := &videoSource{frame: frameOf(16, 9, color.RGBA{R: 255, A: 255})}
	background := &videoSource{frame: frameOf(32, 18, color.RGBA{B: 255, A: 255})}
	depthMap := image.NewGray(image.Rect(0, 0, 256, 256))

	path := h.r.Render(FrameInput{
		Primary: primary,
		View:    defaultView,
		Pass:    DepthMergePass{Background: background, Depth: depthMap},
	})
	require.Equal(t, DrawPathDepthMerge, path)

	d := h.lastDraw(t)
	res := h.r.Resources()
	p, _ := res.VideoTexture(resource.VideoSlotPrimary)
	bg, _ := res.VideoTexture(resource.VideoSlotBackground)
	depthTex, ok := res.DepthTexture()
	require.True(t, ok)

	assert.Equal(t, BindGroupPassthroughDepthMerge, d.BindGroup.Label)
	assert.Same(t, p.Handle, d.Textures[passthroughBindingSource])
	assert.Same(t, bg.Handle, d.Textures[passthroughBindingBackground])
	assert.Same(t, depthTex.Handle, d.Textures[passthroughBindingDepth])
	assert.Equal(t, [4]float32{800, 600, 16, 9}, floats(d.Uniforms[passthroughBindingParams]))
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, d.Textures[passthroughBindingDepth].Format)
}

func TestDepthMergeFallbackMatchesVideo(t *testing.T) {
	cases := map[string]func(bg *videoSource) DepthMergePass{
		"no depth": func(bg *videoSource) DepthMergePass {
			return DepthMergePass{Background: bg}
		},
		"no background": func(*videoSource) DepthMergePass {
			return DepthMergePass{Depth: image.NewGray(image.Rect(0, 0, 256, 256))}
		},
		"background not ready": func(*videoSource) DepthMergePass {
			return DepthMergePass{Background: &videoSource{}, Depth: image.NewGray(image.Rect(0, 0, 256, 256))}
		},
		"depth wrong size": func(bg *videoSource) DepthMergePass {
			return DepthMergePass{Background: bg, Depth: image.NewGray(image.Rect(0, 0, 10, 10))}
		},
	}
	for name, pass := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			primary := &videoSource{frame: frameOf(64, 48, color.RGBA{G: 80, A: 255})}
			bg := &videoSource{frame: frameOf(64, 48, color.RGBA{B: 80, A: 255})}

			require.Equal(t, DrawPathVideo, h.r.Render(FrameInput{Primary: primary, View: defaultView, Pass: VideoPass{}}))
			video := h.lastDraw(t)

			require.Equal(t, DrawPathVideo, h.r.Render(FrameInput{Primary: primary, View: defaultView, Pass: pass(bg)}))
			fallback := h.lastDraw(t)

			assert.Same(t, video.BindGroup, fallback.BindGroup)
			assert.Same(t, video.Pipeline, fallback.Pipeline)
			assert.Equal(t, video.VertexCount, fallback.VertexCount)
			assert.Equal(t, video.Uniforms, fallback.Uniforms)
			assert.Equal(t, video.Textures, fallback.Textures)
			assert.Zero(t, h.r.Cache().Rebuilds(BindGroupPassthroughDepthMerge))
		})
	}
}

func TestDepthMergeWithoutPrimarySkipsDraw(t *testing.T) {
	h := newHarness(t)
	bg := &videoSource{frame: frameOf(4, 4, color.RGBA{A: 255})}
	path := h.r.Render(FrameInput{View: defaultView, Pass: DepthMergePass{Background: bg, Depth: image.NewGray(image.Rect(0, 0, 256, 256))}})
	assert.Equal(t, DrawPathNone, path)
	assert.Empty(t, h.backend.Draws)
}

func TestDepthDisabledMidRun(t *testing.T) {
	h := newHarness(t)
	primary := &videoSource{frame: frameOf(32, 32, color.RGBA{R: 50, A: 255})}
	bg := &videoSource{frame: frameOf(32, 32, color.RGBA{B: 50, A: 255})}
	depthMap := image.NewGray(image.Rect(0, 0, 256, 256))

	for i := 0; i < 3; i++ {
		require.Equal(t, DrawPathDepthMerge, h.r.Render(FrameInput{
			Primary: primary, View: defaultView, Pass: DepthMergePass{Background: bg, Depth: depthMap},
		}))
	}
	merged := h.lastDraw(t)

	// estimator switched off: no depth map any more
	for i := 0; i < 3; i++ {
		require.Equal(t, DrawPathVideo, h.r.Render(FrameInput{
			Primary: primary, View: defaultView, Pass: DepthMergePass{Background: bg},
		}))
	}
	fallback := h.lastDraw(t)
	assert.Equal(t, BindGroupPassthroughVideo, fallback.BindGroup.Label)
	assert.Same(t, h.r.Resources().PlaceholderTexture().Handle, fallback.Textures[passthroughBindingDepth])
	assert.False(t, merged.BindGroup.Released, "the composite group stays cached for when depth returns")

	require.Equal(t, DrawPathDepthMerge, h.r.Render(FrameInput{
		Primary: primary, View: defaultView, Pass: DepthMergePass{Background: bg, Depth: depthMap},
	}))
	assert.Same(t, merged.BindGroup, h.lastDraw(t).BindGroup)
	assert.Equal(t, 1, h.r.Cache().Rebuilds(BindGroupPassthroughDepthMerge))
}

func TestBeginFrameFailureDropsFrame(t *testing.T) {
	h := newHarness(t)
	h.backend.FailBeginFrame = errors.New("surface lost")

	assert.Equal(t, DrawPathNone, h.r.Render(FrameInput{View: defaultView, Pass: ShaderPass{}}))
	assert.Empty(t, h.backend.Draws)
	assert.Zero(t, h.backend.FramesPresented)

	h.backend.FailBeginFrame = nil
	assert.Equal(t, DrawPathGalaxy, h.r.Render(FrameInput{View: defaultView, Pass: ShaderPass{}}))
}

func TestSubmissionFailureDropsFrame(t *testing.T) {
	h := newHarness(t)
	h.backend.FailEndFrame = errors.New("device lost")

	assert.Equal(t, DrawPathNone, h.r.Render(FrameInput{View: defaultView, Pass: ShaderPass{}}))
	assert.Zero(t, h.backend.FramesPresented)

	h.backend.FailEndFrame = nil
	assert.Equal(t, DrawPathGalaxy, h.r.Render(FrameInput{View: defaultView, Pass: ShaderPass{}}))
	assert.Equal(t, 1, h.backend.FramesPresented)
}

func TestNilPassClearsOnly(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, DrawPathNone, h.r.Render(FrameInput{View: defaultView}))
	assert.Empty(t, h.backend.Draws)
	assert.Equal(t, 1, h.backend.FramesPresented)
}

func TestResizeUpdatesPassthroughCanvas(t *testing.T) {
	h := newHarness(t)
	video := &videoSource{frame: frameOf(10, 10, color.RGBA{A: 255})}
	h.r.Resize(1024, 768)
	h.r.Render(FrameInput{Primary: video, View: defaultView, Pass: VideoPass{}})
	assert.Equal(t, [4]float32{1024, 768, 10, 10}, floats(h.lastDraw(t).Uniforms[passthroughBindingParams]))

	h.r.Resize(0, 0)
	w, hgt := h.backend.SurfaceSize()
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, hgt)
}

func TestNewRendererValidates(t *testing.T) {
	b := backendtest.New()
	res, err := resource.NewManager(b)
	require.NoError(t, err)
	_, err = NewRenderer(b, &pipeline.Set{}, res)
	assert.Error(t, err)
	_, err = NewRenderer(nil, nil, nil)
	assert.Error(t, err)
}

func TestRelease(t *testing.T) {
	h := newHarness(t)
	video := &videoSource{frame: frameOf(4, 4, color.RGBA{A: 255})}
	h.r.Render(FrameInput{Primary: video, View: defaultView, Pass: VideoPass{}})
	h.r.Release()

	assert.Empty(t, h.backend.LiveTextures())
	for _, p := range h.backend.Pipelines {
		assert.True(t, p.Released)
	}
	for _, g := range h.backend.BindGroups {
		assert.True(t, g.Released)
	}
}
