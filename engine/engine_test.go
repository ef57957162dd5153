package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-canvas/common"
	"github.com/Carmen-Shannon/oxy-canvas/config"
	"github.com/Carmen-Shannon/oxy-canvas/engine/media"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubShader stands in for a compiled shader so the engine can be tested without the WGSL compiler.
// names[i] is the variable declared at group 0, binding i.
type stubShader struct {
	key   string
	names []string
}

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

func stubPipelines(b backend.RendererBackend) (*pipeline.Set, error) {
	galaxy := pipeline.NewPipeline(pipeline.GalaxyKey, stubShader{key: "galaxy", names: []string{"uniforms", "texSampler", "videoTex"}},
		pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleList),
		pipeline.WithVertexCount(pipeline.GalaxyVertexCount))
	passthrough := pipeline.NewPipeline(pipeline.PassthroughKey, stubShader{key: "passthrough", names: []string{"texSampler", "sourceTex", "params", "backgroundTex", "depthTex"}},
		pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleStrip),
		pipeline.WithVertexCount(pipeline.PassthroughVertexCount))
	if err := galaxy.Build(b); err != nil {
		return nil, err
	}
	if err := passthrough.Build(b); err != nil {
		galaxy.Release()
		return nil, err
	}
	return &pipeline.Set{Galaxy: galaxy, Passthrough: passthrough}, nil
}

// fakeVideo is a media.Source that always has the same frame.
type fakeVideo struct {
	frame  *image.RGBA
	closed bool
	reads  int
	drops  uint64
}

func newFakeVideo(w, h int, c color.RGBA) *fakeVideo {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return &fakeVideo{frame: img}
}

func (v *fakeVideo) Frame() (*image.RGBA, bool) {
	v.reads++
	return v.frame, true
}
func (v *fakeVideo) Width() int    { return v.frame.Bounds().Dx() }
func (v *fakeVideo) Height() int   { return v.frame.Bounds().Dy() }
func (v *fakeVideo) Ready() bool   { return true }
func (v *fakeVideo) Drops() uint64 { return v.drops }
func (v *fakeVideo) Close() error {
	v.closed = true
	return nil
}

// failingModel is a depth model whose weights never load.
type failingModel struct{}

func (failingModel) Load(context.Context) error { return errors.New("weights missing") }
func (failingModel) Predict(context.Context, []float32, int) ([]float32, error) {
	return nil, errors.New("unreachable")
}

type fixture struct {
	backend *backendtest.Backend
	videos  map[string]*fakeVideo
	cfg     *config.Config
	t0      time.Time
}

func newFixture() *fixture {
	cfg := config.Default()
	cfg.Depth.Workers = 2
	return &fixture{
		backend: backendtest.New(),
		videos:  make(map[string]*fakeVideo),
		cfg:     cfg,
		t0:      time.Unix(1000, 0),
	}
}

func (f *fixture) engine(opts ...EngineBuilderOption) Engine {
	base := []EngineBuilderOption{
		WithBackendFactory(func(context.Context) (backend.RendererBackend, error) { return f.backend, nil }),
		WithPipelineFactory(stubPipelines),
		WithSourceOpener(func(_ context.Context, path string) (media.Source, error) {
			v, ok := f.videos[path]
			if !ok {
				return nil, &common.AssetLoadError{Asset: path, Err: os.ErrNotExist}
			}
			return v, nil
		}),
		WithClock(func() time.Time { return f.t0 }),
	}
	return NewEngine(f.cfg, append(base, opts...)...)
}

func (f *fixture) withVideos() {
	f.videos["primary.mp4"] = newFakeVideo(64, 48, color.RGBA{R: 200, G: 40, B: 40, A: 255})
	f.videos["background.mp4"] = newFakeVideo(32, 32, color.RGBA{B: 255, A: 255})
	f.cfg.Media.PrimaryVideo = "primary.mp4"
	f.cfg.Media.BackgroundVideo = "background.mp4"
}

func floats(b []byte) [4]float32 {
	var out [4]float32
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(t.TempDir(), "still.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestTickBeforeReadyDoesNothing(t *testing.T) {
	f := newFixture()
	e := f.engine()

	assert.Equal(t, LifecycleInitializing, e.State())
	assert.Equal(t, renderer.DrawPathNone, e.Tick(context.Background(), f.t0))
	assert.Zero(t, f.backend.FramesBegun)
	assert.Nil(t, e.Renderer())
}

func TestTickIsGatedDuringInit(t *testing.T) {
	f := newFixture()
	var e Engine
	var midInit renderer.DrawPath = -1
	e = f.engine(WithPipelineFactory(func(b backend.RendererBackend) (*pipeline.Set, error) {
		midInit = e.Tick(context.Background(), f.t0)
		return stubPipelines(b)
	}))

	require.NoError(t, e.Init(context.Background()))
	assert.Equal(t, renderer.DrawPathNone, midInit)
	assert.Zero(t, f.backend.FramesBegun, "no frame may begin before Ready")
	assert.Equal(t, LifecycleReady, e.State())
}

func TestInitReachesReadyAndDraws(t *testing.T) {
	f := newFixture()
	e := f.engine()

	require.NoError(t, e.Init(context.Background()))
	require.Equal(t, LifecycleReady, e.State())
	assert.Equal(t, 800, f.backend.Width)

	path := e.Tick(context.Background(), f.t0.Add(2*time.Second))
	assert.Equal(t, renderer.DrawPathGalaxy, path)
	assert.Equal(t, 1, f.backend.FramesPresented)

	d, ok := f.backend.LastDraw()
	require.True(t, ok)
	assert.Equal(t, uint32(pipeline.GalaxyVertexCount), d.VertexCount)
	assert.Equal(t, [4]float32{2, 1, 0.5, 0.5}, floats(d.Uniforms[0]))

	// a second Init is a no-op
	require.NoError(t, e.Init(context.Background()))
	assert.Len(t, f.backend.Pipelines, 2)
}

func TestInitCanceledBeforeStart(t *testing.T) {
	f := newFixture()
	called := false
	e := f.engine(WithBackendFactory(func(context.Context) (backend.RendererBackend, error) {
		called = true
		return f.backend, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Init(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, LifecycleInitializing, e.State())
}

func TestInitCanceledMidwayReleasesEverything(t *testing.T) {
	f := newFixture()
	f.withVideos()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := f.engine(WithPipelineFactory(func(b backend.RendererBackend) (*pipeline.Set, error) {
		set, err := stubPipelines(b)
		cancel()
		return set, err
	}))

	err := e.Init(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, LifecycleInitializing, e.State())
	assert.Equal(t, renderer.DrawPathNone, e.Tick(context.Background(), f.t0))

	assert.True(t, f.backend.Released)
	assert.Empty(t, f.backend.LiveTextures())
	for _, p := range f.backend.Pipelines {
		assert.True(t, p.Released)
	}
	for _, b := range f.backend.Buffers {
		assert.True(t, b.Released)
	}
	assert.False(t, f.videos["primary.mp4"].closed, "media phase never ran")
	assert.Zero(t, f.backend.FramesBegun)
}

func TestInitBackendFailure(t *testing.T) {
	f := newFixture()
	e := f.engine(WithBackendFactory(func(context.Context) (backend.RendererBackend, error) {
		return nil, &common.InitError{Reason: common.ErrNoAdapterAvailable}
	}))

	err := e.Init(context.Background())
	require.Error(t, err)
	var initErr *common.InitError
	require.True(t, errors.As(err, &initErr))
	assert.ErrorIs(t, err, common.ErrNoAdapterAvailable)
	assert.Equal(t, LifecycleInitializing, e.State())
}

func TestInitPipelineFailureIsFatal(t *testing.T) {
	f := newFixture()
	e := f.engine(WithPipelineFactory(func(backend.RendererBackend) (*pipeline.Set, error) {
		return nil, &common.ShaderCompileError{Shader: pipeline.PassthroughKey, Err: errors.New("bad entry point")}
	}))

	err := e.Init(context.Background())
	var compileErr *common.ShaderCompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, pipeline.PassthroughKey, compileErr.Shader)
	assert.Equal(t, LifecycleInitializing, e.State())
	assert.True(t, f.backend.Released)
	assert.Empty(t, f.backend.LiveTextures())
}

func TestImageFailureDegradesOnlyImageMode(t *testing.T) {
	f := newFixture()
	f.cfg.Media.Image = filepath.Join(t.TempDir(), "missing.png")
	e := f.engine()

	require.NoError(t, e.Init(context.Background()))
	e.SetMode(renderer.RenderModeImage)
	assert.Equal(t, renderer.DrawPathNone, e.Tick(context.Background(), f.t0))
	e.SetMode(renderer.RenderModeShader)
	assert.Equal(t, renderer.DrawPathGalaxy, e.Tick(context.Background(), f.t0))
}

func TestImageMode(t *testing.T) {
	f := newFixture()
	f.cfg.Media.Image = writePNG(t, 40, 30)
	f.cfg.Renderer.Mode = "image"
	e := f.engine()

	require.NoError(t, e.Init(context.Background()))
	assert.Equal(t, renderer.RenderModeImage, e.Mode())
	assert.Equal(t, renderer.DrawPathImage, e.Tick(context.Background(), f.t0))

	d, _ := f.backend.LastDraw()
	assert.Equal(t, [4]float32{800, 600, 40, 30}, floats(d.Uniforms[2]))
}

func TestMissingVideoDegrades(t *testing.T) {
	f := newFixture()
	f.cfg.Media.PrimaryVideo = "nowhere.mp4"
	e := f.engine()

	require.NoError(t, e.Init(context.Background()))
	e.SetMode(renderer.RenderModeVideo)
	assert.Equal(t, renderer.DrawPathNone, e.Tick(context.Background(), f.t0))
}

func TestDepthMergeAndToggle(t *testing.T) {
	f := newFixture()
	f.withVideos()
	e := f.engine()
	ctx := context.Background()

	require.NoError(t, e.Init(ctx))
	e.HandleKey(common.Key4)
	require.Equal(t, renderer.RenderModeDepthMerge, e.Mode())
	assert.Equal(t, renderer.DrawPathDepthMerge, e.Tick(ctx, f.t0))

	e.HandleKey(common.KeyD)
	assert.False(t, e.DepthEnabled())
	assert.Equal(t, renderer.DrawPathVideo, e.Tick(ctx, f.t0))

	e.HandleKey(common.KeyD)
	assert.True(t, e.DepthEnabled())
	assert.Equal(t, renderer.DrawPathDepthMerge, e.Tick(ctx, f.t0))
}

func TestDepthInitFailureFallsBackToVideo(t *testing.T) {
	f := newFixture()
	f.withVideos()
	f.cfg.Renderer.Mode = "depthMerge"
	e := f.engine(WithDepthModel(failingModel{}))

	require.NoError(t, e.Init(context.Background()))
	assert.Equal(t, renderer.DrawPathVideo, e.Tick(context.Background(), f.t0))
}

func TestDepthDisabledInConfig(t *testing.T) {
	f := newFixture()
	f.withVideos()
	f.cfg.Depth.Enabled = false
	e := f.engine()
	ctx := context.Background()

	require.NoError(t, e.Init(ctx))
	e.SetMode(renderer.RenderModeDepthMerge)
	assert.False(t, e.DepthEnabled())
	assert.Equal(t, renderer.DrawPathVideo, e.Tick(ctx, f.t0))

	e.HandleKey(common.KeyD)
	assert.True(t, e.DepthEnabled())
	assert.Equal(t, renderer.DrawPathDepthMerge, e.Tick(ctx, f.t0))
}

func TestPrimaryFrameReadOncePerTick(t *testing.T) {
	f := newFixture()
	f.withVideos()
	f.cfg.Renderer.Mode = "depthMerge"
	e := f.engine()
	ctx := context.Background()

	require.NoError(t, e.Init(ctx))
	primary := f.videos["primary.mp4"]
	for i := 1; i <= 3; i++ {
		require.Equal(t, renderer.DrawPathDepthMerge, e.Tick(ctx, f.t0))
		assert.Equal(t, i, primary.reads)
	}

	e.SetMode(renderer.RenderModeShader)
	require.Equal(t, renderer.DrawPathGalaxy, e.Tick(ctx, f.t0))
	assert.Equal(t, 4, primary.reads)
}

func TestStillImageAsPrimary(t *testing.T) {
	f := newFixture()
	f.cfg.Media.PrimaryVideo = writePNG(t, 24, 16)
	f.cfg.Renderer.Mode = "video"
	e := f.engine()

	require.NoError(t, e.Init(context.Background()))
	assert.Equal(t, renderer.DrawPathVideo, e.Tick(context.Background(), f.t0))

	d, _ := f.backend.LastDraw()
	assert.Equal(t, [4]float32{800, 600, 24, 16}, floats(d.Uniforms[2]))
}

func TestVideoDropsSummed(t *testing.T) {
	f := newFixture()
	f.withVideos()
	f.videos["primary.mp4"].drops = 4
	f.videos["background.mp4"].drops = 3
	e := f.engine(WithProfiling(true))

	require.NoError(t, e.Init(context.Background()))
	assert.Equal(t, uint64(7), e.(*engine).videoDrops())
	assert.Equal(t, renderer.DrawPathGalaxy, e.Tick(context.Background(), f.t0))
}

func TestModeKeys(t *testing.T) {
	e := newFixture().engine()
	cases := map[uint32]renderer.RenderMode{
		common.Key2: renderer.RenderModeImage,
		common.Key3: renderer.RenderModeVideo,
		common.Key4: renderer.RenderModeDepthMerge,
		common.Key1: renderer.RenderModeShader,
	}
	for key, mode := range cases {
		e.HandleKey(key)
		assert.Equal(t, mode, e.Mode())
	}
}

func TestViewControlsClamp(t *testing.T) {
	e := newFixture().engine()

	for i := 0; i < 50; i++ {
		e.HandleScroll(1)
	}
	assert.InDelta(t, config.MaxZoom, e.View().Zoom, 1e-6)
	for i := 0; i < 50; i++ {
		e.HandleScroll(-1)
	}
	assert.InDelta(t, config.MinZoom, e.View().Zoom, 1e-6)

	for i := 0; i < 50; i++ {
		e.HandleKey(common.KeyLeft)
		e.HandleKey(common.KeyDown)
	}
	v := e.View()
	assert.InDelta(t, config.MinPan, v.PanX, 1e-6)
	assert.InDelta(t, config.MaxPan, v.PanY, 1e-6)

	e.HandleKey(common.KeyR)
	assert.Equal(t, renderer.ViewParams{Zoom: 1, PanX: 0.5, PanY: 0.5}, e.View())
}

func TestResize(t *testing.T) {
	f := newFixture()
	e := f.engine()

	e.HandleResize(1024, 768)
	assert.Equal(t, 800, f.backend.Width, "resize before Ready is ignored")

	require.NoError(t, e.Init(context.Background()))
	e.HandleResize(1280, 720)
	assert.Equal(t, 1280, f.backend.Width)
	assert.Equal(t, 720, f.backend.Height)
}

func TestRunRequiresReady(t *testing.T) {
	e := newFixture().engine()
	assert.ErrorIs(t, e.Run(context.Background()), common.ErrNotReady)
}

func TestRunHeadlessUntilCanceled(t *testing.T) {
	f := newFixture()
	e := f.engine(WithTickRate(500))
	require.NoError(t, e.Init(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Run(ctx))
	assert.Positive(t, f.backend.FramesPresented)
}

func TestEscQuitsRun(t *testing.T) {
	f := newFixture()
	e := f.engine()
	require.NoError(t, e.Init(context.Background()))

	e.HandleKey(common.KeyEsc)
	e.Quit()

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after quit")
	}
}

func TestRelease(t *testing.T) {
	f := newFixture()
	f.withVideos()
	e := f.engine()
	require.NoError(t, e.Init(context.Background()))

	e.Release()
	assert.Equal(t, LifecycleInitializing, e.State())
	assert.True(t, f.videos["primary.mp4"].closed)
	assert.True(t, f.videos["background.mp4"].closed)
	assert.True(t, f.backend.Released)
	assert.Empty(t, f.backend.LiveTextures())
	assert.Equal(t, renderer.DrawPathNone, e.Tick(context.Background(), f.t0))
}

func TestLifecycleString(t *testing.T) {
	assert.Equal(t, "initializing", LifecycleInitializing.String())
	assert.Equal(t, "ready", LifecycleReady.String())
}
