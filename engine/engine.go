package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-canvas/common"
	"github.com/Carmen-Shannon/oxy-canvas/config"
	"github.com/Carmen-Shannon/oxy-canvas/engine/depth"
	"github.com/Carmen-Shannon/oxy-canvas/engine/media"
	"github.com/Carmen-Shannon/oxy-canvas/engine/media/video"
	"github.com/Carmen-Shannon/oxy-canvas/engine/profiler"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-canvas/engine/window"
)

const (
	// ZoomStep is the zoom change per scroll notch.
	ZoomStep float32 = 0.1

	// PanStep is the pan change per arrow key press.
	PanStep float32 = 0.05
)

// Lifecycle is the engine's setup state. It only moves forward, from Initializing to Ready.
type Lifecycle int32

const (
	// LifecycleInitializing is held from construction until every Init phase has succeeded.
	LifecycleInitializing Lifecycle = iota

	// LifecycleReady means the GPU, pipelines and resources exist and Tick draws.
	LifecycleReady
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleInitializing:
		return "initializing"
	case LifecycleReady:
		return "ready"
	default:
		return fmt.Sprintf("Lifecycle(%d)", int32(l))
	}
}

// BackendFactory creates the GPU backend during Init.
type BackendFactory func(ctx context.Context) (backend.RendererBackend, error)

// PipelineFactory compiles and links the galaxy and passthrough pipelines during Init.
type PipelineFactory func(b backend.RendererBackend) (*pipeline.Set, error)

// SourceOpener opens a video file as a media source. The source lives until the engine is released.
type SourceOpener func(ctx context.Context, path string) (media.Source, error)

// stillImageExts are the extensions opened as a single decoded frame instead of a video.
var stillImageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// engine implements the Engine interface.
type engine struct {
	cfg   *config.Config
	state atomic.Int32

	window      window.Window
	newBackend  BackendFactory
	newPipeline PipelineFactory
	openVideo   SourceOpener
	model       depth.Model
	now         func() time.Time

	backend    backend.RendererBackend
	resources  resource.Manager
	renderer   renderer.Renderer
	primary    media.Source
	background media.Source
	estimator  depth.Estimator
	depthOut   *image.RGBA

	// mu guards the input state below; input callbacks and Tick may run on different goroutines
	// when the engine is driven without a window.
	mu           sync.Mutex
	mode         renderer.RenderMode
	view         renderer.ViewParams
	depthEnabled bool

	start time.Time

	engineTickRate time.Duration

	profiler         *profiler.Profiler
	profilingEnabled bool

	quitChannel chan struct{}
	quitOnce    sync.Once
}

// Engine drives the canvas: it owns setup, the per-tick dispatch and the user input that selects
// the mode and view.
type Engine interface {
	// Init runs setup: backend, resources, image asset, pipelines, media sources, depth estimator.
	// The context is checked between phases. On any fatal failure or cancellation everything created
	// so far is released and the engine stays Initializing. An image or depth failure is logged and
	// only degrades the mode that needs it.
	//
	// Parameters:
	//   - ctx: cancels setup; video decoders also stop when it is done
	//
	// Returns:
	//   - error: a *common.InitError, *common.ShaderCompileError, or ctx.Err() wrapped with the phase
	Init(ctx context.Context) error

	// State returns the current lifecycle state.
	State() Lifecycle

	// Tick renders one frame for the current mode. Before Ready it does nothing.
	//
	// Parameters:
	//   - ctx: bounds depth inference for this tick
	//   - now: the frame time; the galaxy shader animates on now minus the Ready time
	//
	// Returns:
	//   - renderer.DrawPath: the path drawn, DrawPathNone if nothing was drawn
	Tick(ctx context.Context, now time.Time) renderer.DrawPath

	// Run ticks until ctx is done, Quit is called, or the window closes.
	// With a window, ticks run on the window message loop; without one, on a fixed-rate ticker.
	//
	// Parameters:
	//   - ctx: stops the loop when done
	//
	// Returns:
	//   - error: common.ErrNotReady if Init has not succeeded
	Run(ctx context.Context) error

	// Quit signals Run to return. Safe to call multiple times.
	Quit()

	// Release closes media sources and releases every GPU object. The window is left to its owner.
	Release()

	// HandleKey applies a key press: 1-4 select the mode, arrows pan, R resets the view,
	// D toggles depth estimation, Esc quits.
	//
	// Parameters:
	//   - keyCode: the virtual key code (see common.Key*)
	HandleKey(keyCode uint32)

	// HandleScroll changes the zoom by ZoomStep per notch, clamped to the slider range.
	//
	// Parameters:
	//   - delta: scroll notches, positive zooms in
	HandleScroll(delta float32)

	// HandleResize reconfigures the surface for a new framebuffer size.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	HandleResize(width, height int)

	// Mode returns the current render mode.
	Mode() renderer.RenderMode

	// SetMode selects the render mode for subsequent ticks.
	//
	// Parameters:
	//   - mode: the mode to select
	SetMode(mode renderer.RenderMode)

	// View returns the current zoom and pan.
	View() renderer.ViewParams

	// DepthEnabled reports whether depth estimation runs in DepthMerge mode.
	DepthEnabled() bool

	// Renderer returns the renderer, or nil before Ready.
	Renderer() renderer.Renderer

	// EnableProfiler enables periodic performance summaries in the log.
	EnableProfiler()

	// DisableProfiler disables performance summaries.
	DisableProfiler()
}

var _ Engine = &engine{}

// NewEngine creates an Engine for a validated configuration. Nothing touches the GPU until Init.
//
// Parameters:
//   - cfg: the configuration; nil uses config.Default()
//   - options: functional options for the window, factories, depth model and profiling
//
// Returns:
//   - Engine: the engine in the Initializing state
func NewEngine(cfg *config.Config, options ...EngineBuilderOption) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &engine{
		cfg:            cfg,
		model:          depth.LuminanceModel{},
		now:            time.Now,
		depthEnabled:   cfg.Depth.Enabled,
		engineTickRate: time.Second / 60,
		profiler:       profiler.NewProfiler(),
		quitChannel:    make(chan struct{}),
	}
	e.view = e.initialView()

	mode, err := renderer.ParseRenderMode(cfg.Renderer.Mode)
	if err != nil {
		common.Logger().Warn("falling back to shader mode", "err", err)
		mode = renderer.RenderModeShader
	}
	e.mode = mode

	e.newBackend = e.defaultBackend
	e.newPipeline = e.defaultPipelines
	e.openVideo = video.NewSource

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.HandleResize)
		e.window.SetKeyDownCallback(e.HandleKey)
		e.window.SetScrollCallback(e.HandleScroll)
	}
	return e
}

func (e *engine) initialView() renderer.ViewParams {
	return renderer.ViewParams{
		Zoom: common.Clamp(e.cfg.View.Zoom, config.MinZoom, config.MaxZoom),
		PanX: common.Clamp(e.cfg.View.PanX, config.MinPan, config.MaxPan),
		PanY: common.Clamp(e.cfg.View.PanY, config.MinPan, config.MaxPan),
	}
}

func (e *engine) defaultBackend(ctx context.Context) (backend.RendererBackend, error) {
	if e.window == nil {
		return nil, errors.New("no window to create a surface for")
	}
	return backend.NewWGPURendererBackend(ctx, e.window.SurfaceDescriptor(),
		backend.WithPresentMode(backend.ParsePresentMode(e.cfg.Renderer.PresentMode)),
		backend.WithForceFallbackAdapter(e.cfg.Renderer.ForceFallbackAdapter),
	)
}

func (e *engine) defaultPipelines(b backend.RendererBackend) (*pipeline.Set, error) {
	src, err := pipeline.LoadSources(e.cfg.Shaders.Galaxy, e.cfg.Shaders.Passthrough)
	if err != nil {
		return nil, err
	}
	return pipeline.BuildPipelines(b, src)
}

func (e *engine) State() Lifecycle {
	return Lifecycle(e.state.Load())
}

func (e *engine) Init(ctx context.Context) (err error) {
	if e.State() == LifecycleReady {
		return nil
	}
	defer func() {
		if err != nil {
			e.release()
		}
	}()

	checkpoint := func(phase string) error {
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("init canceled before %s: %w", phase, cerr)
		}
		return nil
	}

	if err := checkpoint("backend"); err != nil {
		return err
	}
	b, err := e.newBackend(ctx)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	e.backend = b
	w, h := e.cfg.Window.Width, e.cfg.Window.Height
	if e.window != nil {
		w, h = e.window.Width(), e.window.Height()
	}
	b.ConfigureSurface(w, h)

	if err := checkpoint("resources"); err != nil {
		return err
	}
	res, err := resource.NewManager(b)
	if err != nil {
		return fmt.Errorf("create resources: %w", err)
	}
	e.resources = res

	if err := checkpoint("image"); err != nil {
		return err
	}
	e.loadImage()

	if err := checkpoint("pipelines"); err != nil {
		return err
	}
	set, err := e.newPipeline(b)
	if err != nil {
		return err
	}
	r, err := renderer.NewRenderer(b, set, res, renderer.WithDepthSize(depth.ModelInputSize))
	if err != nil {
		set.Release()
		return fmt.Errorf("create renderer: %w", err)
	}
	e.renderer = r

	if err := checkpoint("media"); err != nil {
		return err
	}
	e.primary = e.openSource(ctx, "primary video", e.cfg.Media.PrimaryVideo)
	e.background = e.openSource(ctx, "background video", e.cfg.Media.BackgroundVideo)

	if err := checkpoint("depth"); err != nil {
		return err
	}
	// built whatever Depth.Enabled says; the D key only gates Estimate
	e.initDepth(ctx)

	if err := checkpoint("ready"); err != nil {
		return err
	}
	e.start = e.now()
	e.state.Store(int32(LifecycleReady))
	common.Logger().Info("canvas ready", "mode", e.Mode().String(), "depth", e.estimator != nil)
	return nil
}

// loadImage uploads the configured image. A failure leaves Image mode without a texture.
func (e *engine) loadImage() {
	if e.cfg.Media.Image == "" {
		return
	}
	data, err := os.ReadFile(e.cfg.Media.Image)
	if err != nil {
		common.Logger().Warn("image unavailable", "err", &common.AssetLoadError{Asset: e.cfg.Media.Image, Err: err})
		return
	}
	if _, err := e.resources.EnsureImageTexture(data); err != nil {
		common.Logger().Warn("image unavailable", "path", e.cfg.Media.Image, "err", err)
	}
}

// openSource opens a configured media path. Still images become a source with a single frame so
// the video and depth merge modes can run on a photo.
func (e *engine) openSource(ctx context.Context, name, path string) media.Source {
	if path == "" {
		return nil
	}
	var (
		src media.Source
		err error
	)
	if stillImageExts[strings.ToLower(filepath.Ext(path))] {
		src, err = media.NewImageSource(path)
	} else {
		src, err = e.openVideo(ctx, path)
	}
	if err != nil {
		common.Logger().Warn("video unavailable", "source", name, "err", err)
		return nil
	}
	return src
}

// initDepth prepares the estimator. A failure leaves DepthMerge on its video fallback.
func (e *engine) initDepth(ctx context.Context) {
	if e.model == nil {
		common.Logger().Warn("depth estimation unavailable", "err", "no model")
		return
	}
	est := depth.NewEstimator(e.model, depth.WithWorkers(e.cfg.Depth.Workers))
	if !est.Init(ctx) {
		common.Logger().Warn("depth estimation unavailable", "err", "model failed to load")
		return
	}
	e.estimator = est
	e.depthOut = depth.NewRGBA(est)
}

func (e *engine) Tick(ctx context.Context, now time.Time) renderer.DrawPath {
	if e.State() != LifecycleReady {
		return renderer.DrawPathNone
	}

	e.mu.Lock()
	mode, view, depthOn := e.mode, e.view, e.depthEnabled
	e.mu.Unlock()

	// read once: the depth map and the uploaded texture must come from the same frame
	frame := e.primaryFrame()
	in := renderer.FrameInput{Primary: e.primary, PrimaryFrame: frame, View: view}
	switch mode {
	case renderer.RenderModeShader:
		in.Pass = renderer.ShaderPass{Elapsed: now.Sub(e.start)}
	case renderer.RenderModeImage:
		in.Pass = renderer.ImagePass{}
	case renderer.RenderModeVideo:
		in.Pass = renderer.VideoPass{}
	case renderer.RenderModeDepthMerge:
		pass := renderer.DepthMergePass{Background: e.background}
		if depthOn {
			pass.Depth = e.estimateDepth(ctx, frame)
		}
		in.Pass = pass
	}

	path := e.renderer.Render(in)
	if e.profilingEnabled {
		e.profiler.RecordDrops(e.videoDrops())
		e.profiler.Tick(path.String())
	}
	return path
}

// primaryFrame returns the primary source's latest frame, nil if it has none yet.
func (e *engine) primaryFrame() *image.RGBA {
	if e.primary == nil || !e.primary.Ready() {
		return nil
	}
	frame, ok := e.primary.Frame()
	if !ok {
		return nil
	}
	return frame
}

// videoDrops sums the overwritten-frame counters of the sources that keep one.
func (e *engine) videoDrops() uint64 {
	var total uint64
	for _, src := range []media.Source{e.primary, e.background} {
		if dc, ok := src.(media.DropCounter); ok {
			total += dc.Drops()
		}
	}
	return total
}

// estimateDepth returns the depth map for frame, or nil when there is none this tick.
func (e *engine) estimateDepth(ctx context.Context, frame *image.RGBA) image.Image {
	if e.estimator == nil || frame == nil {
		return nil
	}
	if err := e.estimator.Estimate(ctx, frame, e.depthOut); err != nil {
		common.Logger().Debug("depth skipped", "err", err)
		return nil
	}
	return e.depthOut
}

func (e *engine) Run(ctx context.Context) error {
	if e.State() != LifecycleReady {
		return fmt.Errorf("run: %w", common.ErrNotReady)
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if e.window == nil {
		e.handleEngine(runCtx)
		return nil
	}

	go func() {
		select {
		case <-e.quitChannel:
			cancel()
		case <-runCtx.Done():
		}
	}()
	e.window.SetUpdateCallback(func() {
		e.Tick(runCtx, e.now())
	})
	e.window.ProcessMessages(runCtx)
	e.window.SetUpdateCallback(nil)
	return nil
}

// handleEngine runs the fixed-rate tick loop used when there is no window message loop.
// Exits when ctx is done or the quit channel is closed.
func (e *engine) handleEngine(ctx context.Context) {
	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.quitChannel:
			return
		case <-ticker.C:
			e.Tick(ctx, e.now())
		}
	}
}

// Quit closes the quit channel. Safe to call multiple times due to sync.Once.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Release() {
	e.state.Store(int32(LifecycleInitializing))
	e.release()
}

// release tears down everything Init created, in reverse order.
func (e *engine) release() {
	e.estimator = nil
	e.depthOut = nil
	for _, src := range []media.Source{e.background, e.primary} {
		if src == nil {
			continue
		}
		if err := src.Close(); err != nil {
			common.Logger().Warn("close media source", "err", err)
		}
	}
	e.primary, e.background = nil, nil

	if e.renderer != nil {
		// the renderer owns the resources and pipelines
		e.renderer.Release()
		e.renderer = nil
		e.resources = nil
	}
	if e.resources != nil {
		e.resources.Release()
		e.resources = nil
	}
	if e.backend != nil {
		e.backend.Release()
		e.backend = nil
	}
}

func (e *engine) HandleKey(keyCode uint32) {
	switch keyCode {
	case common.Key1:
		e.SetMode(renderer.RenderModeShader)
	case common.Key2:
		e.SetMode(renderer.RenderModeImage)
	case common.Key3:
		e.SetMode(renderer.RenderModeVideo)
	case common.Key4:
		e.SetMode(renderer.RenderModeDepthMerge)
	case common.KeyLeft:
		e.pan(-PanStep, 0)
	case common.KeyRight:
		e.pan(PanStep, 0)
	case common.KeyUp:
		e.pan(0, -PanStep)
	case common.KeyDown:
		e.pan(0, PanStep)
	case common.KeyR:
		e.mu.Lock()
		e.view = e.initialView()
		e.mu.Unlock()
	case common.KeyD:
		e.mu.Lock()
		e.depthEnabled = !e.depthEnabled
		enabled := e.depthEnabled
		e.mu.Unlock()
		common.Logger().Info("depth estimation toggled", "enabled", enabled)
	case common.KeyEsc:
		e.Quit()
	}
}

func (e *engine) pan(dx, dy float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.PanX = common.Clamp(e.view.PanX+dx, config.MinPan, config.MaxPan)
	e.view.PanY = common.Clamp(e.view.PanY+dy, config.MinPan, config.MaxPan)
}

func (e *engine) HandleScroll(delta float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.Zoom = common.Clamp(e.view.Zoom+delta*ZoomStep, config.MinZoom, config.MaxZoom)
}

func (e *engine) HandleResize(width, height int) {
	if e.State() != LifecycleReady {
		return
	}
	e.renderer.Resize(width, height)
}

func (e *engine) Mode() renderer.RenderMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *engine) SetMode(mode renderer.RenderMode) {
	e.mu.Lock()
	changed := e.mode != mode
	e.mode = mode
	e.mu.Unlock()
	if changed {
		common.Logger().Info("render mode changed", "mode", mode.String())
	}
}

func (e *engine) View() renderer.ViewParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

func (e *engine) DepthEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.depthEnabled
}

func (e *engine) Renderer() renderer.Renderer {
	if e.State() != LifecycleReady {
		return nil
	}
	return e.renderer
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}
