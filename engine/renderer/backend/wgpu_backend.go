package backend

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-canvas/common"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat        wgpu.TextureFormat
	surfaceWidth         int
	surfaceHeight        int
	renderPassDescriptor *wgpu.RenderPassDescriptor

	presentMode          wgpu.PresentMode // defaults to PresentModeFifo (VSync)
	forceFallbackAdapter bool

	// Frame state for the single render pass recorded per tick
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

type wgpuTexture struct {
	label   string
	texture *wgpu.Texture
	view    *wgpu.TextureView
	width   uint32
	height  uint32
}

func (t *wgpuTexture) Label() string  { return t.label }
func (t *wgpuTexture) Width() uint32  { return t.width }
func (t *wgpuTexture) Height() uint32 { return t.height }

func (t *wgpuTexture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		// Destroy frees the GPU memory now; Release alone waits for every bind group to drop its reference.
		t.texture.Destroy()
		t.texture.Release()
		t.texture = nil
	}
}

type wgpuSampler struct {
	sampler *wgpu.Sampler
}

func (s *wgpuSampler) Release() {
	if s.sampler != nil {
		s.sampler.Release()
		s.sampler = nil
	}
}

type wgpuBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

func (b *wgpuBuffer) Size() uint64 { return b.size }

func (b *wgpuBuffer) Release() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}

type wgpuBindGroupLayout struct {
	layout *wgpu.BindGroupLayout
}

func (l *wgpuBindGroupLayout) Release() {
	if l.layout != nil {
		l.layout.Release()
		l.layout = nil
	}
}

type wgpuBindGroup struct {
	bindGroup *wgpu.BindGroup
}

func (g *wgpuBindGroup) Release() {
	if g.bindGroup != nil {
		g.bindGroup.Release()
		g.bindGroup = nil
	}
}

type wgpuRenderPipeline struct {
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.PipelineLayout
	groups   map[int]*wgpuBindGroupLayout
}

func (p *wgpuRenderPipeline) BindGroupLayout(group int) (BindGroupLayout, bool) {
	l, ok := p.groups[group]
	if !ok {
		return nil, false
	}
	return l, true
}

func (p *wgpuRenderPipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
	if p.layout != nil {
		p.layout.Release()
		p.layout = nil
	}
	for g, l := range p.groups {
		l.Release()
		delete(p.groups, g)
	}
}

// NewWGPURendererBackend bootstraps the GPU context: it creates the wgpu instance and a surface for the
// given descriptor, then requests an adapter compatible with that surface and a logical device from it.
// The context is checked between each phase; on cancellation or failure everything created so far is
// released and nothing is returned.
//
// Parameters:
//   - ctx: cancels the bootstrap between phases
//   - surfaceDescriptor: the platform surface descriptor, usually obtained from the window
//   - opts: functional options such as WithPresentMode and WithForceFallbackAdapter
//
// Returns:
//   - RendererBackend: the ready backend; call ConfigureSurface before the first frame
//   - error: a *common.InitError when no adapter or device is available, or ctx.Err() on cancellation
func NewWGPURendererBackend(ctx context.Context, surfaceDescriptor *wgpu.SurfaceDescriptor, opts ...BackendBuilderOption) (RendererBackend, error) {
	runtime.LockOSThread()
	b := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		presentMode: wgpu.PresentModeFifo,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.instance = wgpu.CreateInstance(nil)
	b.surface = b.instance.CreateSurface(surfaceDescriptor)
	if err := ctx.Err(); err != nil {
		b.Release()
		return nil, err
	}

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil || a == nil {
		b.Release()
		return nil, &common.InitError{Reason: common.ErrNoAdapterAvailable, Err: err}
	}
	b.adapter = a
	if err := ctx.Err(); err != nil {
		b.Release()
		return nil, err
	}

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Canvas Device",
	})
	if err != nil || d == nil {
		b.Release()
		return nil, &common.InitError{Reason: common.ErrDeviceRequestDenied, Err: err}
	}
	b.device = d
	b.queue = d.GetQueue()
	if err := ctx.Err(); err != nil {
		b.Release()
		return nil, err
	}

	common.Logger().Info("gpu device acquired", "fallback", b.forceFallbackAdapter)
	return b, nil
}

func (b *wgpuRendererBackendImpl) SurfaceFormat() wgpu.TextureFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surfaceFormat
}

func (b *wgpuRendererBackendImpl) SurfaceSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surfaceWidth, b.surfaceHeight
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// minimized windows report a zero size, which the surface rejects
	if width <= 0 || height <= 0 {
		return
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]

	alphaMode := capabilities.AlphaModes[0]
	for _, m := range capabilities.AlphaModes {
		if m == wgpu.CompositeAlphaModePremultiplied {
			alphaMode = m
			break
		}
	}

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   alphaMode,
	})
	b.surfaceWidth, b.surfaceHeight = width, height

	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    nil, // set per-frame to the surface view
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: wgpu.StoreOpStore,
			},
		},
	}
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	WithPresentMode(mode)(b)
}

func (b *wgpuRendererBackendImpl) CreateTexture(desc TextureDescriptor) (Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %q has zero size %dx%d", desc.Label, desc.Width, desc.Height)
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        common.Coalesce(desc.Format, wgpu.TextureFormatRGBA8UnormSrgb),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}

	return &wgpuTexture{
		label:   desc.Label,
		texture: tex,
		view:    view,
		width:   desc.Width,
		height:  desc.Height,
	}, nil
}

func (b *wgpuRendererBackendImpl) WriteTexture(t Texture, data common.TextureStagingData) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	wt, ok := t.(*wgpuTexture)
	if !ok || wt.texture == nil {
		return errors.New("texture was not created by this backend or has been released")
	}
	if data.Width != wt.width || data.Height != wt.height {
		return fmt.Errorf("staging size %dx%d does not match texture %q size %dx%d", data.Width, data.Height, wt.label, wt.width, wt.height)
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  wt.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  data.Width * 4,
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (b *wgpuRendererBackendImpl) CreateSampler(label string, data common.SamplerStagingData) (Sampler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(data.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(data.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(data.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(data.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(data.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(data.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(data.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(data.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(data.MaxAnisotropy, 1),
	})
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{sampler: samp}, nil
}

func (b *wgpuRendererBackendImpl) CreateUniformBuffer(label string, size uint64) (Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{buffer: buf, size: size}, nil
}

func (b *wgpuRendererBackendImpl) WriteBuffer(buf Buffer, offset uint64, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wb, ok := buf.(*wgpuBuffer)
	if !ok || wb.buffer == nil {
		return
	}
	b.queue.WriteBuffer(wb.buffer, offset, data)
}

func (b *wgpuRendererBackendImpl) CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if desc.VertexEntryPoint == "" || desc.FragmentEntryPoint == "" {
		return nil, errors.New("both vertex and fragment entry points must be set to create a render pipeline")
	}

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Source,
		},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	created := &wgpuRenderPipeline{groups: make(map[int]*wgpuBindGroupLayout, len(desc.BindGroupLayouts))}

	maxGroup := -1
	for g := range desc.BindGroupLayouts {
		if g > maxGroup {
			maxGroup = g
		}
	}
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g, layoutDesc := range desc.BindGroupLayouts {
		layoutDesc.Label = fmt.Sprintf("%s group %d", desc.Label, g)
		layout, layoutErr := b.device.CreateBindGroupLayout(&layoutDesc)
		if layoutErr != nil {
			created.Release()
			return nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, layoutErr)
		}
		bindGroupLayouts[g] = layout
		created.groups[g] = &wgpuBindGroupLayout{layout: layout}
	}

	created.layout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		created.Release()
		return nil, err
	}

	created.pipeline, err = b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label + " Render Pipeline",
		Layout: created.layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntryPoint,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntryPoint,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    b.surfaceFormat,
					WriteMask: common.Coalesce(desc.WriteMask, wgpu.ColorWriteMaskAll),
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  desc.Topology,
			FrontFace: desc.FrontFace,
			CullMode:  desc.CullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		created.Release()
		return nil, err
	}

	return created, nil
}

func (b *wgpuRendererBackendImpl) CreateBindGroup(label string, layout BindGroupLayout, entries []BindGroupEntry) (BindGroup, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wl, ok := layout.(*wgpuBindGroupLayout)
	if !ok || wl.layout == nil {
		return nil, errors.New("bind group layout was not created by this backend or has been released")
	}

	bindGroupEntries := make([]wgpu.BindGroupEntry, len(entries))
	for i, entry := range entries {
		switch {
		case entry.Texture != nil:
			tex, ok := entry.Texture.(*wgpuTexture)
			if !ok || tex.view == nil {
				return nil, fmt.Errorf("texture binding %d has no texture view", entry.Binding)
			}
			bindGroupEntries[i] = wgpu.BindGroupEntry{
				Binding:     entry.Binding,
				TextureView: tex.view,
			}
		case entry.Sampler != nil:
			samp, ok := entry.Sampler.(*wgpuSampler)
			if !ok || samp.sampler == nil {
				return nil, fmt.Errorf("sampler binding %d has no sampler", entry.Binding)
			}
			bindGroupEntries[i] = wgpu.BindGroupEntry{
				Binding: entry.Binding,
				Sampler: samp.sampler,
			}
		case entry.Buffer != nil:
			buf, ok := entry.Buffer.(*wgpuBuffer)
			if !ok || buf.buffer == nil {
				return nil, fmt.Errorf("buffer binding %d has no buffer", entry.Binding)
			}
			bindGroupEntries[i] = wgpu.BindGroupEntry{
				Binding: entry.Binding,
				Buffer:  buf.buffer,
				Offset:  0,
				Size:    wgpu.WholeSize,
			}
		default:
			return nil, fmt.Errorf("binding %d has no resource", entry.Binding)
		}
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  wl.layout,
		Entries: bindGroupEntries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroup{bindGroup: bindGroup}, nil
}

func (b *wgpuRendererBackendImpl) BeginFrame(clear wgpu.Color) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.renderPassDescriptor == nil {
		return errors.New("surface has not been configured")
	}

	// A surface texture still held from the previous frame means Present was skipped;
	// acquiring another one would fail with "Surface image is already acquired".
	if b.frameSurface != nil {
		return errors.New("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	b.renderPassDescriptor.ColorAttachments[0].View = view
	b.renderPassDescriptor.ColorAttachments[0].ClearValue = clear
	pass := encoder.BeginRenderPass(b.renderPassDescriptor)

	b.frameEncoder = encoder
	b.framePass = pass
	b.frameSurface = surfaceTexture
	b.frameView = view

	return nil
}

func (b *wgpuRendererBackendImpl) Draw(p RenderPipeline, bg BindGroup, vertexCount uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	wp, ok := p.(*wgpuRenderPipeline)
	if !ok || wp.pipeline == nil {
		return
	}
	wg, ok := bg.(*wgpuBindGroup)
	if !ok || wg.bindGroup == nil {
		return
	}

	b.framePass.SetPipeline(wp.pipeline)
	b.framePass.SetBindGroup(0, wg.bindGroup, nil)
	b.framePass.Draw(vertexCount, 1, 0, 0)
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil || b.frameEncoder == nil {
		return errors.New("no frame in progress")
	}

	b.framePass.End()
	b.framePass = nil

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.frameEncoder.Release()
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameEncoder = nil
		b.frameSurface = nil
		b.frameView = nil
		return err
	}

	b.queue.Submit(commandBuffer)

	commandBuffer.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil
	return nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	// If no frame surface is held, nothing to present.
	if b.frameSurface == nil {
		return
	}

	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
