// Package backendtest provides a recording RendererBackend for tests. Every created handle, write,
// draw and release is kept so tests can assert on exactly what the renderer asked the GPU to do.
package backendtest

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-canvas/common"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Texture is a recorded texture. Pixels holds the last write.
type Texture struct {
	label    string
	width    uint32
	height   uint32
	Format   wgpu.TextureFormat
	Pixels   []byte
	Writes   int
	Released bool
}

func (t *Texture) Label() string  { return t.label }
func (t *Texture) Width() uint32  { return t.width }
func (t *Texture) Height() uint32 { return t.height }
func (t *Texture) Release()       { t.Released = true }

// Sampler is a recorded sampler.
type Sampler struct {
	Label    string
	Data     common.SamplerStagingData
	Released bool
}

func (s *Sampler) Release() { s.Released = true }

// Buffer is a recorded uniform buffer. Data always reflects every write applied so far.
type Buffer struct {
	Label    string
	Data     []byte
	Writes   int
	Released bool
}

func (b *Buffer) Size() uint64 { return uint64(len(b.Data)) }
func (b *Buffer) Release()     { b.Released = true }

// BindGroupLayout is a recorded layout belonging to a Pipeline.
type BindGroupLayout struct {
	Group    int
	Desc     wgpu.BindGroupLayoutDescriptor
	Released bool
}

func (l *BindGroupLayout) Release() { l.Released = true }

// BindGroup is a recorded bind group.
type BindGroup struct {
	Label    string
	Layout   *BindGroupLayout
	Entries  []backend.BindGroupEntry
	Released bool
}

func (g *BindGroup) Release() { g.Released = true }

// Texture returns the texture bound at a binding index, or nil.
func (g *BindGroup) Texture(binding uint32) *Texture {
	for _, e := range g.Entries {
		if e.Binding == binding && e.Texture != nil {
			return e.Texture.(*Texture)
		}
	}
	return nil
}

// Pipeline is a recorded render pipeline.
type Pipeline struct {
	Desc     backend.RenderPipelineDescriptor
	Layouts  map[int]*BindGroupLayout
	Released bool
}

func (p *Pipeline) BindGroupLayout(group int) (backend.BindGroupLayout, bool) {
	l, ok := p.Layouts[group]
	if !ok {
		return nil, false
	}
	return l, true
}

func (p *Pipeline) Release() {
	p.Released = true
	for _, l := range p.Layouts {
		l.Release()
	}
}

// DrawCall is one recorded draw together with a snapshot of the state it consumed.
type DrawCall struct {
	Frame       int
	Pipeline    *Pipeline
	BindGroup   *BindGroup
	VertexCount uint32
	// Uniforms holds a copy of every bound buffer's contents keyed by binding at draw time.
	Uniforms map[uint32][]byte
	// Textures holds the texture bound at each texture binding at draw time.
	Textures map[uint32]*Texture
}

// Backend is a backend.RendererBackend that records everything and touches no GPU.
// Set the Fail* fields to inject errors.
type Backend struct {
	Format        wgpu.TextureFormat
	Width, Height int
	PresentMode   backend.PresentMode

	Textures   []*Texture
	Samplers   []*Sampler
	Buffers    []*Buffer
	Pipelines  []*Pipeline
	BindGroups []*BindGroup
	Draws      []DrawCall

	FramesBegun     int
	FramesSubmitted int
	FramesPresented int
	Released        bool

	FailCreateTexture  error
	FailCreatePipeline error
	FailBeginFrame     error
	FailEndFrame       error

	inFrame  bool
	held     bool
	curFrame int
}

var _ backend.RendererBackend = &Backend{}

// New returns a recording backend with an 800x600 BGRA8UnormSrgb surface.
func New() *Backend {
	return &Backend{
		Format: wgpu.TextureFormatBGRA8UnormSrgb,
		Width:  800,
		Height: 600,
	}
}

func (b *Backend) SurfaceFormat() wgpu.TextureFormat { return b.Format }

func (b *Backend) SurfaceSize() (int, int) { return b.Width, b.Height }

func (b *Backend) ConfigureSurface(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	b.Width, b.Height = width, height
}

func (b *Backend) SetPresentMode(mode backend.PresentMode) { b.PresentMode = mode }

func (b *Backend) CreateTexture(desc backend.TextureDescriptor) (backend.Texture, error) {
	if b.FailCreateTexture != nil {
		return nil, b.FailCreateTexture
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %q has zero size", desc.Label)
	}
	t := &Texture{
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		Format: common.Coalesce(desc.Format, wgpu.TextureFormatRGBA8UnormSrgb),
	}
	b.Textures = append(b.Textures, t)
	return t, nil
}

func (b *Backend) WriteTexture(t backend.Texture, data common.TextureStagingData) error {
	ft, ok := t.(*Texture)
	if !ok {
		return errors.New("foreign texture")
	}
	if ft.Released {
		return fmt.Errorf("write to released texture %q", ft.label)
	}
	if data.Width != ft.width || data.Height != ft.height {
		return fmt.Errorf("staging size %dx%d does not match %dx%d", data.Width, data.Height, ft.width, ft.height)
	}
	ft.Pixels = append(ft.Pixels[:0], data.Pixels...)
	ft.Writes++
	return nil
}

func (b *Backend) CreateSampler(label string, data common.SamplerStagingData) (backend.Sampler, error) {
	s := &Sampler{Label: label, Data: data}
	b.Samplers = append(b.Samplers, s)
	return s, nil
}

func (b *Backend) CreateUniformBuffer(label string, size uint64) (backend.Buffer, error) {
	buf := &Buffer{Label: label, Data: make([]byte, size)}
	b.Buffers = append(b.Buffers, buf)
	return buf, nil
}

func (b *Backend) WriteBuffer(buf backend.Buffer, offset uint64, data []byte) {
	fb, ok := buf.(*Buffer)
	if !ok || fb.Released || offset+uint64(len(data)) > uint64(len(fb.Data)) {
		return
	}
	copy(fb.Data[offset:], data)
	fb.Writes++
}

func (b *Backend) CreateRenderPipeline(desc backend.RenderPipelineDescriptor) (backend.RenderPipeline, error) {
	if b.FailCreatePipeline != nil {
		return nil, b.FailCreatePipeline
	}
	p := &Pipeline{Desc: desc, Layouts: make(map[int]*BindGroupLayout, len(desc.BindGroupLayouts))}
	for g, d := range desc.BindGroupLayouts {
		p.Layouts[g] = &BindGroupLayout{Group: g, Desc: d}
	}
	b.Pipelines = append(b.Pipelines, p)
	return p, nil
}

func (b *Backend) CreateBindGroup(label string, layout backend.BindGroupLayout, entries []backend.BindGroupEntry) (backend.BindGroup, error) {
	fl, ok := layout.(*BindGroupLayout)
	if !ok || fl.Released {
		return nil, errors.New("invalid layout")
	}
	if len(entries) != len(fl.Desc.Entries) {
		return nil, fmt.Errorf("bind group %q has %d entries, layout expects %d", label, len(entries), len(fl.Desc.Entries))
	}
	for _, e := range entries {
		if t, ok := e.Texture.(*Texture); ok && t.Released {
			return nil, fmt.Errorf("bind group %q references released texture %q", label, t.label)
		}
	}
	g := &BindGroup{Label: label, Layout: fl, Entries: append([]backend.BindGroupEntry(nil), entries...)}
	b.BindGroups = append(b.BindGroups, g)
	return g, nil
}

func (b *Backend) BeginFrame(clear wgpu.Color) error {
	if b.FailBeginFrame != nil {
		return b.FailBeginFrame
	}
	if b.held {
		return errors.New("previous frame surface not yet presented")
	}
	b.FramesBegun++
	b.curFrame = b.FramesBegun
	b.inFrame = true
	b.held = true
	return nil
}

// Draw records the call. Drawing with a bind group that references a released texture panics,
// which is how tests catch stale bind groups.
func (b *Backend) Draw(p backend.RenderPipeline, bg backend.BindGroup, vertexCount uint32) {
	if !b.inFrame {
		return
	}
	fp := p.(*Pipeline)
	fg := bg.(*BindGroup)
	if fg.Released {
		panic(fmt.Sprintf("draw with released bind group %q", fg.Label))
	}
	call := DrawCall{
		Frame:       b.curFrame,
		Pipeline:    fp,
		BindGroup:   fg,
		VertexCount: vertexCount,
		Uniforms:    make(map[uint32][]byte),
		Textures:    make(map[uint32]*Texture),
	}
	for _, e := range fg.Entries {
		switch r := e.Texture.(type) {
		case *Texture:
			if r.Released {
				panic(fmt.Sprintf("bind group %q is stale: texture %q was released", fg.Label, r.label))
			}
			call.Textures[e.Binding] = r
		}
		if buf, ok := e.Buffer.(*Buffer); ok {
			call.Uniforms[e.Binding] = append([]byte(nil), buf.Data...)
		}
	}
	b.Draws = append(b.Draws, call)
}

func (b *Backend) EndFrame() error {
	if !b.inFrame {
		return errors.New("no frame in progress")
	}
	b.inFrame = false
	if b.FailEndFrame != nil {
		b.held = false
		return b.FailEndFrame
	}
	b.FramesSubmitted++
	return nil
}

func (b *Backend) Present() {
	if !b.held {
		return
	}
	b.held = false
	b.FramesPresented++
}

func (b *Backend) Release() { b.Released = true }

// DrawsInFrame returns the draws recorded in the given frame number.
func (b *Backend) DrawsInFrame(frame int) []DrawCall {
	var out []DrawCall
	for _, d := range b.Draws {
		if d.Frame == frame {
			out = append(out, d)
		}
	}
	return out
}

// LastDraw returns the most recent draw and whether any draw was recorded.
func (b *Backend) LastDraw() (DrawCall, bool) {
	if len(b.Draws) == 0 {
		return DrawCall{}, false
	}
	return b.Draws[len(b.Draws)-1], true
}

// LiveTextures returns the textures that have not been released.
func (b *Backend) LiveTextures() []*Texture {
	var out []*Texture
	for _, t := range b.Textures {
		if !t.Released {
			out = append(out, t)
		}
	}
	return out
}

// TexturesLabeled returns every texture ever created with the given label, oldest first.
func (b *Backend) TexturesLabeled(label string) []*Texture {
	var out []*Texture
	for _, t := range b.Textures {
		if t.label == label {
			out = append(out, t)
		}
	}
	return out
}

// BindGroupsLabeled returns every bind group ever created with the given label, oldest first.
func (b *Backend) BindGroupsLabeled(label string) []*BindGroup {
	var out []*BindGroup
	for _, g := range b.BindGroups {
		if g.Label == label {
			out = append(out, g)
		}
	}
	return out
}
