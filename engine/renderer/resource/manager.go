package resource

import (
	"fmt"
	"image"

	"github.com/Carmen-Shannon/oxy-canvas/common"
	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// manager is the implementation of the Manager interface.
type manager struct {
	backend backend.RendererBackend

	// generation is the last generation handed out; 0 is never used
	generation uint64

	image       *Texture
	video       map[VideoSlot]*Texture
	depth       *Texture
	depthLoaded bool
	placeholder *Texture

	uniforms map[UniformKind]*Buffer
	sampler  *Sampler
}

var _ Manager = &manager{}

// NewManager creates the resources that exist for the whole run: the sampler, both uniform buffers and
// the placeholder texture. On failure everything created so far is released.
//
// Parameters:
//   - b: the backend that owns the device
//
// Returns:
//   - Manager: the resource manager
//   - error: an error if any setup resource could not be created
func NewManager(b backend.RendererBackend) (Manager, error) {
	m := &manager{
		backend:  b,
		video:    make(map[VideoSlot]*Texture, 2),
		uniforms: make(map[UniformKind]*Buffer, 2),
	}

	s, err := b.CreateSampler("canvas sampler", common.SamplerStagingData{
		AddressModeU: wgpu.AddressModeClampToEdge,
		AddressModeV: wgpu.AddressModeClampToEdge,
		AddressModeW: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
		LodMaxClamp:  32,
	})
	if err != nil {
		return nil, fmt.Errorf("create sampler: %w", err)
	}
	m.sampler = &Sampler{Handle: s, Generation: m.nextGeneration()}

	for _, kind := range []UniformKind{UniformGalaxy, UniformPassthrough} {
		buf, err := b.CreateUniformBuffer(kind.String()+" uniforms", UniformSize)
		if err != nil {
			m.Release()
			return nil, fmt.Errorf("create %s uniform buffer: %w", kind, err)
		}
		m.uniforms[kind] = &Buffer{Handle: buf, Generation: m.nextGeneration()}
	}

	white := image.NewRGBA(image.Rect(0, 0, 1, 1))
	copy(white.Pix, []byte{255, 255, 255, 255})
	placeholder, err := m.allocate("placeholder", 1, 1, wgpu.TextureFormatRGBA8Unorm)
	if err != nil {
		m.Release()
		return nil, err
	}
	if err := b.WriteTexture(placeholder.Handle, common.Staging(white)); err != nil {
		placeholder.Handle.Release()
		m.Release()
		return nil, fmt.Errorf("write placeholder: %w", err)
	}
	m.placeholder = placeholder

	return m, nil
}

func (m *manager) nextGeneration() uint64 {
	m.generation++
	return m.generation
}

func (m *manager) allocate(label string, w, h uint32, format wgpu.TextureFormat) (*Texture, error) {
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%s texture has zero size %dx%d", label, w, h)
	}
	handle, err := m.backend.CreateTexture(backend.TextureDescriptor{
		Label:  label,
		Width:  w,
		Height: h,
		Format: format,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s texture: %w", label, err)
	}
	return &Texture{Handle: handle, Width: w, Height: h, Generation: m.nextGeneration()}, nil
}

func (m *manager) EnsureImageTexture(data []byte) (*Texture, error) {
	if m.image != nil {
		return m.image, nil
	}
	img, err := common.DecodeImage(data)
	if err != nil {
		return nil, &common.AssetLoadError{Asset: "image", Err: err}
	}
	b := img.Bounds()
	tex, err := m.allocate("image", uint32(b.Dx()), uint32(b.Dy()), wgpu.TextureFormatRGBA8UnormSrgb)
	if err != nil {
		return nil, &common.AssetLoadError{Asset: "image", Err: err}
	}
	if err := m.backend.WriteTexture(tex.Handle, common.Staging(img)); err != nil {
		tex.Handle.Release()
		return nil, &common.AssetLoadError{Asset: "image", Err: err}
	}
	m.image = tex
	common.Logger().Info("image texture loaded", "width", tex.Width, "height", tex.Height, "generation", tex.Generation)
	return tex, nil
}

func (m *manager) ImageTexture() (*Texture, bool) {
	return m.image, m.image != nil
}

func (m *manager) EnsureVideoTexture(slot VideoSlot, w, h uint32) (*Texture, bool, error) {
	if cur := m.video[slot]; cur != nil && cur.Width == w && cur.Height == h {
		return cur, false, nil
	}
	tex, err := m.allocate(slot.String(), w, h, wgpu.TextureFormatRGBA8UnormSrgb)
	if err != nil {
		return nil, false, err
	}
	if old := m.video[slot]; old != nil {
		old.Handle.Release()
	}
	m.video[slot] = tex
	return tex, true, nil
}

func (m *manager) VideoTexture(slot VideoSlot) (*Texture, bool) {
	tex := m.video[slot]
	return tex, tex != nil
}

func (m *manager) EnsureDepthTexture(size uint32) (*Texture, error) {
	if m.depth != nil {
		return m.depth, nil
	}
	tex, err := m.allocate("depth", size, size, wgpu.TextureFormatRGBA8Unorm)
	if err != nil {
		return nil, err
	}
	m.depth = tex
	return tex, nil
}

func (m *manager) DepthTexture() (*Texture, bool) {
	if m.depth == nil || !m.depthLoaded {
		return nil, false
	}
	return m.depth, true
}

func (m *manager) PlaceholderTexture() *Texture {
	return m.placeholder
}

func (m *manager) UploadFrame(tex *Texture, frame *image.RGBA) bool {
	if tex == nil || frame == nil {
		return false
	}
	return m.upload(tex, frame)
}

func (m *manager) UploadImage(tex *Texture, img image.Image) bool {
	if tex == nil || img == nil {
		return false
	}
	if !m.upload(tex, common.ToRGBA(img)) {
		return false
	}
	if tex == m.depth {
		m.depthLoaded = true
	}
	return true
}

func (m *manager) upload(tex *Texture, img *image.RGBA) bool {
	staged := common.Staging(common.ToRGBA(img))
	if staged.Width != tex.Width || staged.Height != tex.Height {
		return false
	}
	if err := m.backend.WriteTexture(tex.Handle, staged); err != nil {
		common.Logger().Debug("texture upload skipped", "texture", tex.Handle.Label(), "error", err)
		return false
	}
	return true
}

func (m *manager) WriteUniforms(kind UniformKind, values [4]float32) {
	buf := m.uniforms[kind]
	if buf == nil {
		return
	}
	m.backend.WriteBuffer(buf.Handle, 0, common.Vec4Bytes(values))
}

func (m *manager) Uniform(kind UniformKind) *Buffer {
	return m.uniforms[kind]
}

func (m *manager) Sampler() *Sampler {
	return m.sampler
}

func (m *manager) Release() {
	if m.image != nil {
		m.image.Handle.Release()
		m.image = nil
	}
	for slot, tex := range m.video {
		tex.Handle.Release()
		delete(m.video, slot)
	}
	if m.depth != nil {
		m.depth.Handle.Release()
		m.depth = nil
		m.depthLoaded = false
	}
	if m.placeholder != nil {
		m.placeholder.Handle.Release()
		m.placeholder = nil
	}
	for kind, buf := range m.uniforms {
		buf.Handle.Release()
		delete(m.uniforms, kind)
	}
	if m.sampler != nil {
		m.sampler.Handle.Release()
		m.sampler = nil
	}
}
