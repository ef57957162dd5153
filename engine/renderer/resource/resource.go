// Package resource owns every GPU texture, buffer and sampler whose identity can change at runtime.
// Each allocation is stamped with a generation drawn from one manager-wide counter, which is what the
// bind group cache compares to decide whether a bind group still points at live resources.
package resource

import (
	"fmt"
	"image"

	"github.com/Carmen-Shannon/oxy-canvas/engine/renderer/backend"
)

// UniformSize is the size in bytes of every uniform buffer: four float32 values.
const UniformSize = 16

// VideoSlot names one of the video textures.
type VideoSlot int

const (
	// VideoSlotPrimary is the main video, also sampled by the galaxy shader.
	VideoSlotPrimary VideoSlot = iota

	// VideoSlotBackground is the secondary video blended behind the primary in depth merge.
	VideoSlotBackground
)

func (s VideoSlot) String() string {
	switch s {
	case VideoSlotPrimary:
		return "video"
	case VideoSlotBackground:
		return "background"
	default:
		return fmt.Sprintf("VideoSlot(%d)", int(s))
	}
}

// UniformKind names one of the uniform buffers.
type UniformKind int

const (
	// UniformGalaxy holds (elapsedSeconds, zoom, panX, panY).
	UniformGalaxy UniformKind = iota

	// UniformPassthrough holds (canvasW, canvasH, srcW, srcH).
	UniformPassthrough
)

func (k UniformKind) String() string {
	switch k {
	case UniformGalaxy:
		return "galaxy"
	case UniformPassthrough:
		return "passthrough"
	default:
		return fmt.Sprintf("UniformKind(%d)", int(k))
	}
}

// Texture is a GPU texture together with its size and the generation stamped at allocation.
type Texture struct {
	Handle     backend.Texture
	Width      uint32
	Height     uint32
	Generation uint64
}

// Buffer is a uniform buffer and its generation.
type Buffer struct {
	Handle     backend.Buffer
	Generation uint64
}

// Sampler is the shared sampler and its generation.
type Sampler struct {
	Handle     backend.Sampler
	Generation uint64
}

// Entry returns the bind group entry binding this texture at binding.
func (t *Texture) Entry(binding uint32) backend.BindGroupEntry {
	return backend.BindGroupEntry{Binding: binding, Texture: t.Handle}
}

// Entry returns the bind group entry binding this buffer at binding.
func (b *Buffer) Entry(binding uint32) backend.BindGroupEntry {
	return backend.BindGroupEntry{Binding: binding, Buffer: b.Handle}
}

// Entry returns the bind group entry binding this sampler at binding.
func (s *Sampler) Entry(binding uint32) backend.BindGroupEntry {
	return backend.BindGroupEntry{Binding: binding, Sampler: s.Handle}
}

// Manager is the single owner of runtime GPU resources. It is called only from the render thread.
type Manager interface {
	// EnsureImageTexture decodes and uploads the still image the first time it succeeds and returns
	// the same texture on every later call without decoding again.
	//
	// Parameters:
	//   - data: the encoded image bytes
	//
	// Returns:
	//   - *Texture: the image texture
	//   - error: a *common.AssetLoadError if decoding or allocation fails; nothing is recorded so a later call retries
	EnsureImageTexture(data []byte) (*Texture, error)

	// ImageTexture returns the image texture if one has been loaded.
	//
	// Returns:
	//   - *Texture: the image texture
	//   - bool: false if no image has been loaded
	ImageTexture() (*Texture, bool)

	// EnsureVideoTexture makes sure the slot holds a texture of exactly w x h. A texture of any other size
	// is released and replaced by a new one with a fresh generation.
	//
	// Parameters:
	//   - slot: the video slot
	//   - w: the frame width in pixels
	//   - h: the frame height in pixels
	//
	// Returns:
	//   - *Texture: the texture for the slot
	//   - bool: true if a new texture was allocated
	//   - error: an error if the size is zero or allocation fails
	EnsureVideoTexture(slot VideoSlot, w, h uint32) (*Texture, bool, error)

	// VideoTexture returns the texture currently held by a slot.
	//
	// Parameters:
	//   - slot: the video slot
	//
	// Returns:
	//   - *Texture: the slot's texture
	//   - bool: false if the slot is empty
	VideoTexture(slot VideoSlot) (*Texture, bool)

	// EnsureDepthTexture allocates the square depth texture once. Later calls return it unchanged
	// whatever size they pass.
	//
	// Parameters:
	//   - size: the edge length in pixels used on first allocation
	//
	// Returns:
	//   - *Texture: the depth texture
	//   - error: an error if allocation fails
	EnsureDepthTexture(size uint32) (*Texture, error)

	// DepthTexture returns the depth texture if it has been allocated and written at least once.
	//
	// Returns:
	//   - *Texture: the depth texture
	//   - bool: false if there is no depth map yet
	DepthTexture() (*Texture, bool)

	// PlaceholderTexture returns the 1x1 opaque white texture created at setup.
	PlaceholderTexture() *Texture

	// UploadFrame copies a decoded video frame into tex. It does nothing when frame is nil or when its
	// size differs from the texture.
	//
	// Parameters:
	//   - tex: the destination texture, sized with EnsureVideoTexture
	//   - frame: the frame read from the source for this tick
	//
	// Returns:
	//   - bool: true if pixels were written
	UploadFrame(tex *Texture, frame *image.RGBA) bool

	// UploadImage copies an image into tex under the same size rule as UploadFrame.
	//
	// Parameters:
	//   - tex: the destination texture
	//   - img: the image to upload
	//
	// Returns:
	//   - bool: true if pixels were written
	UploadImage(tex *Texture, img image.Image) bool

	// WriteUniforms overwrites all 16 bytes of a uniform buffer.
	//
	// Parameters:
	//   - kind: the buffer to write
	//   - values: the four float32 values
	WriteUniforms(kind UniformKind, values [4]float32)

	// Uniform returns a uniform buffer.
	Uniform(kind UniformKind) *Buffer

	// Sampler returns the shared linear clamp-to-edge sampler.
	Sampler() *Sampler

	// Release releases every resource the manager owns.
	Release()
}
