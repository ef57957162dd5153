package renderer

import (
	"fmt"
	"image"
	"time"

	"github.com/Carmen-Shannon/oxy-canvas/engine/media"
)

// ViewParams are the user's zoom and pan. The renderer forwards them to the galaxy shader unchanged.
type ViewParams struct {
	Zoom float32
	PanX float32
	PanY float32
}

// Pass carries the inputs specific to one render mode. The set of implementations is closed.
type Pass interface {
	// Mode returns the render mode this pass draws.
	Mode() RenderMode
	isPass()
}

// ShaderPass draws the galaxy background.
type ShaderPass struct {
	// Elapsed is the animation time since the canvas became ready.
	Elapsed time.Duration
}

// ImagePass draws the still image.
type ImagePass struct{}

// VideoPass draws the primary video.
type VideoPass struct{}

// DepthMergePass draws the primary video over Background, weighted per pixel by Depth.
// A nil Background or Depth selects the video fallback.
type DepthMergePass struct {
	Background media.Source
	Depth      image.Image
}

func (ShaderPass) Mode() RenderMode     { return RenderModeShader }
func (ImagePass) Mode() RenderMode      { return RenderModeImage }
func (VideoPass) Mode() RenderMode      { return RenderModeVideo }
func (DepthMergePass) Mode() RenderMode { return RenderModeDepthMerge }

func (ShaderPass) isPass()     {}
func (ImagePass) isPass()      {}
func (VideoPass) isPass()      {}
func (DepthMergePass) isPass() {}

// FrameInput is everything one call to Render consumes.
type FrameInput struct {
	// Primary is the main video. It is refreshed every tick whatever the pass, because the galaxy
	// shader samples it too.
	Primary media.Source
	// PrimaryFrame is the frame of Primary already read for this tick. When set, the renderer uploads
	// it instead of reading Primary again, so the depth map and the video texture come from one frame.
	PrimaryFrame *image.RGBA
	View         ViewParams
	Pass         Pass
}

// DrawPath reports which draw a Render call executed.
type DrawPath int

const (
	// DrawPathNone means the frame was cleared and presented without a draw, or dropped.
	DrawPathNone DrawPath = iota
	DrawPathGalaxy
	DrawPathImage
	DrawPathVideo
	DrawPathDepthMerge
)

func (p DrawPath) String() string {
	switch p {
	case DrawPathNone:
		return "none"
	case DrawPathGalaxy:
		return "galaxy"
	case DrawPathImage:
		return "image"
	case DrawPathVideo:
		return "video"
	case DrawPathDepthMerge:
		return "depthMerge"
	default:
		return fmt.Sprintf("DrawPath(%d)", int(p))
	}
}
