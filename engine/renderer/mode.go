package renderer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRenderMode is returned by ParseRenderMode for a string that names no mode.
var ErrUnknownRenderMode = errors.New("unknown render mode")

// RenderMode selects which composition the renderer draws each tick.
type RenderMode int

const (
	// RenderModeShader draws the procedural galaxy background.
	RenderModeShader RenderMode = iota

	// RenderModeImage draws the still image.
	RenderModeImage

	// RenderModeVideo draws the primary video.
	RenderModeVideo

	// RenderModeDepthMerge blends the primary video over the background video weighted by the depth map.
	// Falls back to RenderModeVideo output whenever an input is missing.
	RenderModeDepthMerge
)

// RenderModes lists every mode in selection order.
var RenderModes = []RenderMode{RenderModeShader, RenderModeImage, RenderModeVideo, RenderModeDepthMerge}

func (m RenderMode) String() string {
	switch m {
	case RenderModeShader:
		return "shader"
	case RenderModeImage:
		return "image"
	case RenderModeVideo:
		return "video"
	case RenderModeDepthMerge:
		return "depthMerge"
	default:
		return fmt.Sprintf("RenderMode(%d)", int(m))
	}
}

// ParseRenderMode parses the mode names produced by String. Matching ignores case.
//
// Parameters:
//   - s: the mode name
//
// Returns:
//   - RenderMode: the parsed mode
//   - error: ErrUnknownRenderMode wrapped with the offending string
func ParseRenderMode(s string) (RenderMode, error) {
	for _, m := range RenderModes {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return RenderModeShader, fmt.Errorf("%w: %q", ErrUnknownRenderMode, s)
}
