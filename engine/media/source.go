// Package media supplies the frames the renderer samples. Still images are decoded once at startup;
// decoders that run on a background goroutine (see package video) publish into a FrameSlot.
package media

import (
	"image"
)

// Source is a media input the renderer can upload from. The renderer only ever reads the latest
// frame; a Source never blocks the tick.
type Source interface {
	// Frame returns the most recent decoded frame.
	//
	// Returns:
	//   - *image.RGBA: a packed RGBA frame anchored at the origin; callers must not modify it
	//   - bool: false if no frame has been decoded yet
	Frame() (*image.RGBA, bool)

	// Width returns the source width in pixels, known once the source is opened.
	Width() int

	// Height returns the source height in pixels, known once the source is opened.
	Height() int

	// Ready reports whether at least one frame can be displayed.
	Ready() bool

	// Close stops decoding and releases the source. Safe to call more than once.
	//
	// Returns:
	//   - error: an error from tearing down the decoder, if any
	Close() error
}

// DropCounter is implemented by sources that can overwrite frames nobody read.
type DropCounter interface {
	// Drops returns how many published frames were replaced before they were read.
	Drops() uint64
}
