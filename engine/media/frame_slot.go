package media

import (
	"image"
	"sync"
)

// FrameSlot is a single-slot mailbox holding the latest decoded frame. Publishing overwrites the
// previous frame whether or not it was read; reads never consume, so the renderer keeps showing the
// last frame while the decoder is between frames.
type FrameSlot struct {
	mu sync.Mutex

	frame  *image.RGBA
	seq    uint64
	unread bool

	// totalDrops counts frames overwritten before any read observed them
	totalDrops uint64

	closed bool
}

// NewFrameSlot returns an empty FrameSlot.
func NewFrameSlot() *FrameSlot {
	return &FrameSlot{}
}

// Publish stores frame as the latest frame. A no-op once the slot is closed or when frame is nil.
//
// Parameters:
//   - frame: the decoded frame; ownership passes to the slot
func (s *FrameSlot) Publish(frame *image.RGBA) {
	if frame == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.unread {
		s.totalDrops++
	}
	s.frame = frame
	s.seq++
	s.unread = true
}

// Latest returns the most recently published frame without consuming it.
//
// Returns:
//   - *image.RGBA: the latest frame
//   - uint64: the frame's sequence number, starting at 1
//   - bool: false if nothing has been published
func (s *FrameSlot) Latest() (*image.RGBA, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil {
		return nil, 0, false
	}
	s.unread = false
	return s.frame, s.seq, true
}

// Seq returns the sequence number of the latest frame, or 0 if nothing has been published.
// Unlike Latest it does not mark the frame as read.
func (s *FrameSlot) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Drops returns how many published frames were overwritten before being read.
func (s *FrameSlot) Drops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalDrops
}

// Close marks the slot closed; later publishes are ignored. The last frame stays readable.
func (s *FrameSlot) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
