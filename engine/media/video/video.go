// Package video decodes looping video files through ffmpeg into a media.FrameSlot.
package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-canvas/common"
	"github.com/Carmen-Shannon/oxy-canvas/engine/media"
	"github.com/cogentcore/reisen"
)

const defaultFrameDuration = time.Second / 30

// source decodes the first video stream of a file on its own goroutine and publishes every
// frame into a media.FrameSlot. The stream rewinds at end of file so playback loops forever.
type source struct {
	path   string
	file   *reisen.Media
	stream *reisen.VideoStream
	slot   *media.FrameSlot

	width, height int
	frameDuration time.Duration

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var (
	_ media.Source      = &source{}
	_ media.DropCounter = &source{}
)

// NewSource opens a video file and starts decoding it in the background. The returned source
// is not Ready until the first frame has been decoded. Audio packets are skipped.
//
// Parameters:
//   - ctx: decoding stops when ctx is done
//   - path: the video file
//
// Returns:
//   - media.Source: the decoding source, which also implements media.DropCounter
//   - error: a *common.AssetLoadError if the file cannot be opened or has no video stream
func NewSource(ctx context.Context, path string) (media.Source, error) {
	file, err := reisen.NewMedia(path)
	if err != nil {
		return nil, &common.AssetLoadError{Asset: path, Err: err}
	}
	if err := file.OpenDecode(); err != nil {
		file.Close()
		return nil, &common.AssetLoadError{Asset: path, Err: err}
	}

	streams := file.VideoStreams()
	if len(streams) == 0 {
		file.CloseDecode()
		file.Close()
		return nil, &common.AssetLoadError{Asset: path, Err: errors.New("no video stream")}
	}
	stream := streams[0]
	if err := stream.Open(); err != nil {
		file.CloseDecode()
		file.Close()
		return nil, &common.AssetLoadError{Asset: path, Err: fmt.Errorf("open video stream: %w", err)}
	}

	v := &source{
		path:          path,
		file:          file,
		stream:        stream,
		slot:          media.NewFrameSlot(),
		width:         stream.Width(),
		height:        stream.Height(),
		frameDuration: frameDuration(stream.FrameRate()),
		done:          make(chan struct{}),
	}

	decodeCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	go v.decodeLoop(decodeCtx)

	common.Logger().Info("video opened", "path", path, "width", v.width, "height", v.height, "frame", v.frameDuration)
	return v, nil
}

// frameDuration converts a rational frame rate into the presentation interval of a single frame.
func frameDuration(num, den int) time.Duration {
	if num <= 0 || den <= 0 {
		return defaultFrameDuration
	}
	return time.Duration(float64(time.Second) * float64(den) / float64(num))
}

func (v *source) decodeLoop(ctx context.Context) {
	defer close(v.done)
	defer v.teardown()

	ticker := time.NewTicker(v.frameDuration)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		packet, gotPacket, err := v.file.ReadPacket()
		if err != nil {
			common.Logger().Warn("video read failed", "path", v.path, "error", err)
			return
		}
		if !gotPacket {
			if err := v.stream.Rewind(0); err != nil {
				common.Logger().Warn("video rewind failed", "path", v.path, "error", err)
				return
			}
			continue
		}
		if packet.Type() != reisen.StreamVideo || packet.StreamIndex() != v.stream.Index() {
			continue
		}

		frame, gotFrame, err := v.stream.ReadVideoFrame()
		if err != nil {
			common.Logger().Debug("video frame dropped", "path", v.path, "error", err)
			continue
		}
		if !gotFrame || frame == nil {
			continue
		}
		v.slot.Publish(frame.Image())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (v *source) teardown() {
	v.slot.Close()
	var errs []error
	if err := v.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := v.file.CloseDecode(); err != nil {
		errs = append(errs, err)
	}
	v.file.Close()
	v.closeErr = errors.Join(errs...)
}

func (v *source) Frame() (*image.RGBA, bool) {
	frame, _, ok := v.slot.Latest()
	return frame, ok
}

func (v *source) Width() int {
	return v.width
}

func (v *source) Height() int {
	return v.height
}

func (v *source) Ready() bool {
	return v.slot.Seq() > 0
}

func (v *source) Drops() uint64 {
	return v.slot.Drops()
}

func (v *source) Close() error {
	v.closeOnce.Do(func() {
		v.cancel()
		<-v.done
	})
	return v.closeErr
}
