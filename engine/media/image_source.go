package media

import (
	"image"
	"os"

	"github.com/Carmen-Shannon/oxy-canvas/common"
)

// imageSource is a Source backed by one immutable decoded image.
type imageSource struct {
	img *image.RGBA
}

var _ Source = &imageSource{}

// NewImageSource reads and decodes a still image from disk.
//
// Parameters:
//   - path: the image file (PNG, JPEG, GIF, BMP or WebP)
//
// Returns:
//   - Source: a Source that is ready immediately
//   - error: a *common.AssetLoadError if the file cannot be read or decoded
func NewImageSource(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &common.AssetLoadError{Asset: path, Err: err}
	}
	img, err := common.DecodeImage(data)
	if err != nil {
		return nil, &common.AssetLoadError{Asset: path, Err: err}
	}
	return &imageSource{img: img}, nil
}

// NewStaticSource wraps an in-memory image as a Source.
//
// Parameters:
//   - img: the image; it is converted to packed RGBA if needed
//
// Returns:
//   - Source: a Source that always returns img
func NewStaticSource(img image.Image) Source {
	return &imageSource{img: common.ToRGBA(img)}
}

func (s *imageSource) Frame() (*image.RGBA, bool) {
	return s.img, s.img != nil
}

func (s *imageSource) Width() int {
	return s.img.Bounds().Dx()
}

func (s *imageSource) Height() int {
	return s.img.Bounds().Dy()
}

func (s *imageSource) Ready() bool {
	return s.img != nil
}

func (s *imageSource) Close() error {
	return nil
}
