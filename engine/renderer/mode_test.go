package renderer

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestParseRenderMode(t *testing.T) {
	for _, m := range RenderModes {
		got, err := ParseRenderMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	got, err := ParseRenderMode("DEPTHMERGE")
	require.NoError(t, err)
	assert.Equal(t, RenderModeDepthMerge, got)

	_, err = ParseRenderMode("hologram")
	assert.ErrorIs(t, err, ErrUnknownRenderMode)
}

func TestPassModes(t *testing.T) {
	assert.Equal(t, RenderModeShader, ShaderPass{}.Mode())
	assert.Equal(t, RenderModeImage, ImagePass{}.Mode())
	assert.Equal(t, RenderModeVideo, VideoPass{}.Mode())
	assert.Equal(t, RenderModeDepthMerge, DepthMergePass{}.Mode())
	assert.Equal(t, "depthMerge", RenderModeDepthMerge.String())
	assert.Equal(t, "galaxy", DrawPathGalaxy.String())
}
