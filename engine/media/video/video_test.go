package video

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-canvas/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameDuration(t *testing.T) {
	assert.Equal(t, defaultFrameDuration, frameDuration(0, 1))
	assert.Equal(t, defaultFrameDuration, frameDuration(30, 0))
	assert.InDelta(t, float64(40e6), float64(frameDuration(25, 1)), 1)
	assert.InDelta(t, float64(33366666), float64(frameDuration(30000, 1001)), 1)
}

func TestNewSourceMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.mp4")
	_, err := NewSource(context.Background(), path)
	require.Error(t, err)

	var assetErr *common.AssetLoadError
	require.True(t, errors.As(err, &assetErr))
	assert.Equal(t, path, assetErr.Asset)
}
