package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestProfilerEmitsAfterInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	p := NewProfilerWithClock(time.Second, clock.now)

	for i := 0; i < 9; i++ {
		clock.t = clock.t.Add(100 * time.Millisecond)
		_, ok := p.Tick("galaxy")
		assert.False(t, ok, "tick %d is inside the interval", i)
	}

	clock.t = clock.t.Add(100 * time.Millisecond)
	s, ok := p.Tick("none")
	require.True(t, ok)
	assert.InDelta(t, 10.0, s.FPS, 0.001)
	assert.Equal(t, 9, s.Drawn)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, map[string]int{"galaxy": 9, "none": 1}, s.Paths)
}

func TestProfilerResetsAfterSummary(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfilerWithClock(time.Second, clock.now)

	clock.t = clock.t.Add(2 * time.Second)
	_, ok := p.Tick("video")
	require.True(t, ok)

	clock.t = clock.t.Add(time.Second)
	s, ok := p.Tick("image")
	require.True(t, ok)
	assert.Equal(t, map[string]int{"image": 1}, s.Paths)
	assert.InDelta(t, 1.0, s.FPS, 0.001)
}

func TestProfilerReportsDropsPerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfilerWithClock(time.Second, clock.now)

	p.RecordDrops(3)
	clock.t = clock.t.Add(time.Second)
	s, ok := p.Tick("video")
	require.True(t, ok)
	assert.Equal(t, uint64(3), s.Drops)

	p.RecordDrops(5)
	clock.t = clock.t.Add(time.Second)
	s, ok = p.Tick("video")
	require.True(t, ok)
	assert.Equal(t, uint64(2), s.Drops)

	clock.t = clock.t.Add(time.Second)
	s, ok = p.Tick("video")
	require.True(t, ok)
	assert.Zero(t, s.Drops)
}
